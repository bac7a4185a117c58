//go:build sqlite_vtable

package vtable

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/tablebridge/pkg/adapter"
	"github.com/leapstack-labs/tablebridge/pkg/adapters/csvfile"
	"github.com/leapstack-labs/tablebridge/pkg/adapters/memory"
	"github.com/leapstack-labs/tablebridge/pkg/core"
)

// lazyAdapter declares filter support but never applies any bound,
// exercising the bridge's row-level recheck.
type lazyAdapter struct {
	schema *core.Schema
	rows   []core.Row
	bounds core.Bounds
	order  []core.SortTerm
	closed bool
}

func (a *lazyAdapter) Schema() *core.Schema { return a.schema }

func (a *lazyAdapter) GetRows(_ context.Context, bounds core.Bounds, order []core.SortTerm) (adapter.RowIterator, error) {
	a.bounds = bounds
	a.order = order
	rows := make([]core.Row, len(a.rows))
	copy(rows, a.rows)
	return adapter.NewSliceIterator(rows), nil
}

func (a *lazyAdapter) Close() error {
	a.closed = true
	return nil
}

func newLazyAdapter(t *testing.T, exact bool) *lazyAdapter {
	t.Helper()
	schema, err := core.NewSchema().
		Add(core.Field{Name: "name", Type: core.TypeText, Filters: []core.FilterKind{core.KindEqual}, Exact: exact}).
		Add(core.Field{Name: "age", Type: core.TypeInteger, Filters: []core.FilterKind{core.KindEqual, core.KindRange}, Order: core.OrderAny, Exact: exact}).
		Build()
	require.NoError(t, err)
	return &lazyAdapter{
		schema: schema,
		rows: []core.Row{
			{ID: 0, Values: map[string]any{"name": "Alice", "age": int64(20)}},
			{ID: 1, Values: map[string]any{"name": "Bob", "age": int64(23)}},
			{ID: 2, Values: map[string]any{"name": "Carol", "age": int64(35)}},
		},
	}
}

func newTable(ad adapter.Adapter) *Table {
	return &Table{
		uri:     "test://people",
		adapter: ad,
		schema:  ad.Schema(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func decodeTestPlan(t *testing.T, idxStr string) scanPlan {
	t.Helper()
	var p scanPlan
	require.NoError(t, json.Unmarshal([]byte(idxStr), &p))
	return p
}

func TestBestIndexClaimsSupportedConstraints(t *testing.T) {
	tbl := newTable(newLazyAdapter(t, true))

	res, err := tbl.BestIndex([]sqlite3.InfoConstraint{
		{Column: 0, Op: sqlite3.OpEQ, Usable: true},
		{Column: 1, Op: sqlite3.OpGT, Usable: true},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []bool{true, true}, res.Used)
	plan := decodeTestPlan(t, res.IdxStr)
	require.Len(t, plan.Claims, 2)
	assert.Equal(t, claim{Column: "name", Op: opEQ}, plan.Claims[0])
	assert.Equal(t, claim{Column: "age", Op: opGT}, plan.Claims[1])
}

func TestBestIndexSkipsUnsupported(t *testing.T) {
	tbl := newTable(newLazyAdapter(t, true))

	res, err := tbl.BestIndex([]sqlite3.InfoConstraint{
		// name declares only equality support.
		{Column: 0, Op: sqlite3.OpGT, Usable: true},
		// Not usable in this query plan.
		{Column: 1, Op: sqlite3.OpEQ, Usable: false},
		// Rowid constraints stay with the engine.
		{Column: -1, Op: sqlite3.OpEQ, Usable: true},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []bool{false, false, false}, res.Used)
	assert.Empty(t, decodeTestPlan(t, res.IdxStr).Claims)
}

func TestBestIndexSingleEqualityPerColumn(t *testing.T) {
	tbl := newTable(newLazyAdapter(t, true))

	res, err := tbl.BestIndex([]sqlite3.InfoConstraint{
		{Column: 1, Op: sqlite3.OpEQ, Usable: true},
		{Column: 1, Op: sqlite3.OpEQ, Usable: true},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []bool{true, false}, res.Used)
	assert.Len(t, decodeTestPlan(t, res.IdxStr).Claims, 1)
}

func TestBestIndexClaimsBothRangeBounds(t *testing.T) {
	tbl := newTable(newLazyAdapter(t, true))

	res, err := tbl.BestIndex([]sqlite3.InfoConstraint{
		{Column: 1, Op: sqlite3.OpGE, Usable: true},
		{Column: 1, Op: sqlite3.OpLT, Usable: true},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []bool{true, true}, res.Used)
	assert.Len(t, decodeTestPlan(t, res.IdxStr).Claims, 2)
}

func TestBestIndexCostRewardsPushdown(t *testing.T) {
	tbl := newTable(newLazyAdapter(t, true))

	full, err := tbl.BestIndex(nil, nil)
	require.NoError(t, err)
	constrained, err := tbl.BestIndex([]sqlite3.InfoConstraint{
		{Column: 1, Op: sqlite3.OpEQ, Usable: true},
	}, nil)
	require.NoError(t, err)

	assert.Less(t, constrained.EstimatedCost, full.EstimatedCost)
}

func TestBestIndexClaimsOrder(t *testing.T) {
	tbl := newTable(newLazyAdapter(t, true))

	res, err := tbl.BestIndex(nil, []sqlite3.InfoOrderBy{{Column: 1, Desc: true}})
	require.NoError(t, err)

	assert.True(t, res.AlreadyOrdered)
	plan := decodeTestPlan(t, res.IdxStr)
	require.Len(t, plan.Order, 1)
	assert.Equal(t, core.SortTerm{Column: "age", Descending: true}, plan.Order[0])
}

func TestBestIndexRefusesPartialOrder(t *testing.T) {
	tbl := newTable(newLazyAdapter(t, true))

	// name has no declared sort capability, so the whole ORDER BY stays
	// with the engine even though age alone could be pushed down.
	res, err := tbl.BestIndex(nil, []sqlite3.InfoOrderBy{
		{Column: 1, Desc: false},
		{Column: 0, Desc: false},
	})
	require.NoError(t, err)

	assert.False(t, res.AlreadyOrdered)
	assert.Empty(t, decodeTestPlan(t, res.IdxStr).Order)
}

func scanAll(t *testing.T, cur *Cursor) []int64 {
	t.Helper()
	var ids []int64
	for !cur.EOF() {
		id, err := cur.Rowid()
		require.NoError(t, err)
		ids = append(ids, id)
		require.NoError(t, cur.Next())
	}
	require.NoError(t, cur.Close())
	return ids
}

func TestCursorRechecksNonExactFields(t *testing.T) {
	ad := newLazyAdapter(t, false)
	tbl := newTable(ad)

	cur, err := tbl.Open()
	require.NoError(t, err)
	c := cur.(*Cursor)

	plan := scanPlan{Claims: []claim{{Column: "age", Op: opGT}}}
	idxStr, err := plan.encode()
	require.NoError(t, err)

	// The adapter ignores the bound entirely; only the bridge's recheck
	// keeps Alice out of the result.
	require.NoError(t, c.Filter(1, idxStr, []any{int64(21)}))
	assert.Equal(t, []int64{1, 2}, scanAll(t, c))
	assert.Contains(t, ad.bounds, "age")
}

func TestCursorTrustsExactFields(t *testing.T) {
	ad := newLazyAdapter(t, true)
	tbl := newTable(ad)

	cur, err := tbl.Open()
	require.NoError(t, err)
	c := cur.(*Cursor)

	plan := scanPlan{Claims: []claim{{Column: "age", Op: opGT}}}
	idxStr, err := plan.encode()
	require.NoError(t, err)

	// An exact field's single filter is not re-checked, so the lazy
	// adapter's unfiltered rows all come through.
	require.NoError(t, c.Filter(1, idxStr, []any{int64(21)}))
	assert.Equal(t, []int64{0, 1, 2}, scanAll(t, c))
}

func TestCursorMergesSameColumnRanges(t *testing.T) {
	ad := newLazyAdapter(t, true)
	tbl := newTable(ad)

	cur, err := tbl.Open()
	require.NoError(t, err)
	c := cur.(*Cursor)

	plan := scanPlan{Claims: []claim{
		{Column: "age", Op: opGE},
		{Column: "age", Op: opLT},
	}}
	idxStr, err := plan.encode()
	require.NoError(t, err)

	require.NoError(t, c.Filter(2, idxStr, []any{int64(21), int64(30)}))

	// The adapter sees one merged range.
	r, ok := ad.bounds["age"].(core.Range)
	require.True(t, ok)
	assert.Equal(t, int64(21), r.Low)
	assert.True(t, r.IncludeLow)
	assert.Equal(t, int64(30), r.High)
	assert.False(t, r.IncludeHigh)

	// Merged columns are re-checked even on an exact field.
	assert.Equal(t, []int64{1}, scanAll(t, c))
}

func TestCursorEqualityDominatesRange(t *testing.T) {
	ad := newLazyAdapter(t, true)
	tbl := newTable(ad)

	cur, err := tbl.Open()
	require.NoError(t, err)
	c := cur.(*Cursor)

	plan := scanPlan{Claims: []claim{
		{Column: "age", Op: opGT},
		{Column: "age", Op: opEQ},
	}}
	idxStr, err := plan.encode()
	require.NoError(t, err)

	require.NoError(t, c.Filter(2, idxStr, []any{int64(10), int64(23)}))
	assert.IsType(t, core.Equal{}, ad.bounds["age"])
	assert.Equal(t, []int64{1}, scanAll(t, c))
}

func TestCursorFullScanAgainstMemoryAdapter(t *testing.T) {
	tbl := newTable(memory.People())

	cur, err := tbl.Open()
	require.NoError(t, err)
	c := cur.(*Cursor)

	require.NoError(t, c.Filter(0, "", nil))
	assert.Equal(t, []int64{0, 1}, scanAll(t, c))
}

func TestCursorRescanResets(t *testing.T) {
	ad := newLazyAdapter(t, false)
	tbl := newTable(ad)

	cur, err := tbl.Open()
	require.NoError(t, err)
	c := cur.(*Cursor)

	plan := scanPlan{Claims: []claim{{Column: "name", Op: opEQ}}}
	idxStr, err := plan.encode()
	require.NoError(t, err)

	require.NoError(t, c.Filter(1, idxStr, []any{[]byte("Bob")}))
	require.False(t, c.EOF())

	// Re-filtering the same open cursor starts a fresh scan.
	require.NoError(t, c.Filter(0, "", nil))
	assert.Equal(t, []int64{0, 1, 2}, scanAll(t, c))
}

func TestCursorSurfacesIteratorError(t *testing.T) {
	scanErr := errors.New("backend went away")
	ad := newLazyAdapter(t, true)
	tbl := newTable(&failingAdapter{lazyAdapter: ad, err: scanErr})

	cur, err := tbl.Open()
	require.NoError(t, err)
	c := cur.(*Cursor)

	err = c.Filter(0, "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, scanErr)
}

type failingAdapter struct {
	*lazyAdapter
	err error
}

func (a *failingAdapter) GetRows(context.Context, core.Bounds, []core.SortTerm) (adapter.RowIterator, error) {
	return adapter.NewErrIterator(a.err), nil
}

func TestTableMutationsWithoutCapability(t *testing.T) {
	tbl := newTable(newLazyAdapter(t, true))
	tbl.driver = memory.NewDriver()

	_, err := tbl.Insert(nil, []any{[]byte("Dan"), int64(40)})
	var nse *adapter.NotSupportedError
	require.ErrorAs(t, err, &nse)
	assert.Equal(t, "insert", nse.Op)

	require.ErrorAs(t, tbl.Delete(int64(0)), &nse)
	require.ErrorAs(t, tbl.Update(int64(0), []any{[]byte("Dan"), int64(40)}), &nse)
}

func TestTableMutationsAgainstMemoryAdapter(t *testing.T) {
	mem := memory.People()
	tbl := newTable(mem)
	tbl.driver = memory.NewDriver()

	rowid, err := tbl.Insert(nil, []any{[]byte("Carol"), int64(31), int64(1)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rowid)

	require.NoError(t, tbl.Update(rowid, []any{[]byte("Carol"), int64(32), int64(1)}))
	require.NoError(t, tbl.Delete(rowid))
	assert.Equal(t, 2, mem.Count())
}

func TestUpdateFallsBackToDeleteInsert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,age\nAlice,20\nBob,23\n"), 0o644))

	// The CSV adapter has no UpdateRow; the bridge decomposes into
	// delete plus insert under the original rowid.
	ad, err := csvfile.Open(path, nil)
	require.NoError(t, err)
	tbl := newTable(ad)
	tbl.driver = csvfile.NewDriver()

	require.NoError(t, tbl.Update(int64(1), []any{[]byte("Bob"), int64(24)}))

	reopened, err := csvfile.Open(path, nil)
	require.NoError(t, err)
	iter, err := reopened.GetRows(context.Background(), core.Bounds{"name": core.Equal{Value: "Bob"}}, nil)
	require.NoError(t, err)
	defer iter.Close()

	require.True(t, iter.Next())
	row := iter.Row()
	assert.Equal(t, int64(1), row.ID)
	assert.Equal(t, int64(24), row.Values["age"])
	require.False(t, iter.Next())
	require.NoError(t, iter.Err())
}

func TestDisconnectClosesAdapter(t *testing.T) {
	ad := newLazyAdapter(t, true)
	tbl := newTable(ad)

	require.NoError(t, tbl.Disconnect())
	assert.True(t, ad.closed)
}

func TestTableURI(t *testing.T) {
	uri, err := tableURI([]string{"memory", "main", "people", "'memory://people'"})
	require.NoError(t, err)
	assert.Equal(t, "memory://people", uri)

	uri, err = tableURI([]string{"csv", "main", "data.csv"})
	require.NoError(t, err)
	assert.Equal(t, "data.csv", uri)

	_, err = tableURI([]string{"memory", "main"})
	require.Error(t, err)
}

func TestUnquote(t *testing.T) {
	assert.Equal(t, "a'b", unquote("'a''b'"))
	assert.Equal(t, `a"b`, unquote(`"a""b"`))
	assert.Equal(t, "plain", unquote("  plain "))
}

func TestDeclareSQL(t *testing.T) {
	tbl := newTable(newLazyAdapter(t, true))
	assert.Equal(t, `CREATE TABLE x ("name" TEXT, "age" INTEGER)`, declareSQL(tbl.schema))
}

func TestFromEngine(t *testing.T) {
	assert.Equal(t, "abc", fromEngine([]byte("abc"), core.Field{Type: core.TypeText}))
	assert.Equal(t, []byte{1, 2}, fromEngine([]byte{1, 2}, core.Field{Type: core.TypeBlob}))
	assert.Equal(t, true, fromEngine(int64(1), core.Field{Type: core.TypeBool}))
	assert.Equal(t, int64(7), fromEngine(int64(7), core.Field{Type: core.TypeInteger}))
	assert.Nil(t, fromEngine(nil, core.Field{Type: core.TypeText}))
}
