package memory

import "github.com/leapstack-labs/tablebridge/pkg/core"

// PeopleSchema is the schema of the People fixture: every column
// supports exact Equal and Range pushdown, and age can be sorted either
// way.
func PeopleSchema() *core.Schema {
	return core.NewSchema().
		Add(core.Field{
			Name:    "name",
			Type:    core.TypeText,
			Filters: []core.FilterKind{core.KindEqual, core.KindRange, core.KindIn},
			Exact:   true,
		}).
		Add(core.Field{
			Name:    "age",
			Type:    core.TypeInteger,
			Filters: []core.FilterKind{core.KindEqual, core.KindRange},
			Order:   core.OrderAny,
			Exact:   true,
		}).
		Add(core.Field{
			Name:    "pets",
			Type:    core.TypeInteger,
			Filters: []core.FilterKind{core.KindEqual, core.KindRange},
			Exact:   true,
		}).
		MustBuild()
}

// PeopleSeed returns the canonical two-row fixture used across the
// test suite and the demo table.
func PeopleSeed() []core.Row {
	return []core.Row{
		{ID: 0, Values: map[string]any{"name": "Alice", "age": int64(20), "pets": int64(0)}},
		{ID: 1, Values: map[string]any{"name": "Bob", "age": int64(23), "pets": int64(3)}},
	}
}

// People builds the fixture table.
func People() *Table {
	return New(PeopleSchema(), PeopleSeed(), nil)
}
