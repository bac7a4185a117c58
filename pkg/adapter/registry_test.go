package adapter

import (
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/tablebridge/pkg/core"
)

// stubDriver is a minimal driver for registry tests.
type stubDriver struct {
	name     string
	prefix   string
	panicky  bool
	resolved int
}

func (d *stubDriver) Name() string { return d.name }

func (d *stubDriver) Supports(uri string) bool {
	if d.panicky {
		panic("probe exploded")
	}
	return strings.HasPrefix(uri, d.prefix)
}

func (d *stubDriver) Open(_ string, _ *slog.Logger) (Adapter, error) {
	d.resolved++
	return nil, nil
}

func TestRegistryResolveFirstMatchWins(t *testing.T) {
	r := NewRegistry()
	first := &stubDriver{name: "first", prefix: "x://"}
	second := &stubDriver{name: "second", prefix: "x://"}
	r.Register(first)
	r.Register(second)

	d, err := r.Resolve("x://table")
	require.NoError(t, err)
	assert.Equal(t, "first", d.Name(), "probe order follows registration order")
}

func TestRegistryResolveUnsupported(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubDriver{name: "mem", prefix: "memory://"})

	_, err := r.Resolve("dummy://")
	require.Error(t, err)
	assert.Equal(t, "Unsupported table: dummy://", err.Error())
	assert.ErrorIs(t, err, ErrUnsupported)

	var ute *UnsupportedTableError
	require.ErrorAs(t, err, &ute)
	assert.Equal(t, "dummy://", ute.Table)
}

func TestRegistryResolveEmpty(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve("dummy://")
	require.Error(t, err)
	assert.Equal(t, "Unsupported table: dummy://", err.Error())
}

func TestRegistryPanickyDriverIsSkipped(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubDriver{name: "broken", prefix: "x://", panicky: true})
	fallback := &stubDriver{name: "ok", prefix: "x://"}
	r.Register(fallback)

	d, err := r.Resolve("x://table")
	require.NoError(t, err, "a panicking Supports must not surface as a discovery error")
	assert.Equal(t, "ok", d.Name())
}

func TestRegistryClear(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubDriver{name: "mem", prefix: "memory://"})
	require.Equal(t, 1, r.Len())

	r.Clear()
	assert.Equal(t, 0, r.Len())

	_, err := r.Resolve("memory://x")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestRegistryGet(t *testing.T) {
	r := NewRegistry()
	d := &stubDriver{name: "mem", prefix: "memory://"}
	r.Register(d)

	got, ok := r.Get("mem")
	require.True(t, ok)
	assert.Same(t, Driver(d), got)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistryReplaceKeepsProbePosition(t *testing.T) {
	r := NewRegistry()
	other := &stubDriver{name: "other", prefix: "other://"}
	r.Register(&stubDriver{name: "mem", prefix: "old://"})
	r.Register(other)
	replacement := &stubDriver{name: "mem", prefix: "new://"}
	r.Register(replacement)

	require.Equal(t, 2, r.Len())
	got, ok := r.Get("mem")
	require.True(t, ok)
	assert.True(t, got.Supports("new://x"))

	// The probe slice serves the replacement too, not just the named
	// lookup: the old driver no longer matches and the new one resolves
	// from the original position.
	d, err := r.Resolve("new://x")
	require.NoError(t, err)
	assert.Same(t, Driver(replacement), d)

	_, err = r.Resolve("old://x")
	assert.ErrorIs(t, err, ErrUnsupported)

	assert.Equal(t, []Driver{replacement, other}, r.Drivers())
}

func TestNotSupportedError(t *testing.T) {
	err := MutationNotSupported("insert", &stubDriver{name: "csv"})
	assert.Equal(t, `adapter "csv" does not support insert`, err.Error())

	var nse *NotSupportedError
	assert.True(t, errors.As(err, &nse))
}

func TestSliceIterator(t *testing.T) {
	rows := []core.Row{
		{ID: 0, Values: map[string]any{"name": "Alice"}},
		{ID: 1, Values: map[string]any{"name": "Bob"}},
	}
	it := NewSliceIterator(rows)

	var seen []string
	for it.Next() {
		seen = append(seen, it.Row().Values["name"].(string))
	}
	require.NoError(t, it.Err())
	require.NoError(t, it.Close())
	assert.Equal(t, []string{"Alice", "Bob"}, seen)
}

func TestSliceIteratorError(t *testing.T) {
	boom := errors.New("backend down")
	it := NewErrIterator(boom)

	assert.False(t, it.Next())
	assert.ErrorIs(t, it.Err(), boom)
	assert.NoError(t, it.Close())
}
