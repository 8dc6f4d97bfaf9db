package handles

import (
	"testing"

	"github.com/gomlx/gocompute/compute"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	table := New[string]()
	p0 := table.Intern("platform", "p0")
	require.NotEqual(t, compute.Handle(0), p0)
	assert.Equal(t, p0, table.Intern("platform", "p0"), "interned objects keep their handle")
	assert.Equal(t, 1, table.Len())

	ctx := table.Add("context", "ctx")
	buf := table.Add("buffer", "buf")
	assert.NotEqual(t, ctx, buf)
	assert.Equal(t, 3, table.Len())

	got, err := table.Get("context", ctx)
	require.NoError(t, err)
	assert.Equal(t, "ctx", got)
	_, err = table.Get("buffer", ctx)
	require.ErrorContains(t, err, "invalid buffer handle")
	_, err = table.Get("context", 0)
	require.Error(t, err)

	_, err = table.Remove("platform", p0)
	require.ErrorContains(t, err, "can't be released")
	got, err = table.Remove("buffer", buf)
	require.NoError(t, err)
	assert.Equal(t, "buf", got)
	_, err = table.Remove("buffer", buf)
	require.Error(t, err, "removing twice fails")
	_, err = table.Get("buffer", buf)
	require.Error(t, err)
	assert.Equal(t, 2, table.Len())

	// Handles are never reused.
	assert.Greater(t, table.Add("buffer", "buf"), buf)
}
