package llms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemblerFragmentedCall(t *testing.T) {
	a := newToolCallAssembler()
	a.Add(0, "f", "")
	a.Add(0, "", `{"a":`)
	a.Add(0, "", `1}`)

	calls := a.Flush()
	require.Len(t, calls, 1)
	assert.Equal(t, "f", calls[0].Name)
	assert.Equal(t, map[string]any{"a": float64(1)}, calls[0].Arguments)
}

func TestAssemblerFinalizeOnEOSParity(t *testing.T) {
	// Same fragments, flushed without an explicit finish signal first.
	explicit := newToolCallAssembler()
	explicit.Add(0, "f", `{"a":`)
	explicit.Add(0, "", `1}`)
	explicitCalls := explicit.Flush()

	eos := newToolCallAssembler()
	eos.Add(0, "f", `{"a":`)
	eos.Add(0, "", `1}`)
	eosCalls := eos.Flush()

	assert.Equal(t, explicitCalls, eosCalls)
}

func TestAssemblerDuplicateFlushIsIdempotent(t *testing.T) {
	a := newToolCallAssembler()
	a.Add(0, "f", `{"a":1}`)

	first := a.Flush()
	second := a.Flush()

	assert.Len(t, first, 1)
	assert.Empty(t, second)
}

func TestAssemblerNameLastNonEmptyWins(t *testing.T) {
	a := newToolCallAssembler()
	a.Add(0, "first", "")
	a.Add(0, "", `{}`)
	a.Add(0, "second", "")

	calls := a.Flush()
	require.Len(t, calls, 1)
	assert.Equal(t, "second", calls[0].Name)
}

func TestAssemblerMultipleIndexesInOrder(t *testing.T) {
	a := newToolCallAssembler()
	a.Add(1, "second_call", `{"b":2}`)
	a.Add(0, "first_call", `{"a":1}`)

	calls := a.Flush()
	require.Len(t, calls, 2)
	assert.Equal(t, "first_call", calls[0].Name)
	assert.Equal(t, "second_call", calls[1].Name)
}

func TestAssemblerTruncatedArgumentsRepaired(t *testing.T) {
	a := newToolCallAssembler()
	a.Add(0, "f", `{"instruction":"say hi"`)

	calls := a.Flush()
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]any{"instruction": "say hi"}, calls[0].Arguments)
}

func TestAssemblerUnparseableArgumentsDefaultEmpty(t *testing.T) {
	a := newToolCallAssembler()
	a.Add(0, "f", `not json at all{{{`)

	calls := a.Flush()
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]any{}, calls[0].Arguments)
}

func TestAssemblerNamelessIndexDropped(t *testing.T) {
	a := newToolCallAssembler()
	a.Add(0, "", `{"a":1}`)

	assert.Empty(t, a.Flush())
}

func TestAssemblerIncrementalAfterFlush(t *testing.T) {
	a := newToolCallAssembler()
	a.Add(0, "f", `{}`)
	require.Len(t, a.Flush(), 1)

	// A new index after an earlier flush still finalizes.
	a.Add(1, "g", `{"x":true}`)
	calls := a.Flush()
	require.Len(t, calls, 1)
	assert.Equal(t, "g", calls[0].Name)
}
