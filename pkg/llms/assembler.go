package llms

import (
	"sort"

	"github.com/socraticlabs/coach/pkg/protocol"
)

// pendingToolCall accumulates the fragments observed for one stream-local
// tool-call index. Name is last-non-empty-wins; argument fragments are
// concatenated in arrival order.
type pendingToolCall struct {
	name string
	args []byte
}

// toolCallAssembler reconstructs complete tool calls from the fragmented
// deltas some providers spread across many stream chunks. It is the single
// place incremental-JSON correctness is guaranteed: adapters feed raw
// fragments in and only ever take fully parsed calls out.
//
// Each index is finalized exactly once. Flush may be called on an explicit
// finish signal, at end of stream, or both; duplicate calls are harmless.
type toolCallAssembler struct {
	pending   map[int]*pendingToolCall
	finalized map[int]bool
}

func newToolCallAssembler() *toolCallAssembler {
	return &toolCallAssembler{
		pending:   make(map[int]*pendingToolCall),
		finalized: make(map[int]bool),
	}
}

// Add records one fragment for the given index. An empty name never
// overwrites a previously seen one.
func (a *toolCallAssembler) Add(index int, name, argsFragment string) {
	pc, ok := a.pending[index]
	if !ok {
		pc = &pendingToolCall{}
		a.pending[index] = pc
	}
	if name != "" {
		pc.name = name
	}
	if argsFragment != "" {
		pc.args = append(pc.args, argsFragment...)
	}
}

// Flush finalizes every index not yet finalized and returns the resulting
// calls in index order. Indexes without a name are dropped: they are
// fragments that never identified a function.
func (a *toolCallAssembler) Flush() []protocol.ToolCall {
	indexes := make([]int, 0, len(a.pending))
	for idx := range a.pending {
		if !a.finalized[idx] {
			indexes = append(indexes, idx)
		}
	}
	sort.Ints(indexes)

	var calls []protocol.ToolCall
	for _, idx := range indexes {
		pc := a.pending[idx]
		a.finalized[idx] = true
		if pc.name == "" {
			continue
		}
		calls = append(calls, protocol.ToolCall{
			Name:      pc.name,
			Arguments: ParseArguments(string(pc.args)),
		})
	}
	return calls
}
