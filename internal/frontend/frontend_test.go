package frontend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcpu16cc/internal/ir"
)

// TestLoadAddFunction reproduces spec.md §8 scenario 1: `int f(int a, int
// b){ return a + b; }` lowers to `t = a + b; ret t`.
func TestLoadAddFunction(t *testing.T) {
	doc := []byte(`{
		"procedures": [{
			"name": "f",
			"exported": true,
			"parameters": [0, 1],
			"instructions": [
				{"op": "ASSIGN_ADD", "dest": {"kind": "var", "base": 2},
				 "operands": [{"kind": "var", "base": 0}, {"kind": "var", "base": 1}]},
				{"op": "RET", "operands": [{"kind": "var", "base": 2}]}
			]
		}]
	}`)

	procs, err := Load(doc)
	require.NoError(t, err)
	require.Len(t, procs, 1)

	p := procs[0]
	assert.Equal(t, "f", p.Name)
	assert.True(t, p.Exported)
	assert.Equal(t, []uint32{0, 1}, p.Parameters)
	require.Len(t, p.Body, 2)
	assert.Equal(t, ir.OpAssignAdd, p.Body[0].Op)
	assert.Equal(t, ir.OpRet, p.Body[1].Op)
}

func TestLoadResolvesForwardBranchLabel(t *testing.T) {
	doc := []byte(`{
		"procedures": [{
			"name": "loop",
			"parameters": [0],
			"instructions": [
				{"op": "JE", "target": "done",
				 "comparands": [{"kind": "var", "base": 0}, {"kind": "const", "value": 0}]},
				{"op": "RETN"},
				{"label": "done"},
				{"op": "RETN"}
			]
		}]
	}`)

	procs, err := Load(doc)
	require.NoError(t, err)
	body := procs[0].Body
	require.Len(t, body, 3)
	require.Equal(t, ir.OpJe, body[0].Op)
	target := body[0].Target()
	require.Equal(t, ir.OperandOffset, target.Kind)
	assert.Equal(t, int64(1), target.OffsetV, "done is one instruction past the jump's successor")
}

func TestLoadRejectsUnknownOpcode(t *testing.T) {
	doc := []byte(`{"procedures":[{"name":"f","instructions":[{"op":"BOGUS"}]}]}`)
	_, err := Load(doc)
	require.Error(t, err)
}
