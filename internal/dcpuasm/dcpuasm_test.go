package dcpuasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleSimpleProcedure(t *testing.T) {
	src := ".global f\n" +
		"f:\n" +
		"\tSET A, [SP + 1]\n" +
		"\tADD A, [SP + 2]\n" +
		"\tSET PC, POP\n"

	obj, diags := Assemble(src)
	require.Empty(t, diags)

	require.Len(t, obj.Words, 5)
	// SET A, [SP+1]: b=A(0), a=PICK(0x1a) -> word (0x1a<<10)|(0<<5)|0x01, extra=1
	assert.Equal(t, uint16((0x1a<<10)|(0<<5)|0x01), obj.Words[0])
	assert.Equal(t, uint16(1), obj.Words[1])
	// ADD A, [SP+2]
	assert.Equal(t, uint16((0x1a<<10)|(0<<5)|0x02), obj.Words[2])
	assert.Equal(t, uint16(2), obj.Words[3])
	// SET PC, POP: b=PC(0x1c), a=PUSH/POP(0x18), no extra words
	assert.Equal(t, uint16((0x18<<10)|(0x1c<<5)|0x01), obj.Words[4])

	require.Contains(t, obj.Globals, "f")
	assert.Equal(t, 0, obj.Globals["f"])
}

func TestAssemblePackedImmediate(t *testing.T) {
	obj, diags := Assemble("\tSET A, 5\n")
	require.Empty(t, diags)
	require.Len(t, obj.Words, 1)
	assert.Equal(t, uint16(((0x21+5)<<10)|(0<<5)|0x01), obj.Words[0])
}

func TestAssembleOutOfRangeImmediateUsesExtraWord(t *testing.T) {
	obj, diags := Assemble("\tSET A, 1000\n")
	require.Empty(t, diags)
	require.Len(t, obj.Words, 2)
	assert.Equal(t, uint16(1000), obj.Words[1])
}

func TestAssembleLocalLabelAndJump(t *testing.T) {
	src := "f:\n" +
		"\tSET PC, .blk1\n" +
		".blk1:\n" +
		"\tSET PC, POP\n"
	obj, diags := Assemble(src)
	require.Empty(t, diags)
	// Instruction 1 takes two words (a symbolic target always carries a
	// trailing address word); instruction 2 packs into one.
	require.Len(t, obj.Words, 3)
	require.Len(t, obj.LocalRelocs, 1)
	assert.Equal(t, 1, obj.LocalRelocs[0])
	assert.Equal(t, uint16(2), obj.Words[1], ".blk1 resolves to word position 2")
}

func TestAssembleExternProducesGlobalReloc(t *testing.T) {
	src := ".extern g\n" +
		"f:\n" +
		"\tJSR g\n"
	obj, diags := Assemble(src)
	require.Empty(t, diags)
	require.Len(t, obj.GlobalRelocs, 1)
	assert.Equal(t, "g", obj.GlobalRelocs[0].Name)
}

func TestAssembleUndefinedSymbolIsDiagnostic(t *testing.T) {
	_, diags := Assemble("\tJSR nowhere\n")
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Error(), "undefined symbol")
}
