package block

import (
	"testing"

	"github.com/stretchr/testify/require"

	"armx86jit/internal/cache"
	"armx86jit/internal/codebuf"
	"armx86jit/internal/state"
)

// fakeProgram backs a Fetcher with a plain in-test instruction stream,
// standing in for guest memory without needing a real mmap'd image.
type fakeProgram map[uint32]uint32

func (p fakeProgram) fetch(addr uint32) uint32 { return p[addr] }

func newTestBuilder(t *testing.T, prog fakeProgram, chaining bool) *Builder {
	t.Helper()
	cb, err := codebuf.New(64 * 1024)
	require.NoError(t, err)
	t.Cleanup(func() { cb.Close() })

	return &Builder{
		CB:         cb,
		GS:         state.New(),
		Cache:      cache.New(),
		Fetch:      prog.fetch,
		Chaining:   chaining,
		BBTaken:    0x10000000, // unresolved placeholder host addresses;
		BBNotTaken: 0x20000000, // these scenarios only exercise translation.
	}
}

func TestTranslateMovImmediateBlock(t *testing.T) {
	prog := fakeProgram{
		0x8000: 0xE3A00001, // MOV R0, #1
		0x8004: 0xE1A0F00E, // MOV PC, LR  (Rd == PC, ends the block)
	}
	b := newTestBuilder(t, prog, true)

	host, err := b.Translate(0x8000)
	require.NoError(t, err)
	require.NotZero(t, host)

	cached, ok := b.Cache.Lookup(0x8000)
	require.True(t, ok)
	require.Equal(t, host, cached)
	require.Greater(t, b.CB.Cursor(), 0)
}

func TestTranslateAddImmediateRotatedWithPCMaterialization(t *testing.T) {
	prog := fakeProgram{
		0x8000: 0xE2811E01, // ADD R1, R1, #0x10 (imm8=1 ROR 28)
		0x8004: 0xE08FF001, // ADD PC, PC, R1 (Rn==PC -> materialization, ends block)
	}
	b := newTestBuilder(t, prog, true)

	_, err := b.Translate(0x8000)
	require.NoError(t, err)
	require.Greater(t, b.CB.Cursor(), 0)
}

func TestTranslateCmpThenConditionalBranch(t *testing.T) {
	prog := fakeProgram{
		0x8000: 0xE3500000, // CMP R0, #0
		0x8004: 0x0A000000, // BEQ +0 (cond-guarded end-of-block)
	}
	b := newTestBuilder(t, prog, true)

	_, err := b.Translate(0x8000)
	require.NoError(t, err)

	// A conditional end-of-block instruction must record both a taken
	// and an untaken exit path for the dispatcher to chain/resolve.
	require.NotZero(t, b.GS.TakenSrc)
	require.NotZero(t, b.GS.UntakenSrc)
}

func TestTranslateUnconditionalBranchIsChainable(t *testing.T) {
	prog := fakeProgram{
		0x8000: 0xEAFFFFFE, // B . (unconditional, offset -8 -> self)
	}
	b := newTestBuilder(t, prog, true)

	_, err := b.Translate(0x8000)
	require.NoError(t, err)
	// Unconditional: no untaken path recorded.
	require.Zero(t, b.GS.UntakenSrc)
	require.NotZero(t, b.GS.TakenSrc)
}

func TestTranslateStmdbWriteback(t *testing.T) {
	prog := fakeProgram{
		0x8000: 0xE92D4010, // STMDB SP!, {R4, LR}
		0x8004: 0xE1A0F00E, // MOV PC, LR
	}
	b := newTestBuilder(t, prog, true)

	_, err := b.Translate(0x8000)
	require.NoError(t, err)
	require.Greater(t, b.CB.Cursor(), 0)
}

func TestTranslateCacheHitSkipsReTranslation(t *testing.T) {
	prog := fakeProgram{
		0x8000: 0xE3A00001,
		0x8004: 0xE1A0F00E,
	}
	b := newTestBuilder(t, prog, false)

	first, err := b.Translate(0x8000)
	require.NoError(t, err)
	cursorAfterFirst := b.CB.Cursor()

	second, err := b.Translate(0x8000)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, cursorAfterFirst, b.CB.Cursor())
}

func TestTranslateUnsupportedInstructionErrors(t *testing.T) {
	prog := fakeProgram{
		0x8000: 0xEC100000, // coprocessor load/store: unsupported
	}
	b := newTestBuilder(t, prog, true)

	_, err := b.Translate(0x8000)
	require.Error(t, err)
}
