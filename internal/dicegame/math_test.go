package dicegame_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/vrf-casino-platform-poc/internal/dicegame"
	"github.com/radieske/vrf-casino-platform-poc/internal/shared/apperr"
)

func TestPreviewPayout(t *testing.T) {
	// aposta de 1 real em 50%, edge de 1%: paga 1,98
	got, err := dicegame.PreviewPayout(100, 50, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(198), got)

	// threshold máximo devolve praticamente o stake
	got, err = dicegame.PreviewPayout(100, 99, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got)

	// threshold mínimo paga perto de 99x
	got, err = dicegame.PreviewPayout(100, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(9900), got)

	// sem edge, 50% paga exatamente 2x
	got, err = dicegame.PreviewPayout(100, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(200), got)
}

func TestPreviewPayoutRejectsBadInput(t *testing.T) {
	cases := []struct {
		name      string
		stake     int64
		threshold int
		edge      int64
	}{
		{"zero stake", 0, 50, 100},
		{"negative stake", -5, 50, 100},
		{"threshold zero", 100, 0, 100},
		{"threshold cem", 100, 100, 100},
		{"edge full", 100, 50, 10000},
		{"edge negative", 100, 50, -1},
		{"stake overflow", math.MaxInt64, 50, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := dicegame.PreviewPayout(tc.stake, tc.threshold, tc.edge)
			assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		})
	}
}

func TestCommitmentBindsAllParameters(t *testing.T) {
	base := dicegame.Commitment("alice", "NATIVE", 100, 50, "s3gr3do")

	assert.Equal(t, base, dicegame.Commitment("alice", "NATIVE", 100, 50, "s3gr3do"))
	assert.Len(t, base, 64)

	assert.NotEqual(t, base, dicegame.Commitment("bob", "NATIVE", 100, 50, "s3gr3do"))
	assert.NotEqual(t, base, dicegame.Commitment("alice", "NATIVE", 101, 50, "s3gr3do"))
	assert.NotEqual(t, base, dicegame.Commitment("alice", "NATIVE", 100, 51, "s3gr3do"))
	assert.NotEqual(t, base, dicegame.Commitment("alice", "NATIVE", 100, 50, "outro"))
}

func TestFinalRandomBindsContext(t *testing.T) {
	a := dicegame.FinalRandom(42, "alice", "salt", "casino-1", "bet-1")
	assert.Equal(t, a, dicegame.FinalRandom(42, "alice", "salt", "casino-1", "bet-1"))
	assert.NotEqual(t, a, dicegame.FinalRandom(43, "alice", "salt", "casino-1", "bet-1"))
	assert.NotEqual(t, a, dicegame.FinalRandom(42, "alice", "salt", "casino-1", "bet-2"))
}

func TestRollStaysInRange(t *testing.T) {
	for _, v := range []uint64{0, 1, 99, 100, 101, math.MaxUint64} {
		roll := dicegame.Roll(v)
		assert.GreaterOrEqual(t, roll, 1)
		assert.LessOrEqual(t, roll, 100)
	}
	assert.Equal(t, 1, dicegame.Roll(0))
	assert.Equal(t, 100, dicegame.Roll(99))
	assert.Equal(t, 1, dicegame.Roll(100))
}
