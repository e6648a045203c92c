package dice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/initiative/internal/game/dice"
)

// seqSrc returns its values in order, repeating the last one.
type seqSrc struct {
	vals []int
	i    int
}

func (s *seqSrc) Intn(n int) int {
	v := s.vals[s.i]
	if s.i < len(s.vals)-1 {
		s.i++
	}
	return v % n
}

func TestParse_Forms(t *testing.T) {
	cases := map[string]dice.Expression{
		"d20":      {Raw: "d20", Count: 1, Sides: 20},
		"1d20+3":   {Raw: "1d20+3", Count: 1, Sides: 20, Modifier: 3},
		"2d6-1":    {Raw: "2d6-1", Count: 2, Sides: 6, Modifier: -1},
		"2d20kh1":  {Raw: "2d20kh1", Count: 2, Sides: 20, KeepHighest: 1},
		"4d6kh3+2": {Raw: "4d6kh3+2", Count: 4, Sides: 6, KeepHighest: 3, Modifier: 2},
	}
	for in, want := range cases {
		got, err := dice.Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "20", "0d6", "d1", "2d6kh2", "1d20+x", "xd6"} {
		_, err := dice.Parse(in)
		assert.ErrorIs(t, err, dice.ErrInvalidExpression, in)
	}
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { dice.MustParse("nope") })
}

func TestRoll_KeepHighest(t *testing.T) {
	src := &seqSrc{vals: []int{3, 17}}
	res := dice.Roll(dice.MustParse("2d20kh1"), src)
	assert.Equal(t, []int{18}, res.Dice)
	assert.Equal(t, 18, res.Natural())
}

func TestRollResult_String(t *testing.T) {
	r := dice.RollResult{Expression: "1d20+3", Dice: []int{14}, Modifier: 3}
	assert.Equal(t, "1d20+3 [14] +3 = 17", r.String())
}

func TestLoggedRoller_LogsAtDebug(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := dice.NewLoggedRoller(&seqSrc{vals: []int{9}}, zap.New(core))
	res, err := r.RollExpr("1d20+2")
	require.NoError(t, err)
	assert.Equal(t, 12, res.Total())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "dice roll", logs.All()[0].Message)
}

func TestCryptoSource_Intn_PanicsOnZero(t *testing.T) {
	assert.Panics(t, func() { dice.NewCryptoSource().Intn(0) })
}

func TestPropertyRoll_WithinBounds(t *testing.T) {
	src := dice.NewCryptoSource()
	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(1, 6).Draw(t, "count")
		sides := rapid.IntRange(2, 20).Draw(t, "sides")
		mod := rapid.IntRange(-5, 5).Draw(t, "mod")
		res := dice.Roll(dice.Expression{Raw: "x", Count: count, Sides: sides, Modifier: mod}, src)
		require.Len(t, res.Dice, count)
		for _, d := range res.Dice {
			assert.GreaterOrEqual(t, d, 1)
			assert.LessOrEqual(t, d, sides)
		}
		assert.GreaterOrEqual(t, res.Total(), count+mod)
		assert.LessOrEqual(t, res.Total(), count*sides+mod)
	})
}
