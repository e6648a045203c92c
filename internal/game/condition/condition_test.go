package condition_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/initiative/internal/game/condition"
)

func timed(duration int, timing condition.Timing, owner condition.Owner) *condition.Condition {
	return condition.New("c1", condition.Spec{
		Name:     condition.Frightened,
		Duration: duration,
		Timing:   timing,
		Owner:    owner,
		Source:   "caster",
		Target:   "victim",
	})
}

func TestSpecValidate_Valid(t *testing.T) {
	spec := condition.Spec{Name: condition.Prone, Duration: condition.Indefinite}
	assert.NoError(t, spec.Validate())
}

func TestSpecValidate_UnknownName(t *testing.T) {
	err := condition.Spec{Name: condition.None, Duration: condition.Indefinite}.Validate()
	assert.ErrorIs(t, err, condition.ErrUnknownCondition)
}

func TestSpecValidate_NegativeDuration(t *testing.T) {
	err := condition.Spec{Name: condition.Prone, Duration: -2}.Validate()
	assert.ErrorIs(t, err, condition.ErrInvalidDuration)
}

func TestSpecValidate_FiniteDurationNeedsTiming(t *testing.T) {
	err := condition.Spec{Name: condition.Prone, Duration: 3}.Validate()
	assert.ErrorIs(t, err, condition.ErrInvalidTiming)
}

func TestSpecValidate_SourceOwnerNeedsSource(t *testing.T) {
	err := condition.Spec{Name: condition.Prone, Duration: 3, Timing: condition.TimingEnd, Owner: condition.OwnerSource}.Validate()
	assert.ErrorIs(t, err, condition.ErrInvalidTiming)
}

func TestSpecValidate_AnchorNeedsSource(t *testing.T) {
	err := condition.Spec{Name: condition.Charmed, Duration: condition.Indefinite, ExpiresWith: condition.Concentration}.Validate()
	assert.ErrorIs(t, err, condition.ErrInvalidTiming)
}

func TestShouldTick_TimingMustMatch(t *testing.T) {
	c := timed(2, condition.TimingEnd, condition.OwnerAny)
	assert.False(t, c.ShouldTick(condition.TimingStart, "victim"))
	assert.True(t, c.ShouldTick(condition.TimingEnd, "bystander"))
}

func TestShouldTick_TargetOwner(t *testing.T) {
	c := timed(2, condition.TimingStart, condition.OwnerTarget)
	assert.True(t, c.ShouldTick(condition.TimingStart, "victim"))
	assert.False(t, c.ShouldTick(condition.TimingStart, "caster"))
}

func TestShouldTick_SourceOwner(t *testing.T) {
	c := timed(2, condition.TimingStart, condition.OwnerSource)
	assert.True(t, c.ShouldTick(condition.TimingStart, "caster"))
	assert.False(t, c.ShouldTick(condition.TimingStart, "victim"))
	assert.False(t, c.ShouldTick(condition.TimingStart, condition.NoRef))
}

func TestShouldTick_IndefiniteNever(t *testing.T) {
	c := timed(condition.Indefinite, condition.TimingStart, condition.OwnerAny)
	assert.False(t, c.ShouldTick(condition.TimingStart, "victim"))
	assert.False(t, c.Tick())
}

func TestTick_ExpiresExactlyOnce(t *testing.T) {
	c := timed(2, condition.TimingEnd, condition.OwnerAny)
	assert.False(t, c.Tick())
	assert.Equal(t, 1, c.Duration)
	assert.True(t, c.Tick())
	assert.True(t, c.Expired())
	assert.False(t, c.Tick(), "an expired condition must not expire twice")
	assert.Equal(t, 0, c.Duration)
}

func TestTick_ZeroDurationExpiresOnFirstTick(t *testing.T) {
	c := timed(0, condition.TimingEnd, condition.OwnerAny)
	assert.True(t, c.Tick())
}

func TestParseTiming(t *testing.T) {
	tm, err := condition.ParseTiming("END")
	require.NoError(t, err)
	assert.Equal(t, condition.TimingEnd, tm)
	_, err = condition.ParseTiming("middle")
	assert.ErrorIs(t, err, condition.ErrInvalidTiming)
}

func TestParseOwner(t *testing.T) {
	o, err := condition.ParseOwner("source")
	require.NoError(t, err)
	assert.Equal(t, condition.OwnerSource, o)
	o, err = condition.ParseOwner("")
	require.NoError(t, err)
	assert.Equal(t, condition.OwnerAny, o)
	_, err = condition.ParseOwner("everyone")
	assert.Error(t, err)
}

func TestPropertyTick_NeverBelowZero(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		duration := rapid.IntRange(0, 10).Draw(t, "duration")
		ticks := rapid.IntRange(1, 20).Draw(t, "ticks")
		c := timed(duration, condition.TimingEnd, condition.OwnerAny)
		expiries := 0
		for i := 0; i < ticks; i++ {
			if c.Tick() {
				expiries++
			}
		}
		assert.GreaterOrEqual(t, c.Duration, 0, "duration must never go below zero")
		assert.LessOrEqual(t, expiries, 1, "a condition expires at most once")
		if ticks >= duration && duration > 0 {
			assert.Equal(t, 1, expiries)
		}
	})
}
