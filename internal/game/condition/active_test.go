package condition_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/initiative/internal/game/condition"
)

func add(s *condition.Set, id string, n condition.Name) *condition.Condition {
	c := condition.New(id, condition.Spec{Name: n, Duration: condition.Indefinite})
	s.Add(c)
	return c
}

func TestSet_AddGetHas(t *testing.T) {
	s := condition.NewSet()
	c := add(s, "a", condition.Prone)
	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Same(t, c, got)
	assert.True(t, s.Has(condition.Prone))
	assert.False(t, s.Has(condition.Blinded))
	assert.Equal(t, 1, s.Len())
}

func TestSet_Remove_NotPresent(t *testing.T) {
	s := condition.NewSet()
	c, ok := s.Remove("missing")
	assert.False(t, ok)
	assert.Nil(t, c)
}

func TestSet_Remove_KeepsNameCount(t *testing.T) {
	s := condition.NewSet()
	add(s, "a", condition.Prone)
	add(s, "b", condition.Prone)
	_, ok := s.Remove("a")
	require.True(t, ok)
	assert.True(t, s.Has(condition.Prone), "second prone must still be indexed")
	s.Remove("b")
	assert.False(t, s.Has(condition.Prone))
}

func TestSet_All_InsertionOrder(t *testing.T) {
	s := condition.NewSet()
	add(s, "a", condition.Prone)
	add(s, "b", condition.Blinded)
	add(s, "c", condition.Poisoned)
	s.Remove("b")
	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "c", all[1].ID)
}

func TestSet_First(t *testing.T) {
	s := condition.NewSet()
	add(s, "a", condition.Blinded)
	add(s, "b", condition.Prone)
	add(s, "c", condition.Prone)
	c, ok := s.First(condition.Prone)
	require.True(t, ok)
	assert.Equal(t, "b", c.ID)
	_, ok = s.First(condition.Slain)
	assert.False(t, ok)
}

func TestSet_RemoveName(t *testing.T) {
	s := condition.NewSet()
	add(s, "a", condition.Prone)
	add(s, "b", condition.Blinded)
	add(s, "c", condition.Prone)
	removed := s.RemoveName(condition.Prone)
	require.Len(t, removed, 2)
	assert.Equal(t, "a", removed[0].ID)
	assert.Equal(t, 1, s.Len())
	assert.Nil(t, s.RemoveName(condition.Slain))
}

func TestSet_Tick_RemovesExpired(t *testing.T) {
	s := condition.NewSet()
	s.Add(condition.New("short", condition.Spec{Name: condition.Blinded, Duration: 1, Timing: condition.TimingEnd}))
	s.Add(condition.New("long", condition.Spec{Name: condition.Prone, Duration: 3, Timing: condition.TimingEnd}))
	add(s, "forever", condition.Poisoned)

	expired := s.Tick(condition.TimingEnd, "anyone")
	require.Len(t, expired, 1)
	assert.Equal(t, "short", expired[0].ID)
	_, ok := s.Get("short")
	assert.False(t, ok)
	assert.Equal(t, 2, s.Len())

	assert.Empty(t, s.Tick(condition.TimingStart, "anyone"), "start tick must not touch end conditions")
}

func TestPropertySet_IndexMatchesOrder(t *testing.T) {
	names := condition.All()
	rapid.Check(t, func(t *rapid.T) {
		s := condition.NewSet()
		n := rapid.IntRange(0, 20).Draw(t, "count")
		for i := 0; i < n; i++ {
			add(s, fmt.Sprintf("c%d", i), rapid.SampledFrom(names).Draw(t, "name"))
		}
		removals := rapid.IntRange(0, n).Draw(t, "removals")
		for i := 0; i < removals; i++ {
			s.Remove(fmt.Sprintf("c%d", rapid.IntRange(0, n).Draw(t, "victim")))
		}
		all := s.All()
		assert.Equal(t, len(all), s.Len())
		for _, c := range all {
			got, ok := s.Get(c.ID)
			assert.True(t, ok)
			assert.Same(t, c, got)
			assert.True(t, s.Has(c.Name))
		}
	})
}
