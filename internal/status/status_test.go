package status

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapleland-bot/internal/perception"
)

func fixedNow() func() time.Time {
	t := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestActionHistoryKeepsLastTen(t *testing.T) {
	b := NewBoard(fixedNow())
	for i := 0; i < 15; i++ {
		b.LogAction(fmt.Sprintf("action %d", i))
	}
	logs := b.Actions()
	require.Len(t, logs, 10)
	assert.Equal(t, "action 5", logs[0].Message)
	assert.Equal(t, "action 14", logs[9].Message)
	assert.True(t, logs[0].Timestamp.Before(logs[9].Timestamp))
	assert.Equal(t, "action 14", b.Snapshot().Action)
}

func TestUpdateNotifiesWatchers(t *testing.T) {
	b := NewBoard(fixedNow())
	var seen []Snapshot
	b.Watch(func(s Snapshot) { seen = append(seen, s) })

	b.Update(func(s *Snapshot) {
		s.State = "Running"
		s.Pose = perception.Pose{X: 10, Y: 20}
		s.HasPose = true
	})
	b.Update(func(s *Snapshot) { s.HP, s.HasHP = perception.Vital{Current: 5, Max: 10}, true })

	require.Len(t, seen, 2)
	assert.Equal(t, "Running", seen[1].State, "updates accumulate")
	assert.True(t, seen[1].HasHP)
	assert.Equal(t, seen[1], b.Snapshot())
	assert.False(t, seen[1].At.IsZero())
}

func TestActionsReturnsCopy(t *testing.T) {
	b := NewBoard(nil)
	b.LogAction("a")
	logs := b.Actions()
	logs[0].Message = "mutated"
	assert.Equal(t, "a", b.Actions()[0].Message)
}
