package bot

import (
	"math/rand/v2"
	"time"

	"mapleland-bot/internal/config"
	"mapleland-bot/internal/movement"
)

// scheduler fires the periodic maintenance keys and the buffs from the
// main loop, after the action of each iteration.
//
// Maintenance tasks fire once per wall-clock bucket: the first bucket seen
// is only recorded, and every later bucket boundary crossed fires the task
// once. Buffs fire on first sight and then every interval plus a random
// extra drawn from [0, random_range], redrawn after each cast.
type scheduler struct {
	mc      *movement.Coordinator
	rng     *rand.Rand
	buckets map[string]time.Time
	buffDue map[string]time.Time
}

func newScheduler(mc *movement.Coordinator, rng *rand.Rand) *scheduler {
	return &scheduler{
		mc:      mc,
		rng:     rng,
		buckets: make(map[string]time.Time),
		buffDue: make(map[string]time.Time),
	}
}

func (s *scheduler) run(cfg *config.Config, now time.Time) {
	for _, task := range cfg.Misc.Maintenance {
		if s.maintenanceDue(task, now) {
			s.mc.PressKey(task.Key)
		}
	}
	for _, buff := range cfg.Buffs {
		if s.buffDueAt(buff, now) {
			s.cast(buff, now)
		}
	}
}

func (s *scheduler) maintenanceDue(task config.MaintenanceTask, now time.Time) bool {
	if task.Every <= 0 || task.Key == "" {
		return false
	}
	id := task.Name + "/" + task.Key + "/" + task.Every.String()
	bucket := now.Truncate(task.Every)
	last, seen := s.buckets[id]
	if !seen {
		s.buckets[id] = bucket
		return false
	}
	if bucket.After(last) {
		s.buckets[id] = bucket
		return true
	}
	return false
}

func (s *scheduler) buffDueAt(buff config.Buff, now time.Time) bool {
	if !buff.Active || buff.Key == "" {
		return false
	}
	due, seen := s.buffDue[buff.Name]
	return !seen || !now.Before(due)
}

func (s *scheduler) cast(buff config.Buff, now time.Time) {
	var extra time.Duration
	if buff.RandomRange > 0 {
		extra = time.Duration(s.rng.Int64N(int64(buff.RandomRange) + 1))
	}
	s.buffDue[buff.Name] = now.Add(buff.Interval + extra)
	if buff.DownTime > 0 {
		s.mc.HoldFor([]string{buff.Key}, buff.DownTime)
		return
	}
	s.mc.PressKey(buff.Key)
}
