package bot

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"mapleland-bot/internal/config"
	"mapleland-bot/internal/movement"
	"mapleland-bot/internal/perception"
	"mapleland-bot/internal/status"
)

// potionTrigger presses once per crossing below the threshold and re-arms
// when the reading is back at or above it.
type potionTrigger struct {
	fired bool
	last  time.Time
}

// check returns true when the potion key should be pressed for v.
func (t *potionTrigger) check(v perception.Vital, threshold float64, repeat time.Duration, now time.Time) bool {
	pct := v.Percent()
	if pct >= threshold {
		t.fired = false
		return false
	}
	if suppressPotion(pct, v.Max) {
		return false
	}
	if !t.fired {
		t.fired = true
		t.last = now
		return true
	}
	if repeat > 0 && now.Sub(t.last) >= repeat {
		t.last = now
		return true
	}
	return false
}

// suppressPotion holds the press for readings below 20% whose max starts
// with a 4.
func suppressPotion(pct float64, max int) bool {
	return pct < 20 && strconv.Itoa(max)[0] == '4'
}

func (b *Bot) runResource(ctx context.Context, log *zap.Logger) error {
	log = log.Named("resource")
	mc := movement.NewCoordinator(b.driver, b.clock, b.shared.Store.Load().Hotkeys, b.board, log)
	var hp, mp potionTrigger
	log.Info("resource loop started")

	for b.active(ctx) {
		cfg := b.shared.Store.Load()
		mc.SetHotkeys(cfg.Hotkeys)

		err := guard(func() error {
			b.checkVitals(cfg, mc, &hp, &mp)
			return nil
		})
		if err != nil {
			log.Error("vital check failed", zap.Error(err))
			if !b.clock.Wait(ctx, cfg.Misc.ErrorBackoff) {
				break
			}
			continue
		}
		if !b.clock.Wait(ctx, cfg.Potion.PollInterval) {
			break
		}
	}
	log.Info("resource loop stopped")
	return nil
}

func (b *Bot) checkVitals(cfg *config.Config, mc *movement.Coordinator, hp, mp *potionTrigger) {
	hpv, hpOK, mpv, mpOK := b.perceiver.ReadVitals(cfg)
	b.board.Update(func(s *status.Snapshot) {
		s.HP, s.HasHP = hpv, hpOK
		s.MP, s.HasMP = mpv, mpOK
	})

	now := b.clock.Now()
	if hpOK && hp.check(hpv, cfg.Potion.HPThreshold, cfg.Potion.RepeatInterval, now) {
		mc.PressKey(cfg.Potion.HPKey)
	}
	if mpOK && mp.check(mpv, cfg.Potion.MPThreshold, cfg.Potion.RepeatInterval, now) {
		mc.PressKey(cfg.Potion.MPKey)
	}
}
