package bot

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"mapleland-bot/internal/combat"
	"mapleland-bot/internal/config"
	"mapleland-bot/internal/movement"
	"mapleland-bot/internal/perception"
	"mapleland-bot/internal/safety"
	"mapleland-bot/internal/status"
	"mapleland-bot/internal/targeting"
)

// step is what the main loop does after an iteration.
type step int

const (
	stepNext step = iota
	stepHalt
)

type mainLoop struct {
	b      *Bot
	mc     *movement.Coordinator
	combat *combat.Executor
	sched  *scheduler
	log    *zap.Logger
}

func (b *Bot) runMain(ctx context.Context, log *zap.Logger) error {
	log = log.Named("main")
	cfg := b.shared.Store.Load()
	mc := movement.NewCoordinator(b.driver, b.clock, cfg.Hotkeys, b.board, log)
	m := &mainLoop{
		b:      b,
		mc:     mc,
		combat: combat.NewExecutor(mc, log),
		sched:  newScheduler(mc, b.rng),
		log:    log,
	}
	log.Info("main loop started")

	for b.active(ctx) {
		cfg = b.shared.Store.Load()
		mc.SetHotkeys(cfg.Hotkeys)

		var next step
		err := guard(func() error {
			var err error
			next, err = m.iterate(ctx, cfg)
			return err
		})
		if err != nil {
			log.Error("iteration failed", zap.Error(err))
			b.clock.Wait(ctx, cfg.Misc.ErrorBackoff)
			continue
		}
		if next == stepHalt {
			return nil
		}
		b.clock.Wait(ctx, cfg.Misc.LoopInterval)
	}

	mc.ReleaseAll(cfg.Rope.ClimbKey, cfg.Rope.ModifierKey)
	log.Info("main loop stopped")
	return nil
}

// iterate runs one perception-to-action cycle.
func (m *mainLoop) iterate(ctx context.Context, cfg *config.Config) (step, error) {
	b := m.b
	frame, err := b.perceiver.Capture()
	if err != nil {
		return stepNext, err
	}

	res := b.scanner.Scan(cfg, frame)
	b.board.Update(func(s *status.Snapshot) { s.Threat = res.Flags })
	if res.Stop {
		m.emergencyStop(cfg, frame, res)
		return stepHalt, nil
	}
	if res.Pause() {
		b.board.LogAction("Lie detector pause")
		b.clock.Wait(ctx, cfg.Safety.LiePause)
		return stepNext, nil
	}

	pose, ok := b.perceiver.LocateCharacter(cfg, frame)
	b.board.Update(func(s *status.Snapshot) { s.Pose, s.HasPose = pose, ok })
	if !ok {
		m.log.Debug("character not found")
		m.mc.Nudge(cfg.Movement.NudgeHold)
		return stepNext, nil
	}

	m.act(cfg, frame, pose)
	m.sched.run(cfg, b.clock.Now())
	return stepNext, nil
}

// act fights the closest monster, else climbs the closest rope, else
// patrols.
func (m *mainLoop) act(cfg *config.Config, frame perception.Frame, pose perception.Pose) {
	b := m.b
	monsters := b.perceiver.LocateEntities(frame, templatePaths(cfg, cfg.Vision.Monsters), cfg.Monster.RecognitionRate, frame.Region)
	target, ok := targeting.SelectMonster(monsters, pose, targeting.MonsterParams{
		XRange:               cfg.Monster.XRange,
		YRange:               cfg.Monster.YRange,
		HandleOppositeFacing: cfg.Monster.HandleOppositeFacing,
	})
	if ok {
		b.board.LogAction(fmt.Sprintf("Attack monster at %v", target))
		m.combat.Attack(target, pose.X, pose.FacingLeft, cfg.Movement.PixelRate(), combat.Timings{
			StoppingDistance: cfg.Combat.StoppingDistance,
			AttackHold:       cfg.Combat.AttackHold,
			SkillDelay:       cfg.Combat.SkillDelay,
		})
		return
	}

	ropes := b.perceiver.LocateEntities(frame, templatePaths(cfg, cfg.Vision.Ropes), cfg.Vision.Threshold, frame.Region)
	rope, ok := targeting.SelectRope(ropes, pose, targeting.RopeParams{
		XRange: cfg.Rope.XRange,
		YBand:  cfg.Rope.YBand,
	})
	if ok {
		plan := movement.PlanRope(pose.X, rope.X, pose.FacingLeft, movement.ParamsFrom(cfg.Movement), movement.RopeParams{
			AlignRange: cfg.Rope.AlignRange,
			ClimbHold:  cfg.Rope.ClimbHold,
		})
		m.mc.Climb(plan, cfg.Rope.ClimbKey, cfg.Rope.ModifierKey)
		return
	}

	m.mc.Patrol(cfg.Routes, cfg.Movement.PatrolHold)
}

// emergencyStop clears the run flag, releases every key and keeps the
// frame that tripped the scanner.
func (m *mainLoop) emergencyStop(cfg *config.Config, frame perception.Frame, res safety.Result) {
	b := m.b
	b.shared.running.Store(false)
	m.log.Warn("emergency stop", zap.Stringer("hazard", res.Tripped))
	m.mc.ReleaseAll(cfg.Rope.ClimbKey, cfg.Rope.ModifierKey)
	b.board.LogAction("Emergency stop: " + res.Tripped.String())

	if dir := cfg.Debug.EvidenceDir; dir != "" {
		path, err := saveEvidence(dir, res.Tripped, frame)
		if err != nil {
			m.log.Error("saving evidence failed", zap.Error(err))
		} else {
			m.log.Info("evidence saved", zap.String("path", path))
		}
	}
	b.setState(StateEmergencyStopped)

	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func templatePaths(cfg *config.Config, names []string) []string {
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = cfg.TemplatePath(n)
	}
	return paths
}
