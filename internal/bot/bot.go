// Package bot runs the control loop and its two companion loops.
//
// A running bot owns three goroutines under one errgroup:
//
//	main:     capture, safety scan, target, act, maintenance, publish
//	resource: read vitals, press potions
//	channel:  watch for another user on the channel, run the change script
//
// All three poll Shared.Running once per iteration and exit when it is
// cleared. Only Start sets the flag; Stop and an emergency stop clear it.
package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mapleland-bot/internal/alarm"
	"mapleland-bot/internal/perception"
	"mapleland-bot/internal/platform"
	"mapleland-bot/internal/safety"
	"mapleland-bot/internal/status"
)

var (
	// ErrAlreadyRunning is returned by Start while the loops are running.
	ErrAlreadyRunning = errors.New("bot is already running")
	// ErrAlarmLatched is returned by Start while a critical alarm waits for
	// dismissal.
	ErrAlarmLatched = errors.New("critical alarm must be dismissed before starting")
)

// Options are the collaborators of a Bot. Driver, Matcher and Reader are
// required.
type Options struct {
	Driver   platform.Driver
	Clock    platform.Clock
	Matcher  perception.Matcher
	Reader   perception.TextReader
	// Notifier receives state changes. It must not call back into the Bot.
	Notifier alarm.Notifier
	Board    *status.Board
	Log      *zap.Logger
	// Rand draws the random part of buff intervals.
	Rand *rand.Rand
}

// Bot is the control loop scheduler.
type Bot struct {
	shared    *Shared
	driver    platform.Driver
	clock     platform.Clock
	perceiver *perception.Adapter
	scanner   *safety.Scanner
	board     *status.Board
	notifier  alarm.Notifier
	rng       *rand.Rand
	log       *zap.Logger

	mu      sync.Mutex
	state   State
	session string
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// New wires a Bot. It does not touch the platform until Start.
func New(shared *Shared, opts Options) *Bot {
	if opts.Clock == nil {
		opts.Clock = platform.SystemClock{}
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Notifier == nil {
		opts.Notifier = alarm.LogNotifier{Log: opts.Log}
	}
	if opts.Board == nil {
		opts.Board = status.NewBoard(opts.Clock.Now)
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	log := opts.Log.Named("bot")
	perceiver := perception.New(opts.Driver, opts.Clock, opts.Matcher, opts.Reader, opts.Log)

	b := &Bot{
		shared:    shared,
		driver:    opts.Driver,
		clock:     opts.Clock,
		perceiver: perceiver,
		scanner:   safety.NewScanner(perceiver, shared.Latches, opts.Log),
		board:     opts.Board,
		notifier:  opts.Notifier,
		rng:       opts.Rand,
		log:       log,
		state:     StateIdle,
	}
	b.board.Update(func(s *status.Snapshot) { s.State = StateIdle.String() })
	return b
}

// State returns the lifecycle state.
func (b *Bot) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Session returns the id of the current or last run.
func (b *Bot) Session() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

// Board returns the status board the bot publishes to.
func (b *Bot) Board() *status.Board {
	return b.board
}

// Start checks the preconditions and launches the loops. Unless
// debug.simulation_mode is set, a failed check leaves the bot Idle and
// returns a *PreconditionError.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateRunning {
		return ErrAlreadyRunning
	}
	if b.done != nil {
		select {
		case <-b.done:
		default:
			return ErrAlreadyRunning
		}
	}
	for _, kind := range alarm.Kinds {
		if alarm.SeverityOf(kind) == alarm.Critical && b.shared.Latches.Active(kind) {
			return ErrAlarmLatched
		}
	}

	cfg := b.shared.Store.Load()
	if cfg.Debug.SimulationMode {
		b.log.Info("simulation mode, skipping preconditions")
	} else if err := CheckPreconditions(b.driver, b.driver, cfg.Preconditions); err != nil {
		b.log.Warn("preconditions failed", zap.Error(err))
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.session = uuid.NewString()
	b.cancel = cancel
	b.done = make(chan struct{})
	b.err = nil
	b.shared.running.Store(true)
	b.setStateLocked(StateRunning)

	log := b.log.With(zap.String("session", b.session))
	log.Info("bot started")

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return b.runMain(gctx, log) })
	g.Go(func() error { return b.runResource(gctx, log) })
	g.Go(func() error { return b.runChannel(gctx, log) })

	done := b.done
	go func() {
		err := g.Wait()
		cancel()

		b.mu.Lock()
		b.err = err
		if b.state == StateRunning {
			b.setStateLocked(StateStopped)
		}
		b.mu.Unlock()

		if err != nil {
			log.Error("loops ended with error", zap.Error(err))
		}
		log.Info("bot stopped")
		close(done)
	}()
	return nil
}

// Stop clears the run flag, cancels idle waits and blocks until every loop
// has returned. A sequence already in flight runs to completion first.
// Stopping a bot that is not running is a no-op.
func (b *Bot) Stop() error {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.mu.Unlock()

	b.shared.running.Store(false)
	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Done is closed when the loops of the current run have all returned.
func (b *Bot) Done() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return b.done
}

// DismissAlarms clears every latched alarm.
func (b *Bot) DismissAlarms() {
	b.shared.Latches.DismissAll()
	b.log.Info("alarms dismissed")
}

// active reports whether a loop should run another iteration.
func (b *Bot) active(ctx context.Context) bool {
	return ctx.Err() == nil && b.shared.Running()
}

func (b *Bot) setState(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setStateLocked(s)
}

func (b *Bot) setStateLocked(s State) {
	if b.state == s {
		return
	}
	b.state = s
	b.board.Update(func(snap *status.Snapshot) { snap.State = s.String() })
	b.notifier.StatusChanged(s.String())
}

// guard runs fn and turns a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
