// Package tray implements the system tray UI: status line, start/stop,
// latched alarms with dismissal, and potion thresholds.
//
// Menu Structure:
//
//	Maple Bot
//	├─ Status: <state> (read-only)
//	├─ Action / Pose / HP / MP (read-only, updated after each iteration)
//	├─ Start
//	├─ Stop
//	├─ Alarms
//	│  ├─ enemy, lie_detector, chat, foreign_player (checked while latched)
//	│  └─ Dismiss all
//	├─ Thresholds
//	│  ├─ HP Potion (0%-100% in 10% steps)
//	│  └─ MP Potion
//	└─ Quit
//
// App implements alarm.Notifier, so the bot reports state changes and
// alarms to it directly. Threshold changes replace the whole configuration
// document in the store.
package tray

import (
	"context"
	"fmt"
	"sync"

	"github.com/getlantern/systray"
	"go.uber.org/zap"

	"mapleland-bot/internal/alarm"
	"mapleland-bot/internal/config"
	"mapleland-bot/internal/perception"
	"mapleland-bot/internal/status"
)

// Controller is the part of the bot the tray drives.
type Controller interface {
	Start(ctx context.Context) error
	Stop() error
	DismissAlarms()
}

// Potion identifies which threshold a menu entry edits.
type Potion int

const (
	PotionHP Potion = iota
	PotionMP
)

const thresholdSteps = 11

// App manages the system tray application.
type App struct {
	ctrl  Controller
	store *config.Store
	log   *zap.Logger

	mu    sync.Mutex
	ready bool
	state string
	snap  status.Snapshot
	// latched mirrors the alarm latches for the menu checkmarks.
	latched map[perception.HazardKind]bool

	statusItem  *systray.MenuItem
	actionItem  *systray.MenuItem
	poseItem    *systray.MenuItem
	vitalsItem  *systray.MenuItem
	startItem   *systray.MenuItem
	stopItem    *systray.MenuItem
	alarmItems  map[perception.HazardKind]*systray.MenuItem
	dismissItem *systray.MenuItem
	hpItems     [thresholdSteps]*systray.MenuItem
	mpItems     [thresholdSteps]*systray.MenuItem
}

// New creates a tray app. Call Watch on the status board with
// App.SnapshotChanged to keep the detail lines current.
func New(ctrl Controller, store *config.Store, log *zap.Logger) *App {
	return &App{
		ctrl:       ctrl,
		store:      store,
		log:        log.Named("tray"),
		state:      "Idle",
		latched:    make(map[perception.HazardKind]bool),
		alarmItems: make(map[perception.HazardKind]*systray.MenuItem),
	}
}

// SetController attaches the bot after construction; the bot itself needs
// the App as its notifier.
func (a *App) SetController(ctrl Controller) {
	a.ctrl = ctrl
}

// Run starts the tray and blocks until Quit. onExit runs after the tray
// closes.
func (a *App) Run(ctx context.Context, onExit func()) {
	a.log.Info("starting system tray")
	systray.Run(func() { a.onReady(ctx) }, func() {
		a.log.Info("tray exit")
		if err := a.ctrl.Stop(); err != nil {
			a.log.Warn("stop on exit", zap.Error(err))
		}
		if onExit != nil {
			onExit()
		}
	})
}

// Quit closes the tray, which makes Run return.
func (a *App) Quit() {
	systray.Quit()
}

func (a *App) onReady(ctx context.Context) {
	systray.SetTitle("Maple Bot")
	systray.SetTooltip("Maple Bot")

	a.mu.Lock()
	a.statusItem = systray.AddMenuItem("", "Current bot status")
	a.statusItem.Disable()
	a.actionItem = systray.AddMenuItem("", "Last action")
	a.actionItem.Disable()
	a.poseItem = systray.AddMenuItem("", "Character position")
	a.poseItem.Disable()
	a.vitalsItem = systray.AddMenuItem("", "HP and MP")
	a.vitalsItem.Disable()

	systray.AddSeparator()
	a.startItem = systray.AddMenuItem("Start", "Start the bot")
	a.stopItem = systray.AddMenuItem("Stop", "Stop the bot")

	systray.AddSeparator()
	alarmsMenu := systray.AddMenuItem("Alarms", "Latched alarms")
	for _, kind := range alarm.Kinds {
		item := alarmsMenu.AddSubMenuItemCheckbox(kind.String(), alarm.SeverityOf(kind).String(), false)
		item.Disable()
		a.alarmItems[kind] = item
	}
	a.dismissItem = alarmsMenu.AddSubMenuItem("Dismiss all", "Clear every latched alarm")

	thresholds := systray.AddMenuItem("Thresholds", "Potion thresholds")
	hpMenu := thresholds.AddSubMenuItem("HP Potion", "Press the HP potion below")
	mpMenu := thresholds.AddSubMenuItem("MP Potion", "Press the MP potion below")
	for i := 0; i < thresholdSteps; i++ {
		a.hpItems[i] = hpMenu.AddSubMenuItemCheckbox(fmt.Sprintf("%d%%", i*10), "", false)
		a.mpItems[i] = mpMenu.AddSubMenuItemCheckbox(fmt.Sprintf("%d%%", i*10), "", false)
	}

	systray.AddSeparator()
	quitItem := systray.AddMenuItem("Quit", "Stop the bot and exit")

	a.ready = true
	a.refreshLocked()
	a.mu.Unlock()
	a.updateThresholdCheckmarks()

	for i := 0; i < thresholdSteps; i++ {
		go a.handleThresholdClick(PotionHP, i*10, a.hpItems[i])
		go a.handleThresholdClick(PotionMP, i*10, a.mpItems[i])
	}
	go a.handleEvents(ctx, quitItem)
	a.log.Info("system tray initialized")
}

func (a *App) handleEvents(ctx context.Context, quitItem *systray.MenuItem) {
	for {
		select {
		case <-a.startItem.ClickedCh:
			if err := a.ctrl.Start(ctx); err != nil {
				a.log.Warn("start refused", zap.Error(err))
				a.setStatusNote(err.Error())
			}
		case <-a.stopItem.ClickedCh:
			if err := a.ctrl.Stop(); err != nil {
				a.log.Warn("stop", zap.Error(err))
			}
		case <-a.dismissItem.ClickedCh:
			a.ctrl.DismissAlarms()
		case <-quitItem.ClickedCh:
			a.log.Info("quit requested by user")
			systray.Quit()
			return
		case <-ctx.Done():
			systray.Quit()
			return
		}
	}
}

func (a *App) handleThresholdClick(p Potion, percent int, item *systray.MenuItem) {
	for range item.ClickedCh {
		next := WithThreshold(a.store.Load(), p, float64(percent))
		if err := a.store.Replace(next); err != nil {
			a.log.Warn("threshold rejected", zap.Error(err))
			continue
		}
		a.updateThresholdCheckmarks()
		a.log.Info("updated potion threshold", zap.Int("potion", int(p)), zap.Int("percent", percent))
	}
}

func (a *App) updateThresholdCheckmarks() {
	cfg := a.store.Load()
	check := func(items [thresholdSteps]*systray.MenuItem, value float64) {
		for i, item := range items {
			if item == nil {
				continue
			}
			if float64(i*10) == value {
				item.Check()
			} else {
				item.Uncheck()
			}
		}
	}
	check(a.hpItems, cfg.Potion.HPThreshold)
	check(a.mpItems, cfg.Potion.MPThreshold)
}

// StatusChanged implements alarm.Notifier.
func (a *App) StatusChanged(state string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = state
	a.refreshLocked()
}

// AlarmTriggered implements alarm.Notifier.
func (a *App) AlarmTriggered(kind perception.HazardKind, severity alarm.Severity, detail string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.latched[kind] = true
	if a.ready {
		if item := a.alarmItems[kind]; item != nil {
			item.Check()
			item.SetTitle(AlarmTitle(kind, severity, detail))
		}
		systray.SetTooltip("Maple Bot: " + AlarmTitle(kind, severity, detail))
	}
}

// AlarmDismissed implements alarm.Notifier.
func (a *App) AlarmDismissed(kind perception.HazardKind) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.latched, kind)
	if a.ready {
		if item := a.alarmItems[kind]; item != nil {
			item.Uncheck()
			item.SetTitle(kind.String())
		}
		if len(a.latched) == 0 {
			systray.SetTooltip("Maple Bot")
		}
	}
}

// SnapshotChanged refreshes the detail lines from a status snapshot.
func (a *App) SnapshotChanged(s status.Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snap = s
	a.refreshLocked()
}

func (a *App) setStatusNote(note string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ready {
		a.statusItem.SetTitle(fmt.Sprintf("Status: %s (%s)", a.state, note))
	}
}

func (a *App) refreshLocked() {
	if !a.ready {
		return
	}
	lines := DetailLines(a.state, a.snap)
	a.statusItem.SetTitle(lines[0])
	a.actionItem.SetTitle(lines[1])
	a.poseItem.SetTitle(lines[2])
	a.vitalsItem.SetTitle(lines[3])

	running := a.state == "Running"
	if running {
		a.startItem.Disable()
		a.stopItem.Enable()
	} else {
		a.startItem.Enable()
		a.stopItem.Disable()
	}
}

// DetailLines renders the read-only menu lines: status, action, position
// and vitals.
func DetailLines(state string, s status.Snapshot) [4]string {
	action := s.Action
	if action == "" {
		action = "-"
	}
	pos := "Pos: -"
	if s.HasPose {
		pos = "Pos: " + s.Pose.String()
	}
	hp, mp := "-", "-"
	if s.HasHP {
		hp = s.HP.String()
	}
	if s.HasMP {
		mp = s.MP.String()
	}
	return [4]string{
		"Status: " + state,
		"Action: " + action,
		pos,
		fmt.Sprintf("HP: %s  MP: %s", hp, mp),
	}
}

// AlarmTitle is the menu title of a latched alarm.
func AlarmTitle(kind perception.HazardKind, severity alarm.Severity, detail string) string {
	if detail == "" {
		return fmt.Sprintf("%s [%s]", kind, severity)
	}
	return fmt.Sprintf("%s [%s]: %s", kind, severity, detail)
}

// WithThreshold returns a copy of cfg with one potion threshold changed.
func WithThreshold(cfg *config.Config, p Potion, percent float64) *config.Config {
	next := *cfg
	switch p {
	case PotionHP:
		next.Potion.HPThreshold = percent
	case PotionMP:
		next.Potion.MPThreshold = percent
	}
	return &next
}
