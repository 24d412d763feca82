package bot

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"mapleland-bot/internal/config"
	"mapleland-bot/internal/geom"
	"mapleland-bot/internal/movement"
)

// channelLoop watches for another user on the channel and hops to the next
// configured channel when one shows up.
type channelLoop struct {
	b    *Bot
	mc   *movement.Coordinator
	next int
	log  *zap.Logger
}

func (b *Bot) runChannel(ctx context.Context, log *zap.Logger) error {
	log = log.Named("channel")
	c := &channelLoop{
		b:   b,
		mc:  movement.NewCoordinator(b.driver, b.clock, b.shared.Store.Load().Hotkeys, b.board, log),
		log: log,
	}
	log.Info("channel loop started")

	for b.active(ctx) {
		cfg := b.shared.Store.Load()
		c.mc.SetHotkeys(cfg.Hotkeys)

		if cfg.Misc.ChannelRotation {
			if err := guard(func() error { return c.poll(cfg) }); err != nil {
				log.Error("channel check failed", zap.Error(err))
				if !b.clock.Wait(ctx, cfg.Misc.ErrorBackoff) {
					break
				}
				continue
			}
		}
		if !b.clock.Wait(ctx, cfg.Channel.PollInterval) {
			break
		}
	}
	log.Info("channel loop stopped")
	return nil
}

func (c *channelLoop) poll(cfg *config.Config) error {
	tmpl := cfg.TemplatePath(cfg.Vision.Templates.ChannelUser)
	if tmpl == "" {
		return nil
	}
	frame, err := c.b.perceiver.Capture()
	if err != nil {
		return err
	}
	if !c.b.perceiver.ScanHazard(frame, tmpl, cfg.Vision.Threshold) {
		return nil
	}
	return c.change(cfg.Channel)
}

// change runs the channel-change script. It is not interruptible.
func (c *channelLoop) change(ch config.ChannelConfig) error {
	if len(ch.Channels) == 0 {
		return fmt.Errorf("no channels configured")
	}
	target := ch.Channels[c.next%len(ch.Channels)]
	c.next++
	c.log.Info("changing channel", zap.Stringer("entry", target))
	c.b.board.LogAction(fmt.Sprintf("Change channel %d", (c.next-1)%len(ch.Channels)+1))

	clock := c.b.clock
	clock.Sleep(ch.PreDelay)
	c.mc.PressKey(ch.MenuKey)
	clock.Sleep(ch.StepDelay)
	c.click(ch.ChangeButton)
	clock.Sleep(ch.StepDelay)
	c.click(target)
	clock.Sleep(ch.StepDelay)
	c.click(ch.ConfirmButton)
	clock.Sleep(ch.LoadDelay)
	return nil
}

func (c *channelLoop) click(p geom.Point) {
	if err := c.b.driver.Click(p); err != nil {
		c.log.Warn("click failed", zap.Stringer("at", p), zap.Error(err))
	}
}
