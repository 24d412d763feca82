// Command mapleland-bot plays a 2-D side-scroller: it watches the screen,
// fights, climbs, heals and stops itself when a hazard shows up.
//
// Subcommands:
//
//	run          start the bot (tray UI, or --headless)
//	check        verify host preconditions
//	detect IMG   run perception on a screenshot and write an annotated copy
//	config init  write the default configuration
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mapleland-bot/internal/config"
	"mapleland-bot/internal/logging"
	"mapleland-bot/internal/platform"
	"mapleland-bot/internal/vision"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "mapleland-bot",
	Short:         "Screen-reading farming bot",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "configuration file (yaml or json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads --config. A missing file falls back to the defaults.
func loadConfig() (*config.Config, bool, error) {
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		cfg := config.Default()
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		return cfg, false, nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, false, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, true, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	return log, nil
}

// openDriver builds the platform driver named by platform.driver.
func openDriver(cfg *config.Config, log *zap.Logger) (platform.Driver, error) {
	switch cfg.Platform.Driver {
	case "desktop":
		return platform.NewDesktop(log), nil
	case "browser":
		return platform.NewBrowser(cfg.Platform.BrowserURL, cfg.Platform.Headless, log)
	case "simulator":
		sim := platform.NewSimulator()
		if cfg.Platform.SimulatorFrame != "" {
			frame, err := platform.LoadSimulatorFrame(cfg.Platform.SimulatorFrame)
			if err != nil {
				return nil, err
			}
			sim.SetFrame(frame)
		}
		return sim, nil
	default:
		return nil, fmt.Errorf("unknown platform driver %q", cfg.Platform.Driver)
	}
}

// openVision builds the template matcher and the OCR reader, preloading
// every configured template so missing files fail fast.
func openVision(cfg *config.Config) (*vision.Matcher, *vision.OCR, error) {
	matcher := vision.NewMatcher()
	var paths []string
	for _, names := range [][]string{
		{cfg.Vision.CharacterLeft, cfg.Vision.CharacterRight},
		cfg.Vision.Monsters,
		cfg.Vision.Ropes,
		{
			cfg.Vision.Templates.Enemy,
			cfg.Vision.Templates.LieDetector,
			cfg.Vision.Templates.ForeignPlayer,
			cfg.Vision.Templates.ChannelUser,
		},
	} {
		for _, n := range names {
			paths = append(paths, cfg.TemplatePath(n))
		}
	}
	if err := matcher.Preload(paths...); err != nil {
		_ = matcher.Close()
		return nil, nil, fmt.Errorf("loading templates: %w", err)
	}

	ocr, err := vision.NewOCR(cfg.Vision.OCRScale)
	if err != nil {
		_ = matcher.Close()
		return nil, nil, err
	}
	return matcher, ocr, nil
}
