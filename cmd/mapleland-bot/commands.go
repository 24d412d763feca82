package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mapleland-bot/internal/bot"
	"mapleland-bot/internal/config"
	"mapleland-bot/internal/detect"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify host preconditions (OS and resolution)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		driver, err := openDriver(cfg, log)
		if err != nil {
			return err
		}
		defer func() { _ = driver.Close() }()

		err = bot.CheckPreconditions(driver, driver, cfg.Preconditions)
		var pe *bot.PreconditionError
		if errors.As(err, &pe) {
			for _, issue := range pe.Issues {
				fmt.Fprintln(cmd.OutOrStdout(), "FAIL", issue)
			}
			return err
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "OK")
		return nil
	},
}

var detectOut string

var detectCmd = &cobra.Command{
	Use:   "detect IMAGE",
	Short: "Run perception on a screenshot and write an annotated copy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		matcher, ocr, err := openVision(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = matcher.Close() }()
		defer func() { _ = ocr.Close() }()

		r, err := detect.Run(cfg, args[0], detectOut, matcher, ocr, log)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if r.HasPose {
			fmt.Fprintln(out, "character:", r.Pose)
		} else {
			fmt.Fprintln(out, "character: not found")
		}
		fmt.Fprintf(out, "monsters: %d  ropes: %d\n", len(r.Monsters), len(r.Ropes))
		if r.HasTarget {
			fmt.Fprintln(out, "target:", r.Target)
		}
		fmt.Fprintln(out, "hazard:", r.Threat.Tripped)
		log.Debug("detect finished", zap.String("out", detectOut))
		return nil
	},
}

func init() {
	detectCmd.Flags().StringVarP(&detectOut, "out", "o", "result.png", "annotated output image")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var forceInit bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to --config",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := os.Stat(configPath); err == nil && !forceInit {
			return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
		}
		f, err := os.Create(configPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", configPath, err)
		}
		if err := config.WriteDefault(f); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "wrote", configPath)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
}
