package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the fuzzy stage, then adjudication",
	Long:  "Runs the stages enabled by run.fuzzy and run.ai, in that order.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		if cfg.Run.Fuzzy {
			if err := runFuzzyStage(ctx, cfg); err != nil {
				return err
			}
		} else {
			zap.L().Info("fuzzy stage disabled (run.fuzzy=false)")
		}

		if cfg.Run.AI {
			return runAdjudicateStage(ctx, cfg)
		}
		zap.L().Info("adjudication disabled (run.ai=false)")
		return nil
	},
}

var fuzzyCmd = &cobra.Command{
	Use:   "fuzzy",
	Short: "Run only the fuzzy candidate stage",
	Long:  "Writes output.fuzzy_path. If that file already exists the stage is skipped.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("fuzzy"); err != nil {
			return err
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()
		return runFuzzyStage(ctx, cfg)
	},
}

var adjudicateCmd = &cobra.Command{
	Use:   "adjudicate",
	Short: "Run only the LLM adjudication stage",
	Long:  "Reads output.fuzzy_path and resumes from output.ledger_path.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("adjudicate"); err != nil {
			return err
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()
		return runAdjudicateStage(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(runCmd, fuzzyCmd, adjudicateCmd)
}
