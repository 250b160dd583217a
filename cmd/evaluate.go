package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/evaluation"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Measure Mean Recall@K on labeled queries and write test predictions",
	Run: func(cmd *cobra.Command, _ []string) {
		evaluate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().String("train", "data/train.csv", "labeled CSV with Query and Assessment_url columns")
	evaluateCmd.Flags().String("test", "", "CSV with a Query column to predict for (skipped when empty)")
	evaluateCmd.Flags().String("out", "predictions.csv", "where to write the test predictions")
	evaluateCmd.Flags().Int("k", evaluation.DefaultK, "cutoff for recall")
}

func evaluate(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, config := setup()

	train, _ := cmd.Flags().GetString("train")
	test, _ := cmd.Flags().GetString("test")
	out, _ := cmd.Flags().GetString("out")
	k, _ := cmd.Flags().GetInt("k")

	eng, _, err := newEngine(ctx, config, log)
	if err != nil {
		log.Fatal("creating the engine", zap.Error(err))
	}

	if err := eng.Warm(ctx); err != nil {
		log.Fatal("warming the engine", zap.Error(err))
	}

	evalLogger := logger.WithComponent(log, "evaluation")

	if train != "" {
		labeled, err := evaluation.LoadLabeled(train)
		if err != nil {
			log.Fatal("loading labeled queries", zap.String("path", train), zap.Error(err))
		}

		report, err := evaluation.Evaluate(ctx, eng, labeled, k, evalLogger)
		if err != nil {
			log.Fatal("evaluating", zap.Error(err))
		}

		log.Info("evaluation finished",
			zap.Int("queries", len(report.PerQuery)),
			zap.Int("k", report.K),
			zap.Float64("mean_recall", report.Mean),
		)
		if report.Mean < evaluation.RecallWarningThreshold {
			log.Warn("mean recall is below the expected level",
				zap.Float64("mean_recall", report.Mean),
				zap.Float64("threshold", evaluation.RecallWarningThreshold),
			)
		}
	}

	if test == "" {
		return
	}

	queries, err := evaluation.LoadQueries(test)
	if err != nil {
		log.Fatal("loading test queries", zap.String("path", test), zap.Error(err))
	}

	rows, err := evaluation.WritePredictions(ctx, eng, queries, out, evalLogger)
	if err != nil {
		log.Fatal("writing predictions", zap.String("path", out), zap.Error(err))
	}

	log.Info("predictions written", zap.String("path", out), zap.Int("rows", rows))
}
