package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the vector index from the catalog snapshot",
	Run: func(cmd *cobra.Command, _ []string) {
		buildIndex(cmd)
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().Bool("rebuild", false, "rebuild even if the persisted index matches the catalog")
}

func buildIndex(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, config := setup()

	eng, _, err := newEngine(ctx, config, log)
	if err != nil {
		log.Fatal("creating the engine", zap.Error(err))
	}

	if err := eng.Warm(ctx); err != nil {
		log.Fatal("warming the engine", zap.Error(err))
	}

	if rebuild, _ := cmd.Flags().GetBool("rebuild"); rebuild {
		if err := eng.Reindex(ctx); err != nil {
			log.Fatal("rebuilding the index", zap.Error(err))
		}
	}

	status := eng.Status()
	log.Info("index is ready",
		zap.Int("entries", status.IndexEntries),
		zap.String("model", status.IndexModel),
		zap.Time("updated_at", status.IndexUpdatedAt),
	)
}
