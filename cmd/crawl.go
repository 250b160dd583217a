package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/catalog"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Acquire the assessment catalog and store the snapshot",
	Run: func(cmd *cobra.Command, _ []string) {
		crawl(cmd)
	},
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().BoolP("force", "f", false, "crawl even if a complete snapshot exists")
}

func crawl(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, config := setup()
	crawler := newCrawler(config, log)

	force, _ := cmd.Flags().GetBool("force")

	var (
		records *catalog.Records
		err     error
	)
	if force {
		records, err = crawler.Crawl(ctx)
	} else {
		records, err = crawler.EnsureCatalog(ctx)
	}
	if err != nil {
		log.Fatal("acquiring the catalog", zap.Error(err))
	}

	minRecords := catalog.DefaultMinRecords
	if config.Catalog != nil && config.Catalog.MinRecords > 0 {
		minRecords = config.Catalog.MinRecords
	}

	stats := crawler.LastRun()
	log.Info("catalog is ready",
		zap.String("source", string(stats.Source)),
		zap.Int("records", records.Len()),
		zap.Int("discovered", stats.Discovered),
		zap.Int("failed", stats.Failed),
		zap.Bool("complete", records.IsComplete(minRecords)),
		zap.Any("types", records.TypeDistribution()),
	)
}
