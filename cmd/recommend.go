package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/engine"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/recommend"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend [query or url]",
	Short: "Recommend assessments for a query, job description or job posting URL",
	Long: "Recommend assessments for a single request given as arguments. " +
		"Without arguments an interactive prompt is started.",
	Run: func(cmd *cobra.Command, args []string) {
		runRecommend(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().BoolP("verbose", "v", false, "print pipeline stages and the embedded query")
}

func runRecommend(cmd *cobra.Command, args []string) {
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

	verbose, _ := cmd.Flags().GetBool("verbose")

	if len(args) > 0 {
		if err := recommendOnce(ctx, eng, strings.Join(args, " "), verbose); err != nil {
			log.Fatal("recommending", zap.Error(err))
		}
		return
	}

	prompt := promptui.Prompt{
		Label: "Job description, query or URL (Ctrl+C to exit)",
	}

	for {
		request, err := prompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return
			}
			log.Fatal("reading the prompt", zap.Error(err))
		}

		if strings.TrimSpace(request) == "" {
			continue
		}

		if err := recommendOnce(ctx, eng, request, verbose); err != nil {
			log.Error("recommending", zap.Error(err))
		}
	}
}

func recommendOnce(ctx context.Context, eng *engine.Engine, request string, verbose bool) error {
	result, err := eng.Recommend(ctx, request)
	if err != nil {
		return err
	}

	printResult(result, verbose)
	return nil
}

func printResult(result *recommend.Result, verbose bool) {
	if verbose {
		fmt.Printf("query: %s\n", result.Query)
		for _, stage := range result.Stages {
			fmt.Printf("  %-10s %-8s in=%d dropped=%d left=%d\n", stage.Name, stage.Outcome, stage.Initial, stage.Dropped, stage.Left)
		}
	}

	if len(result.Assessments) == 0 {
		fmt.Println("no assessments found")
		return
	}

	for i, a := range result.Assessments {
		fmt.Printf("%2d. %s\n", i+1, a.Name)
		fmt.Printf("    %s\n", a.URL)
		fmt.Printf("    types: %s | duration: %d min | remote: %s | adaptive: %s\n",
			strings.Join(a.TestType, ", "), a.DurationMinutes, a.RemoteSupport, a.AdaptiveSupport)
	}
}
