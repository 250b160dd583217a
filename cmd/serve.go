package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/logger"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Warm the catalog and index, then serve the HTTP API",
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("port", "p", "", "port to listen on (default 8000 or $PORT)")
	serveCmd.Flags().Bool("exit-on-warm-failure", false, "stop the server when the warm-up fails instead of reporting a failed state")

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func serve(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, config := setup()

	eng, _, err := newEngine(ctx, config, log)
	if err != nil {
		log.Fatal("creating the engine", zap.Error(err))
	}

	shutdownTimeout := 10 * time.Second
	port := "8000"
	if config.Server != nil {
		if config.Server.ShutdownTimeout > 0 {
			shutdownTimeout = config.Server.ShutdownTimeout
		}
		if config.Server.Port != "" {
			port = config.Server.Port
		}
	}

	exitOnFailure, _ := cmd.Flags().GetBool("exit-on-warm-failure")

	srv := server.New(ctx, net.JoinHostPort("", port), eng, logger.WithComponent(log, "http"))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Requests are answered with 503 until the engine is ready.
	g.Go(func() error {
		if err := eng.Warm(gctx); err != nil && exitOnFailure {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info("shutting down the server")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}

	log.Info("server stopped")
}
