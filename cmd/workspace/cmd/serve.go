package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/jrsteele09/grantpilot-workspace/apiclient"
	"github.com/jrsteele09/grantpilot-workspace/internal/config"
	"github.com/jrsteele09/grantpilot-workspace/server"
	"github.com/jrsteele09/grantpilot-workspace/server/workspaces"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var noBanner bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the workspace HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		for {
			err := run(cmd.Context())
			if err == nil {
				break
			}
			if !errors.Is(err, errPanicRecovered) {
				return err
			}
			log.Err(err).Msg("Error running server, restarting")
			time.Sleep(1 * time.Second)
		}
		log.Info().Msg("Server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&noBanner, "no-banner", false, "Do not print the startup banner")
}

var errPanicRecovered = errors.New("panic recovered")

func run(ctx context.Context) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("Recovered from panic")
			returnError = errPanicRecovered
		}
	}()

	if ctx == nil {
		ctx = context.Background()
	}

	c, err := config.New(ctx)
	if err != nil {
		return err
	}
	configureLogging(c.GetEnv())
	if c.GetAPIBaseURL() == "" {
		log.Warn().Msg("GRANTPILOT_API_BASE_URL is not set; every API call will fail")
	}
	if !noBanner {
		displayAppname(c.GetAppName())
	}

	repo := workspaces.NewInMemoryRepo(
		workspaces.NewFactory(c.GetAPIBaseURL(), apiclient.WithTimeout(c.GetRequestTimeout())),
		c.GetWorkspaceIdleTimeout(),
		workspaces.WithMaxWorkspaces(c.GetMaxWorkspaces()),
	)
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	if idle := c.GetWorkspaceIdleTimeout(); idle > 0 {
		go repo.RunSweeper(sweepCtx, idle/2)
	}

	handler, err := server.New(c, repo)
	if err != nil {
		return err
	}

	srv := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(srv)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

func configureLogging(env string) {
	if env == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
