// Package httpd implements the "httpd" subcommand: the long-lived HTTP
// server and background scheduler, run together until an interrupt signal
// or an unrecoverable server error.
package httpd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/sitewatch/cmd/common"
	"github.com/jonesrussell/sitewatch/internal/httpapi"
	"github.com/jonesrussell/sitewatch/internal/logger"
	"github.com/jonesrussell/sitewatch/internal/scheduler"
)

const (
	errorChannelBufferSize  = 1
	signalChannelBufferSize = 1
	shutdownTimeout         = 10 * time.Second
)

// Command builds the "httpd" cobra command.
func Command() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:           "httpd",
		Short:         "Serve the trigger/status/rollback HTTP API and run the background scheduler",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfgFile)
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "path to the sites configuration file")
	return cmd
}

func serve(ctx context.Context, cfgFile string) error {
	deps, err := common.NewCommandDeps(cfgFile)
	if err != nil {
		return fmt.Errorf("httpd: %w", err)
	}

	sched := scheduler.New(deps.Logger, deps.Orchestrator, deps.Config)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("httpd: start scheduler: %w", err)
	}
	defer sched.Stop()

	serverCfg := deps.Config.Server()
	router := httpapi.NewRouter(&httpapi.Server{
		Scheduler: sched,
		Store:     deps.Orchestrator.Store,
		Config:    deps.Config,
		Runs:      deps.Orchestrator.Runs,
		Metrics:   deps.Orchestrator.Metrics,
		Log:       deps.Logger,
		ServerCfg: serverCfg,
	})

	server := &http.Server{
		Addr:         serverCfg.Address,
		Handler:      router,
		ReadTimeout:  serverCfg.ReadTimeout,
		WriteTimeout: serverCfg.WriteTimeout,
		IdleTimeout:  serverCfg.IdleTimeout,
	}

	errChan, err := startServer(deps.Logger, server)
	if err != nil {
		return err
	}

	return runUntilInterrupt(deps.Logger, server, errChan)
}

func startServer(log logger.Interface, server *http.Server) (chan error, error) {
	log.Info("httpd: starting HTTP server", "addr", server.Addr)
	errChan := make(chan error, errorChannelBufferSize)
	go func() {
		if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()
	return errChan, nil
}

func runUntilInterrupt(log logger.Interface, server *http.Server, errChan chan error) error {
	sigChan := make(chan os.Signal, signalChannelBufferSize)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case serveErr := <-errChan:
		log.Error("httpd: server error", "error", serveErr)
		return fmt.Errorf("httpd: server error: %w", serveErr)
	case sig := <-sigChan:
		return shutdown(log, server, sig)
	}
}

func shutdown(log logger.Interface, server *http.Server, sig os.Signal) error {
	log.Info("httpd: shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("httpd: failed to stop server", "error", err)
		return fmt.Errorf("httpd: shutdown: %w", err)
	}

	log.Info("httpd: server stopped")
	return nil
}
