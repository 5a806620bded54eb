// Package run implements the "run" subcommand: a single batch detection
// pass over every active site, exiting with the code spec.md §6 defines
// for scripted/cron invocation rather than the long-lived httpd server.
package run

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/sitewatch/cmd/common"
	"github.com/jonesrussell/sitewatch/internal/config/site"
	"github.com/jonesrussell/sitewatch/internal/orchestrator"
)

// Exit codes per spec.md §6.
const (
	ExitSuccess          = 0
	ExitPartial          = 1
	ExitConfigError      = 2
	ExitDeadlineExceeded = 3
)

// exitError carries a process exit code through cobra's error-returning
// convention; Code extracts it for the caller that sets os.Exit.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// Code extracts the exit code from an error returned by a run command:
// ExitSuccess if err is nil, ExitConfigError if err is not an *exitError.
func Code(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitConfigError
}

// Command builds the "run" cobra command.
func Command() *cobra.Command {
	var siteID string
	var cfgFile string

	cmd := &cobra.Command{
		Use:           "run",
		Short:         "Run a single detection pass over active sites",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := runBatch(cmd.Context(), cfgFile, siteID)
			if code == ExitSuccess {
				return nil
			}
			return &exitError{code: code, err: err}
		},
	}

	cmd.Flags().StringVar(&siteID, "site", "", "run only the named site instead of every active site")
	cmd.Flags().StringVar(&cfgFile, "config", "", "path to the sites configuration file")
	return cmd
}

// runBatch runs every active site (or just siteID, if set) and returns
// the spec.md §6 exit code for the batch.
func runBatch(ctx context.Context, cfgFile, siteID string) (int, error) {
	deps, err := common.NewCommandDeps(cfgFile)
	if err != nil {
		return ExitConfigError, err
	}

	sites := deps.Config.Sites()
	if siteID != "" {
		s, ok := deps.Config.SiteByID(siteID)
		if !ok {
			return ExitConfigError, fmt.Errorf("run: unknown site %q", siteID)
		}
		sites = []site.SiteConfig{s}
	}

	failures := 0
	deadlineExceeded := false

	for _, s := range sites {
		if !s.Active {
			continue
		}

		deps.Logger.Info("run: starting site", "site_id", s.ID)
		_, runErr := deps.Orchestrator.Run(ctx, s)
		if runErr == nil {
			continue
		}
		if errors.Is(runErr, orchestrator.ErrNoActiveRun) {
			continue
		}

		deps.Logger.Error("run: site failed", "site_id", s.ID, "error", runErr)
		failures++
		if errors.Is(runErr, context.DeadlineExceeded) {
			deadlineExceeded = true
		}
	}

	switch {
	case deadlineExceeded:
		return ExitDeadlineExceeded, fmt.Errorf("run: %d site(s) exceeded their deadline", failures)
	case failures > 0:
		return ExitPartial, fmt.Errorf("run: %d site(s) failed", failures)
	default:
		return ExitSuccess, nil
	}
}
