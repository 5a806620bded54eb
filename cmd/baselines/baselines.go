// Package baselines implements the "baselines" subcommand group: list,
// show, and rollback operate directly on the Baseline Store, for the
// operator workflows spec.md §6 exposes over HTTP as well.
package baselines

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/sitewatch/internal/baseline"
	"github.com/jonesrussell/sitewatch/internal/config"
	"github.com/jonesrussell/sitewatch/internal/evolution"
)

// Command builds the "baselines" command group.
func Command() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "baselines",
		Short: "Inspect and manage per-site baseline history",
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to the sites configuration file")

	cmd.AddCommand(listCommand(&cfgFile), showCommand(&cfgFile), rollbackCommand(&cfgFile))
	return cmd
}

func listCommand(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:           "list <site-id>",
		Short:         "List a site's baseline history, newest first",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			siteID := args[0]
			_, store, err := open(*cfgFile, siteID)
			if err != nil {
				return err
			}

			ids, err := store.List(siteID)
			if err != nil {
				return fmt.Errorf("baselines: list %q: %w", siteID, err)
			}

			for _, id := range ids {
				b, loadErr := store.Load(siteID, id)
				if loadErr != nil {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d urls\t%s\n",
					b.ID(), b.CreatedAt.UTC().Format(time.RFC3339), len(b.URLs), b.EvolutionType)
			}
			return nil
		},
	}
}

func showCommand(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:           "show <site-id> <baseline-id>",
		Short:         "Print one baseline as JSON",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			siteID, baselineID := args[0], args[1]
			_, store, err := open(*cfgFile, siteID)
			if err != nil {
				return err
			}

			b, err := store.Load(siteID, baselineID)
			if err != nil {
				if errors.Is(err, baseline.ErrNotFound) {
					return fmt.Errorf("baselines: no baseline %q for site %q", baselineID, siteID)
				}
				return fmt.Errorf("baselines: show: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(b)
		},
	}
}

func rollbackCommand(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:           "rollback <site-id> <baseline-id>",
		Short:         "Restore a prior baseline as the site's latest",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			siteID, baselineID := args[0], args[1]
			_, store, err := open(*cfgFile, siteID)
			if err != nil {
				return err
			}

			target, err := store.Load(siteID, baselineID)
			if err != nil {
				if errors.Is(err, baseline.ErrNotFound) {
					return fmt.Errorf("baselines: no baseline %q for site %q", baselineID, siteID)
				}
				return fmt.Errorf("baselines: rollback: %w", err)
			}

			current, err := store.Latest(siteID)
			if err != nil {
				return fmt.Errorf("baselines: rollback: %w", err)
			}

			res, err := evolution.Rollback(store, evolution.RollbackRequest{
				SiteID:  siteID,
				Current: current,
				Target:  target,
				At:      time.Now(),
			})
			if err != nil {
				return fmt.Errorf("baselines: rollback: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "site %s rolled back to %s (new baseline %s)\n", siteID, baselineID, res.BaselineID)
			return nil
		},
	}
}

// open loads config and confirms siteID exists before touching the store,
// so a typo'd site id fails with a clear error rather than an empty list.
func open(cfgFile, siteID string) (config.Interface, *baseline.Store, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("baselines: %w", err)
	}
	if _, ok := cfg.SiteByID(siteID); !ok {
		return nil, nil, fmt.Errorf("baselines: unknown site %q", siteID)
	}
	global := cfg.Global()
	return cfg, baseline.New(filepath.Join(global.OutputRoot, "baselines")), nil
}
