package main

import (
	"context"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/b-harvest/svcupgrade/internal/arch"
	"github.com/b-harvest/svcupgrade/internal/migrate"
	"github.com/b-harvest/svcupgrade/internal/orchestrator"
	"github.com/b-harvest/svcupgrade/internal/strategy"
	"github.com/b-harvest/svcupgrade/internal/version"
)

// newUpgradeCmd runs a complete upgrade attempt: CheckManifest through
// Migrate.
func newUpgradeCmd() *cobra.Command {
	var (
		forceFull bool
		assumeYes bool
		diffCmd   string
		applyCmd  string
		applyArgs []string
	)

	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Check the manifest and apply the selected upgrade strategy",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := newBootstrap()
			if err != nil {
				return err
			}
			defer b.Close()

			provider, err := b.manifestProvider()
			if err != nil {
				return err
			}
			pubKey, err := b.publicKey()
			if err != nil {
				return err
			}
			current, err := currentVersion(b)
			if err != nil {
				return err
			}

			a := arch.Detect()
			if !assumeYes {
				confirmed, cerr := confirmFullUpgrade(cmd.Context(), provider, current, a, forceFull, b.docker.HasComposeFile())
				if cerr != nil {
					return cerr
				}
				if !confirmed {
					return &orchestrator.Error{
						Phase: orchestrator.PhaseSelectStrategy,
						Kind:  orchestrator.KindCancelled,
						Err:   fmt.Errorf("upgrade cancelled by operator"),
					}
				}
			}

			var runner orchestrator.MigrationRunner
			if diffCmd != "" && applyCmd != "" {
				runner = &migrate.Runner{
					Diff:   migrate.ExecDiffTool{Command: diffCmd},
					Apply:  migrate.ExecDatabaseApplier{Command: applyCmd, Args: applyArgs},
					Logger: b.log,
				}
			}

			stopTimeout, startTimeout := phaseTimeouts(b.cfg)

			result, err := orchestrator.Run(cmd.Context(), orchestrator.Config{
				WorkDir:          b.cfg.Service.WorkDir,
				CacheDir:         cacheDir(b.cfg),
				CurrentVersion:   current,
				ForceFull:        forceFull,
				Architecture:     a,
				PublicKey:        pubKey,
				ManifestProvider: provider,
				Docker:           b.docker,
				MigrationRunner:  runner,
				Store:            b.store,
				Logger:           b.log,
				StopTimeout:      stopTimeout,
				StartTimeout:     startTimeout,
			})
			if err != nil {
				return err
			}

			fmt.Printf("strategy: %s\n", result.Strategy)
			fmt.Printf("upgraded: %s -> %s\n", result.FromVersion, result.ToVersion)
			if result.BackupID != "" {
				fmt.Printf("backup:   %s\n", result.BackupID)
			}
			if result.Warning != "" {
				fmt.Printf("warning:  %s\n", result.Warning)
			}

			if result.ToVersion != result.FromVersion {
				if uerr := recordVersion(b, result.ToVersion); uerr != nil {
					b.log.Warn("failed to persist new current version: %v", uerr)
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&forceFull, "force-full", false, "skip version comparison and always perform a full upgrade")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the confirmation prompt before a full upgrade")
	cmd.Flags().StringVar(&diffCmd, "migrate-diff-cmd", "", "external schema-diff binary to invoke for the Migrate phase (optional)")
	cmd.Flags().StringVar(&applyCmd, "migrate-apply-cmd", "", "database client binary that applies migration SQL on stdin (optional)")
	cmd.Flags().StringSliceVar(&applyArgs, "migrate-apply-args", nil, "extra arguments for --migrate-apply-cmd")
	return cmd
}

// confirmFullUpgrade previews the strategy that would run and, only when it
// is a FullUpgrade (the destructive, whole-tree-replacing path), prompts
// the operator to confirm before any service is stopped. PatchUpgrade and
// NoUpgrade proceed without a prompt.
func confirmFullUpgrade(ctx context.Context, provider orchestrator.ManifestProvider, current version.Version, a arch.Architecture, forceFull, workTreePresent bool) (bool, error) {
	m, err := provider.Fetch(ctx)
	if err != nil {
		return false, fmt.Errorf("fetch manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return false, fmt.Errorf("manifest failed validation: %w", err)
	}

	decision, err := strategy.Select(current, m, a, forceFull, workTreePresent)
	if err != nil {
		return false, fmt.Errorf("select strategy: %w", err)
	}
	if decision.Strategy != strategy.FullUpgrade {
		return true, nil
	}

	fmt.Printf("\nFull upgrade selected: %s -> %s\n", current, m.Version)
	fmt.Printf("This replaces the entire service tree (data is preserved and restored).\n\n")

	prompt := promptui.Prompt{
		Label:     "Proceed with full upgrade",
		IsConfirm: true,
		Default:   "y",
	}
	if _, err := prompt.Run(); err != nil {
		if err == promptui.ErrAbort {
			return false, nil
		}
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	return true, nil
}

func recordVersion(b *bootstrap, toVersion string) error {
	cfg, err := b.store.GetAppConfig()
	if err != nil {
		return err
	}
	cfg.LastVersion = toVersion
	cfg.ManifestURL = b.cfg.Manifest.URL
	return b.store.PutAppConfig(cfg)
}
