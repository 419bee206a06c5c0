package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/b-harvest/svcupgrade/internal/arch"
	"github.com/b-harvest/svcupgrade/internal/strategy"
)

// newCheckCmd reports what upgrade strategy would be selected without
// fetching artifacts or mutating anything — a dry run of CheckManifest and
// SelectStrategy only.
func newCheckCmd() *cobra.Command {
	var forceFull bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report which upgrade strategy applies, without applying it",
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

			m, err := provider.Fetch(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch manifest: %w", err)
			}
			if err := m.Validate(); err != nil {
				return fmt.Errorf("manifest failed validation: %w", err)
			}

			current, err := currentVersion(b)
			if err != nil {
				return err
			}

			a := arch.Detect()
			decision, err := strategy.Select(current, m, a, forceFull, b.docker.HasComposeFile())
			if err != nil {
				return fmt.Errorf("select strategy: %w", err)
			}

			fmt.Printf("architecture:    %s\n", a)
			fmt.Printf("current version: %s\n", current)
			fmt.Printf("manifest target: %s\n", m.Version)
			fmt.Printf("strategy:        %s\n", decision.Strategy)
			if paths := decision.ChangedPaths(); len(paths) > 0 {
				fmt.Printf("would back up:   %v\n", paths)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&forceFull, "force-full", false, "report the strategy as if a full upgrade were forced")
	return cmd
}
