// Package migrate invokes the external SQL schema-diff tool and applies
// its output, the orchestrator's non-fatal Migrate phase collaborator.
// The diff tool's output is treated as opaque SQL text — this package
// never parses or validates it beyond checking it's non-empty.
package migrate

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/b-harvest/svcupgrade/internal/output"
)

// DiffTool runs an external schema-diff command and returns the migration
// SQL it produces comparing two schema versions.
type DiffTool interface {
	Diff(ctx context.Context, fromVersion, toVersion string) (sql string, err error)
}

// DatabaseApplier executes a migration script against the live database.
type DatabaseApplier interface {
	Apply(ctx context.Context, sql string) error
}

// Runner wires a DiffTool and DatabaseApplier into the
// orchestrator.MigrationRunner interface.
type Runner struct {
	Diff   DiffTool
	Apply  DatabaseApplier
	Logger *output.Logger
}

func (r *Runner) logger() *output.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return output.DefaultLogger
}

// Migrate produces a migration script for the version transition and
// applies it. A schema-diff with no changes (empty SQL) is a no-op.
func (r *Runner) Migrate(ctx context.Context, fromVersion, toVersion string) error {
	sql, err := r.Diff.Diff(ctx, fromVersion, toVersion)
	if err != nil {
		return fmt.Errorf("migrate: schema diff %s -> %s: %w", fromVersion, toVersion, err)
	}
	if sql == "" {
		r.logger().Debug("migrate: no schema changes between %s and %s", fromVersion, toVersion)
		return nil
	}
	if err := r.Apply.Apply(ctx, sql); err != nil {
		return fmt.Errorf("migrate: apply migration %s -> %s: %w", fromVersion, toVersion, err)
	}
	r.logger().Info("migrate: applied schema migration %s -> %s", fromVersion, toVersion)
	return nil
}

// ExecDiffTool shells out to an external schema-diff binary, passing the
// two versions as arguments and treating stdout as the migration SQL —
// mirroring the orchestrator's dockerctl collaborator's subprocess idiom.
type ExecDiffTool struct {
	// Command is the diff tool binary name or path, e.g. "schema-diff".
	Command string
	// Args are extra arguments placed before fromVersion/toVersion, e.g.
	// flags selecting the schema dump location.
	Args []string
}

func (t ExecDiffTool) Diff(ctx context.Context, fromVersion, toVersion string) (string, error) {
	args := append(append([]string{}, t.Args...), fromVersion, toVersion)
	cmd := exec.CommandContext(ctx, t.Command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s %v: %w (stderr: %s)", t.Command, args, err, stderr.String())
	}
	return stdout.String(), nil
}

// ExecDatabaseApplier shells out to a database client binary, feeding the
// migration SQL on stdin.
type ExecDatabaseApplier struct {
	Command string
	Args    []string
}

func (a ExecDatabaseApplier) Apply(ctx context.Context, sql string) error {
	cmd := exec.CommandContext(ctx, a.Command, a.Args...)
	cmd.Stdin = bytes.NewBufferString(sql)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %v: %w (stderr: %s)", a.Command, a.Args, err, stderr.String())
	}
	return nil
}
