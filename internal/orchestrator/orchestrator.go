// Package orchestrator implements the eight-phase upgrade state machine:
// CheckManifest, SelectStrategy, HealthCheck, StopServices, Backup,
// Download, Apply, (Restore|RollbackAll), StartServices, Migrate.
package orchestrator

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/b-harvest/svcupgrade/internal/arch"
	"github.com/b-harvest/svcupgrade/internal/backup"
	"github.com/b-harvest/svcupgrade/internal/downloader"
	"github.com/b-harvest/svcupgrade/internal/manifest"
	"github.com/b-harvest/svcupgrade/internal/output"
	"github.com/b-harvest/svcupgrade/internal/patch"
	"github.com/b-harvest/svcupgrade/internal/store"
	"github.com/b-harvest/svcupgrade/internal/strategy"
	"github.com/b-harvest/svcupgrade/internal/version"
)

// Config wires every collaborator a Run needs. Fields left nil take a
// trivial default where one exists (MigrationRunner, Logger); WorkDir,
// CacheDir, ManifestProvider, and Docker are required.
type Config struct {
	WorkDir  string // the managed service tree: compose file, .env, data/
	CacheDir string // download cache and staging extraction root

	CurrentVersion version.Version
	ForceFull      bool
	Architecture   arch.Architecture
	PublicKey      ed25519.PublicKey // Ed25519 key artifacts must verify against; nil disables

	ManifestProvider ManifestProvider
	Docker           DockerController
	MigrationRunner  MigrationRunner
	Store            *store.Store
	Logger           *output.Logger

	StopTimeout  time.Duration
	StartTimeout time.Duration
}

func (c *Config) logger() *output.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return output.DefaultLogger
}

// Result is returned by a successful Run.
type Result struct {
	FromVersion string
	ToVersion   string
	Strategy    string
	BackupID    string // empty when no backup was taken (first deploy, NoUpgrade)
	Warning     string // set when Migrate failed non-fatally
}

// Run executes one complete upgrade attempt against cfg.WorkDir. At most
// one Run may execute concurrently per working directory; a second
// invocation fails immediately with ErrAlreadyRunning.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	log := cfg.logger()

	release, err := acquireLock(cfg.WorkDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := release(); rerr != nil {
			log.Warn("failed to release upgrade lock: %v", rerr)
		}
	}()

	upgradeID := "upg-" + uuid.New().String()
	rec := &store.UpgradeRecord{
		Metadata:    store.Metadata{Key: upgradeID},
		FromVersion: cfg.CurrentVersion.String(),
		StartedAt:   time.Now(),
	}
	if cfg.Store != nil {
		if err := cfg.Store.CreateUpgradeRecord(rec); err != nil {
			log.Warn("failed to persist upgrade_history row: %v", err)
		}
	}

	res, runErr := run(ctx, cfg, upgradeID, log)

	if cfg.Store != nil {
		rec.FinishedAt = time.Now()
		if runErr != nil {
			rec.Outcome = "failed"
			rec.Err = runErr.Error()
			if oerr, ok := runErr.(*Error); ok {
				rec.Phase = string(oerr.Phase)
			}
		} else {
			rec.Outcome = "success"
			rec.ToVersion = res.ToVersion
			rec.Strategy = res.Strategy
		}
		if uerr := cfg.Store.UpdateUpgradeRecord(rec); uerr != nil {
			log.Warn("failed to finalize upgrade_history row: %v", uerr)
		}
	}

	return res, runErr
}

func run(ctx context.Context, cfg Config, upgradeID string, log *output.Logger) (*Result, error) {
	// Phase: CheckManifest
	m, err := checkManifest(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Phase: SelectStrategy
	firstDeploy := !cfg.Docker.HasComposeFile()
	decision, err := strategy.Select(cfg.CurrentVersion, m, cfg.Architecture, cfg.ForceFull, !firstDeploy)
	if err != nil {
		return nil, &Error{Phase: PhaseSelectStrategy, Kind: classifyStrategyErr(err), Err: err}
	}

	if decision.Strategy == strategy.NoUpgrade {
		log.Info("current version %s is up to date with manifest %s, nothing to do", cfg.CurrentVersion, m.Version)
		return &Result{
			FromVersion: cfg.CurrentVersion.String(),
			ToVersion:   m.Version.String(),
			Strategy:    decision.Strategy.String(),
		}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, &Error{Phase: PhaseSelectStrategy, Kind: KindCancelled, Err: err}
	}

	// Phase: HealthCheck + StopServices (skipped on first deploy — no
	// containers to check or stop yet).
	if !firstDeploy {
		if err := healthCheckAndStop(ctx, cfg, log); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, &Error{Phase: PhaseStopServices, Kind: KindCancelled, Err: err}
	}

	// Phase: Backup (skipped on first deploy — nothing to protect yet).
	var backupID string
	archiveDir := filepath.Join(cfg.CacheDir, "backups")
	snap := backup.New(cfg.WorkDir, archiveDir, log)
	if !firstDeploy {
		backupID, err = runBackup(cfg, snap, decision, upgradeID)
		if err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, &Error{Phase: PhaseBackup, Kind: KindCancelled, Err: err}
	}

	// Phase: Download
	extractDir := filepath.Join(cfg.CacheDir, "staging", upgradeID)
	if err := runDownload(ctx, cfg, decision, m.Version, extractDir, log); err != nil {
		return nil, err
	}

	// Phase: Apply. Not cancellable mid-flight.
	applyErr := runApply(cfg, decision, extractDir, log)
	if applyErr != nil {
		aerr := applyErr.(*Error)
		if !firstDeploy && backupID != "" {
			rbErr := snap.Restore(filepath.Join(archiveDir, backupID+".tar.gz"))
			aerr.RollbackTried = true
			aerr.RollbackOK = rbErr == nil
			if rbErr != nil {
				aerr.Err = fmt.Errorf("%s (%w: %v)", aerr.Err, ErrRollbackFailed, rbErr)
			} else if cfg.Store != nil {
				if merr := cfg.Store.MarkBackupRestored(backupID); merr != nil {
					log.Warn("failed to mark backup %s restored: %v", backupID, merr)
				}
			}
		}
		return nil, aerr
	}

	os.RemoveAll(extractDir)

	// A full upgrade swaps in a compose file with new image tags; pull
	// them pinned to the host architecture before starting so an emulated
	// wrong-arch image is never silently brought up.
	if decision.Strategy == strategy.FullUpgrade {
		if err := pullImagesForArch(ctx, cfg, log); err != nil {
			return nil, &Error{Phase: PhaseStartServices, Kind: KindPreconditionFailed, Err: err}
		}
	}

	// Phase: StartServices (runs on first deploy too — compose up -d
	// still needs to run to bring the freshly extracted tree online).
	if err := cfg.Docker.StartServices(ctx, startTimeout(cfg)); err != nil {
		return nil, &Error{Phase: PhaseStartServices, Kind: KindPreconditionFailed, Err: err}
	}

	// Phase: Migrate — non-fatal.
	result := &Result{
		FromVersion: cfg.CurrentVersion.String(),
		ToVersion:   m.Version.String(),
		Strategy:    decision.Strategy.String(),
		BackupID:    backupID,
	}
	runner := cfg.MigrationRunner
	if runner == nil {
		runner = NoopMigrationRunner{}
	}
	if err := runner.Migrate(ctx, result.FromVersion, result.ToVersion); err != nil {
		log.Warn("migration failed, services are live on new code but schema migration needs manual attention: %v", err)
		result.Warning = fmt.Sprintf("MigrationFailed: %v", err)
	}

	return result, nil
}

func checkManifest(ctx context.Context, cfg Config) (*manifest.Manifest, error) {
	m, err := cfg.ManifestProvider.Fetch(ctx)
	if err != nil {
		return nil, &Error{Phase: PhaseCheckManifest, Kind: KindManifestFetchFailed, Err: err}
	}
	if err := m.Validate(); err != nil {
		return nil, &Error{Phase: PhaseCheckManifest, Kind: KindManifestInvalid, Err: err}
	}
	return m, nil
}

func startTimeout(cfg Config) time.Duration {
	if cfg.StartTimeout > 0 {
		return cfg.StartTimeout
	}
	return 10 * time.Minute
}

func stopTimeout(cfg Config) time.Duration {
	if cfg.StopTimeout > 0 {
		return cfg.StopTimeout
	}
	return 5 * time.Minute
}

func healthCheckAndStop(ctx context.Context, cfg Config, log *output.Logger) error {
	infos, err := cfg.Docker.HealthCheck(ctx)
	if err != nil {
		return &Error{Phase: PhaseHealthCheck, Kind: KindPreconditionFailed, Err: err}
	}
	log.Debug("health check found %d containers", len(infos))

	if err := cfg.Docker.StopServices(ctx, stopTimeout(cfg)); err != nil {
		return &Error{Phase: PhaseStopServices, Kind: KindPreconditionFailed, Err: err}
	}
	return nil
}

func runBackup(cfg Config, snap *backup.Snapshotter, decision strategy.Decision, upgradeID string) (string, error) {
	paths := append([]string{"data"}, decision.ChangedPaths()...)
	archivePath, size, err := snap.Create(upgradeID, dedupe(paths))
	if err != nil {
		return "", &Error{Phase: PhaseBackup, Kind: KindBackupFailed, Err: err}
	}

	if cfg.Store != nil {
		brec := &store.BackupRecord{
			Metadata:    store.Metadata{Key: upgradeID},
			UpgradeID:   upgradeID,
			ArchivePath: archivePath,
			Paths:       paths,
			SizeBytes:   size,
		}
		if err := cfg.Store.CreateBackup(brec); err != nil {
			return "", &Error{Phase: PhaseBackup, Kind: KindBackupFailed, Err: err}
		}
	}
	return upgradeID, nil
}

func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func runDownload(ctx context.Context, cfg Config, decision strategy.Decision, target version.Version, extractDir string, log *output.Logger) error {
	var url, hash, sig, kind string
	switch decision.Strategy {
	case strategy.FullUpgrade:
		url, hash, sig, kind = decision.Package.URL, decision.Package.Hash, decision.Package.Signature, "full"
	case strategy.PatchUpgrade:
		url, hash, sig, kind = decision.Patch.URL, decision.Patch.Hash, decision.Patch.Signature, "patch"
	}

	destPath := filepath.Join(cfg.CacheDir, "download", target.String(), kind, filepath.Base(url))
	if _, err := downloader.Download(ctx, downloader.Options{
		URL:          url,
		DestPath:     destPath,
		ExpectedHash: hash,
		Signature:    sig,
		PublicKey:    cfg.PublicKey,
		Logger:       log,
		Store:        cfg.Store,
	}); err != nil {
		kind := KindDownloadFailed
		if downloader.IsIntegrityFailure(err) {
			kind = KindIntegrityFailed
		}
		return &Error{Phase: PhaseDownload, Kind: kind, Err: err}
	}

	if err := backup.ExtractTarGz(destPath, extractDir); err != nil {
		return &Error{Phase: PhaseDownload, Kind: KindDownloadFailed, Err: err}
	}
	return nil
}

func runApply(cfg Config, decision strategy.Decision, extractDir string, log *output.Logger) error {
	switch decision.Strategy {
	case strategy.PatchUpgrade:
		exec := &patch.Executor{WorkDir: cfg.WorkDir, ExtractDir: extractDir, Logger: log}
		if err := exec.Apply(decision.Patch.Operations); err != nil {
			return &Error{Phase: PhaseApply, Kind: KindApplyFailed, Err: err}
		}
		return nil
	case strategy.FullUpgrade:
		if err := applyFullUpgrade(cfg.WorkDir, extractDir); err != nil {
			return &Error{Phase: PhaseApply, Kind: KindApplyFailed, Err: err}
		}
		return nil
	default:
		return nil
	}
}

// pullImagesForArch resolves the freshly swapped-in compose file's image
// references and pulls each pinned to the configured architecture.
func pullImagesForArch(ctx context.Context, cfg Config, log *output.Logger) error {
	images, err := cfg.Docker.ComposeImages(ctx)
	if err != nil {
		return fmt.Errorf("resolve compose images: %w", err)
	}
	for _, image := range images {
		if err := cfg.Docker.PullForArchitecture(ctx, image, cfg.Architecture); err != nil {
			return fmt.Errorf("pull %s: %w", image, err)
		}
		log.Debug("pulled %s for %s", image, cfg.Architecture)
	}
	return nil
}

// classifyStrategyErr maps a strategy.Select error to an orchestrator Kind.
func classifyStrategyErr(err error) Kind {
	if errors.Is(err, strategy.ErrNoCoverage) {
		return KindArchitectureUnsupported
	}
	return KindManifestInvalid
}
