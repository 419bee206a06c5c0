package main

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/b-harvest/svcupgrade/internal/config"
	"github.com/b-harvest/svcupgrade/internal/dockerctl"
	"github.com/b-harvest/svcupgrade/internal/manifest"
	"github.com/b-harvest/svcupgrade/internal/orchestrator"
	"github.com/b-harvest/svcupgrade/internal/output"
	"github.com/b-harvest/svcupgrade/internal/store"
	"github.com/b-harvest/svcupgrade/internal/version"
)

var (
	flagConfigPath string
	flagWorkDir    string
	flagDataDir    string
	flagLogLevel   string
)

// NewRootCmd builds the svcupgrade CLI surface: check, upgrade, status, and
// version subcommands wrapping the orchestrator.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "svcupgrade",
		Short: "Docker service upgrade core",
		Long: `svcupgrade evaluates and applies upgrades for a Docker-based service:
  - Compares the installed version against a remote manifest
  - Selects a full or incremental patch upgrade for this host's architecture
  - Downloads, verifies, and applies the chosen artifacts with rollback on failure`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to svcupgrade.toml (default: <data-dir>/svcupgrade.toml)")
	cmd.PersistentFlags().StringVar(&flagWorkDir, "work-dir", "", "managed service tree (default from config)")
	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "embedded store and download cache location (default: ~/.svcupgrade)")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "debug, info, warn, or error")

	cmd.AddCommand(
		newCheckCmd(),
		newUpgradeCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	return cmd
}

// bootstrap resolves configuration and opens the embedded store, the setup
// every mutating subcommand shares.
type bootstrap struct {
	cfg    *config.Config
	log    *output.Logger
	store  *store.Store
	docker *dockerctl.Controller
}

func newBootstrap() (*bootstrap, error) {
	dataDir := flagDataDir
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}

	loader := config.NewLoader(dataDir, flagConfigPath)
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flagWorkDir != "" {
		cfg.Service.WorkDir = flagWorkDir
	}
	if flagLogLevel != "" {
		cfg.Service.LogLevel = flagLogLevel
	}

	log := output.New(os.Stderr, output.ParseLevel(cfg.Service.LogLevel))

	st, err := store.Open(cfg.Service.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	docker, err := dockerctl.New(cfg.Service.WorkDir, log)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("create docker controller: %w", err)
	}

	return &bootstrap{cfg: cfg, log: log, store: st, docker: docker}, nil
}

func (b *bootstrap) Close() {
	b.docker.Close()
	b.store.Close()
}

func (b *bootstrap) publicKey() (ed25519.PublicKey, error) {
	if b.cfg.Signing.PublicKeyBase64 == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(b.cfg.Signing.PublicKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("signing.public_key is not valid base64: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("signing.public_key has length %d, want %d", len(raw), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}

func (b *bootstrap) manifestProvider() (orchestrator.ManifestProvider, error) {
	if b.cfg.Manifest.URL == "" {
		return nil, errors.New("manifest.url is not configured (set it in svcupgrade.toml or SVCUPGRADE_MANIFEST_URL)")
	}
	return manifest.NewHTTPProvider(b.cfg.Manifest.URL), nil
}

func currentVersion(b *bootstrap) (version.Version, error) {
	appCfg, err := b.store.GetAppConfig()
	if err != nil {
		return version.Version{}, fmt.Errorf("read current version from app_config: %w", err)
	}
	if appCfg.LastVersion == "" {
		return version.Version{}, nil
	}
	return version.Parse(appCfg.LastVersion)
}

// exitCodeFor maps a terminal error to the CLI exit codes: 0 success,
// 1 generic, 2 precondition, 3 integrity, 4 cancellation.
func exitCodeFor(err error) int {
	var oerr *orchestrator.Error
	if errors.As(err, &oerr) {
		switch oerr.Kind {
		case orchestrator.KindPreconditionFailed:
			return 2
		case orchestrator.KindIntegrityFailed:
			return 3
		case orchestrator.KindCancelled:
			return 4
		}
	}
	if errors.Is(err, context.Canceled) {
		return 4
	}
	return 1
}

func cacheDir(cfg *config.Config) string {
	if cfg.Service.CacheDir != "" {
		return cfg.Service.CacheDir
	}
	return config.DefaultCacheDir(cfg.Service.DataDir)
}

func phaseTimeouts(cfg *config.Config) (stop, start time.Duration) {
	stop, start = cfg.Timeouts.StopServices, cfg.Timeouts.StartServices
	if stop == 0 {
		stop = 5 * time.Minute
	}
	if start == 0 {
		start = 10 * time.Minute
	}
	return stop, start
}
