// Command server runs the plantid daemon and its maintenance commands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmynk/plantid/internal/catalog"
	"github.com/mmynk/plantid/internal/config"
	"github.com/mmynk/plantid/internal/health"
	"github.com/mmynk/plantid/internal/images"
	"github.com/mmynk/plantid/internal/inference"
	"github.com/mmynk/plantid/internal/outbox"
	"github.com/mmynk/plantid/internal/remote"
	"github.com/mmynk/plantid/internal/service"
	"github.com/mmynk/plantid/internal/storage/sqlite"
	"github.com/mmynk/plantid/pkg/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "plantid",
	Short:         "Offline-first plant catalog and identification daemon",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("PLANTID_CONFIG"), "path to YAML config file")
	rootCmd.AddCommand(serveCmd, syncCmd, statsCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the config and installs the default logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

// app holds the wired components. It is built once per command.
type app struct {
	cfg        *config.Config
	store      *sqlite.SQLiteStore
	remote     remote.Store
	classifier *inference.ONNXClassifier
	tracker    *health.Tracker
	catalog    *catalog.Catalog
	outbox     *outbox.Outbox
	ids        *service.IdentificationService
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	slog.Info("Storage initialized", "database", cfg.Database.Path)

	tracker := health.NewTracker()
	rs := openRemote(ctx, cfg.Remote, tracker)

	var uploader outbox.ImageUploader
	if cfg.Images.Enabled {
		if s := openImages(ctx, cfg.Images, tracker); s != nil {
			uploader = s
		}
	}

	classifier := inference.NewONNXClassifier(inference.ONNXConfig{
		ModelPath:   cfg.Model.Path,
		LabelsPath:  cfg.Model.LabelsPath,
		LibraryPath: cfg.Model.LibraryPath,
		Version:     cfg.Model.Version,
		InputSize:   cfg.Model.InputSize,
		TopK:        cfg.Model.MaxPredictions,
	})

	engine := catalog.NewSyncEngine(store, rs, tracker, cfg.Sync.Ceiling, cfg.Model.Version)
	cat := catalog.New(engine, store, tracker, cfg.Sync.DefaultLimit)

	ob := outbox.New(store, rs, uploader, tracker, outbox.Config{
		Interval:    cfg.Outbox.Interval,
		BatchSize:   cfg.Outbox.BatchSize,
		BaseBackoff: cfg.Outbox.BaseBackoff,
		MaxBackoff:  cfg.Outbox.MaxBackoff,
		MaxAttempts: cfg.Outbox.MaxAttempts,
	})

	ids := service.NewIdentificationService(store, classifier, ob, cat, tracker, service.IdentificationConfig{
		Threshold:      cfg.Model.Threshold,
		MaxPredictions: cfg.Model.MaxPredictions,
		MirrorImages:   uploader != nil,
	})

	return &app{
		cfg:        cfg,
		store:      store,
		remote:     rs,
		classifier: classifier,
		tracker:    tracker,
		catalog:    cat,
		outbox:     ob,
		ids:        ids,
	}, nil
}

func (a *app) Close() {
	a.classifier.Close()
	if err := a.remote.Close(); err != nil {
		slog.Warn("Failed to close remote store", "error", err)
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("Failed to close storage", "error", err)
	}
}

// openRemote connects the configured remote store. A connection failure
// falls back to offline mode so the daemon still serves local data.
func openRemote(ctx context.Context, cfg config.RemoteConfig, tracker *health.Tracker) remote.Store {
	var (
		rs  remote.Store
		err error
	)
	switch cfg.Driver {
	case config.RemoteFirestore:
		var fs *remote.Firestore
		if fs, err = remote.NewFirestore(ctx, cfg.ProjectID, cfg.CredentialsFile); err == nil {
			rs = fs
		}
	case config.RemotePostgres:
		var pg *remote.Postgres
		if pg, err = remote.NewPostgres(ctx, cfg.PostgresDSN, cfg.MaxConns); err == nil {
			rs = pg
		}
	default:
		slog.Info("Remote store disabled, running offline")
		return remote.Offline{}
	}

	if err != nil {
		slog.Warn("Remote store unavailable, running offline", "driver", cfg.Driver, "error", err)
		tracker.Record(health.Degraded("remote", "connect", err))
		return remote.Offline{}
	}
	slog.Info("Remote store connected", "driver", cfg.Driver)
	tracker.Record(health.OK("remote", "connect"))
	return rs
}

// openImages connects the image store, returning nil when it cannot be used.
func openImages(ctx context.Context, cfg config.ImagesConfig, tracker *health.Tracker) *images.MinIOStore {
	s, err := images.NewMinIOStore(images.Config{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		UseSSL:    cfg.UseSSL,
	})
	if err == nil {
		err = s.EnsureBucket(ctx)
	}
	if err != nil {
		slog.Warn("Image store unavailable, captures will not be mirrored", "error", err)
		tracker.Record(health.Degraded("images", "connect", err))
		return nil
	}
	slog.Info("Image store ready", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	return s
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
