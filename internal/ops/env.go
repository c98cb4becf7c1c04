package ops

import (
	"context"
	"database/sql"
	stderrors "errors"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/hpungsan/funnier/internal/blobcache"
	"github.com/hpungsan/funnier/internal/config"
	"github.com/hpungsan/funnier/internal/connectivity"
	"github.com/hpungsan/funnier/internal/db"
	"github.com/hpungsan/funnier/internal/errors"
	"github.com/hpungsan/funnier/internal/flickr"
	"github.com/hpungsan/funnier/internal/kv"
	"github.com/hpungsan/funnier/internal/logging"
	"github.com/hpungsan/funnier/internal/photo"
	"github.com/hpungsan/funnier/internal/photoset"
)

// OpenOptions controls how Open wires the environment.
type OpenOptions struct {
	Logger *zap.Logger

	// Watch keeps probing connectivity in the background so the cache can
	// react to changes. Long-running modes (serve, MCP) set it.
	Watch bool
}

// Env holds the collaborators shared by every operation.
type Env struct {
	BaseDir  string
	Config   *config.Config
	DB       *sql.DB
	Store    kv.Store
	Blobs    *blobcache.Cache
	Monitor  connectivity.Monitor
	Cache    *photoset.Cache
	Metrics  *photoset.Metrics
	Registry *prometheus.Registry
	Logger   *zap.Logger

	prober *connectivity.Prober
	cancel context.CancelFunc
}

// Open initializes storage under baseDir and builds the photoset cache for
// cfg.PhotosetID. The caller must Close the returned Env.
func Open(ctx context.Context, baseDir string, cfg *config.Config, opts OpenOptions) (*Env, error) {
	if cfg.PhotosetID == "" {
		return nil, errors.NewNotConfigured("photoset_id")
	}
	logger := logging.OrNop(opts.Logger)

	env := &Env{BaseDir: baseDir, Config: cfg, Logger: logger}
	if err := env.open(ctx, opts.Watch); err != nil {
		_ = env.Close()
		return nil, err
	}
	return env, nil
}

func (env *Env) open(ctx context.Context, watch bool) error {
	cfg, logger := env.Config, env.Logger
	var err error

	if env.DB, err = db.Init(env.BaseDir); err != nil {
		return errors.NewStorage("init database", err)
	}
	if env.Store, err = kv.Open(cfg.KVBackend, env.BaseDir, env.DB); err != nil {
		return err
	}
	env.Blobs, err = blobcache.Open(filepath.Join(env.BaseDir, db.BlobsDir), blobcache.Options{
		Timeout: time.Duration(cfg.APITimeout),
		Logger:  logger.Named("blobcache"),
	})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	env.cancel = cancel
	if env.Monitor, err = env.newMonitor(ctx, runCtx, watch); err != nil {
		return err
	}

	env.Registry = prometheus.NewRegistry()
	env.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	env.Metrics = photoset.NewMetrics(env.Registry)

	api := flickr.New(flickr.Config{
		BaseURL:   cfg.APIBaseURL,
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		Timeout:   time.Duration(cfg.APITimeout),
		Logger:    logger.Named("flickr"),
	})

	env.Cache, err = photoset.New(ctx, photoset.Options{
		PhotosetID:    cfg.PhotosetID,
		API:           api,
		Store:         env.Store,
		Blobs:         env.Blobs,
		Monitor:       env.Monitor,
		Bounds:        photo.Bounds{Width: cfg.DisplayWidth, Height: cfg.DisplayHeight},
		MeteredBudget: cfg.MeteredBudgetBytes,
		StaleAfter:    time.Duration(cfg.StaleAfter),
		Logger:        logger.Named("photoset"),
		History:       photoset.SQLHistory{DB: env.DB},
		Metrics:       env.Metrics,
	})
	return err
}

// newMonitor builds the connectivity monitor for cfg.Network. "auto" probes
// once up front and, when watch is set, keeps probing until Close.
func (env *Env) newMonitor(ctx, runCtx context.Context, watch bool) (connectivity.Monitor, error) {
	if env.Config.Network != "" && env.Config.Network != "auto" {
		s, err := connectivity.ParseStatus(env.Config.Network)
		if err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
		return connectivity.NewStatic(s), nil
	}

	p := connectivity.NewProber(connectivity.ProberOptions{
		Host:     env.Config.ProbeHost,
		Interval: time.Duration(env.Config.ProbeInterval),
		Metered:  env.Config.Metered,
		Logger:   env.Logger.Named("connectivity"),
	})
	p.Probe(ctx)
	if watch {
		go p.Run(runCtx)
	}
	env.prober = p
	return p, nil
}

// Status returns the current connectivity class.
func (env *Env) Status() connectivity.Status {
	return env.Monitor.Status()
}

// Close releases everything Open acquired, newest first.
func (env *Env) Close() error {
	if env.Cache != nil {
		env.Cache.Close()
	}
	if env.prober != nil {
		env.prober.Close()
	}
	if env.cancel != nil {
		env.cancel()
	}

	var errs []error
	if env.Blobs != nil {
		errs = append(errs, env.Blobs.Close())
	}
	if env.Store != nil {
		errs = append(errs, env.Store.Close())
	}
	if env.DB != nil {
		errs = append(errs, env.DB.Close())
	}
	return stderrors.Join(errs...)
}

// resolveStatus returns the status named by network, or the monitor's
// current status when network is empty.
func (env *Env) resolveStatus(network string) (connectivity.Status, error) {
	if network == "" {
		return env.Status(), nil
	}
	s, err := connectivity.ParseStatus(network)
	if err != nil {
		return connectivity.Offline, errors.NewInvalidRequest(err.Error())
	}
	return s, nil
}
