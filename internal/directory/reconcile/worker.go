package reconcile

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/warrantydesk/warrantydesk/internal/clock"
	appconfig "github.com/warrantydesk/warrantydesk/internal/config"
	"github.com/warrantydesk/warrantydesk/internal/directory/domain"
)

type Config struct {
	PollInterval     time.Duration
	RunTimeout       time.Duration
	ActiveWindowDays int
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Hour
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = time.Minute
	}
	if c.ActiveWindowDays <= 0 {
		c.ActiveWindowDays = 30
	}
	return c
}

func DefaultConfig(cfg appconfig.Config) Config {
	return Config{ActiveWindowDays: cfg.ActiveWindowDays}.withDefaults()
}

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Repo   domain.Repository
	Config Config `optional:"true"`
}

// Worker keeps active_status in line with last_login so reads never have
// to write it.
type Worker struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
	cfg   Config
}

func NewWorker(p Params) *Worker {
	return &Worker{
		db:    p.DB,
		log:   p.Log.Named("directory.reconcile"),
		clock: p.Clock,
		repo:  p.Repo,
		cfg:   p.Config.withDefaults(),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("active status reconcile failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) RunOnce(parentCtx context.Context) error {
	ctx, cancel := context.WithTimeout(parentCtx, w.cfg.RunTimeout)
	defer cancel()

	now := w.clock.Now()
	cutoff := now.AddDate(0, 0, -w.cfg.ActiveWindowDays)
	changed, err := w.repo.ReconcileActiveStatus(ctx, w.db, cutoff, now)
	if err != nil {
		return err
	}
	if changed > 0 {
		w.log.Info("active status reconciled", zap.Int64("changed", changed))
	}
	return nil
}
