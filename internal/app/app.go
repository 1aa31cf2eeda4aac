// -----------------------------------------------------------------------
// App wires the engine's storage, spec cache, external adapters, and
// background scheduler into one lifecycle-managed object, grounded on the
// teacher's App{} bootstrap/Close sequence.
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/workqueue/internal/adapters"
	"github.com/ternarybob/workqueue/internal/common"
	"github.com/ternarybob/workqueue/internal/interfaces"
	"github.com/ternarybob/workqueue/internal/queue"
	"github.com/ternarybob/workqueue/internal/specstore"
)

// App holds the work queue's wired dependencies and owns their lifecycle.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	Conn  *queue.BadgerConn
	Store interfaces.BackendStore
	Specs *specstore.Store

	Metadata   interfaces.MetadataAdapter
	Location   interfaces.LocationAdapter
	SiteCat    interfaces.SiteCatalog
	Substrate  interfaces.SubstrateAdapter
	ReqManager interfaces.RequestManagerAdapter

	Engine *queue.Engine
	cron   *cron.Cron

	ctx       context.Context
	cancelCtx context.CancelFunc
}

// New wires and starts a fully running application: opens the store, builds
// the adapters, constructs the engine, starts its background loops, and
// schedules the periodic cleanup sweep.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	a.ctx, a.cancelCtx = context.WithCancel(context.Background())

	conn, err := queue.OpenBadgerConn(cfg.Storage.Badger.Path, cfg.Storage.Badger.ResetOnStartup, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue store: %w", err)
	}
	a.Conn = conn
	a.Store = queue.NewBadgerStore(conn, logger)

	a.Specs = specstore.New(cfg.Specs.Dir, logger)

	a.Metadata = adapters.NewMetadataAdapter(cfg.Adapters.DBS, logger)
	a.Location = adapters.NewLocationAdapter(cfg.Adapters.PhEDEx, logger)
	a.SiteCat = adapters.NewSiteCatalog(cfg.Adapters.SiteCatalog, logger)
	a.Substrate = adapters.NewSubstrateAdapter(cfg.Adapters.Substrate, logger)
	a.ReqManager = adapters.NewRequestManagerAdapter(cfg.Adapters.RequestManager, logger)

	a.Engine = queue.NewEngine(a.Store, a.Specs, a.Metadata, a.Location, a.SiteCat, a.Substrate,
		a.ReqManager, logger, engineConfigFrom(cfg))

	common.SafeGoWithContext(a.ctx, logger, "engine.run", func() { a.Engine.Run(a.ctx) })

	if cfg.Cleanup.Enabled {
		if err := a.startCleanupScheduler(); err != nil {
			return nil, fmt.Errorf("failed to start cleanup scheduler: %w", err)
		}
	}

	logger.Info().
		Bool("is_global_queue", cfg.Queue.IsGlobalQueue).
		Str("badger_path", cfg.Storage.Badger.Path).
		Msg("application initialization complete")

	return a, nil
}

// engineConfigFrom translates the TOML-facing QueueConfig into the engine's
// typed Config, parsing every duration field with a safe fallback.
func engineConfigFrom(cfg *common.Config) queue.Config {
	q := cfg.Queue
	return queue.Config{
		PollInterval:                common.ParseDurationOrDefault(q.PollInterval, 30*time.Second),
		CancelGraceTime:             common.ParseDurationOrDefault(q.CancelGraceTime, time.Hour),
		StuckElementAlertTime:       common.ParseDurationOrDefault(q.StuckElementAlertTime, 24*time.Hour),
		WorkPerCycle:                q.WorkPerCycle,
		LocationRefreshInterval:     common.ParseDurationOrDefault(q.LocationRefreshInterval, 10*time.Minute),
		FullLocationRefreshInterval: common.ParseDurationOrDefault(q.FullLocationRefreshInterval, 6*time.Hour),
		OpenRunningTimeout:          common.ParseDurationOrDefault(q.OpenRunningTimeout, 15*time.Minute),
		QueueName:                   q.QueueName,
		IsGlobalQueue:               q.IsGlobalQueue,
		ParentQueueUrl:              q.ParentQueueUrl,
		SelfUrl:                     q.SelfUrl,
		WMBSUrl:                     q.WMBSUrl,
	}
}

// startCleanupScheduler registers PerformQueueCleanupActions against the
// configured cron expression. The schedule was already validated by
// common.ValidateCleanupSchedule at config-load time.
func (a *App) startCleanupScheduler() error {
	a.cron = cron.New(cron.WithSeconds())
	_, err := a.cron.AddFunc(a.Config.Cleanup.Schedule, func() {
		if err := a.Engine.PerformQueueCleanupActions(a.ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("scheduled cleanup sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", a.Config.Cleanup.Schedule, err)
	}
	a.cron.Start()
	a.Logger.Info().Str("schedule", a.Config.Cleanup.Schedule).Msg("cleanup scheduler started")
	return nil
}

// Close stops the background loops and the cleanup scheduler, then releases
// the store handle.
func (a *App) Close() error {
	if a.cron != nil {
		stopCtx := a.cron.Stop()
		<-stopCtx.Done()
	}

	if a.cancelCtx != nil {
		a.Logger.Info().Msg("cancelling background goroutines")
		a.cancelCtx()
		time.Sleep(100 * time.Millisecond)
	}

	common.Stop()

	if a.Conn != nil {
		if err := a.Conn.Close(); err != nil {
			return fmt.Errorf("failed to close queue store: %w", err)
		}
		a.Logger.Info().Msg("queue store closed")
	}
	return nil
}
