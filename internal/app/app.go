package app

import (
	"context"
	"fmt"
	"sync"

	logx "leadgen/pkg/logx"

	"leadgen/internal/analyze"
	"leadgen/internal/config"
	"leadgen/internal/engine"
	"leadgen/internal/eventbus"
	"leadgen/internal/fetch"
	"leadgen/internal/status"
	"leadgen/internal/storage"
)

// App wires the daemon: config manager, log service, lead store, fetch
// source, analyzer and the engine, plus config hot reload.
type App struct {
	cfgMgr *config.ConfigManager
	logSvc *logx.Service
	log    logx.Logger

	bus    eventbus.Bus
	store  storage.Store
	engine *engine.Engine
	status *status.Server

	mu      sync.Mutex
	lastCfg *config.Config

	wg       sync.WaitGroup
	stopOnce sync.Once
	cancel   context.CancelFunc
}

// New loads and validates the config file and builds every collaborator.
// Nothing is started yet.
func New(cfgPath string, hooks engine.Hooks) (*App, error) {
	cfgMgr := config.NewConfigManager(cfgPath)
	cfg, err := cfgMgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logSvc, log := logx.New(cfg.BuildLogging())
	cfgMgr.SetLogger(log.With(logx.String("svc", "config")))
	cfgMgr.SetValidator(func(ctx context.Context, c *config.Config) error {
		return c.Validate()
	})

	storageCfg, err := cfg.BuildStorage()
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	store, err := storage.Open(storageCfg, log.With(logx.String("svc", "storage")))
	if err != nil {
		logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	sourceTimeout, err := cfg.BuildSourceTimeout()
	if err != nil {
		store.Close()
		logSvc.Close()
		return nil, err
	}
	var fetcher fetch.Fetcher = fetch.NewHTTPSource(fetch.HTTPConfig{
		URL:     cfg.Source.BaseURL,
		APIKey:  cfg.Source.APIKey,
		Timeout: sourceTimeout,
	}, log.With(logx.String("svc", "fetch")))
	fetcher = fetch.RateLimited(fetcher, cfg.Source.RequestsPerMinute)

	engineCfg, err := cfg.BuildEngine()
	if err != nil {
		store.Close()
		logSvc.Close()
		return nil, err
	}

	bus := eventbus.New()
	eng := engine.New(engineCfg, engine.Deps{
		Fetcher:  fetcher,
		Store:    store,
		Analyzer: analyze.NewWebsiteProbe(sourceTimeout, log.With(logx.String("svc", "analyze"))),
		Bus:      bus,
		Hooks:    hooks,
	}, log.With(logx.String("svc", "engine")))

	for i := range cfg.Tasks {
		task, err := cfg.Tasks[i].Build()
		if err != nil {
			store.Close()
			logSvc.Close()
			return nil, fmt.Errorf("tasks[%d]: %w", i, err)
		}
		if err := eng.AddTask(task); err != nil {
			store.Close()
			logSvc.Close()
			return nil, fmt.Errorf("tasks[%d]: %w", i, err)
		}
	}

	return &App{
		cfgMgr:  cfgMgr,
		logSvc:  logSvc,
		log:     log,
		bus:     bus,
		store:   store,
		engine:  eng,
		status:  status.New(cfg.BuildStatus(), eng, log.With(logx.String("svc", "status"))),
		lastCfg: cfg,
	}, nil
}

func (a *App) Logger() logx.Logger     { return a.log }
func (a *App) Engine() *engine.Engine  { return a.engine }
func (a *App) Bus() eventbus.Bus       { return a.bus }
func (a *App) Status() engine.Snapshot { return a.engine.Snapshot() }

// Start launches the engine and the config watcher. It returns an error
// when the engine refuses to start (no tasks).
func (a *App) Start(ctx context.Context) error {
	if !a.engine.Start() {
		return fmt.Errorf("engine start refused")
	}
	if err := a.status.Start(); err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	updates := a.cfgMgr.Subscribe(4)
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		_ = a.cfgMgr.Watch(watchCtx)
	}()
	go func() {
		defer a.wg.Done()
		defer a.cfgMgr.Unsubscribe(updates)
		for {
			select {
			case <-watchCtx.Done():
				return
			case cfg, ok := <-updates:
				if !ok {
					return
				}
				a.applyReload(cfg)
			}
		}
	}()

	a.log.Info("daemon started")
	return nil
}

// applyReload applies the safe-to-change subset of a validated reload:
// logging sinks and engine timing/window/limit settings. Storage driver
// and task list changes need a restart.
func (a *App) applyReload(cfg *config.Config) {
	if cfg == nil {
		return
	}

	a.mu.Lock()
	old := a.lastCfg
	a.lastCfg = cfg
	a.mu.Unlock()

	changed, attrs := config.SummarizeConfigChange(old, cfg)
	if len(changed) == 0 {
		return
	}
	a.log.Info("config reloaded", append(attrs, logx.Any("sections", changed))...)

	for _, section := range changed {
		switch section {
		case "logging":
			a.logSvc.Apply(cfg.BuildLogging())
		case "engine":
			engineCfg, err := cfg.BuildEngine()
			if err != nil {
				a.log.Warn("reload: engine section rejected", logx.Err(err))
				continue
			}
			a.engine.Apply(engineCfg)
		case "storage", "tasks", "source", "status":
			a.log.Warn("reload: section change requires restart", logx.String("section", section))
		}
	}
}

// Stop shuts everything down in dependency order. Idempotent.
func (a *App) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		if a.cancel != nil {
			a.cancel()
		}
		a.status.Stop(ctx)
		a.engine.Stop(ctx)
		a.engine.Close()
		a.wg.Wait()
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
		a.log.Info("daemon stopped")
		a.logSvc.Close()
	})
	return nil
}
