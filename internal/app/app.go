package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/alerting"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/config"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/history"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/localstore"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/prefs"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/pricecache"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/provider"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/resolver"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/scheduler"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/server"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/service"
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// newSources builds the adapter chain in priority order. Adapters without
// credentials stay in the slice; the resolver skips them via Available.
func (a *App) newSources() []provider.Source {
	src := a.Config.Sources
	sources := []provider.Source{
		provider.NewGoldAPI(provider.GoldAPIOptions{
			BaseURL:   src.GoldAPI.BaseURL,
			APIKey:    src.GoldAPI.APIKey,
			UserAgent: src.GoldAPI.UserAgent,
		}, a.Logger),
		provider.NewMetalPriceAPI(provider.MetalPriceAPIOptions{
			BaseURL: src.MetalPriceAPI.BaseURL,
			APIKey:  src.MetalPriceAPI.APIKey,
		}, a.Logger),
		provider.NewMetalsDev(provider.MetalsDevOptions{
			BaseURL: src.MetalsDev.BaseURL,
			APIKey:  src.MetalsDev.APIKey,
		}, a.Logger),
	}

	if src.Chainlink.RPCURL != "" {
		sources = append(sources, provider.NewChainlink(provider.ChainlinkOptions{
			RPCURL:     src.Chainlink.RPCURL,
			XAUAddress: src.Chainlink.XAUAddress,
			XAGAddress: src.Chainlink.XAGAddress,
		}, a.Logger))
	}

	return sources
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, storage.PoolConfig{
		DSN:             a.Config.Database.DSN,
		MaxOpenConns:    a.Config.Database.MaxOpenConns,
		MaxIdleConns:    a.Config.Database.MaxIdleConns,
		ConnMaxLifetime: a.Config.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// buildEngine wires the full pipeline: sources -> resolver -> refresh cycle ->
// cache -> engine.
func (a *App) buildEngine(store *storage.Store, notifier alerting.Notifier) (*service.Engine, error) {
	local, err := localstore.Open(a.Config.Local.Path)
	if err != nil {
		return nil, err
	}

	var prefStore storage.PreferenceStore
	var sampleStore storage.PriceSampleStore
	var alertStore storage.AlertStore
	if store != nil {
		prefStore = store
		sampleStore = store
		alertStore = store
	}

	hist := history.New(local, a.Logger)
	prefsStore := prefs.New(local, prefStore, a.Logger)
	policy := alerting.NewPolicy(a.Logger)

	res := resolver.New(a.newSources(), resolver.Options{
		AttemptTimeout: a.Config.Sources.AttemptTimeout,
	}, a.Logger)

	cycle := service.NewCycle(res, hist, prefsStore, policy, notifier, sampleStore, alertStore, a.Config.App.UserID, a.Logger)
	cache := pricecache.New(cycle, a.Config.Cache.TTL, a.Logger)

	return service.New(cache, prefsStore, policy, notifier, alertStore, a.Config.App.UserID, a.Logger), nil
}

// Run starts the HTTP API and the periodic refresh loop.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; remote persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	engine, err := a.buildEngine(store, a.newNotifier())
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	go func() {
		err := sched.Run(ctx, func(tickCtx context.Context, _ time.Time) error {
			engine.Refresh(tickCtx)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error().Err(err).Msg("refresh loop terminated with error")
		}
	}()

	srv := server.New(server.Options{
		Addr:            a.Config.Server.Addr,
		ReadTimeout:     a.Config.Server.ReadTimeout,
		WriteTimeout:    a.Config.Server.WriteTimeout,
		ShutdownTimeout: a.Config.Server.ShutdownTimeout,
	}, engine, a.Logger)

	a.Logger.Info().Msg("starting price engine")
	err = srv.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("server terminated with error")
		return err
	}

	a.Logger.Info().Msg("price engine stopped")
	return nil
}

// Refresh performs a one-shot refresh cycle and logs the resolved source.
func (a *App) Refresh(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	engine, err := a.buildEngine(store, a.newNotifier())
	if err != nil {
		return err
	}

	table := engine.Refresh(ctx)
	a.Logger.Info().
		Str("source", table.Source).
		Time("fetched_at", table.FetchedAt).
		Msg("price table refreshed")
	return nil
}

// ExportOptions hold parameters for exporting historical samples.
type ExportOptions struct {
	Metal     string
	Currency  string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit  int
	Alerts bool
}
