package cli

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"divtrack/internal/analytics"
	"divtrack/internal/api"
	"divtrack/internal/cache"
	"divtrack/internal/config"
	"divtrack/internal/events"
	"divtrack/internal/health"
	"divtrack/internal/logging"
	"divtrack/internal/marketdata"
	"divtrack/internal/payment"
	"divtrack/internal/security"
	"divtrack/internal/session"
	"divtrack/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-01"
)

// App holds the application dependencies. Services are built on first use
// so that version and config commands never touch the network or disk.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	once    sync.Once
	initErr error
	closers []io.Closer

	Registry *prometheus.Registry
	Bus      *events.Bus
	Cache    cache.Cache
	Client   *api.Client
	Store    store.TokenStore
	Audit    *security.AuditLogger
	Session  *session.Manager
	Market   *marketdata.Orchestrator
	Safety   *analytics.SafetyRequester
	Capture  *analytics.CaptureRequester
	Payments *payment.Initiator
	Health   *health.Monitor
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// NewApp creates an App. Call Init before using any service.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger}
}

// Init builds every service exactly once.
func (a *App) Init(ctx context.Context) error {
	a.once.Do(func() { a.initErr = a.init(ctx) })
	return a.initErr
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector())
	a.Bus = events.NewBus()

	if cfg.Cache.Enabled {
		a.Cache = cache.New(ctx, cfg.Cache.RedisURL, a.Logger)
		if c, ok := a.Cache.(io.Closer); ok {
			a.closers = append(a.closers, c)
		}
		a.Logger.Debug().Str("backend", a.Cache.Backend()).Msg("Response cache initialized")
	}

	a.Client = api.New(api.Options{
		BaseURL:         cfg.API.BaseURL,
		Timeout:         cfg.API.Timeout,
		RateLimitRPS:    cfg.API.RateLimitRPS,
		RateBurst:       cfg.API.RateBurst,
		BreakerFailures: cfg.API.BreakerFailures,
		BreakerTimeout:  cfg.API.BreakerTimeout,
		Cache:           a.Cache,
		CacheTTLs: api.CacheTTLs{
			Quote:     cfg.Cache.QuoteTTL,
			History:   cfg.Cache.HistoryTTL,
			Dividends: cfg.Cache.DividendsTTL,
		},
		Registerer: a.Registry,
		Logger:     a.Logger,
	})

	tokens, closeStore, err := store.Open(store.Options{
		Backend:   cfg.Session.TokenBackend,
		TokenPath: cfg.Session.TokenPath,
		DBPath:    cfg.Session.DBPath,
	})
	if err != nil {
		return fmt.Errorf("opening token store: %w", err)
	}
	a.Store = tokens
	a.closers = append(a.closers, closerFunc(closeStore))

	// A nil *AuditLogger must not reach the interfaces below as a non-nil value.
	var sessionAudit session.Auditor
	var paymentAudit payment.Auditor
	if cfg.Session.AuditEnabled {
		audit, err := security.NewAuditLogger(security.DefaultAuditConfig(cfg.Dir))
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to initialize audit log, continuing without it")
		} else {
			a.Audit = audit
			a.closers = append(a.closers, audit)
			sessionAudit, paymentAudit = audit, audit
		}
	}

	a.Session = session.NewManager(session.Options{
		Remote:                a.Client,
		Store:                 a.Store,
		Auditor:               sessionAudit,
		Events:                a.Bus,
		Logger:                a.Logger,
		ReconcileAfterUpgrade: cfg.Session.ReconcileAfterUpgrade,
	})
	a.Market = marketdata.New(marketdata.Options{
		Source:        a.Client,
		HistoryDays:   cfg.Market.HistoryDays,
		DividendLimit: cfg.Market.DividendLimit,
		Registerer:    a.Registry,
		Logger:        a.Logger,
	})
	a.Safety = analytics.NewSafetyRequester(a.Client, a.Logger)
	a.Capture = analytics.NewCaptureRequester(a.Client, a.Logger)
	a.Payments = payment.NewInitiator(a.Client, a.Session, paymentAudit, a.Logger)

	a.Health = newHealthMonitor(a.Client, a.Store, cfg.API.Timeout)

	a.Logger.Debug().Str("base_url", cfg.API.BaseURL).Str("token_backend", cfg.Session.TokenBackend).Msg("Services initialized")
	return nil
}

func newHealthMonitor(client *api.Client, tokens store.TokenStore, timeout time.Duration) *health.Monitor {
	m := health.NewMonitor(timeout)
	m.Register("api", health.APICheck(2*time.Second, func(ctx context.Context) (map[string]interface{}, error) {
		resp, err := client.Health(ctx)
		if err != nil {
			return nil, err
		}
		details := map[string]interface{}{"provider": resp.Provider, "caching": resp.Caching}
		if resp.Status != "healthy" {
			return details, fmt.Errorf("service reports %q", resp.Status)
		}
		return details, nil
	}))
	m.Register("token_store", health.StoreCheck(func(ctx context.Context) error {
		_, _, err := tokens.Load(ctx)
		return err
	}))
	return m
}

// Restore initializes services and reloads the persisted session.
func (a *App) Restore(ctx context.Context) error {
	if err := a.Init(ctx); err != nil {
		return err
	}
	a.Session.Restore(ctx)
	return nil
}

// Close releases every resource opened by Init, in reverse order.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := NewApp(cfg, logger)

	rootCmd := &cobra.Command{
		Use:   "divtrack",
		Short: "Dividend tracker - quotes, dividend history and premium analytics",
		Long: `divtrack looks up stock quotes, price history and dividend payments from the
dividend tracker service, and runs premium analytics (safety scores and
dividend capture strategies) for subscribed accounts.

Use 'divtrack watch' for a live dashboard that follows ticker and tier changes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/divtrack)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addAuthCommands(rootCmd, app)
	addMarketCommands(rootCmd, app)
	addPremiumCommands(rootCmd, app)
	addSubscriptionCommands(rootCmd, app)
	addWatchCommand(rootCmd, app)

	return rootCmd
}

func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("divtrack v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": app.Config.Dir})
			}
			output.Println(app.Config.Dir)
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("API")
	output.Printf("  Base URL:        %s\n", cfg.API.BaseURL)
	output.Printf("  Timeout:         %s\n", cfg.API.Timeout)
	output.Printf("  Rate limit:      %.1f rps (burst %d)\n", cfg.API.RateLimitRPS, cfg.API.RateBurst)
	output.Printf("  Breaker:         %d failures, open %s\n", cfg.API.BreakerFailures, cfg.API.BreakerTimeout)
	output.Println()

	output.Bold("Market Data")
	output.Printf("  History days:    %d\n", cfg.Market.HistoryDays)
	output.Printf("  Dividend limit:  %d\n", cfg.Market.DividendLimit)
	output.Printf("  Default ticker:  %s\n", cfg.Market.DefaultTicker)
	output.Println()

	output.Bold("Cache")
	output.Printf("  Enabled:         %v\n", cfg.Cache.Enabled)
	if cfg.Cache.RedisURL != "" {
		output.Printf("  Redis:           %s\n", security.RedactSecrets(cfg.Cache.RedisURL))
	}
	output.Printf("  TTLs:            quote %s, history %s, dividends %s\n", cfg.Cache.QuoteTTL, cfg.Cache.HistoryTTL, cfg.Cache.DividendsTTL)
	output.Println()

	output.Bold("Session")
	output.Printf("  Token backend:   %s\n", cfg.Session.TokenBackend)
	output.Printf("  Reconcile:       %v\n", cfg.Session.ReconcileAfterUpgrade)
	output.Printf("  Audit:           %v\n", cfg.Session.AuditEnabled)
}
