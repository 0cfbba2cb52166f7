package cli

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"divtrack/internal/analytics"
	"divtrack/internal/dashboard"
	"divtrack/internal/errors"
	"divtrack/internal/events"
	"divtrack/internal/health"
	"divtrack/internal/marketdata"
	"divtrack/internal/models"
)

func addWatchCommand(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newWatchCmd(app))
}

func newWatchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [ticker]",
		Short: "Live dashboard that follows ticker and plan changes",
		Long: `Show market data and premium analytics for a ticker and keep them current.

Type a ticker and press enter to switch. Other input:
  :refresh        fetch the current ticker again
  :tier <tier>    change the subscription tier
  :logout         clear the session
  :quit           exit

Switching quickly is safe: only the most recent ticker's data is shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := app.Restore(ctx); err != nil {
				return err
			}

			ticker := app.Config.Market.DefaultTicker
			if len(args) == 1 {
				ticker = args[0]
			}
			addr, _ := cmd.Flags().GetString("metrics-addr")
			if addr == "" {
				addr = app.Config.Metrics.Addr
			}

			return runWatch(ctx, app, output, cmd.InOrStdin(), ticker, addr)
		},
	}

	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9109)")
	return cmd
}

func runWatch(ctx context.Context, app *App, output *Output, in io.Reader, ticker, metricsAddr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	renderer := &terminalRenderer{output: output}
	controller := dashboard.New(dashboard.Options{
		Bus:     app.Bus,
		Session: app.Session,
		Market:  app.Market,
		Safety:  app.Safety,
		Capture: app.Capture,
		Render:  renderer,
		Logger:  app.Logger,
	})
	registerBusMetrics(app.Registry, app.Bus)

	app.Bus.Start(ctx)
	defer app.Bus.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := controller.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           metricsHandler(app.Registry, app.Health),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			app.Logger.Info().Str("addr", metricsAddr).Msg("Serving metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// The scanner cannot be interrupted, so it runs outside the group and
	// is abandoned on exit.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-gctx.Done():
				return
			}
		}
	}()

	g.Go(func() error {
		defer cancel()
		renderer.Session(app.Session.Current())
		if t := models.NormalizeTicker(ticker); t != "" {
			app.Bus.Publish(events.Event{Kind: events.TickerChanged, Ticker: t})
		}
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					// Input closed; keep showing updates until interrupted.
					lines = nil
					continue
				}
				if quit := handleWatchInput(gctx, app, output, line); quit {
					return nil
				}
			}
		}
	})

	return g.Wait()
}

// handleWatchInput applies one line of user input and reports whether the
// dashboard should exit.
func handleWatchInput(ctx context.Context, app *App, output *Output, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch strings.ToLower(fields[0]) {
	case ":quit", ":q":
		return true
	case ":refresh", ":r":
		app.Bus.Publish(events.Event{Kind: events.RefreshRequested})
	case ":logout":
		app.Session.Logout(ctx)
	case ":tier":
		if len(fields) != 2 {
			output.Warning("usage: :tier <free|premium|elite>")
			return false
		}
		tier := models.Tier(strings.ToLower(fields[1]))
		if _, err := app.Session.UpgradeSubscription(ctx, tier); err != nil {
			output.Error("%s", errors.UserMessage(err))
		}
	default:
		if strings.HasPrefix(fields[0], ":") {
			output.Warning("unknown command %s", fields[0])
			return false
		}
		app.Bus.Publish(events.Event{Kind: events.TickerChanged, Ticker: fields[0]})
	}
	return false
}

func metricsHandler(reg *prometheus.Registry, monitor *health.Monitor) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/healthz", monitor.Handler())
	return mux
}

func registerBusMetrics(reg prometheus.Registerer, bus *events.Bus) {
	for name, value := range map[string]func(events.Stats) uint64{
		"published": func(s events.Stats) uint64 { return s.Published },
		"delivered": func(s events.Stats) uint64 { return s.Delivered },
		"dropped":   func(s events.Stats) uint64 { return s.Dropped },
		"coalesced": func(s events.Stats) uint64 { return s.Coalesced },
	} {
		value := value
		c := prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "divtrack",
			Subsystem: "events",
			Name:      name + "_total",
			Help:      "Dashboard events " + name + ".",
		}, func() float64 { return float64(value(bus.Stats())) })
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(err)
			}
		}
	}
}

// terminalRenderer prints dashboard updates as they arrive.
type terminalRenderer struct {
	output *Output
}

func (r *terminalRenderer) Market(view marketdata.View) {
	switch {
	case view.Err != nil:
		r.output.Error("%s: %s", view.Ticker, errors.UserMessage(view.Err))
	case view.Snapshot != nil && !view.Loading:
		if r.output.IsJSON() {
			_ = r.output.JSON(snapshotJSON(*view.Snapshot))
			return
		}
		r.output.Println()
		renderSnapshot(r.output, *view.Snapshot)
	}
}

func (r *terminalRenderer) Safety(res analytics.SafetyResult) {
	if r.output.IsJSON() {
		_ = r.output.JSON(safetyJSON(res))
		return
	}
	r.output.Println()
	renderSafety(r.output, res)
}

func (r *terminalRenderer) Capture(res analytics.CaptureResult) {
	if r.output.IsJSON() {
		_ = r.output.JSON(captureJSON(res))
		return
	}
	r.output.Println()
	renderCapture(r.output, res)
}

func (r *terminalRenderer) Session(s models.Session) {
	if r.output.IsJSON() {
		_ = r.output.JSON(sessionJSON(s))
		return
	}
	if s.IsAuthenticated() {
		r.output.Info("Signed in as %s (%s)", s.Email(), s.Tier)
		return
	}
	r.output.Info("Not signed in (%s)", s.Tier)
}
