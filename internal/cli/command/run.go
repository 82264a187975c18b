package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/yndnr/tokpool/internal/cli/config"
	"github.com/yndnr/tokpool/internal/cli/connection"
	"github.com/yndnr/tokpool/internal/cli/output"
	"github.com/yndnr/tokpool/internal/core/domain"
	"github.com/yndnr/tokpool/internal/core/service"
	"github.com/yndnr/tokpool/internal/exchange"
	"github.com/yndnr/tokpool/internal/infra/tlsroots"
	"github.com/yndnr/tokpool/internal/server/httpserver"
	"github.com/yndnr/tokpool/internal/sink"
	"github.com/yndnr/tokpool/internal/source"
	"github.com/yndnr/tokpool/internal/storage/tokenstore"
	"github.com/yndnr/tokpool/internal/telemetry/metric"
)

// RunCommand returns the run command: one pass over the credential list.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Exchange every credential in the list once and report a summary",
		ArgsUsage: " ",
		Flags:     runnerFlags(false),
		Action:    runOnce,
	}
}

// ScheduleCommand returns the schedule command: run, sleep, repeat.
func ScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "schedule",
		Usage:     "Re-fetch and run the credential list every interval until interrupted",
		ArgsUsage: " ",
		Flags:     runnerFlags(true),
		Action:    runSchedule,
	}
}

// flagKeys maps runner flags to their dotted config keys.
var flagKeys = map[string]string{
	"source":        "source",
	"sink":          "sink",
	"concurrency":   "concurrency",
	"delay":         "delay",
	"interval":      "interval",
	"token-url":     "exchange.token_url",
	"client-id":     "exchange.client_id",
	"client-secret": "exchange.client_secret",
	"scope":         "exchange.scopes",
	"region-param":  "exchange.region_param",
	"max-retries":   "retry.max_retries",
	"retry-delay":   "retry.delay",
	"rate":          "rate",
	"store-ttl":     "store_ttl",
}

func runnerFlags(scheduled bool) []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Runner config file (YAML)",
			EnvVars: []string{"TOKPOOL_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "source",
			Usage: "Credential list: file path or http(s) URL",
		},
		&cli.StringFlag{
			Name:  "sink",
			Usage: "Token sink: http(s)://host:port or store:<path>",
		},
		&cli.IntFlag{
			Name:  "concurrency",
			Usage: "Credentials exchanged per window",
		},
		&cli.DurationFlag{
			Name:  "delay",
			Usage: "Pause between windows",
		},
		&cli.StringFlag{
			Name:  "token-url",
			Usage: "OAuth2 token endpoint",
		},
		&cli.StringFlag{
			Name:  "client-id",
			Usage: "OAuth2 client ID",
		},
		&cli.StringFlag{
			Name:    "client-secret",
			Usage:   "OAuth2 client secret",
			EnvVars: []string{"TOKPOOL_CLIENT_SECRET"},
		},
		&cli.StringSliceFlag{
			Name:  "scope",
			Usage: "OAuth2 scope (repeatable)",
		},
		&cli.StringFlag{
			Name:  "region-param",
			Usage: "Form field that carries the credential region",
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "Retries of a rate-limited exchange (0 disables)",
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "Base delay before the first retry",
		},
		&cli.Float64Flag{
			Name:  "rate",
			Usage: "Max exchanges per second across the run (0 = unlimited)",
		},
		&cli.DurationFlag{
			Name:  "store-ttl",
			Usage: "Token lifetime for store: sinks",
		},
	}
	if scheduled {
		flags = append(flags,
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Pause between cycles",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address (empty = off)",
			},
		)
	}
	return flags
}

// flagOverrides collects the runner flags set on the command line.
func flagOverrides(c *cli.Context) map[string]any {
	overrides := make(map[string]any)
	for name, key := range flagKeys {
		if !c.IsSet(name) {
			continue
		}
		switch name {
		case "concurrency", "max-retries":
			overrides[key] = c.Int(name)
		case "delay", "interval", "retry-delay", "store-ttl":
			overrides[key] = c.Duration(name)
		case "rate":
			overrides[key] = c.Float64(name)
		case "scope":
			overrides[key] = c.StringSlice(name)
		default:
			overrides[key] = c.String(name)
		}
	}
	if c.IsSet("ca-file") {
		overrides["ca_file"] = c.String("ca-file")
	}
	return overrides
}

func loadRunnerConfig(c *cli.Context) (*config.RunnerConfig, error) {
	cfg, err := config.Load(c.String("config"), flagOverrides(c))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// pipeline is the wired source, exchanger and sink of one runner process.
type pipeline struct {
	source    service.LineSource
	exchanger service.Exchanger
	sink      service.Sink
	metrics   *metric.Registry
	closers   []func() error
}

func (p *pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildPipeline(cfg *config.RunnerConfig, log *slog.Logger) (*pipeline, error) {
	opts, err := clientOptions(cfg.CAFile)
	if err != nil {
		return nil, err
	}
	p := &pipeline{metrics: metric.NewRegistry()}

	if isHTTPURL(cfg.Source) {
		p.source = source.NewHTTPSource(connection.NewHTTPClient(cfg.Source, "", opts...), "")
	} else {
		p.source = source.NewFileSource(cfg.Source)
	}

	if path, ok := strings.CutPrefix(cfg.Sink, config.StoreSinkPrefix); ok {
		backend, err := tokenstore.NewFileBackend(path)
		if err != nil {
			return nil, err
		}
		store, err := tokenstore.New(backend,
			tokenstore.WithTTL(cfg.StoreTTL),
			tokenstore.WithLogger(log),
			tokenstore.WithMetrics(p.metrics),
		)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, store.Close)
		p.sink = sink.NewStoreSink(store, log)
	} else {
		p.sink = sink.NewHTTPSink(connection.NewHTTPClient(cfg.Sink, "", opts...))
	}

	transport, err := exchangeTransport(cfg.CAFile)
	if err != nil {
		return nil, p.closeWith(err)
	}
	ex, err := exchange.NewPasswordExchanger(exchange.Config{
		TokenURL:     cfg.Exchange.TokenURL,
		ClientID:     cfg.Exchange.ClientID,
		ClientSecret: cfg.Exchange.ClientSecret,
		Scopes:       cfg.Exchange.Scopes,
		RegionParam:  cfg.Exchange.RegionParam,
		Transport:    transport,
		Timeout:      cfg.Exchange.Timeout,
	})
	if err != nil {
		return nil, p.closeWith(err)
	}

	var next service.Exchanger = ex
	if cfg.Rate > 0 {
		burst := max(1, int(cfg.Rate))
		next = service.WithRateLimit(next, rate.NewLimiter(rate.Limit(cfg.Rate), burst))
	}
	if cfg.Retry.MaxRetries > 0 {
		next = service.WithBackoff(next, cfg.BackoffPolicy()).Instrument(log, p.metrics)
	}
	p.exchanger = next

	return p, nil
}

func (p *pipeline) closeWith(err error) error {
	return errors.Join(err, p.Close())
}

func exchangeTransport(caFile string) (http.RoundTripper, error) {
	if caFile == "" {
		return nil, nil
	}
	pool, err := tlsroots.NewPool(caFile)
	if err != nil {
		return nil, fmt.Errorf("load CA file: %w", err)
	}
	return &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: pool.ClientConfig(),
	}, nil
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func (p *pipeline) scheduler(cfg *config.RunnerConfig, log *slog.Logger) *service.Scheduler {
	return &service.Scheduler{
		Source:      p.source,
		Runner:      service.NewBatchRunner(service.WithLogger(log), service.WithMetrics(p.metrics)),
		Exchanger:   p.exchanger,
		Sink:        p.sink,
		Concurrency: cfg.Concurrency,
		Delay:       cfg.Delay,
		Interval:    cfg.Interval,
		Logger:      log,
	}
}

func runOnce(c *cli.Context) error {
	log, err := newLogger(c)
	if err != nil {
		return err
	}
	cfg, err := loadRunnerConfig(c)
	if err != nil {
		return err
	}
	log.Debug("runner configuration", "config", config.Sanitize(cfg))

	p, err := buildPipeline(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Error("failed to close sink", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := p.scheduler(cfg, log).RunOnce(ctx)
	if err != nil {
		return err
	}
	log.Info("run completed", "summary", summary)
	return printResult(c, newSummaryView(summary))
}

func runSchedule(c *cli.Context) error {
	log, err := newLogger(c)
	if err != nil {
		return err
	}
	cfg, err := loadRunnerConfig(c)
	if err != nil {
		return err
	}
	log.Debug("runner configuration", "config", config.Sanitize(cfg))

	p, err := buildPipeline(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Error("failed to close sink", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	if addr := c.String("metrics-addr"); addr != "" {
		serveMetrics(ctx, g, addr, p.metrics, log)
	}
	g.Go(func() error {
		return p.scheduler(cfg, log).Run(ctx)
	})
	return g.Wait()
}

// serveMetrics exposes GET /metrics until ctx is done.
func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, reg *metric.Registry, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", reg.Handler())
	srv := httpserver.New(addr, mux)

	g.Go(func() error {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		log.Info("serving metrics", "addr", ln.Addr().String())
		return srv.Serve(ln)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// summaryView renders a run summary.
type summaryView struct {
	RunID          string `json:"run_id" yaml:"run_id"`
	Attempted      int    `json:"attempted" yaml:"attempted"`
	Succeeded      int    `json:"succeeded" yaml:"succeeded"`
	Malformed      int    `json:"malformed" yaml:"malformed"`
	ExchangeFailed int    `json:"exchange_failed" yaml:"exchange_failed"`
	SinkFailed     int    `json:"sink_failed" yaml:"sink_failed"`
	Windows        int    `json:"windows" yaml:"windows"`
	Duration       string `json:"duration" yaml:"duration"`
}

func newSummaryView(s *domain.RunSummary) *summaryView {
	return &summaryView{
		RunID:          s.RunID,
		Attempted:      s.Attempted,
		Succeeded:      s.Succeeded,
		Malformed:      s.Malformed,
		ExchangeFailed: s.ExchangeFailed,
		SinkFailed:     s.SinkFailed,
		Windows:        s.Windows,
		Duration:       s.Duration.Round(time.Millisecond).String(),
	}
}

// Table implements output.Tabular.
func (v *summaryView) Table(wide bool) *output.Table {
	headers := []string{"ATTEMPTED", "SUCCEEDED", "MALFORMED", "EXCHANGE FAILED", "SINK FAILED", "DURATION"}
	row := []string{
		strconv.Itoa(v.Attempted),
		strconv.Itoa(v.Succeeded),
		strconv.Itoa(v.Malformed),
		strconv.Itoa(v.ExchangeFailed),
		strconv.Itoa(v.SinkFailed),
		v.Duration,
	}
	if wide {
		headers = append([]string{"RUN ID"}, append(headers, "WINDOWS")...)
		row = append([]string{v.RunID}, append(row, strconv.Itoa(v.Windows))...)
	}
	t := output.NewTable(headers...)
	t.AddRow(row...)
	return t
}
