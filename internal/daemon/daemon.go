package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/searchlight-io/searchlight/internal/api"
	"github.com/searchlight-io/searchlight/internal/app/classifier"
	"github.com/searchlight-io/searchlight/internal/app/detector"
	"github.com/searchlight-io/searchlight/internal/app/fixplan"
	"github.com/searchlight-io/searchlight/internal/app/run"
	"github.com/searchlight-io/searchlight/internal/app/ticket"
	"github.com/searchlight-io/searchlight/internal/domain"
	"github.com/searchlight-io/searchlight/internal/health"
	"github.com/searchlight-io/searchlight/internal/infra/integration"
	"github.com/searchlight-io/searchlight/internal/infra/notify"
	"github.com/searchlight-io/searchlight/internal/infra/source"
	"github.com/searchlight-io/searchlight/internal/infra/sqlite"
)

// Daemon is the core Searchlight runtime. It wires together all services.
type Daemon struct {
	Config Config
	DB     *sqlite.DB
	Runner *run.Runner
	Plans  *fixplan.Orchestrator
	Server *api.Server
	Health *health.Checker

	cronRunner *cron.Cron
	cancel     context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	dataDir := cfg.Storage.Dir
	if dataDir == "" {
		dataDir = searchlightHome()
	}

	db, err := sqlite.Open(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Metric source connectors
	endpoints := map[domain.Source]SourceEndpoint{
		domain.SourceGA4:    cfg.Sources.GA4,
		domain.SourceGSC:    cfg.Sources.GSC,
		domain.SourceAds:    cfg.Sources.Ads,
		domain.SourceUptime: cfg.Sources.Uptime,
	}
	var sources []domain.MetricSource
	sourceURLs := map[string]string{}
	for _, name := range domain.AllSources {
		ep := endpoints[name]
		if ep.BaseURL == "" {
			log.Printf("[daemon] source %s has no base_url configured, skipping", name)
			continue
		}
		sources = append(sources, source.New(source.Config{
			Name:    name,
			BaseURL: ep.BaseURL,
			APIKey:  ep.APIKey,
		}))
		sourceURLs[string(name)] = ep.BaseURL
	}

	// Detection and classification
	detCfg := detector.DefaultConfig()
	if cfg.Engine.CurrentWindowDays > 0 {
		detCfg.CurrentWindowDays = cfg.Engine.CurrentWindowDays
	}
	if cfg.Engine.BaselineWindowDays > 0 {
		detCfg.BaselineWindowDays = cfg.Engine.BaselineWindowDays
	}
	if cfg.Engine.MinSamples > 0 {
		detCfg.MinSamples = cfg.Engine.MinSamples
	}
	if cfg.Engine.MildZ > 0 {
		detCfg.MildZ = cfg.Engine.MildZ
	}
	if cfg.Engine.ModerateZ > 0 {
		detCfg.ModerateZ = cfg.Engine.ModerateZ
	}
	if cfg.Engine.SevereZ > 0 {
		detCfg.SevereZ = cfg.Engine.SevereZ
	}
	if len(cfg.Engine.InvertedMetrics) > 0 {
		detCfg.InvertedMetrics = map[string]bool{}
		for _, m := range cfg.Engine.InvertedMetrics {
			detCfg.InvertedMetrics[m] = true
		}
	}
	det := detector.New(db, detCfg)

	cls := classifier.New(classifier.DefaultConfig())
	if cfg.Integrations.CorroborationURL != "" {
		cls.SetCorroboration(integration.NewContentCheck(cfg.Integrations.CorroborationURL))
	}

	// Ticketing and notification
	gen := ticket.New(db)
	slack := notify.NewSlack(cfg.Notify.SlackToken, cfg.Notify.SlackChannel)
	var notifier run.Notifier
	if slack.Enabled() {
		notifier = slack
	}

	// Runner
	runCfg := run.DefaultConfig()
	runCfg.FetchTimeout = parseDuration(cfg.Engine.FetchTimeout, runCfg.FetchTimeout)
	runner := run.New(runCfg, db, sources, det, cls, gen, notifier)

	// Fix-plan orchestrator
	planCfg := fixplan.DefaultConfig()
	planCfg.Cooldown = parseDuration(cfg.Plans.Cooldown, planCfg.Cooldown)
	planCfg.PlanTTL = parseDuration(cfg.Plans.TTL, planCfg.PlanTTL)
	if cfg.Plans.MaxItems > 0 {
		planCfg.MaxItems = cfg.Plans.MaxItems
	}
	var executor domain.ChangeExecutor = integration.DisabledExecutor{}
	if cfg.Integrations.ExecutorURL != "" {
		executor = integration.NewWebhookExecutor(cfg.Integrations.ExecutorURL, cfg.Integrations.ExecutorToken)
	}
	plans := fixplan.New(planCfg, db, db, executor)

	// API server
	srv := api.NewServer(db, runner, plans)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}
	checker := health.NewChecker(db, dataDir, sourceURLs)
	srv.SetHealth(checker)

	return &Daemon{
		Config: cfg,
		DB:     db,
		Runner: runner,
		Plans:  plans,
		Server: srv,
		Health: checker,
	}, nil
}

// Serve starts the HTTP server, health loop, and run schedule, blocking
// until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go d.Health.Run(ctx)

	if err := d.startSchedule(ctx); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", d.Config.Server.Host, d.Config.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute, // run triggers are synchronous
		IdleTimeout:  2 * time.Minute,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if d.cronRunner != nil {
			<-d.cronRunner.Stop().Done()
		}
		_ = httpServer.Shutdown(shutdownCtx)
		_ = d.DB.Close()
	}()

	fmt.Printf("Searchlight serving on http://%s\n", addr)
	if d.Config.Schedule.Cron != "" && len(d.Config.Schedule.Sites) > 0 {
		fmt.Printf("  Schedule: %q for %d site(s)\n", d.Config.Schedule.Cron, len(d.Config.Schedule.Sites))
	}
	if d.Config.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// startSchedule arms the cron trigger for automatic daily runs. A missing
// cron expression or empty site list disables scheduling.
func (d *Daemon) startSchedule(ctx context.Context) error {
	if d.Config.Schedule.Cron == "" || len(d.Config.Schedule.Sites) == 0 {
		return nil
	}

	c := cron.New()
	sites := d.Config.Schedule.Sites
	_, err := c.AddFunc(d.Config.Schedule.Cron, func() {
		for _, siteID := range sites {
			if _, err := d.Runner.Execute(ctx, siteID, false); err != nil {
				log.Printf("[daemon] scheduled run for %s failed: %v", siteID, err)
			}
		}
	})
	if err != nil {
		return fmt.Errorf("schedule cron %q: %w", d.Config.Schedule.Cron, err)
	}
	c.Start()
	d.cronRunner = c
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.cronRunner != nil {
		d.cronRunner.Stop()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
