// Command broker-updater drives one ingestion pass: load the collectors
// config, register collectors with the catalog store, scrape every
// collector under the requested crawl mode, and backfill exact sizes for
// whatever the scrape left unverified.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/bgpkit/broker-updater/internal/catalog"
	"github.com/bgpkit/broker-updater/internal/config"
	"github.com/bgpkit/broker-updater/internal/httpclient"
	"github.com/bgpkit/broker-updater/internal/metrics"
	"github.com/bgpkit/broker-updater/internal/notify"
	"github.com/bgpkit/broker-updater/internal/orchestrator"
	"github.com/bgpkit/broker-updater/internal/report"
	"github.com/bgpkit/broker-updater/internal/scraper"
	"github.com/bgpkit/broker-updater/internal/store"
	"github.com/bgpkit/broker-updater/internal/store/postgres"
	"github.com/bgpkit/broker-updater/internal/store/sqlite"
	"github.com/bgpkit/broker-updater/internal/verify"
)

func main() {
	var (
		collectorsConfig = flag.String("collectors-config", "", "path to the collectors JSON config")
		collectorID      = flag.String("collector-id", "", "scrape only this collector (default: all)")
		mode             = flag.String("mode", "latest", "crawl mode: latest, two_months, or bootstrap")
		dbDriver         = flag.String("db-driver", "sqlite", "catalog store backend: sqlite or postgres")
		dbDSN            = flag.String("db-dsn", "broker.db", "store DSN (sqlite file path or postgres connection string)")
		notifySink       = flag.String("notify-sink", "", "notification sink: json, csv, or empty to disable")
		notifyPath       = flag.String("notify-path", "notifications.ndjson", "output path for json/csv notification sinks")
		metricsPort      = flag.Int("metrics-port", 9464, "port for the /metrics HTTP endpoint, 0 to disable")
		skipVerify       = flag.Bool("skip-verify", false, "skip the post-scrape size verification backfill")
	)
	flag.Parse()

	logger := slog.Default()

	if *collectorsConfig == "" {
		logger.Error("missing required flag", "flag", "-collectors-config")
		os.Exit(1)
	}

	crawlMode, err := catalog.ParseCrawlMode(*mode)
	if err != nil {
		logger.Error("invalid crawl mode", "mode", *mode, "error", err)
		os.Exit(1)
	}

	f, err := os.Open(*collectorsConfig)
	if err != nil {
		logger.Error("open collectors config", "path", *collectorsConfig, "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load(f)
	f.Close()
	if err != nil {
		logger.Error("load collectors config", "error", err)
		os.Exit(1)
	}

	collectors := cfg.Collectors
	if *collectorID != "" {
		collectors = filterCollector(collectors, *collectorID)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	backend, err := openBackend(*dbDriver, *dbDSN)
	if err != nil {
		logger.Error("open catalog store", "driver", *dbDriver, "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	if err := backend.RegisterCollectors(ctx, collectors); err != nil {
		logger.Error("register collectors", "error", err)
		os.Exit(1)
	}

	notifier, closeNotifier, err := openNotifier(*notifySink, *notifyPath)
	if err != nil {
		logger.Error("open notifier", "sink", *notifySink, "error", err)
		os.Exit(1)
	}
	if closeNotifier != nil {
		defer closeNotifier()
	}

	var metricsServer *metrics.Server
	if *metricsPort != 0 {
		metricsServer = metrics.Start(*metricsPort)
		defer metricsServer.Stop(context.Background())
	}

	client, err := httpclient.New(httpclient.Config{})
	if err != nil {
		logger.Error("build http client", "error", err)
		os.Exit(1)
	}

	blockingCPUs := runtime.NumCPU() / 2
	if blockingCPUs < 1 {
		blockingCPUs = 1
	}
	logger.Info("using cores for html parsing", "cores", blockingCPUs)

	s := scraper.New(client, backend, notifier, logger)
	o := orchestrator.New(s, logger)

	logger.Info("starting scrape", "collectors", len(collectors), "mode", crawlMode)
	summary := o.Run(ctx, collectors, crawlMode)

	if err := report.WriteText(os.Stdout, summary); err != nil {
		logger.Error("write run summary", "error", err)
	}

	if *skipVerify {
		return
	}

	v := verify.New(client, logger)
	if err := verify.RunBackfill(ctx, backend, v, logger); err != nil {
		logger.Error("verify backfill", "error", err)
		os.Exit(1)
	}
}

func filterCollector(collectors []catalog.Collector, id string) []catalog.Collector {
	var out []catalog.Collector
	for _, c := range collectors {
		if c.ID == id {
			out = append(out, c)
		}
	}
	return out
}

func openBackend(driver, dsn string) (store.Backend, error) {
	switch driver {
	case "sqlite":
		return sqlite.New(dsn)
	case "postgres":
		return postgres.New(context.Background(), dsn)
	default:
		return nil, &unknownDriverError{driver: driver}
	}
}

type unknownDriverError struct{ driver string }

func (e *unknownDriverError) Error() string {
	return "unknown db driver " + e.driver + ", must be sqlite or postgres"
}

func openNotifier(sink, path string) (notify.Notifier, func(), error) {
	switch sink {
	case "":
		return nil, nil, nil
	case "json":
		n, err := notify.NewJSONFileNotifier(path)
		if err != nil {
			return nil, nil, err
		}
		return n, func() { n.Close() }, nil
	case "csv":
		n, err := notify.NewCSVFileNotifier(path)
		if err != nil {
			return nil, nil, err
		}
		return n, func() { n.Close() }, nil
	default:
		return nil, nil, &unknownNotifySinkError{sink: sink}
	}
}

type unknownNotifySinkError struct{ sink string }

func (e *unknownNotifySinkError) Error() string {
	return "unknown notify sink " + e.sink + ", must be json, csv, or empty"
}
