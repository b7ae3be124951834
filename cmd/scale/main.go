// Command scale runs the smart-scale daemon: it scans for BLE broadcast
// frames, analyzes and attributes measurements, persists them, and serves
// the HTTP dashboard and API.
//
// Usage:
//
//	scale [-config scale.json] [-listen :8080] [-dev] [-replay capture.pcap]
//	scale migrate <up|down|status|version|force|help>
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/scale.report/internal/api"
	"github.com/banshee-data/scale.report/internal/blescan"
	"github.com/banshee-data/scale.report/internal/config"
	"github.com/banshee-data/scale.report/internal/dashboard"
	"github.com/banshee-data/scale.report/internal/db"
	"github.com/banshee-data/scale.report/internal/fsutil"
	"github.com/banshee-data/scale.report/internal/history"
	"github.com/banshee-data/scale.report/internal/pipeline"
	"github.com/banshee-data/scale.report/internal/profile"
	"github.com/banshee-data/scale.report/internal/publish"
	"github.com/banshee-data/scale.report/internal/timeutil"
	"github.com/banshee-data/scale.report/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to JSON config file")
	listen      = flag.String("listen", "", "HTTP listen address (overrides config)")
	dbPath      = flag.String("db", "", "SQLite mirror database path (overrides config)")
	devMode     = flag.Bool("dev", false, "Run with a synthetic scanner instead of BLE hardware")
	replayFile  = flag.String("replay", "", "Replay BLE frames from a pcap capture instead of scanning")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// devPayload is a stabilized 72.5kg reading with 480 ohm impedance, used
// by -dev so the full pipeline runs without a scale in the room.
var devPayload = []byte{
	0x02, 0x22, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xe0, 0x01, // impedance 480
	0xa4, 0x38, // weight 14500/200 = 72.5
}

func main() {
	// The migrate subcommand manages the SQLite schema and exits.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		runMigrate(os.Args[2:])
		return
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("scale %s (%s)\n", version.Version, version.GitSHA)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	clock := timeutil.RealClock{}

	profiles := profile.NewStore(fsutil.OSFileSystem{}, cfg.ProfilesPath)
	if err := profiles.Reload(); err != nil {
		log.Fatalf("Failed to load user profiles from %s: %v", cfg.ProfilesPath, err)
	}
	log.Printf("Loaded %d user profiles from %s", len(profiles.All()), cfg.ProfilesPath)

	store := history.NewCSVStore(cfg.HistoryCSV, clock)

	var mirrors []history.Store
	if cfg.DBPath != "" {
		database, err := db.NewDB(cfg.DBPath, clock)
		if err != nil {
			log.Fatalf("Failed to open database %s: %v", cfg.DBPath, err)
		}
		defer database.Close()
		mirrors = append(mirrors, database)
		log.Printf("Mirroring measurements to %s", cfg.DBPath)
	}

	scanner, cleanup, err := buildScanner(cfg, clock)
	if err != nil {
		log.Fatalf("Failed to build scanner: %v", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	defaults, err := pipeline.DefaultsFromConfig(cfg)
	if err != nil {
		log.Fatalf("Invalid default analysis parameters: %v", err)
	}

	registry := prometheus.NewRegistry()
	pipelineMetrics := pipeline.NewMetrics(registry)

	pipe := pipeline.New(scanner, profiles, store, defaults,
		time.Duration(cfg.ScanInterval), time.Duration(cfg.Backoff), clock,
		pipeline.Options{Mirrors: mirrors, Metrics: pipelineMetrics})

	var pub publish.Publisher = publish.NopPublisher{}
	if cfg.AMQPAddr != "" {
		pub = publish.NewAMQPPublisher(cfg.AMQPAddr, cfg.AMQPQueue)
		log.Printf("Publishing measurements to %s queue %q", cfg.AMQPAddr, cfg.AMQPQueue)
	}
	defer pub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiServer := api.NewServer(store, profiles, cfg.Units, clock)
	pipe.Observe(apiServer.Broadcast)
	pipe.Observe(func(r history.Record) {
		if err := pub.Publish(ctx, r); err != nil {
			log.Printf("Failed to publish measurement: %v", err)
		}
	})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := pipe.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("Pipeline stopped: %v", err)
		}
	}()

	if cfg.Listen != "" {
		dash := dashboard.NewHandler(store, profiles, cfg.Units, clock)

		mux := http.NewServeMux()
		mux.Handle("/api/", apiServer.ServeMux())
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		mux.Handle("/", dash.ServeMux())

		server := &http.Server{
			Addr:    cfg.Listen,
			Handler: api.LoggingMiddleware(mux),
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("Starting HTTP server on %s", cfg.Listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			log.Println("shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("HTTP server shutdown error: %v", err)
				if err := server.Close(); err != nil {
					log.Printf("HTTP server force close error: %v", err)
				}
			}
		}()
	}

	wg.Wait()
	log.Println("scale daemon stopped")
}

// buildScanner selects the measurement source: pcap replay, the synthetic
// dev scanner, or the real HCI-UART scanner.
func buildScanner(cfg config.Config, clock timeutil.Clock) (blescan.Scanner, func(), error) {
	if *replayFile != "" {
		replay, err := blescan.NewReplayScanner(*replayFile, cfg.DeviceMAC)
		if err != nil {
			return nil, nil, fmt.Errorf("open replay capture: %w", err)
		}
		log.Printf("Replaying BLE frames from %s", *replayFile)
		return replay, func() { replay.Close() }, nil
	}
	if *devMode {
		log.Printf("Dev mode: serving one synthetic measurement")
		return blescan.NewMockScanner(devPayload), nil, nil
	}
	log.Printf("Scanning on %s at %d baud (window %s)",
		cfg.SerialPort, cfg.BaudRate, time.Duration(cfg.ScanWindow))
	scanner := blescan.NewUARTScanner(cfg.SerialPort, cfg.BaudRate, cfg.DeviceMAC,
		time.Duration(cfg.ScanWindow), clock)
	return scanner, nil, nil
}

func runMigrate(args []string) {
	cfg, err := config.Load(os.Getenv("SCALE_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.DBPath == "" {
		log.Fatal("migrate requires a database path (set db_path in the config file or SCALE_DB_PATH)")
	}
	db.RunMigrateCommand(args, cfg.DBPath)
}
