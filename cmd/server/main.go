package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dmelton/go-jukebox/internal/api"
	"github.com/dmelton/go-jukebox/internal/config"
	"github.com/dmelton/go-jukebox/internal/database"
	"github.com/dmelton/go-jukebox/internal/playback"
	"github.com/dmelton/go-jukebox/internal/stats"
	_ "github.com/lib/pq"
)

const defaultSigningKey = "Cq4ib9hMZXzUPLnDZ1sCHZI0PNFavzGBCczEcS0Kb7o="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	signingKey     string
	allowedOrigins stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable", "database connection string")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[go-jukebox] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgJukeboxRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := dbConn.Migrate(); err != nil {
		logger.Fatal("db migrate:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)
	statsUpdater.RegisterMetric(stats.ActiveConnections)
	statsUpdater.RegisterMetric(stats.ActiveTimers)
	statsUpdater.RegisterMetric(stats.BroadcastsSent)
	statsUpdater.RegisterMetric(stats.AutoAdvances)

	fanout := playback.NewFanout(logger, statsUpdater)
	coordinator := playback.NewCoordinator(logger, dbConn, fanout, statsUpdater)

	srv := api.NewJukeboxApp(mux, logger, coordinator, fanout, dbConn, statsUpdater, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	// pick up sessions that were mid-track when the last process stopped
	if err := coordinator.Recover(); err != nil {
		logger.Fatal("recover playback state:", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("stopping playback timers...")
	coordinator.Shutdown()

	logger.Println("shutdown complete")
}
