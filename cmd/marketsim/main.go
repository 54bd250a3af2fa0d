// Command marketsim runs the commodity market simulation service: a fixed
// roster of countries producing, consuming and trading one resource, turn by
// turn, with the event log persisted locally and optionally published
// upstream.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bruno7317/cloudweave-sim/internal/api"
	"github.com/bruno7317/cloudweave-sim/internal/config"
	"github.com/bruno7317/cloudweave-sim/internal/country"
	"github.com/bruno7317/cloudweave-sim/internal/engine"
	"github.com/bruno7317/cloudweave-sim/internal/gateway"
	"github.com/bruno7317/cloudweave-sim/internal/market"
	"github.com/bruno7317/cloudweave-sim/internal/persistence"
	"github.com/bruno7317/cloudweave-sim/internal/roster"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	slog.Info("marketsim starting",
		"resource", cfg.ResourceKind,
		"roster_source", cfg.RosterSource,
		"clearing_mode", cfg.ClearingMode,
		"offer_ttl", cfg.OfferTTL,
		"turn_interval", cfg.TurnInterval,
	)

	// ── Roster (fatal on failure) ─────────────────────────────────────
	entries, err := loadRoster(cfg)
	if err != nil {
		slog.Error("roster load failed", "error", err)
		os.Exit(1)
	}
	countries, err := roster.Build(entries)
	if err != nil {
		slog.Error("roster invalid", "error", err)
		os.Exit(1)
	}
	for _, c := range countries {
		s := c.Snapshot()
		slog.Info("country joined",
			"name", s.Name,
			"stockpile", s.Stockpile,
			"money_reserves", s.MoneyReserves,
			"production_rate", s.ProductionRate,
			"consumption_rate", s.ConsumptionRate,
		)
	}

	// ── Event store (best effort) ─────────────────────────────────────
	var db *persistence.DB
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		slog.Warn("cannot create data directory", "error", err)
	}
	db, err = persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Warn("event store unavailable, continuing without persistence", "error", err)
		db = nil
	} else {
		defer db.Close()
		slog.Info("event store opened", "path", cfg.DBPath)
	}

	var upstream *gateway.Client
	if cfg.EventsURL != "" {
		upstream = gateway.NewClient(cfg.EventsURL)
		slog.Info("event publishing enabled", "url", cfg.EventsURL)
	}

	// ── Simulation ────────────────────────────────────────────────────
	tm := engine.NewTurnManager(countries, market.NewBook(), engine.TurnConfig{
		Resource: cfg.ResourceKind,
		OfferTTL: cfg.OfferTTL,
		Clearing: engine.ClearingMode(cfg.ClearingMode),
	})

	eng := engine.NewEngine(tm, cfg.TurnInterval)
	eng.OnTurn = func(turn int, events []engine.Event) {
		var totalStock, totalMoney int64
		for _, c := range countries {
			s := c.Snapshot()
			totalStock += int64(s.Stockpile)
			totalMoney += int64(s.MoneyReserves)
		}
		slog.Info("turn complete",
			"turn", turn,
			"events", len(events),
			"total_stockpile", humanize.Comma(totalStock),
			"total_money", humanize.Comma(totalMoney),
		)

		if db != nil {
			if err := db.SaveTurn(turn, countries, events); err != nil {
				slog.Warn("event store save failed", "turn", turn, "error", err)
			}
		}
		if upstream != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := upstream.PostEvents(ctx, events); err != nil {
				slog.Warn("event post failed", "turn", turn, "error", err)
			}
			cancel()
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	apiServer := &api.Server{Eng: eng, DB: db, Port: cfg.Port}
	apiServer.Start()

	// ── Run ───────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if cfg.TurnInterval > 0 {
		go func() {
			sig := <-sigCh
			slog.Info("received signal, shutting down", "signal", sig)
			eng.Stop()
		}()
		eng.Run()
	} else {
		slog.Info("automatic turn loop disabled, step with POST /api/v1/turn")
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
	}

	slog.Info("simulation stopped", "turn", tm.Turn())
}

// loadRoster resolves the configured roster source into country parameters.
func loadRoster(cfg *config.Config) ([]country.Options, error) {
	switch cfg.RosterSource {
	case config.RosterGraphQL:
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return gateway.NewClient(cfg.GraphQLURL).FetchCountries(ctx)
	case config.RosterSynthetic:
		return roster.Generate(cfg.SyntheticSeed, cfg.SyntheticCountries)
	default:
		return roster.Static(), nil
	}
}

func logLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
