// Package persistence provides SQLite-based storage for the simulation's
// output: the append-only event log plus a snapshot of country state. The
// store is a best-effort sink — a failed write is logged by the host and
// never affects the turn that produced it.
package persistence

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/bruno7317/cloudweave-sim/internal/country"
	"github.com/bruno7317/cloudweave-sim/internal/engine"
)

// DB wraps a SQLite connection for simulation output storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		turn INTEGER NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		resource TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price INTEGER NOT NULL DEFAULT 0,
		counterparty TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS countries (
		name TEXT PRIMARY KEY,
		stockpile INTEGER NOT NULL,
		money_reserves INTEGER NOT NULL,
		production_rate INTEGER NOT NULL,
		consumption_rate INTEGER NOT NULL,
		instability INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sim_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_turn ON events(turn);
	CREATE INDEX IF NOT EXISTS idx_events_actor ON events(actor);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveEvents appends a turn's events to the log.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO events
		(turn, actor, action, resource, quantity, unit_price, counterparty)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(e.Turn, e.Actor, string(e.Action), e.Resource, e.Quantity, e.UnitPrice, e.Counterparty); err != nil {
			return fmt.Errorf("insert event turn=%d actor=%s: %w", e.Turn, e.Actor, err)
		}
	}

	return tx.Commit()
}

// SaveCountries writes the current country snapshots (full replace).
func (db *DB) SaveCountries(countries []*country.Country) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM countries"); err != nil {
		return err
	}

	for _, c := range countries {
		s := c.Snapshot()
		_, err := tx.Exec(`INSERT INTO countries
			(name, stockpile, money_reserves, production_rate, consumption_rate, instability)
			VALUES (?, ?, ?, ?, ?, ?)`,
			s.Name, s.Stockpile, s.MoneyReserves, s.ProductionRate, s.ConsumptionRate, s.Instability,
		)
		if err != nil {
			return fmt.Errorf("insert country %s: %w", s.Name, err)
		}
	}

	return tx.Commit()
}

// SaveMeta stores a key-value pair in simulation metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO sim_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM sim_meta WHERE key = ?", key)
	return value, err
}

// SaveTurn performs a full save of one completed turn's output.
func (db *DB) SaveTurn(turn int, countries []*country.Country, events []engine.Event) error {
	if err := db.SaveEvents(events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if err := db.SaveCountries(countries); err != nil {
		return fmt.Errorf("save countries: %w", err)
	}
	if err := db.SaveMeta("last_turn", strconv.Itoa(turn)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	slog.Debug("turn saved", "turn", turn, "events", len(events))
	return nil
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		`SELECT turn, actor, action, resource, quantity, unit_price, counterparty
		 FROM events ORDER BY id DESC LIMIT ?`,
		limit,
	)
	return events, err
}
