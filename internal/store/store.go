// Package store persists cash-game definitions and completed hand
// histories in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"github.com/lox/cardroom/internal/phh"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// CashGame is the persisted definition of one cash-game table.
type CashGame struct {
	Name             string
	Variant          string
	SeatCount        int
	Ante             int
	SmallBlind       int
	BigBlind         int
	MinBet           int
	MinStartingStack int
	MaxStartingStack int
	AllowRatHoling   bool
	Seed             int64
	Active           bool
}

// HandRecord is a stored hand history.
type HandRecord struct {
	ID        int64
	Table     string
	HandID    string
	CreatedAt time.Time
	Hand      *phh.HandHistory
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS cash_games (
			name TEXT PRIMARY KEY,
			variant TEXT NOT NULL,
			seat_count INTEGER NOT NULL,
			ante INTEGER NOT NULL DEFAULT 0,
			small_blind INTEGER NOT NULL,
			big_blind INTEGER NOT NULL,
			min_bet INTEGER NOT NULL,
			min_starting_stack INTEGER NOT NULL,
			max_starting_stack INTEGER NOT NULL,
			allow_rat_holing INTEGER NOT NULL DEFAULT 0,
			seed INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create cash_games: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS hand_histories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			table_name TEXT NOT NULL,
			hand_id TEXT NOT NULL UNIQUE,
			phh TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create hand_histories: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS hand_histories_table ON hand_histories (table_name, id)`)
	if err != nil {
		return fmt.Errorf("create hand_histories index: %w", err)
	}
	return nil
}

// SaveCashGame inserts or replaces a cash game by name.
func (s *Store) SaveCashGame(ctx context.Context, g CashGame) error {
	if g.Name == "" {
		return errors.New("store: cash game name is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cash_games (name, variant, seat_count, ante, small_blind, big_blind, min_bet,
			min_starting_stack, max_starting_stack, allow_rat_holing, seed, active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			variant = excluded.variant,
			seat_count = excluded.seat_count,
			ante = excluded.ante,
			small_blind = excluded.small_blind,
			big_blind = excluded.big_blind,
			min_bet = excluded.min_bet,
			min_starting_stack = excluded.min_starting_stack,
			max_starting_stack = excluded.max_starting_stack,
			allow_rat_holing = excluded.allow_rat_holing,
			seed = excluded.seed,
			active = excluded.active,
			updated_at = CURRENT_TIMESTAMP
	`, g.Name, g.Variant, g.SeatCount, g.Ante, g.SmallBlind, g.BigBlind, g.MinBet,
		g.MinStartingStack, g.MaxStartingStack, g.AllowRatHoling, g.Seed, g.Active)
	if err != nil {
		return fmt.Errorf("save cash game %s: %w", g.Name, err)
	}
	return nil
}

// SetCashGameActive toggles whether the gamemaster should run a cash game.
func (s *Store) SetCashGameActive(ctx context.Context, name string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE cash_games SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE name = ?`, active, name)
	if err != nil {
		return fmt.Errorf("update cash game %s: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("cash game %s: %w", name, ErrNotFound)
	}
	return nil
}

// LoadCashGames returns every cash game ordered by name.
func (s *Store) LoadCashGames(ctx context.Context) ([]CashGame, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, variant, seat_count, ante, small_blind, big_blind, min_bet,
			min_starting_stack, max_starting_stack, allow_rat_holing, seed, active
		FROM cash_games ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("load cash games: %w", err)
	}
	defer rows.Close()

	var games []CashGame
	for rows.Next() {
		var g CashGame
		if err := rows.Scan(&g.Name, &g.Variant, &g.SeatCount, &g.Ante, &g.SmallBlind, &g.BigBlind, &g.MinBet,
			&g.MinStartingStack, &g.MaxStartingStack, &g.AllowRatHoling, &g.Seed, &g.Active); err != nil {
			return nil, fmt.Errorf("scan cash game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// AppendHandHistory stores a completed hand.
func (s *Store) AppendHandHistory(ctx context.Context, hand *phh.HandHistory) error {
	data, err := phh.EncodeToBytes(hand)
	if err != nil {
		return err
	}
	created := hand.Timestamp
	if created.IsZero() {
		created = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO hand_histories (table_name, hand_id, phh, created_at) VALUES (?, ?, ?, ?)`,
		hand.Table, hand.HandID, string(data), created.UTC())
	if err != nil {
		return fmt.Errorf("append hand %s: %w", hand.HandID, err)
	}
	return nil
}

// HandHistories returns the most recent hands of a table, newest first. An
// empty table name matches every table; limit <= 0 means no limit.
func (s *Store) HandHistories(ctx context.Context, table string, limit int) ([]HandRecord, error) {
	query := `SELECT id, table_name, hand_id, phh, created_at FROM hand_histories`
	var args []any
	if table != "" {
		query += ` WHERE table_name = ?`
		args = append(args, table)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query hand histories: %w", err)
	}
	defer rows.Close()

	var records []HandRecord
	for rows.Next() {
		rec, err := scanHand(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// HandHistory returns one hand by its hand identifier.
func (s *Store) HandHistory(ctx context.Context, handID string) (HandRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, table_name, hand_id, phh, created_at FROM hand_histories WHERE hand_id = ?`, handID)
	rec, err := scanHand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return HandRecord{}, fmt.Errorf("hand %s: %w", handID, ErrNotFound)
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHand(row scanner) (HandRecord, error) {
	var (
		rec  HandRecord
		data string
	)
	if err := row.Scan(&rec.ID, &rec.Table, &rec.HandID, &data, &rec.CreatedAt); err != nil {
		return HandRecord{}, err
	}
	hand, err := phh.DecodeBytes([]byte(data))
	if err != nil {
		return HandRecord{}, fmt.Errorf("hand %s: %w", rec.HandID, err)
	}
	rec.Hand = hand
	return rec, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
