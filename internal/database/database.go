package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"fieldbook/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

type DB struct {
	*sql.DB
	mu          sync.RWMutex
	venuesCache map[int64]models.Venue
	sortedCache []models.Venue
	logger      *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	// Создаем директорию для БД, если её нет
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Одно соединение: пул на :memory: дал бы каждой сессии свою пустую БД,
	// а конкурентные транзакции на файле - SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{DB: db, venuesCache: make(map[int64]models.Venue), logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Таблица бронирований. Времена хранятся в UTC, поэтому сравнение
		// DATETIME-строк в запросах корректно хронологически.
		`CREATE TABLE IF NOT EXISTS reservations (
            id TEXT PRIMARY KEY,
            code TEXT UNIQUE NOT NULL,
            venue_id INTEGER NOT NULL,
            venue_name TEXT NOT NULL,
            player_id INTEGER NOT NULL,
            player_name TEXT NOT NULL,
            phone TEXT,
            start_time DATETIME NOT NULL,
            end_time DATETIME NOT NULL,
            price INTEGER NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'pending',
            comment TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            version INTEGER NOT NULL DEFAULT 1
        )`,

		// Очередь уведомлений
		`CREATE TABLE IF NOT EXISTS notify_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            kind TEXT NOT NULL,
            reservation_id TEXT NOT NULL,
            payload TEXT,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_reservations_venue_id ON reservations(venue_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_start_time ON reservations(start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_player_id ON reservations(player_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notify_queue_status ON notify_queue(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// SetVenues устанавливает справочник площадок из конфигурации
func (db *DB) SetVenues(venues []models.Venue) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.venuesCache = make(map[int64]models.Venue, len(venues))
	for _, v := range venues {
		db.venuesCache[v.ID] = v
	}
	db.sortedCache = venues
}

// GetVenueByID возвращает площадку по ID
func (db *DB) GetVenueByID(ctx context.Context, id int64) (*models.Venue, error) {
	db.mu.RLock()
	venue, ok := db.venuesCache[id]
	db.mu.RUnlock()
	if !ok {
		return nil, ErrVenueNotFound
	}
	return &venue, nil
}

// GetActiveVenues возвращает активные площадки в порядке сортировки
func (db *DB) GetActiveVenues(ctx context.Context) ([]models.Venue, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var venues []models.Venue
	for _, v := range db.sortedCache {
		if v.IsActive {
			venues = append(venues, v)
		}
	}
	return venues, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}
