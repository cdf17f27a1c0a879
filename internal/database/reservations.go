package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fieldbook/internal/models"
)

const reservationColumns = `id, code, venue_id, venue_name, player_id, player_name, phone,
                 start_time, end_time, price, status, comment, created_at, updated_at, version`

func scanReservation(row interface{ Scan(...any) error }) (*models.Reservation, error) {
	var r models.Reservation
	err := row.Scan(
		&r.ID, &r.Code, &r.VenueID, &r.VenueName, &r.PlayerID, &r.PlayerName, &r.Phone,
		&r.StartTime, &r.EndTime, &r.Price, &r.Status, &r.Comment, &r.CreatedAt, &r.UpdatedAt, &r.Version,
	)
	if err != nil {
		return nil, err
	}
	r.StartTime = r.StartTime.UTC()
	r.EndTime = r.EndTime.UTC()
	return &r, nil
}

// FindOverlapping returns the first active reservation on the venue whose
// interval intersects [start, end), or nil when the interval is free.
// Intervals are half-open: a reservation ending exactly at start (or
// starting exactly at end) is not a conflict.
func (db *DB) FindOverlapping(ctx context.Context, venueID int64, start, end time.Time) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
              WHERE venue_id = ? AND status IN (?, ?)
              AND start_time < ? AND end_time > ?
              ORDER BY start_time LIMIT 1`
	row := db.QueryRowContext(ctx, query, venueID,
		models.StatusPending, models.StatusConfirmed, end.UTC(), start.UTC())

	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping reservation: %w", err)
	}
	return r, nil
}

func (db *DB) CreateReservation(ctx context.Context, r *models.Reservation) error {
	query := `INSERT INTO reservations (
				id, code, venue_id, venue_name, player_id, player_name, phone,
				start_time, end_time, price, status, comment, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, query,
		r.ID,
		r.Code,
		r.VenueID,
		r.VenueName,
		r.PlayerID,
		r.PlayerName,
		r.Phone,
		r.StartTime.UTC(),
		r.EndTime.UTC(),
		r.Price,
		r.Status,
		r.Comment,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	r.CreatedAt = now
	r.UpdatedAt = now
	r.Version = 1
	return nil
}

// CreateReservationWithLock checks for interval conflicts and inserts the
// reservation inside one transaction, so two concurrent creates for the
// same venue cannot both pass the check.
func (db *DB) CreateReservationWithLock(ctx context.Context, r *models.Reservation) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 1. Conflict check inside the transaction
	queryCheck := `SELECT id, code FROM reservations
                   WHERE venue_id = ? AND status IN (?, ?)
                   AND start_time < ? AND end_time > ?
                   ORDER BY start_time LIMIT 1`
	var blockingID, blockingCode string
	err = tx.QueryRowContext(ctx, queryCheck, r.VenueID,
		models.StatusPending, models.StatusConfirmed,
		r.EndTime.UTC(), r.StartTime.UTC()).Scan(&blockingID, &blockingCode)
	if err == nil {
		return &ConflictError{BlockingID: blockingID, BlockingCode: blockingCode}
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check conflicts in tx: %w", err)
	}

	// 2. Insert the reservation
	queryInsert := `INSERT INTO reservations (
				id, code, venue_id, venue_name, player_id, player_name, phone,
				start_time, end_time, price, status, comment, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, queryInsert,
		r.ID,
		r.Code,
		r.VenueID,
		r.VenueName,
		r.PlayerID,
		r.PlayerName,
		r.Phone,
		r.StartTime.UTC(),
		r.EndTime.UTC(),
		r.Price,
		r.Status,
		r.Comment,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reservation in tx: %w", err)
	}

	r.CreatedAt = now
	r.UpdatedAt = now
	r.Version = 1

	return tx.Commit()
}

func (db *DB) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	r, err := scanReservation(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return r, nil
}

func (db *DB) GetReservationByCode(ctx context.Context, code string) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE code = ?`
	r, err := scanReservation(db.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation by code: %w", err)
	}
	return r, nil
}

// CodeExists reports whether a reservation code is already taken.
func (db *DB) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE code = ?`, code).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check code uniqueness: %w", err)
	}
	return count > 0, nil
}

func (db *DB) UpdateReservationStatusWithVersion(ctx context.Context, id string, fromVersion int64, status string) error {
	query := `UPDATE reservations SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now().UTC(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// GetActiveReservationsForRange returns pending and confirmed reservations
// on the venue intersecting [start, end), ascending by start time.
func (db *DB) GetActiveReservationsForRange(ctx context.Context, venueID int64, start, end time.Time) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
              WHERE venue_id = ? AND status IN (?, ?)
              AND start_time < ? AND end_time > ?
              ORDER BY start_time ASC`
	rows, err := db.QueryContext(ctx, query, venueID,
		models.StatusPending, models.StatusConfirmed, end.UTC(), start.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get active reservations: %w", err)
	}
	defer rows.Close()

	var reservations []*models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

func (db *DB) GetReservationsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
              WHERE start_time >= ? AND start_time < ?
              ORDER BY start_time ASC`
	rows, err := db.QueryContext(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get reservations by date range: %w", err)
	}
	defer rows.Close()

	var reservations []*models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

func (db *DB) GetPlayerReservations(ctx context.Context, playerID int64) ([]*models.Reservation, error) {
	// История за последние 2 недели и все будущие брони
	twoWeeksAgo := time.Now().UTC().AddDate(0, 0, -14)
	query := `SELECT ` + reservationColumns + ` FROM reservations
              WHERE player_id = ? AND start_time >= ?
              ORDER BY start_time DESC`
	rows, err := db.QueryContext(ctx, query, playerID, twoWeeksAgo)
	if err != nil {
		return nil, fmt.Errorf("failed to get player reservations: %w", err)
	}
	defer rows.Close()

	var reservations []*models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

// GetDailyReservations groups reservations by calendar day for a period.
func (db *DB) GetDailyReservations(ctx context.Context, start, end time.Time) (map[string][]*models.Reservation, error) {
	reservations, err := db.GetReservationsByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	daily := make(map[string][]*models.Reservation)
	for _, r := range reservations {
		dateKey := r.StartTime.Format("2006-01-02")
		daily[dateKey] = append(daily[dateKey], r)
	}
	return daily, nil
}
