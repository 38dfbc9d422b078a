package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusops/ta-scheduler-api/internal/models"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
)

// RosterRepository persists roster bundles: the roster row plus its
// staff, unavailability, and slot children. Writes run in a single
// transaction so a bundle is either fully stored or absent.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository constructs the repository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// Create stores the roster and all of its children.
func (r *RosterRepository) Create(
	ctx context.Context,
	roster *models.Roster,
	staff []models.StaffMember,
	unavailability []models.UnavailabilityInterval,
	slots []models.Slot,
) error {
	if roster.ID == "" {
		roster.ID = uuid.NewString()
	}
	if roster.CreatedAt.IsZero() {
		roster.CreatedAt = time.Now().UTC()
	}
	roster.StaffCount = len(staff)
	roster.SlotCount = len(slots)
	roster.UnavailabilityCount = len(unavailability)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin roster tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const rosterQuery = `INSERT INTO rosters (id, name, staff_count, slot_count, unavailability_count, created_at)
		VALUES (:id, :name, :staff_count, :slot_count, :unavailability_count, :created_at)`
	if _, err := tx.NamedExecContext(ctx, rosterQuery, roster); err != nil {
		return fmt.Errorf("insert roster: %w", err)
	}

	const staffQuery = `INSERT INTO staff (id, roster_id, name, hired_minutes, created_at)
		VALUES (:id, :roster_id, :name, :hired_minutes, :created_at)`
	for i := range staff {
		staff[i].RosterID = roster.ID
		if staff[i].CreatedAt.IsZero() {
			staff[i].CreatedAt = roster.CreatedAt
		}
		if _, err := tx.NamedExecContext(ctx, staffQuery, staff[i]); err != nil {
			return fmt.Errorf("insert staff %q: %w", staff[i].Name, err)
		}
	}

	const blockQuery = `INSERT INTO unavailability_intervals (id, roster_id, staff_id, day, start_minute, end_minute, created_at)
		VALUES (:id, :roster_id, :staff_id, :day, :start_minute, :end_minute, :created_at)`
	for i := range unavailability {
		unavailability[i].RosterID = roster.ID
		if unavailability[i].CreatedAt.IsZero() {
			unavailability[i].CreatedAt = roster.CreatedAt
		}
		if _, err := tx.NamedExecContext(ctx, blockQuery, unavailability[i]); err != nil {
			return fmt.Errorf("insert unavailability interval: %w", err)
		}
	}

	const slotQuery = `INSERT INTO slots (id, roster_id, label, day, start_minute, end_minute, required, created_at)
		VALUES (:id, :roster_id, :label, :day, :start_minute, :end_minute, :required, :created_at)`
	for i := range slots {
		slots[i].RosterID = roster.ID
		if slots[i].CreatedAt.IsZero() {
			slots[i].CreatedAt = roster.CreatedAt
		}
		if _, err := tx.NamedExecContext(ctx, slotQuery, slots[i]); err != nil {
			return fmt.Errorf("insert slot %q: %w", slots[i].Label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit roster tx: %w", err)
	}
	return nil
}

// FindByID returns the roster row alone.
func (r *RosterRepository) FindByID(ctx context.Context, id string) (*models.Roster, error) {
	const query = `SELECT id, name, staff_count, slot_count, unavailability_count, created_at FROM rosters WHERE id = $1`
	var roster models.Roster
	if err := r.db.GetContext(ctx, &roster, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("roster %q not found", id))
		}
		return nil, fmt.Errorf("find roster: %w", err)
	}
	return &roster, nil
}

// List returns rosters newest first.
func (r *RosterRepository) List(ctx context.Context) ([]models.Roster, error) {
	const query = `SELECT id, name, staff_count, slot_count, unavailability_count, created_at FROM rosters ORDER BY created_at DESC`
	var out []models.Roster
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("list rosters: %w", err)
	}
	return out, nil
}

// Staff returns the staff rows of one roster in insertion order.
func (r *RosterRepository) Staff(ctx context.Context, rosterID string) ([]models.StaffMember, error) {
	const query = `SELECT id, roster_id, name, hired_minutes, created_at FROM staff WHERE roster_id = $1 ORDER BY name`
	var out []models.StaffMember
	if err := r.db.SelectContext(ctx, &out, query, rosterID); err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	return out, nil
}

// Unavailability returns the blocked intervals of one roster.
func (r *RosterRepository) Unavailability(ctx context.Context, rosterID string) ([]models.UnavailabilityInterval, error) {
	const query = `SELECT id, roster_id, staff_id, day, start_minute, end_minute, created_at FROM unavailability_intervals WHERE roster_id = $1`
	var out []models.UnavailabilityInterval
	if err := r.db.SelectContext(ctx, &out, query, rosterID); err != nil {
		return nil, fmt.Errorf("list unavailability: %w", err)
	}
	return out, nil
}

// Slots returns the lab slots of one roster ordered by day and start.
func (r *RosterRepository) Slots(ctx context.Context, rosterID string) ([]models.Slot, error) {
	const query = `SELECT id, roster_id, label, day, start_minute, end_minute, required, created_at FROM slots WHERE roster_id = $1 ORDER BY day, start_minute, label`
	var out []models.Slot
	if err := r.db.SelectContext(ctx, &out, query, rosterID); err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return out, nil
}

// Delete removes a roster and its children.
func (r *RosterRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin roster delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, query := range []string{
		`DELETE FROM unavailability_intervals WHERE roster_id = $1`,
		`DELETE FROM slots WHERE roster_id = $1`,
		`DELETE FROM staff WHERE roster_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, query, id); err != nil {
			return fmt.Errorf("delete roster children: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM rosters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete roster: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("roster %q not found", id))
	}

	return tx.Commit()
}
