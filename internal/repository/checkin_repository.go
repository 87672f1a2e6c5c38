package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/bar-booking/internal/model"
)

// CheckInRepo provides access to the check_ins table.  booking_id carries a
// unique key, so a second insert for the same booking fails with
// ErrDuplicate.
type CheckInRepo struct {
	db *sql.DB
}

func NewCheckInRepo(db *sql.DB) *CheckInRepo { return &CheckInRepo{db: db} }

// Create inserts c and populates its generated ID.
func (r *CheckInRepo) Create(ctx context.Context, c *model.CheckIn) error {
	const q = `INSERT INTO check_ins (booking_id, qr_token, checked_in_at, staff_id) VALUES (?, ?, ?, ?)`
	res, err := conn(ctx, r.db).ExecContext(ctx, q, c.BookingID, c.QRToken, c.CheckedInAt, c.StaffID)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert check-in: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// GetByBookingID returns the check-in of a booking or ErrNotFound.
func (r *CheckInRepo) GetByBookingID(ctx context.Context, bookingID uint64) (*model.CheckIn, error) {
	const q = `SELECT id, booking_id, qr_token, checked_in_at, staff_id FROM check_ins WHERE booking_id = ?`
	var c model.CheckIn
	err := conn(ctx, r.db).QueryRowContext(ctx, q, bookingID).Scan(&c.ID, &c.BookingID, &c.QRToken, &c.CheckedInAt, &c.StaffID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
