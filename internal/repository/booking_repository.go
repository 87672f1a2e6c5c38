package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/bar-booking/internal/model"
)

// BookingRepo provides persistence for bookings.  Timestamps are stored as
// DATETIME in the bar's local zone; the driver's loc parameter makes them
// round-trip as time.Time values in that zone.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, user_id, table_id, zone_id, booking_type, time_slot, booking_date, guest_count,
	fee, status, payment_id, payment_ref, qr_token, checked_in_at, created_at, updated_at`

// Create inserts b and populates its generated ID.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings (user_id, table_id, zone_id, booking_type, time_slot, booking_date, guest_count,
		fee, status, payment_id, payment_ref, qr_token, checked_in_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := conn(ctx, r.db).ExecContext(ctx, q,
		b.UserID, b.TableID, b.ZoneID, string(b.Type), string(b.TimeSlot), b.BookingDate, b.GuestCount,
		b.Fee, string(b.Status), b.PaymentID, b.PaymentRef, b.QRToken, b.CheckedInAt, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// GetByID loads a booking without locking it.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	return scanBooking(row)
}

// GetForUpdate loads a booking and holds its row lock until the enclosing
// transaction ends.  It must be called inside TxManager.WithinTx.
func (r *BookingRepo) GetForUpdate(ctx context.Context, id uint64) (*model.Booking, error) {
	if !inTx(ctx) {
		return nil, errors.New("GetForUpdate requires a transaction")
	}
	row := conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ? FOR UPDATE`, id)
	return scanBooking(row)
}

// Update writes the mutable lifecycle columns of b.
func (r *BookingRepo) Update(ctx context.Context, b *model.Booking) error {
	const q = `UPDATE bookings SET status = ?, payment_id = ?, payment_ref = ?, qr_token = ?, checked_in_at = ?, updated_at = ?
		WHERE id = ?`
	res, err := conn(ctx, r.db).ExecContext(ctx, q,
		string(b.Status), b.PaymentID, b.PaymentRef, b.QRToken, b.CheckedInAt, b.UpdatedAt, b.ID,
	)
	if err != nil {
		return fmt.Errorf("update booking %d: %w", b.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser returns the user's bookings, most recent sitting first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY booking_date DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	return scanBookings(rows)
}

// ListConfirmedBefore returns CONFIRMED bookings whose slot started before
// cutoff, oldest first.  It is a coarse filter; callers recheck each
// booking's exact grace deadline.
func (r *BookingRepo) ListConfirmedBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.Booking, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE status = ? AND booking_date < ? ORDER BY booking_date ASC, id ASC LIMIT ?`,
		string(model.StatusConfirmed), cutoff, limit)
	if err != nil {
		return nil, err
	}
	return scanBookings(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var (
		b                   model.Booking
		tableID, zoneID     sql.NullInt64
		paymentID           sql.NullInt64
		paymentRef, qrToken sql.NullString
		checkedInAt         sql.NullTime
		bookingType, slot   string
		status              string
	)
	err := row.Scan(&b.ID, &b.UserID, &tableID, &zoneID, &bookingType, &slot, &b.BookingDate, &b.GuestCount,
		&b.Fee, &status, &paymentID, &paymentRef, &qrToken, &checkedInAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	b.Type = model.BookingType(bookingType)
	b.TimeSlot = model.TimeSlot(slot)
	b.Status = model.BookingStatus(status)
	b.TableID = nullUint64(tableID)
	b.ZoneID = nullUint64(zoneID)
	b.PaymentID = nullUint64(paymentID)
	if paymentRef.Valid {
		b.PaymentRef = &paymentRef.String
	}
	if qrToken.Valid {
		b.QRToken = &qrToken.String
	}
	if checkedInAt.Valid {
		b.CheckedInAt = &checkedInAt.Time
	}
	return &b, nil
}

func scanBookings(rows *sql.Rows) ([]model.Booking, error) {
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func nullUint64(v sql.NullInt64) *uint64 {
	if !v.Valid {
		return nil
	}
	u := uint64(v.Int64)
	return &u
}
