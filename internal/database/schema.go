package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema lists the tables owned by the booking service.  Statements are
// idempotent so Migrate can run on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS bookings (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		user_id       BIGINT UNSIGNED NOT NULL,
		table_id      BIGINT UNSIGNED NULL,
		zone_id       BIGINT UNSIGNED NULL,
		booking_type  VARCHAR(20)     NOT NULL,
		time_slot     VARCHAR(20)     NOT NULL,
		booking_date  DATETIME        NOT NULL,
		guest_count   INT             NOT NULL,
		fee           BIGINT          NOT NULL,
		status        VARCHAR(20)     NOT NULL,
		payment_id    BIGINT UNSIGNED NULL,
		payment_ref   VARCHAR(128)    NULL,
		qr_token      VARCHAR(64)     NULL,
		checked_in_at DATETIME(6)     NULL,
		created_at    DATETIME(6)     NOT NULL,
		updated_at    DATETIME(6)     NOT NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uq_bookings_qr_token (qr_token),
		KEY idx_bookings_user (user_id, booking_date),
		KEY idx_bookings_status_date (status, booking_date)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id           BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		event_type   VARCHAR(40)     NOT NULL,
		booking_id   BIGINT UNSIGNED NOT NULL,
		payload      JSON            NOT NULL,
		processed    TINYINT(1)      NOT NULL DEFAULT 0,
		processed_at DATETIME(6)     NULL,
		created_at   DATETIME(6)     NOT NULL,
		PRIMARY KEY (id),
		KEY idx_outbox_pending (processed, created_at, id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS check_ins (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		booking_id    BIGINT UNSIGNED NOT NULL,
		qr_token      VARCHAR(64)     NOT NULL DEFAULT '',
		checked_in_at DATETIME(6)     NOT NULL,
		staff_id      BIGINT UNSIGNED NOT NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uq_check_ins_booking (booking_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
