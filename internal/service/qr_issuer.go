package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/iliyamo/bar-booking/internal/logging"
	"github.com/iliyamo/bar-booking/internal/model"
)

// QRIssuer mints the token printed on a booking's QR code and keeps the
// Redis index pointing at the booking.  The token itself is stored on the
// booking row inside the confirming transaction.  The index is written
// after commit, so a failed index write is repaired by the next Refresh.
type QRIssuer struct {
	index    TokenIndex
	newToken func() (string, error)
}

func NewQRIssuer(index TokenIndex) *QRIssuer {
	return &QRIssuer{index: index, newToken: func() (string, error) { return randomToken(32) }}
}

// Mint gives b a token unless it already has one and returns b's token.
func (q *QRIssuer) Mint(b *model.Booking) (string, error) {
	if b.QRToken != nil {
		return *b.QRToken, nil
	}
	tok, err := q.newToken()
	if err != nil {
		return "", err
	}
	return b.AssignQRToken(tok), nil
}

// Refresh (re)writes the index entry of a ticketed booking, renewing its
// TTL.  It returns model.ErrNotFound when b carries no active token.
func (q *QRIssuer) Refresh(ctx context.Context, b *model.Booking) (string, error) {
	tok, ok := b.ActiveQRToken()
	if !ok {
		return "", model.ErrNotFound
	}
	if err := q.index.Put(ctx, tok, b.ID); err != nil {
		return "", err
	}
	return tok, nil
}

// publish is Refresh for post-commit paths where a cache failure must not
// fail the already committed operation.
func (q *QRIssuer) publish(ctx context.Context, b *model.Booking) {
	if _, err := q.Refresh(ctx, b); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("booking_id", b.ID).Warn("qr: could not index token")
	}
}

// revoke drops the index entry of a booking that can no longer be scanned.
func (q *QRIssuer) revoke(ctx context.Context, b *model.Booking) {
	if b.QRToken == nil {
		return
	}
	if err := q.index.Delete(ctx, *b.QRToken); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("booking_id", b.ID).Warn("qr: could not revoke token")
	}
}

// randomToken returns a hex-encoded string of n random bytes.
func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
