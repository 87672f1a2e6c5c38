package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bar-booking/internal/cache"
	"github.com/iliyamo/bar-booking/internal/model"
	"github.com/iliyamo/bar-booking/internal/repository"
)

var ict = time.FixedZone("ICT", 7*3600)

// memDB is an in-memory stand-in for MySQL.  WithinTx runs one transaction
// at a time, snapshots the tables and restores them when fn fails.
type memDB struct {
	txMu     sync.Mutex
	mu       sync.Mutex
	bookings map[uint64]model.Booking
	events   []model.OutboxEvent
	checkIns map[uint64]model.CheckIn
	nextID   uint64

	appendErr  error
	updateErr  error
	txCount    int
	lockedRead int
}

func newMemDB() *memDB {
	return &memDB{bookings: map[uint64]model.Booking{}, checkIns: map[uint64]model.CheckIn{}}
}

func (m *memDB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	m.mu.Lock()
	m.txCount++
	bookings := make(map[uint64]model.Booking, len(m.bookings))
	for k, v := range m.bookings {
		bookings[k] = v
	}
	events := append([]model.OutboxEvent(nil), m.events...)
	checkIns := make(map[uint64]model.CheckIn, len(m.checkIns))
	for k, v := range m.checkIns {
		checkIns[k] = v
	}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.bookings, m.events, m.checkIns = bookings, events, checkIns
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memDB) id() uint64 {
	m.nextID++
	return m.nextID
}

func (m *memDB) locks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lockedRead
}

func (m *memDB) booking(id uint64) model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[id]
}

func (m *memDB) eventsOf(t model.EventType) []model.OutboxEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.OutboxEvent
	for _, ev := range m.events {
		if ev.EventType == t {
			out = append(out, ev)
		}
	}
	return out
}

type memBookings struct{ *memDB }

func (s memBookings) Create(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = s.id()
	s.bookings[b.ID] = *b
	return nil
}

func (s memBookings) GetByID(_ context.Context, id uint64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (s memBookings) GetForUpdate(ctx context.Context, id uint64) (*model.Booking, error) {
	s.mu.Lock()
	s.lockedRead++
	s.mu.Unlock()
	return s.GetByID(ctx, id)
}

func (s memBookings) Update(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.bookings[b.ID]; !ok {
		return repository.ErrNotFound
	}
	s.bookings[b.ID] = *b
	return nil
}

func (s memBookings) ListByUser(_ context.Context, userID uint64) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Booking, 0)
	for _, b := range s.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingDate.After(out[j].BookingDate) })
	return out, nil
}

func (s memBookings) ListConfirmedBefore(_ context.Context, cutoff time.Time, limit int) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Booking, 0)
	for _, b := range s.bookings {
		if b.Status == model.StatusConfirmed && b.BookingDate.Before(cutoff) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memOutbox struct{ *memDB }

func (s memOutbox) Append(_ context.Context, ev *model.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	ev.ID = s.id()
	s.events = append(s.events, *ev)
	return nil
}

func (s memOutbox) ListUnprocessed(_ context.Context, limit int) ([]model.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.OutboxEvent, 0)
	for _, ev := range s.events {
		if !ev.Processed {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s memOutbox) MarkProcessed(_ context.Context, id uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == id && !s.events[i].Processed {
			s.events[i].Processed = true
			s.events[i].ProcessedAt = &at
		}
	}
	return nil
}

func (s memOutbox) DeleteProcessedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	var n int64
	for _, ev := range s.events {
		if ev.Processed && ev.ProcessedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, ev)
	}
	s.events = kept
	return n, nil
}

type memCheckIns struct{ *memDB }

func (s memCheckIns) Create(_ context.Context, c *model.CheckIn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.checkIns[c.BookingID]; ok {
		return repository.ErrDuplicate
	}
	c.ID = s.id()
	s.checkIns[c.BookingID] = *c
	return nil
}

func (s memCheckIns) GetByBookingID(_ context.Context, bookingID uint64) (*model.CheckIn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.checkIns[bookingID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

type stubPolicy struct {
	allowed bool
	err     error
	calls   int
}

func (p *stubPolicy) CanBookFreeSlot(context.Context, uint64) (bool, error) {
	p.calls++
	return p.allowed, p.err
}

type published struct {
	key string
	ev  model.OutboxEvent
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []published
	fail map[uint64]error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, ev model.OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail[ev.ID]; err != nil {
		return err
	}
	p.sent = append(p.sent, published{key: key, ev: ev})
	return nil
}

var errBroker = errors.New("broker unavailable")

// clock is a settable time source.
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type fixture struct {
	db       *memDB
	mr       *miniredis.Miniredis
	tokens   *cache.QRTokenStore
	policy   *stubPolicy
	clock    *clock
	bookings *BookingService
	checkIns *CheckInService
	detector *NoShowDetector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &fixture{
		db:     newMemDB(),
		mr:     mr,
		tokens: cache.NewQRTokenStore(rdb, 24*time.Hour),
		policy: &stubPolicy{allowed: true},
		clock:  &clock{t: time.Date(2026, 10, 14, 12, 0, 0, 0, ict)},
	}
	qr := NewQRIssuer(f.tokens)
	f.bookings = NewBookingService(BookingDeps{
		Tx:       f.db,
		Bookings: memBookings{f.db},
		Outbox:   memOutbox{f.db},
		CheckIns: memCheckIns{f.db},
		QR:       qr,
		FreeSlot: f.policy,
		Location: ict,
		Now:      f.clock.now,
	})
	f.checkIns = NewCheckInService(f.db, memBookings{f.db}, memCheckIns{f.db}, f.tokens, f.clock.now)
	f.detector = NewNoShowDetector(f.db, memBookings{f.db}, memOutbox{f.db}, qr, 100)
	return f
}

func u64(v uint64) *uint64 { return &v }

func zoneBooking(userID uint64, slot model.TimeSlot) model.NewBookingInput {
	return model.NewBookingInput{
		UserID:     userID,
		ZoneID:     u64(1),
		Type:       model.BookingNormal,
		TimeSlot:   slot,
		Date:       time.Date(2026, 10, 14, 0, 0, 0, 0, ict),
		GuestCount: 2,
	}
}

func (f *fixture) create(t *testing.T, in model.NewBookingInput) *model.Booking {
	t.Helper()
	b, err := f.bookings.Create(context.Background(), in)
	require.NoError(t, err)
	return b
}

func (f *fixture) paid(t *testing.T, userID uint64, slot model.TimeSlot) *model.Booking {
	t.Helper()
	b := f.create(t, zoneBooking(userID, slot))
	_, err := f.bookings.ConfirmPaymentReceived(context.Background(), b.ID, model.PaymentReceipt{PaymentID: u64(900 + b.ID), TransactionID: "tx"})
	require.NoError(t, err)
	got := f.db.booking(b.ID)
	return &got
}
