package checkout

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alextreichler/detailacademy/internal/events"
	"github.com/alextreichler/detailacademy/internal/models"
	"github.com/alextreichler/detailacademy/internal/notify"
	"github.com/alextreichler/detailacademy/internal/payment"
	"github.com/alextreichler/detailacademy/internal/store"
)

type fakePurchases struct {
	mu         sync.Mutex
	createErr  error
	creates    []models.CreatePurchaseRequest
	createKeys []string
	record     models.GuestCoursePurchase
	updateErr  error
	updates    []models.PaymentStatusUpdate
	updateKeys []string
}

func (f *fakePurchases) Create(_ context.Context, req models.CreatePurchaseRequest, key string) (*models.CreatePurchaseResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, req)
	f.createKeys = append(f.createKeys, key)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.CreatePurchaseResponse{PurchaseID: f.record.ID}, nil
}

func (f *fakePurchases) Get(_ context.Context, id string) (*models.GuestCoursePurchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.record
	return &rec, nil
}

func (f *fakePurchases) UpdatePayment(_ context.Context, id string, upd models.PaymentStatusUpdate, key string) (*models.GuestCoursePurchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, upd)
	f.updateKeys = append(f.updateKeys, key)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.record.PaymentStatus = upd.PaymentStatus
	f.record.TransactionID = upd.TransactionID
	rec := f.record
	return &rec, nil
}

type fakeSubscriptions struct {
	mu      sync.Mutex
	creates []models.CreateSubscriptionRequest
	record  models.GuestSubscription
	updates []models.PaymentStatusUpdate
}

func (f *fakeSubscriptions) Create(_ context.Context, req models.CreateSubscriptionRequest, _ string) (*models.CreateSubscriptionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, req)
	return &models.CreateSubscriptionResponse{SubscriptionID: f.record.ID}, nil
}

func (f *fakeSubscriptions) Get(_ context.Context, _ string) (*models.GuestSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.record
	return &rec, nil
}

func (f *fakeSubscriptions) UpdatePayment(_ context.Context, _ string, upd models.PaymentStatusUpdate, _ string) (*models.GuestSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, upd)
	f.record.PaymentStatus = upd.PaymentStatus
	rec := f.record
	return &rec, nil
}

type fakeBookings struct {
	mu      sync.Mutex
	creates []models.CreateBookingRequest
	record  models.GuestBooking
	updates []models.PaymentStatusUpdate
}

func (f *fakeBookings) Create(_ context.Context, req models.CreateBookingRequest, _ string) (*models.CreateBookingResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, req)
	return &models.CreateBookingResponse{BookingID: f.record.ID, SessionPrice: f.record.SessionPrice}, nil
}

func (f *fakeBookings) Get(_ context.Context, _ string) (*models.GuestBooking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.record
	return &rec, nil
}

func (f *fakeBookings) UpdatePayment(_ context.Context, _ string, upd models.PaymentStatusUpdate, _ string) (*models.GuestBooking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, upd)
	f.record.PaymentStatus = upd.PaymentStatus
	rec := f.record
	return &rec, nil
}

// recordingProcessor wraps a processor and remembers intent amounts.
type recordingProcessor struct {
	payment.Processor
	mu      sync.Mutex
	amounts []int64
	status  string
}

func (p *recordingProcessor) CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	p.mu.Lock()
	p.amounts = append(p.amounts, req.AmountCents)
	p.mu.Unlock()
	return p.Processor.CreateIntent(ctx, req)
}

func (p *recordingProcessor) Confirm(ctx context.Context, intentID, methodID string) (*payment.Confirmation, error) {
	conf, err := p.Processor.Confirm(ctx, intentID, methodID)
	if err == nil && p.status != "" {
		conf.Status = p.status
	}
	return conf, err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.CheckoutCompleted
}

func (p *fakePublisher) Publish(_ context.Context, ev events.CheckoutCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fakeMailer struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (m *fakeMailer) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

type harness struct {
	orch      *Orchestrator
	purchases *fakePurchases
	subs      *fakeSubscriptions
	bookings  *fakeBookings
	processor *recordingProcessor
	ledger    *store.Store
	events    *fakePublisher
	mailer    *fakeMailer
}

func newHarness(t *testing.T, pricing Pricing) *harness {
	t.Helper()
	ledger, err := store.NewStore(filepath.Join(t.TempDir(), "checkout.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })
	require.NoError(t, ledger.Migrate())

	h := &harness{
		purchases: &fakePurchases{record: models.GuestCoursePurchase{
			ID:            "p-1",
			CourseID:      "c-1",
			CustomerName:  "Jane Doe",
			CustomerEmail: "jane@example.com",
			CoursePrice:   299,
			PaymentStatus: models.PaymentPending,
			AccessCode:    "ACC-1234",
			Course:        &models.PurchasedCourse{ID: "c-1", Title: "Paint Correction Part 1"},
		}},
		subs: &fakeSubscriptions{record: models.GuestSubscription{
			ID:               "s-1",
			CustomerName:     "Jane Doe",
			CustomerEmail:    "jane@example.com",
			SubscriptionType: models.SubscriptionThreeMonths,
			Price:            1200,
			PaymentStatus:    models.PaymentPending,
		}},
		bookings: &fakeBookings{record: models.GuestBooking{
			ID:            "b-1",
			CustomerName:  "Jane Doe",
			CustomerEmail: "jane@example.com",
			PreferredDate: "2025-07-01",
			PreferredTime: "10:00",
			SessionPrice:  99,
			PaymentStatus: models.PaymentPending,
			Instructor:    &models.BookedInstructor{FirstName: "Sam", LastName: "Reyes"},
		}},
		processor: &recordingProcessor{Processor: &payment.Simulated{}},
		ledger:    ledger,
		events:    &fakePublisher{},
		mailer:    &fakeMailer{},
	}
	h.orch = NewOrchestrator(Options{
		Purchases:     h.purchases,
		Subscriptions: h.subs,
		Bookings:      h.bookings,
		Processor:     h.processor,
		Ledger:        ledger,
		Pricing:       pricing,
		Events:        h.events,
		Mailer:        h.mailer,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return h
}

var goodCard = payment.Card{Holder: "Jane Doe", Number: "4242 4242 4242 4242", Expiry: "12/99", CVV: "123"}
