package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alextreichler/detailacademy/internal/api"
	"github.com/alextreichler/detailacademy/internal/events"
	"github.com/alextreichler/detailacademy/internal/metrics"
	"github.com/alextreichler/detailacademy/internal/models"
	"github.com/alextreichler/detailacademy/internal/notify"
	"github.com/alextreichler/detailacademy/internal/payment"
	"github.com/alextreichler/detailacademy/internal/store"
)

const paymentMethod = "stripe"

var (
	ErrPaymentInProgress = errors.New("payment already in progress")
	ErrPaymentDeclined   = errors.New("payment declined")
)

type Purchases interface {
	Create(ctx context.Context, req models.CreatePurchaseRequest, key string) (*models.CreatePurchaseResponse, error)
	Get(ctx context.Context, id string) (*models.GuestCoursePurchase, error)
	UpdatePayment(ctx context.Context, id string, upd models.PaymentStatusUpdate, key string) (*models.GuestCoursePurchase, error)
}

type Subscriptions interface {
	Create(ctx context.Context, req models.CreateSubscriptionRequest, key string) (*models.CreateSubscriptionResponse, error)
	Get(ctx context.Context, id string) (*models.GuestSubscription, error)
	UpdatePayment(ctx context.Context, id string, upd models.PaymentStatusUpdate, key string) (*models.GuestSubscription, error)
}

type Bookings interface {
	Create(ctx context.Context, req models.CreateBookingRequest, key string) (*models.CreateBookingResponse, error)
	Get(ctx context.Context, id string) (*models.GuestBooking, error)
	UpdatePayment(ctx context.Context, id string, upd models.PaymentStatusUpdate, key string) (*models.GuestBooking, error)
}

type Ledger interface {
	Claim(ctx context.Context, kind models.Kind, id, key string, staleAfter time.Duration) (*store.Claim, error)
	MarkPaid(ctx context.Context, kind models.Kind, id, txID string, receipt []byte) error
	Release(ctx context.Context, kind models.Kind, id string) error
}

type Options struct {
	Purchases     Purchases
	Subscriptions Subscriptions
	Bookings      Bookings
	Processor     payment.Processor
	Ledger        Ledger
	Pricing       Pricing
	Events        events.Publisher
	Mailer        notify.Mailer
	StaleAfter    time.Duration
	Logger        *slog.Logger
}

// Orchestrator runs the guest checkout: record creation, the payment
// page model, and the single payment-status update per record.
type Orchestrator struct {
	purchases     Purchases
	subscriptions Subscriptions
	bookings      Bookings
	processor     payment.Processor
	ledger        Ledger
	pricing       Pricing
	events        events.Publisher
	mailer        notify.Mailer
	staleAfter    time.Duration
	log           *slog.Logger
	now           func() time.Time
}

func NewOrchestrator(o Options) *Orchestrator {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Events == nil {
		o.Events = events.NewLogPublisher(o.Logger)
	}
	if o.Mailer == nil {
		o.Mailer = notify.LogMailer{}
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = store.DefaultStaleAfter
	}
	if o.Pricing.Mode == "" {
		o.Pricing = DefaultPricing
	}
	return &Orchestrator{
		purchases:     o.Purchases,
		subscriptions: o.Subscriptions,
		bookings:      o.Bookings,
		processor:     o.Processor,
		ledger:        o.Ledger,
		pricing:       o.Pricing,
		events:        o.Events,
		mailer:        o.Mailer,
		staleAfter:    o.StaleAfter,
		log:           o.Logger,
		now:           time.Now,
	}
}

func (o *Orchestrator) Pricing() Pricing { return o.pricing }

// Submit validates the contact form and creates the guest record. On
// success the flow is AwaitingPayment and the continuation names the
// payment page. A server rejection leaves the flow Failed with the
// server's message and no record id; the entered contact is kept.
func (o *Orchestrator) Submit(ctx context.Context, f *Flow, c Contact) (Continuation, error) {
	if f.State == StateFailed && f.RecordID != "" {
		return Continuation{}, fmt.Errorf("%w: record %s already exists", ErrIllegalTransition, f.RecordID)
	}
	if f.State != StateCollectingContact && f.State != StateFailed {
		return Continuation{}, fmt.Errorf("%w: submit from %s", ErrIllegalTransition, f.State)
	}

	f.Contact = c.normalized()
	if err := ValidateContact(f.Contact, f.Kind == models.KindBooking); err != nil {
		if f.State == StateFailed {
			_ = move(&f.State, StateCollectingContact)
		}
		f.Contact = f.Contact.Clipped()
		f.LastError = err.Error()
		return Continuation{}, err
	}

	if f.Key == "" || !f.KeyReusable {
		f.Key = uuid.NewString()
	}
	f.KeyReusable = false
	if err := move(&f.State, StateCreating); err != nil {
		return Continuation{}, err
	}
	f.LastError = ""

	// The browser may leave; a create that has started still finishes.
	ctx = context.WithoutCancel(ctx)
	id, fallback, err := o.create(ctx, f)
	if err != nil {
		_ = move(&f.State, StateFailed)
		f.LastError = clip(api.UserMessage(err, fallback), maxErrorBytes)
		var netErr *api.NetworkError
		f.KeyReusable = errors.As(err, &netErr)
		metrics.CheckoutFailures.WithLabelValues(string(f.Kind), "create").Inc()
		o.log.Error("Failed to create guest record", "kind", f.Kind, "error", err)
		return Continuation{}, err
	}

	f.RecordID = id
	if err := move(&f.State, StateAwaitingPayment); err != nil {
		return Continuation{}, err
	}
	metrics.CheckoutsCreated.WithLabelValues(string(f.Kind)).Inc()
	o.log.Info("Guest record created", "kind", f.Kind, "id", id)
	return ContinuationFor(f), nil
}

func (o *Orchestrator) create(ctx context.Context, f *Flow) (string, string, error) {
	switch f.Kind {
	case models.KindCourse:
		resp, err := o.purchases.Create(ctx, models.CreatePurchaseRequest{
			CourseID:      f.CourseID,
			CustomerName:  f.Contact.Name,
			CustomerEmail: f.Contact.Email,
			CustomerPhone: f.Contact.Phone,
		}, f.Key)
		if err != nil {
			return "", "Failed to create course purchase", err
		}
		return resp.PurchaseID, "", nil

	case models.KindSubscription:
		resp, err := o.subscriptions.Create(ctx, models.CreateSubscriptionRequest{
			CustomerName:     f.Contact.Name,
			CustomerEmail:    f.Contact.Email,
			CustomerPhone:    f.Contact.Phone,
			SubscriptionType: models.SubscriptionThreeMonths,
		}, f.Key)
		if err != nil {
			return "", "Failed to create subscription", err
		}
		return resp.SubscriptionID, "", nil

	case models.KindBooking:
		resp, err := o.bookings.Create(ctx, models.CreateBookingRequest{
			InstructorID:    f.Booking.InstructorID,
			CustomerName:    f.Contact.Name,
			CustomerEmail:   f.Contact.Email,
			CustomerPhone:   f.Contact.Phone,
			PreferredDate:   f.Booking.Date,
			PreferredTime:   f.Booking.Time,
			Message:         f.Booking.Message,
			PreferredTopics: f.Booking.Topics,
		}, f.Key)
		if err != nil {
			return "", "Failed to create guest booking", err
		}
		f.Booking.PriceCents = resp.SessionPrice.Cents()
		return resp.BookingID, "", nil
	}
	return "", "", fmt.Errorf("unknown checkout kind %q", f.Kind)
}

// Pending is the payment page model for one record.
type Pending struct {
	Continuation     Continuation
	Title            string
	CustomerName     string
	CustomerEmail    string
	Price            Summary
	AccessCode       string
	SubscriptionType models.SubscriptionType
	InstructorName   string
	SessionDate      string
	SessionTime      string
	TransactionID    string
	Paid             bool
}

// Checkout loads the record behind a continuation and prices it.
func (o *Orchestrator) Checkout(ctx context.Context, c Continuation) (*Pending, error) {
	p := &Pending{Continuation: c}
	switch c.Kind {
	case models.KindCourse:
		rec, err := o.purchases.Get(ctx, c.RecordID)
		if err != nil {
			return nil, err
		}
		p.Title = rec.CourseTitle()
		p.CustomerName, p.CustomerEmail = rec.CustomerName, rec.CustomerEmail
		p.Price = o.pricing.Summary(rec.CoursePrice.Cents(), c.Membership, c.PlanType)
		p.AccessCode = rec.AccessCode
		p.TransactionID = rec.TransactionID
		p.Paid = rec.PaymentStatus == models.PaymentPaid

	case models.KindSubscription:
		rec, err := o.subscriptions.Get(ctx, c.RecordID)
		if err != nil {
			return nil, err
		}
		p.Title = SubscriptionTitle(rec.SubscriptionType)
		p.CustomerName, p.CustomerEmail = rec.CustomerName, rec.CustomerEmail
		p.Price = flat(rec.Price.Cents())
		p.SubscriptionType = rec.SubscriptionType
		p.TransactionID = rec.TransactionID
		p.Paid = rec.PaymentStatus == models.PaymentPaid

	case models.KindBooking:
		rec, err := o.bookings.Get(ctx, c.RecordID)
		if err != nil {
			return nil, err
		}
		p.InstructorName = rec.MentorName()
		p.Title = "Mentorship session with " + p.InstructorName
		p.CustomerName, p.CustomerEmail = rec.CustomerName, rec.CustomerEmail
		p.Price = flat(rec.SessionPrice.Cents())
		p.SessionDate, p.SessionTime = rec.PreferredDate, rec.PreferredTime
		p.TransactionID = rec.TransactionID
		p.Paid = rec.PaymentStatus == models.PaymentPaid

	default:
		return nil, ErrBadContinuation
	}
	return p, nil
}

func SubscriptionTitle(t models.SubscriptionType) string {
	if t == models.SubscriptionMonthly {
		return "Monthly Membership"
	}
	return "All-Access Pass, 3 Months"
}

func (p *Pending) receipt(txID string, paidAt time.Time) *Receipt {
	return &Receipt{
		Kind:             p.Continuation.Kind,
		RecordID:         p.Continuation.RecordID,
		Title:            p.Title,
		AccessCode:       p.AccessCode,
		SubscriptionType: p.SubscriptionType,
		CustomerName:     p.CustomerName,
		CustomerEmail:    p.CustomerEmail,
		InstructorName:   p.InstructorName,
		SessionDate:      p.SessionDate,
		SessionTime:      p.SessionTime,
		AmountCents:      p.Price.TotalCents,
		TransactionID:    txID,
		PaidAt:           paidAt,
	}
}

// Pay takes the record from AwaitingPayment to Paid. The ledger claim
// makes the status update happen at most once per record: a reload after
// success gets the stored receipt back without touching the API.
func (o *Orchestrator) Pay(ctx context.Context, c Continuation, card payment.Card) (*Receipt, error) {
	if err := payment.ValidateCard(card, o.now()); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)
	kind := string(c.Kind)

	claim, err := o.ledger.Claim(ctx, c.Kind, c.RecordID, uuid.NewString(), o.staleAfter)
	if errors.Is(err, store.ErrInFlight) {
		return nil, ErrPaymentInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("claim payment: %w", err)
	}
	if claim.Status == store.ClaimPaid {
		var r Receipt
		if err := json.Unmarshal(claim.Receipt, &r); err != nil {
			return nil, fmt.Errorf("stored receipt for %s %s: %w", c.Kind, c.RecordID, err)
		}
		o.log.Info("Payment already recorded, replaying receipt", "kind", c.Kind, "id", c.RecordID)
		return &r, nil
	}

	state := StateAwaitingPayment
	fail := func(stage string, err error, release bool) (*Receipt, error) {
		_ = move(&state, StateFailed)
		metrics.CheckoutFailures.WithLabelValues(kind, stage).Inc()
		o.log.Error("Checkout payment failed", "kind", c.Kind, "id", c.RecordID, "stage", stage, "error", err)
		if release {
			if rerr := o.ledger.Release(ctx, c.Kind, c.RecordID); rerr != nil {
				o.log.Error("Failed to release payment claim", "kind", c.Kind, "id", c.RecordID, "error", rerr)
			}
		}
		return nil, err
	}

	pending, err := o.Checkout(ctx, c)
	if err != nil {
		return fail("load", err, true)
	}
	if pending.Paid {
		r := pending.receipt(pending.TransactionID, o.now())
		o.record(ctx, r)
		return r, nil
	}

	intent, err := o.processor.CreateIntent(ctx, payment.IntentRequest{
		Kind:        c.Kind,
		RecordID:    c.RecordID,
		AmountCents: pending.Price.TotalCents,
		Currency:    "usd",
	})
	if err != nil {
		return fail("intent", err, true)
	}
	conf, err := o.processor.Confirm(ctx, intent.ID, payment.NewMethodID())
	if err != nil {
		return fail("confirm", err, true)
	}
	if !conf.Succeeded() {
		return fail("confirm", ErrPaymentDeclined, true)
	}

	upd := models.PaymentStatusUpdate{
		PaymentStatus: models.PaymentPaid,
		PaymentMethod: paymentMethod,
		TransactionID: intent.ID,
	}
	accessCode, err := o.updatePayment(ctx, c, upd, claim.Key)
	if err != nil {
		// An unanswered update may have landed. Leave the claim to go
		// stale so the retry reuses its idempotency key.
		var netErr *api.NetworkError
		return fail("update", err, !errors.As(err, &netErr))
	}
	if err := move(&state, StatePaid); err != nil {
		return nil, err
	}

	r := pending.receipt(intent.ID, o.now())
	if accessCode != "" {
		r.AccessCode = accessCode
	}
	o.record(ctx, r)
	metrics.CheckoutsPaid.WithLabelValues(kind).Inc()
	o.announce(ctx, r)
	return r, nil
}

func (o *Orchestrator) updatePayment(ctx context.Context, c Continuation, upd models.PaymentStatusUpdate, key string) (string, error) {
	switch c.Kind {
	case models.KindCourse:
		rec, err := o.purchases.UpdatePayment(ctx, c.RecordID, upd, key)
		if err != nil {
			return "", err
		}
		return rec.AccessCode, nil
	case models.KindSubscription:
		_, err := o.subscriptions.UpdatePayment(ctx, c.RecordID, upd, key)
		return "", err
	case models.KindBooking:
		_, err := o.bookings.UpdatePayment(ctx, c.RecordID, upd, key)
		return "", err
	}
	return "", ErrBadContinuation
}

func (o *Orchestrator) record(ctx context.Context, r *Receipt) {
	body, err := json.Marshal(r)
	if err != nil {
		o.log.Error("Failed to encode receipt", "error", err)
		return
	}
	if err := o.ledger.MarkPaid(ctx, r.Kind, r.RecordID, r.TransactionID, body); err != nil {
		o.log.Error("Failed to record paid checkout", "kind", r.Kind, "id", r.RecordID, "error", err)
	}
}

// announce is best-effort: the customer has paid whatever happens here.
func (o *Orchestrator) announce(ctx context.Context, r *Receipt) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := o.events.Publish(ctx, r.event()); err != nil {
		o.log.Warn("Failed to publish checkout event", "id", r.RecordID, "error", err)
	}
	if r.CustomerEmail == "" {
		return
	}
	if err := o.mailer.Send(ctx, r.email()); err != nil {
		o.log.Warn("Failed to send receipt email", "id", r.RecordID, "error", err)
	}
}

// Message turns any checkout error into text for the error banner.
func Message(err error) string {
	var verr *ValidationError
	var cerr *payment.CardError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return verr.Error()
	case errors.As(err, &cerr):
		return cerr.Message
	case errors.Is(err, ErrPaymentInProgress):
		return "Your payment is already being processed. Please wait a moment and refresh the page."
	case errors.Is(err, ErrPaymentDeclined):
		return "Payment failed. Please try again."
	case errors.Is(err, ErrBadContinuation):
		return "This checkout link is invalid."
	case errors.Is(err, ErrIllegalTransition):
		return "This step is no longer available. Please start again."
	}
	return api.UserMessage(err, "Payment failed. Please try again.")
}
