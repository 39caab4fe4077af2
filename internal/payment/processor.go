package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/alextreichler/detailacademy/internal/api"
	"github.com/alextreichler/detailacademy/internal/models"
)

const (
	ModeSimulated = "simulated"
	ModeRemote    = "remote"

	StatusSucceeded = "succeeded"

	DefaultDelay = 2 * time.Second
)

type IntentRequest struct {
	Kind        models.Kind
	RecordID    string
	AmountCents int64
	Currency    string
}

type Intent struct {
	ID string
	// ClientSecret is nil for simulated intents.
	ClientSecret *string
}

type Confirmation struct {
	IntentID string
	Status   string
}

func (c *Confirmation) Succeeded() bool {
	return c != nil && c.Status == StatusSucceeded
}

// Processor creates and confirms payment intents. Checkout code only ever
// sees this interface, so swapping the simulator for a gateway changes no
// orchestration.
type Processor interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	Confirm(ctx context.Context, intentID, methodID string) (*Confirmation, error)
}

// New picks the processor for the configured mode.
func New(mode string, client *api.Client, delay time.Duration) (Processor, error) {
	switch mode {
	case "", ModeSimulated:
		return &Simulated{Delay: delay}, nil
	case ModeRemote:
		if client == nil {
			return nil, fmt.Errorf("remote payment mode needs an API client")
		}
		return &Remote{client: client}, nil
	default:
		return nil, fmt.Errorf("unknown payment mode %q", mode)
	}
}

// Simulated always succeeds after Delay. It stands in for a gateway in
// development and never moves money.
type Simulated struct {
	Delay time.Duration
}

func (s *Simulated) CreateIntent(_ context.Context, _ IntentRequest) (*Intent, error) {
	return &Intent{ID: fmt.Sprintf("pi_dev_%d", time.Now().UnixMilli())}, nil
}

func (s *Simulated) Confirm(ctx context.Context, intentID, _ string) (*Confirmation, error) {
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &Confirmation{IntentID: intentID, Status: StatusSucceeded}, nil
}

// Remote drives the academy API's payment endpoints.
type Remote struct {
	client *api.Client
}

func NewRemote(client *api.Client) *Remote {
	return &Remote{client: client}
}

type intentResponse struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
}

func (r *Remote) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	currency := req.Currency
	if currency == "" {
		currency = "usd"
	}
	amount := float64(req.AmountCents) / 100

	var path string
	body := map[string]any{"amount": amount, "currency": currency}
	switch req.Kind {
	case models.KindBooking:
		path = "/payments/guest-booking-intent"
		body["bookingId"] = req.RecordID
	case models.KindCourse:
		path = "/payments/guest-course-payment-intent"
		body["purchaseId"] = req.RecordID
	case models.KindSubscription:
		path = "/guest-subscriptions/payment-intent"
		body["subscriptionId"] = req.RecordID
	default:
		return nil, fmt.Errorf("payment intent: unknown record kind %q", req.Kind)
	}

	var out intentResponse
	if err := r.client.Post(ctx, path, body, &out, "Failed to create payment intent"); err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	intent := &Intent{ID: out.PaymentIntentID}
	if out.ClientSecret != "" {
		intent.ClientSecret = &out.ClientSecret
	}
	return intent, nil
}

func (r *Remote) Confirm(ctx context.Context, intentID, methodID string) (*Confirmation, error) {
	body := map[string]string{"paymentIntentId": intentID, "paymentMethodId": methodID}
	var out struct {
		Status string `json:"status"`
	}
	if err := r.client.Post(ctx, "/payments/confirm-guest-booking", body, &out, "Failed to confirm payment"); err != nil {
		return nil, fmt.Errorf("confirm payment: %w", err)
	}
	return &Confirmation{IntentID: intentID, Status: out.Status}, nil
}
