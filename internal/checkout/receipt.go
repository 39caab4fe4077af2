package checkout

import (
	"fmt"
	"strings"
	"time"

	"github.com/alextreichler/detailacademy/internal/events"
	"github.com/alextreichler/detailacademy/internal/models"
	"github.com/alextreichler/detailacademy/internal/notify"
)

// Receipt is what a success page shows. It is built from the records the
// checkout already holds, never re-fetched.
type Receipt struct {
	Kind             models.Kind             `json:"kind"`
	RecordID         string                  `json:"record_id"`
	Title            string                  `json:"title"`
	AccessCode       string                  `json:"access_code,omitempty"`
	SubscriptionType models.SubscriptionType `json:"subscription_type,omitempty"`
	CustomerName     string                  `json:"customer_name"`
	CustomerEmail    string                  `json:"customer_email"`
	InstructorName   string                  `json:"instructor_name,omitempty"`
	SessionDate      string                  `json:"session_date,omitempty"`
	SessionTime      string                  `json:"session_time,omitempty"`
	AmountCents      int64                   `json:"amount_cents"`
	TransactionID    string                  `json:"transaction_id"`
	PaidAt           time.Time               `json:"paid_at"`
}

// SuccessPath is the route of the matching success page.
func (r *Receipt) SuccessPath() string {
	switch r.Kind {
	case models.KindSubscription:
		return "/subscription-success"
	case models.KindBooking:
		return "/mentorship-success"
	}
	return "/course-success"
}

func (r *Receipt) event() events.CheckoutCompleted {
	return events.CheckoutCompleted{
		Kind:          r.Kind,
		RecordID:      r.RecordID,
		TransactionID: r.TransactionID,
		AmountCents:   r.AmountCents,
		Title:         r.Title,
		CustomerEmail: r.CustomerEmail,
		PaidAt:        r.PaidAt,
	}
}

func (r *Receipt) email() notify.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nThanks for your payment of $%d.%02d.\n", r.CustomerName, r.AmountCents/100, r.AmountCents%100)

	var subject string
	switch r.Kind {
	case models.KindCourse:
		subject = "Your course access code - Detail Academy"
		fmt.Fprintf(&b, "Course: %s\nAccess code: %s\n", r.Title, r.AccessCode)
	case models.KindSubscription:
		subject = "Your All-Access Pass - Detail Academy"
		fmt.Fprintf(&b, "Plan: %s\n", r.Title)
	case models.KindBooking:
		subject = "Your mentorship session - Detail Academy"
		fmt.Fprintf(&b, "Mentor: %s\nWhen: %s %s\n", r.InstructorName, r.SessionDate, r.SessionTime)
	}
	fmt.Fprintf(&b, "Reference: %s\n", r.TransactionID)

	return notify.Message{
		ToName:  r.CustomerName,
		To:      r.CustomerEmail,
		Subject: subject,
		Text:    b.String(),
	}
}
