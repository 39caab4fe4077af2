package checkout

import (
	"errors"
	"net/url"
	"strings"

	"github.com/alextreichler/detailacademy/internal/models"
)

const (
	courseCheckoutPrefix  = "/course-checkout/"
	bookingCheckoutPrefix = "/checkout/"
)

var ErrBadContinuation = errors.New("invalid checkout link")

// Continuation is everything the payment page needs to know about the
// record it collects payment for. It travels in the URL, so nothing
// about an earlier page survives in ambient session state.
type Continuation struct {
	Kind       models.Kind
	RecordID   string
	Membership bool
	PlanType   models.SubscriptionType
}

func (c Continuation) base() string {
	if c.Kind == models.KindBooking {
		return bookingCheckoutPrefix + url.PathEscape(c.RecordID)
	}
	return courseCheckoutPrefix + url.PathEscape(c.RecordID)
}

func (c Continuation) query() string {
	q := url.Values{}
	switch {
	case c.Kind == models.KindSubscription:
		q.Set("subscription", "true")
		q.Set("type", string(models.SubscriptionThreeMonths))
	case c.Kind == models.KindCourse && c.Membership:
		q.Set("membership", "true")
		q.Set("type", string(c.PlanType))
	default:
		return ""
	}
	return "?" + q.Encode()
}

// Encode is the payment page URL.
func (c Continuation) Encode() string {
	return c.base() + c.query()
}

// PayPath is where the payment form posts.
func (c Continuation) PayPath() string {
	return c.base() + "/pay" + c.query()
}

// ParseContinuation reads a payment page or pay URL back.
func ParseContinuation(u *url.URL) (Continuation, error) {
	path := strings.TrimSuffix(u.Path, "/pay")
	var c Continuation
	switch {
	case strings.HasPrefix(path, courseCheckoutPrefix):
		c.Kind = models.KindCourse
		c.RecordID = strings.TrimPrefix(path, courseCheckoutPrefix)
	case strings.HasPrefix(path, bookingCheckoutPrefix):
		c.Kind = models.KindBooking
		c.RecordID = strings.TrimPrefix(path, bookingCheckoutPrefix)
	default:
		return Continuation{}, ErrBadContinuation
	}
	if c.RecordID == "" || strings.Contains(c.RecordID, "/") {
		return Continuation{}, ErrBadContinuation
	}
	if c.Kind == models.KindBooking {
		return c, nil
	}

	q := u.Query()
	planType := models.SubscriptionType(q.Get("type"))
	switch {
	case q.Get("subscription") == "true":
		c.Kind = models.KindSubscription
	case q.Get("membership") == "true":
		c.Membership = true
		switch planType {
		case "":
			planType = models.SubscriptionThreeMonths
		case models.SubscriptionThreeMonths, models.SubscriptionMonthly:
		default:
			return Continuation{}, ErrBadContinuation
		}
		c.PlanType = planType
	}
	return c, nil
}

// ContinuationFor is where a flow goes once its record exists.
func ContinuationFor(f *Flow) Continuation {
	c := Continuation{Kind: f.Kind, RecordID: f.RecordID}
	if f.Membership() {
		c.Membership = true
		c.PlanType = f.Plan.MembershipType()
	}
	return c
}
