package checkout

import (
	"fmt"

	"github.com/alextreichler/detailacademy/internal/models"
)

type PricingMode string

const (
	// PricingReplace charges the membership price instead of the course.
	PricingReplace PricingMode = "replace"
	// PricingAddon charges the course plus the membership.
	PricingAddon PricingMode = "addon"
)

func ParsePricingMode(s string) (PricingMode, error) {
	switch PricingMode(s) {
	case PricingReplace, PricingAddon:
		return PricingMode(s), nil
	}
	return "", fmt.Errorf("unknown membership pricing mode %q", s)
}

// Pricing holds the membership prices in cents.
type Pricing struct {
	Mode         PricingMode
	PassCents    int64
	MonthlyCents int64
}

var DefaultPricing = Pricing{Mode: PricingReplace, PassCents: 120000, MonthlyCents: 4999}

// Summary is the price table of the payment page, in cents.
type Summary struct {
	BaseCents       int64
	Membership      bool
	MembershipType  models.SubscriptionType
	MembershipCents int64
	TaxCents        int64
	TotalCents      int64
}

func (p Pricing) MembershipCents(t models.SubscriptionType) int64 {
	switch t {
	case models.SubscriptionThreeMonths:
		return p.PassCents
	case models.SubscriptionMonthly:
		return p.MonthlyCents
	}
	return 0
}

// Summary prices a course checkout. Tax is always zero.
func (p Pricing) Summary(baseCents int64, membership bool, t models.SubscriptionType) Summary {
	s := Summary{BaseCents: baseCents, TotalCents: baseCents}
	if !membership {
		return s
	}
	s.Membership = true
	s.MembershipType = t
	s.MembershipCents = p.MembershipCents(t)
	switch p.Mode {
	case PricingAddon:
		s.TotalCents = baseCents + s.MembershipCents
	default:
		s.TotalCents = s.MembershipCents
	}
	return s
}

// flat prices a record whose amount is fixed by the API.
func flat(cents int64) Summary {
	return Summary{BaseCents: cents, TotalCents: cents}
}
