package checkout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alextreichler/detailacademy/internal/models"
)

// Plan is what the guest chose at the membership step.
type Plan string

const (
	PlanCourseOnly Plan = "course"
	PlanAllAccess  Plan = "all_access"
	PlanMonthly    Plan = "monthly"
)

func ParsePlan(s string) (Plan, bool) {
	switch Plan(s) {
	case PlanCourseOnly, PlanAllAccess, PlanMonthly:
		return Plan(s), true
	}
	return "", false
}

// MembershipType is the subscription tag carried to the checkout page, or
// "" when no membership was picked.
func (p Plan) MembershipType() models.SubscriptionType {
	switch p {
	case PlanAllAccess:
		return models.SubscriptionThreeMonths
	case PlanMonthly:
		return models.SubscriptionMonthly
	}
	return ""
}

type BookingDetails struct {
	InstructorID   string
	InstructorName string
	Date           string
	Time           string
	Message        string
	Topics         []string
	PriceCents     int64
}

// Flow is one guest's progress through a checkout. It lives in the
// session between requests, so every field is exported for gob.
type Flow struct {
	Kind  models.Kind
	State State

	CourseID         string
	CourseTitle      string
	CoursePriceCents int64
	Plan             Plan

	Booking BookingDetails
	Contact Contact

	RecordID string
	// Key is sent with the create call. It survives a resubmit only when
	// the previous attempt never got an answer.
	Key         string
	KeyReusable bool

	LastError string
}

// NewCourseFlow starts at course selection.
func NewCourseFlow(c models.Course) *Flow {
	return &Flow{
		Kind:             models.KindCourse,
		State:            StateSelecting,
		CourseID:         c.ID,
		CourseTitle:      c.Title,
		CoursePriceCents: c.Price.Cents(),
	}
}

// NewSubscriptionFlow is the header call-to-action: straight to contact
// details for the 3-month pass.
func NewSubscriptionFlow() *Flow {
	f := &Flow{Kind: models.KindSubscription, State: StateSelecting, Plan: PlanAllAccess}
	_ = f.skipMembership()
	return f
}

func NewBookingFlow() *Flow {
	return &Flow{Kind: models.KindBooking, State: StateSelecting}
}

// Enroll opens the membership choice for a selected course.
func (f *Flow) Enroll() error {
	if f.Kind != models.KindCourse {
		return ErrIllegalTransition
	}
	return move(&f.State, StateMembershipChoice)
}

// skipMembership takes subscription and booking flows from selection
// straight to contact details. Course flows never skip the plan step.
func (f *Flow) skipMembership() error {
	if f.Kind == models.KindCourse || f.State != StateSelecting {
		return fmt.Errorf("%w: %s flow %s -> %s", ErrIllegalTransition, f.Kind, f.State, StateCollectingContact)
	}
	f.State = StateCollectingContact
	return nil
}

// ChoosePlan records the membership decision and moves on to contact details.
func (f *Flow) ChoosePlan(p Plan) error {
	if f.Kind != models.KindCourse {
		return ErrIllegalTransition
	}
	if f.State != StateMembershipChoice {
		return fmt.Errorf("%w: choose plan from %s", ErrIllegalTransition, f.State)
	}
	if err := move(&f.State, StateCollectingContact); err != nil {
		return err
	}
	f.Plan = p
	return nil
}

// PickSlot validates the mentor and slot before contact collection.
func (f *Flow) PickSlot(d BookingDetails) error {
	if f.Kind != models.KindBooking {
		return ErrIllegalTransition
	}
	d.InstructorID = strings.TrimSpace(d.InstructorID)
	d.Date = strings.TrimSpace(d.Date)
	d.Time = strings.TrimSpace(d.Time)
	if err := ValidateSlot(d); err != nil {
		return err
	}
	if err := f.skipMembership(); err != nil {
		return err
	}
	f.Booking = d
	return nil
}

// ValidateSlot checks a booking request: mentor, date and time are
// required and the note must fit its limits.
func ValidateSlot(d BookingDetails) error {
	fields := map[string]string{}
	if strings.TrimSpace(d.InstructorID) == "" {
		fields["instructor"] = "Please choose a mentor"
	}
	if strings.TrimSpace(d.Date) == "" {
		fields["date"] = "Please choose a date"
	}
	if strings.TrimSpace(d.Time) == "" {
		fields["time"] = "Please choose a time"
	}
	for _, v := range []string{d.InstructorID, d.Date, d.Time} {
		if len(v) > maxSlotBytes {
			fields["slot"] = "Please choose a mentor, date and time from the form"
		}
	}
	if err := validateFields(bookingNote{Message: d.Message, Topics: d.Topics}); err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		for k, v := range verr.Fields {
			fields[k] = v
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Clipped cuts the booking's free text to its limits.
func (d BookingDetails) Clipped() BookingDetails {
	d.InstructorID = clip(d.InstructorID, maxSlotBytes)
	d.Date = clip(d.Date, maxSlotBytes)
	d.Time = clip(d.Time, maxSlotBytes)
	d.Message = clip(d.Message, MaxMessageBytes)
	if len(d.Topics) == 0 {
		return d
	}
	if len(d.Topics) > MaxTopics {
		d.Topics = d.Topics[:MaxTopics]
	}
	topics := make([]string, len(d.Topics))
	for i, t := range d.Topics {
		topics[i] = clip(t, MaxTopicBytes)
	}
	d.Topics = topics
	return d
}

// Membership reports whether the course checkout carries a membership.
func (f *Flow) Membership() bool {
	return f.Kind == models.KindCourse && f.Plan != "" && f.Plan != PlanCourseOnly
}
