package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alextreichler/detailacademy/internal/api"
	"github.com/alextreichler/detailacademy/internal/checkout"
	"github.com/alextreichler/detailacademy/internal/models"
)

type Instructors interface {
	List(ctx context.Context) ([]models.Instructor, error)
	Get(ctx context.Context, id string) (*models.Instructor, error)
	BySpecialty(ctx context.Context, specialty string) ([]models.Instructor, error)
}

// Mentorship lists the mentors next to the booking form, optionally only
// those with ?specialty=.
func (h *CheckoutHandler) Mentorship(w http.ResponseWriter, r *http.Request) {
	session, f := h.loadFlow(r)
	if f != nil && f.Kind == models.KindBooking && created(f) {
		http.Redirect(w, r, checkout.ContinuationFor(f).Encode(), http.StatusSeeOther)
		return
	}
	if f == nil || f.Kind != models.KindBooking {
		f = checkout.NewBookingFlow()
		h.saveFlow(w, r, session, f)
	}

	data := map[string]interface{}{
		"Flow":     f,
		"Selected": r.URL.Query().Get("instructor"),
	}
	if f.Booking.InstructorID != "" {
		data["Selected"] = f.Booking.InstructorID
	}
	var (
		instructors []models.Instructor
		err         error
	)
	if specialty := strings.TrimSpace(r.URL.Query().Get("specialty")); specialty != "" {
		data["Specialty"] = specialty
		instructors, err = h.Instructors.BySpecialty(r.Context(), specialty)
	} else {
		instructors, err = h.Instructors.List(r.Context())
	}
	if err != nil {
		data["Error"] = api.UserMessage(err, "Failed to fetch instructors")
	}
	data["Instructors"] = instructors
	h.render(w, r, "mentorship.html", data)
}

func slotFrom(r *http.Request) checkout.BookingDetails {
	var topics []string
	for _, t := range strings.Split(r.PostFormValue("topics"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return checkout.BookingDetails{
		InstructorID: strings.TrimSpace(r.PostFormValue("instructor_id")),
		Date:         strings.TrimSpace(r.PostFormValue("date")),
		Time:         strings.TrimSpace(r.PostFormValue("time")),
		Message:      strings.TrimSpace(r.PostFormValue("message")),
		Topics:       topics,
	}
}

func sameSlot(a, b checkout.BookingDetails) bool {
	return a.InstructorID == strings.TrimSpace(b.InstructorID) &&
		a.Date == strings.TrimSpace(b.Date) &&
		a.Time == strings.TrimSpace(b.Time)
}

// Book picks the slot and creates the guest booking in one post. A retry
// for the same slot after a failure keeps the flow, so an unanswered
// create is resent with its original idempotency key.
func (h *CheckoutHandler) Book(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.redirectWithFlash(w, r, "/mentorship", "error", "Invalid form data.")
		return
	}
	session, f := h.loadFlow(r)
	if f != nil && f.Kind == models.KindBooking && created(f) {
		http.Redirect(w, r, checkout.ContinuationFor(f).Encode(), http.StatusSeeOther)
		return
	}

	slot := slotFrom(r)
	reuse := f != nil && f.Kind == models.KindBooking && open(f) && sameSlot(f.Booking, slot)
	if err := checkout.ValidateSlot(slot); err != nil {
		if !reuse {
			f = checkout.NewBookingFlow()
		}
		// Only clipped values go back into the session cookie.
		name := f.Booking.InstructorName
		f.Booking = slot.Clipped()
		f.Booking.InstructorName = name
		f.Contact = contactFrom(r).Clipped()
		h.saveFlow(w, r, session, f)
		h.redirectWithFlash(w, r, "/mentorship", "error", checkout.Message(err))
		return
	}

	if !reuse {
		if id := strings.TrimSpace(slot.InstructorID); id != "" {
			mentor, err := h.Instructors.Get(r.Context(), id)
			if err != nil {
				slog.Warn("Could not load mentor for booking", "instructor_id", id, "error", err)
			} else {
				slot.InstructorName = mentor.Name()
			}
		}
		f = checkout.NewBookingFlow()
		if err := f.PickSlot(slot); err != nil {
			h.redirectWithFlash(w, r, "/mentorship", "error", checkout.Message(err))
			return
		}
	} else {
		f.Booking.Message = slot.Message
		f.Booking.Topics = slot.Topics
	}
	h.submit(w, r, session, f, "/mentorship")
}
