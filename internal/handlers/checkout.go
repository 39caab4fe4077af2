package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/sessions"

	"github.com/alextreichler/detailacademy/internal/api"
	"github.com/alextreichler/detailacademy/internal/checkout"
	"github.com/alextreichler/detailacademy/internal/models"
	"github.com/alextreichler/detailacademy/internal/payment"
)

// AccessLookup finds a course purchase by the code on its receipt.
type AccessLookup interface {
	GetByAccessCode(ctx context.Context, code string) (*models.GuestCoursePurchase, error)
}

// CheckoutHandler drives the course, subscription and mentorship flows.
// The in-progress flow lives in the checkout session; everything the
// payment page needs travels in its URL.
type CheckoutHandler struct {
	Pages
	Catalog      Catalog
	Instructors  Instructors
	Access       AccessLookup
	Orchestrator *checkout.Orchestrator
}

const sessionExpired = "Your checkout session expired. Please start again."

func (h *CheckoutHandler) loadFlow(r *http.Request) (*sessions.Session, *checkout.Flow) {
	session, _ := h.SessionStore.Get(r, checkoutSession)
	if f, ok := session.Values[flowKey].(checkout.Flow); ok {
		return session, &f
	}
	return session, nil
}

func (h *CheckoutHandler) saveFlow(w http.ResponseWriter, r *http.Request, session *sessions.Session, f *checkout.Flow) {
	if f == nil {
		delete(session.Values, flowKey)
	} else {
		session.Values[flowKey] = *f
	}
	visitorID(session)
	if err := session.Save(r, w); err != nil {
		slog.Error("Failed to save checkout session", "error", err)
	}
}

// open reports whether a flow can still take a contact submission.
func open(f *checkout.Flow) bool {
	return f.State == checkout.StateCollectingContact || (f.State == checkout.StateFailed && f.RecordID == "")
}

// created reports whether the flow's record exists and awaits payment.
func created(f *checkout.Flow) bool {
	return f.State == checkout.StateAwaitingPayment && f.RecordID != ""
}

func contactFrom(r *http.Request) checkout.Contact {
	return checkout.Contact{
		Name:  r.PostFormValue("name"),
		Email: r.PostFormValue("email"),
		Phone: r.PostFormValue("phone"),
	}
}

func (h *CheckoutHandler) publishedCourse(w http.ResponseWriter, r *http.Request, id string) *models.Course {
	course, err := h.Catalog.Get(r.Context(), id)
	if err != nil {
		if api.IsNotFound(err) {
			http.Error(w, "Course not found", http.StatusNotFound)
			return nil
		}
		h.redirectWithFlash(w, r, "/courses", "error", api.UserMessage(err, "Failed to fetch course"))
		return nil
	}
	if !course.IsPublished {
		http.Error(w, "Course not found", http.StatusNotFound)
		return nil
	}
	return course
}

func purchasePath(courseID string, plan checkout.Plan) string {
	return "/courses/" + url.PathEscape(courseID) + "/purchase?plan=" + url.QueryEscape(string(plan))
}

// Enroll opens the membership choice for a course.
func (h *CheckoutHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	course := h.publishedCourse(w, r, r.PathValue("id"))
	if course == nil {
		return
	}
	f := checkout.NewCourseFlow(*course)
	if err := f.Enroll(); err != nil {
		http.Error(w, checkout.Message(err), http.StatusConflict)
		return
	}
	session, _ := h.loadFlow(r)
	h.saveFlow(w, r, session, f)

	pricing := h.Orchestrator.Pricing()
	h.render(w, r, "enroll.html", map[string]interface{}{
		"Course":      course,
		"Pricing":     pricing,
		"CourseOnly":  purchasePath(course.ID, checkout.PlanCourseOnly),
		"AllAccess":   purchasePath(course.ID, checkout.PlanAllAccess),
		"Monthly":     purchasePath(course.ID, checkout.PlanMonthly),
		"PassSummary": pricing.Summary(f.CoursePriceCents, true, models.SubscriptionThreeMonths),
	})
}

// PurchaseForm collects contact details for the chosen plan.
func (h *CheckoutHandler) PurchaseForm(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	plan, ok := checkout.ParsePlan(r.URL.Query().Get("plan"))
	if !ok {
		plan = checkout.PlanCourseOnly
	}

	session, f := h.loadFlow(r)
	same := f != nil && f.Kind == models.KindCourse && f.CourseID == id && f.Plan == plan
	if same && created(f) {
		http.Redirect(w, r, checkout.ContinuationFor(f).Encode(), http.StatusSeeOther)
		return
	}
	if !same || !open(f) {
		course := h.publishedCourse(w, r, id)
		if course == nil {
			return
		}
		f = checkout.NewCourseFlow(*course)
		if err := f.Enroll(); err != nil {
			http.Error(w, checkout.Message(err), http.StatusConflict)
			return
		}
		if err := f.ChoosePlan(plan); err != nil {
			http.Error(w, checkout.Message(err), http.StatusConflict)
			return
		}
		h.saveFlow(w, r, session, f)
	}

	h.render(w, r, "contact.html", map[string]interface{}{
		"Flow":    f,
		"Heading": f.CourseTitle,
		"Action":  purchasePath(id, plan),
		"Summary": h.Orchestrator.Pricing().Summary(f.CoursePriceCents, f.Membership(), f.Plan.MembershipType()),
	})
}

// PurchaseSubmit creates the guest purchase and moves to payment.
func (h *CheckoutHandler) PurchaseSubmit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	session, f := h.loadFlow(r)
	if f == nil || f.Kind != models.KindCourse || f.CourseID != id {
		h.redirectWithFlash(w, r, "/courses/"+url.PathEscape(id)+"/enroll", "error", sessionExpired)
		return
	}
	h.submit(w, r, session, f, purchasePath(id, f.Plan))
}

// SubscribeForm is the header call-to-action for the all-access pass.
func (h *CheckoutHandler) SubscribeForm(w http.ResponseWriter, r *http.Request) {
	session, f := h.loadFlow(r)
	if f != nil && f.Kind == models.KindSubscription && created(f) {
		http.Redirect(w, r, checkout.ContinuationFor(f).Encode(), http.StatusSeeOther)
		return
	}
	if f == nil || f.Kind != models.KindSubscription || !open(f) {
		f = checkout.NewSubscriptionFlow()
		h.saveFlow(w, r, session, f)
	}
	pricing := h.Orchestrator.Pricing()
	h.render(w, r, "contact.html", map[string]interface{}{
		"Flow":    f,
		"Heading": checkout.SubscriptionTitle(models.SubscriptionThreeMonths),
		"Action":  "/subscribe",
		"Summary": pricing.Summary(pricing.PassCents, false, ""),
	})
}

func (h *CheckoutHandler) SubscribeSubmit(w http.ResponseWriter, r *http.Request) {
	session, f := h.loadFlow(r)
	if f == nil || f.Kind != models.KindSubscription {
		f = checkout.NewSubscriptionFlow()
	}
	h.submit(w, r, session, f, "/subscribe")
}

// submit runs the contact step shared by every flow. Failures go back to
// the form, which re-renders from the flow with the entered values.
func (h *CheckoutHandler) submit(w http.ResponseWriter, r *http.Request, session *sessions.Session, f *checkout.Flow, formPath string) {
	if created(f) {
		http.Redirect(w, r, checkout.ContinuationFor(f).Encode(), http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.redirectWithFlash(w, r, formPath, "error", "Invalid form data.")
		return
	}

	cont, err := h.Orchestrator.Submit(r.Context(), f, contactFrom(r))
	h.saveFlow(w, r, session, f)
	if err != nil {
		msg := f.LastError
		if msg == "" {
			msg = checkout.Message(err)
		}
		h.redirectWithFlash(w, r, formPath, "error", msg)
		return
	}
	http.Redirect(w, r, cont.Encode(), http.StatusSeeOther)
}

// CheckoutPage is the payment page for any continuation.
func (h *CheckoutHandler) CheckoutPage(w http.ResponseWriter, r *http.Request) {
	cont, err := checkout.ParseContinuation(r.URL)
	if err != nil {
		h.redirectWithFlash(w, r, "/courses", "error", checkout.Message(err))
		return
	}
	pending, err := h.Orchestrator.Checkout(r.Context(), cont)
	if err != nil {
		if api.IsNotFound(err) {
			http.Error(w, "Checkout not found", http.StatusNotFound)
			return
		}
		h.renderStatus(w, r, http.StatusBadGateway, "checkout.html", map[string]interface{}{
			"Error": api.UserMessage(err, "Failed to load checkout"),
		})
		return
	}
	h.render(w, r, "checkout.html", map[string]interface{}{
		"Pending": pending,
		"Action":  cont.PayPath(),
	})
}

// Pay collects payment and hands the receipt to the success page.
func (h *CheckoutHandler) Pay(w http.ResponseWriter, r *http.Request) {
	cont, err := checkout.ParseContinuation(r.URL)
	if err != nil {
		h.redirectWithFlash(w, r, "/courses", "error", checkout.Message(err))
		return
	}
	if err := r.ParseForm(); err != nil {
		h.redirectWithFlash(w, r, cont.Encode(), "error", "Invalid form data.")
		return
	}
	card := payment.Card{
		Holder: r.PostFormValue("holder"),
		Number: r.PostFormValue("number"),
		Expiry: r.PostFormValue("expiry"),
		CVV:    r.PostFormValue("cvv"),
	}

	receipt, err := h.Orchestrator.Pay(r.Context(), cont, card)
	if err != nil {
		h.redirectWithFlash(w, r, cont.Encode(), "error", checkout.Message(err))
		return
	}

	session, f := h.loadFlow(r)
	session.Values[receiptKey] = *receipt
	if f != nil && f.RecordID == cont.RecordID {
		f = nil
	}
	h.saveFlow(w, r, session, f)
	http.Redirect(w, r, receipt.SuccessPath(), http.StatusSeeOther)
}

// Success renders the receipt for one kind. The receipt is read once and
// removed, so a reload or a direct visit lands back on the catalog.
func (h *CheckoutHandler) Success(kind models.Kind, page string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, _ := h.SessionStore.Get(r, checkoutSession)
		receipt, ok := session.Values[receiptKey].(checkout.Receipt)
		if !ok || receipt.Kind != kind {
			h.redirectWithFlash(w, r, "/courses", "info", "No recent purchase found.")
			return
		}
		delete(session.Values, receiptKey)
		if err := session.Save(r, w); err != nil {
			slog.Error("Failed to save checkout session", "error", err)
		}
		h.render(w, r, page, map[string]interface{}{"Receipt": receipt})
	}
}

// AccessLookupPage shows the purchase behind an access code.
func (h *CheckoutHandler) AccessLookupPage(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	data := map[string]interface{}{"Code": code}
	if code == "" {
		h.render(w, r, "access.html", data)
		return
	}
	purchase, err := h.Access.GetByAccessCode(r.Context(), code)
	switch {
	case err == nil:
		data["Purchase"] = purchase
	case api.IsNotFound(err):
		data["Error"] = "No purchase matches that access code."
	default:
		slog.Error("Access code lookup failed", "error", err)
		data["Error"] = api.UserMessage(err, "Failed to look up access code")
	}
	h.render(w, r, "access.html", data)
}
