package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/require"

	"github.com/alextreichler/detailacademy/internal/api"
	"github.com/alextreichler/detailacademy/internal/catalog"
	"github.com/alextreichler/detailacademy/internal/checkout"
	"github.com/alextreichler/detailacademy/internal/guest"
	"github.com/alextreichler/detailacademy/internal/models"
	"github.com/alextreichler/detailacademy/internal/payment"
	"github.com/alextreichler/detailacademy/internal/store"
)

// fakeAPI is an in-memory academy API.
type fakeAPI struct {
	mu            sync.Mutex
	courses       []models.Course
	instructors   []models.Instructor
	purchases     map[string]*models.GuestCoursePurchase
	subscriptions map[string]*models.GuestSubscription
	bookings      map[string]*models.GuestBooking

	createFail string // server message returned by every create while set
	createKeys []string
	updates    int
}

func day(n int) time.Time {
	return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		courses: []models.Course{
			{ID: "c1", Title: "Paint Correction Part 1", Price: 299, Level: models.LevelBeginner, IsPublished: true, CreatedAt: day(1)},
			{ID: "c2", Title: "Paint Correction Part 2", Price: 299, Level: models.LevelIntermediate, IsPublished: true, CreatedAt: day(2)},
			{ID: "c3", Title: "Interior Basics", Price: 149, Level: models.LevelBeginner, IsPublished: true, CreatedAt: day(3)},
			{ID: "c4", Title: "Ceramic Coatings", Price: 499, Level: models.LevelAdvanced, IsPublished: true, CreatedAt: day(4)},
			{ID: "c5", Title: "Wheel Care", Price: 99, Level: models.LevelIntermediate, IsPublished: true, CreatedAt: day(5)},
			{ID: "c6", Title: "Draft Course", Price: 10, Level: models.LevelBeginner, IsPublished: false, CreatedAt: day(6)},
		},
		instructors: []models.Instructor{
			{ID: "ins-1", FirstName: "Marco", LastName: "Ruiz", HourlyRate: 150, IsActive: true, Specialties: []string{"Paint Correction"}},
			{ID: "ins-2", FirstName: "Lena", LastName: "Park", HourlyRate: 180, IsActive: true, Specialties: []string{"Ceramic Coatings", "Interiors"}},
		},
		purchases:     map[string]*models.GuestCoursePurchase{},
		subscriptions: map[string]*models.GuestSubscription{},
		bookings:      map[string]*models.GuestBooking{},
	}
}

func reply(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func replyError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": map[string]any{"message": msg}})
}

func (a *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/courses", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		reply(w, a.courses)
	})
	mux.HandleFunc("GET /api/courses/{id}", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		for _, c := range a.courses {
			if c.ID == r.PathValue("id") {
				reply(w, c)
				return
			}
		}
		replyError(w, http.StatusNotFound, "Course not found")
	})
	mux.HandleFunc("GET /api/instructors", func(w http.ResponseWriter, r *http.Request) {
		reply(w, a.instructors)
	})
	mux.HandleFunc("GET /api/instructors/specialty/{specialty}", func(w http.ResponseWriter, r *http.Request) {
		out := []models.Instructor{}
		for _, i := range a.instructors {
			for _, s := range i.Specialties {
				if strings.EqualFold(s, r.PathValue("specialty")) {
					out = append(out, i)
					break
				}
			}
		}
		reply(w, out)
	})
	mux.HandleFunc("GET /api/instructors/{id}", func(w http.ResponseWriter, r *http.Request) {
		for _, i := range a.instructors {
			if i.ID == r.PathValue("id") {
				reply(w, i)
				return
			}
		}
		replyError(w, http.StatusNotFound, "Instructor not found")
	})

	mux.HandleFunc("POST /api/guest-course-purchases", func(w http.ResponseWriter, r *http.Request) {
		var req models.CreatePurchaseRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		a.mu.Lock()
		defer a.mu.Unlock()
		if !a.created(w, r) {
			return
		}
		var course models.Course
		for _, c := range a.courses {
			if c.ID == req.CourseID {
				course = c
			}
		}
		id := fmt.Sprintf("pur-%d", len(a.purchases)+1)
		a.purchases[id] = &models.GuestCoursePurchase{
			ID: id, CourseID: course.ID, CustomerName: req.CustomerName, CustomerEmail: req.CustomerEmail,
			CoursePrice: course.Price, PaymentStatus: models.PaymentPending, AccessCode: "ACC-" + id,
			Course: &models.PurchasedCourse{ID: course.ID, Title: course.Title, Price: course.Price},
		}
		reply(w, models.CreatePurchaseResponse{PurchaseID: id, CourseID: course.ID, CoursePrice: course.Price})
	})
	mux.HandleFunc("GET /api/guest-course-purchases/{id}", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		if p, ok := a.purchases[r.PathValue("id")]; ok {
			reply(w, p)
			return
		}
		replyError(w, http.StatusNotFound, "Purchase not found")
	})
	mux.HandleFunc("GET /api/guest-course-purchases/access/{code}", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		for _, p := range a.purchases {
			if p.AccessCode == r.PathValue("code") {
				reply(w, p)
				return
			}
		}
		replyError(w, http.StatusNotFound, "Invalid access code")
	})
	mux.HandleFunc("PUT /api/guest-course-purchases/{id}/payment", func(w http.ResponseWriter, r *http.Request) {
		var upd models.PaymentStatusUpdate
		_ = json.NewDecoder(r.Body).Decode(&upd)
		a.mu.Lock()
		defer a.mu.Unlock()
		p := a.purchases[r.PathValue("id")]
		a.updates++
		p.PaymentStatus, p.TransactionID, p.IsActive = upd.PaymentStatus, upd.TransactionID, true
		reply(w, p)
	})

	mux.HandleFunc("POST /api/guest-subscriptions", func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateSubscriptionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		a.mu.Lock()
		defer a.mu.Unlock()
		if !a.created(w, r) {
			return
		}
		id := fmt.Sprintf("sub-%d", len(a.subscriptions)+1)
		a.subscriptions[id] = &models.GuestSubscription{
			ID: id, CustomerName: req.CustomerName, CustomerEmail: req.CustomerEmail,
			SubscriptionType: req.SubscriptionType, Price: 1200, PaymentStatus: models.PaymentPending,
		}
		reply(w, models.CreateSubscriptionResponse{SubscriptionID: id, SubscriptionType: req.SubscriptionType, Price: 1200})
	})
	mux.HandleFunc("GET /api/guest-subscriptions/{id}", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		if s, ok := a.subscriptions[r.PathValue("id")]; ok {
			reply(w, s)
			return
		}
		replyError(w, http.StatusNotFound, "Subscription not found")
	})
	mux.HandleFunc("PUT /api/guest-subscriptions/{id}/payment-status", func(w http.ResponseWriter, r *http.Request) {
		var upd models.PaymentStatusUpdate
		_ = json.NewDecoder(r.Body).Decode(&upd)
		a.mu.Lock()
		defer a.mu.Unlock()
		s := a.subscriptions[r.PathValue("id")]
		a.updates++
		s.PaymentStatus, s.TransactionID = upd.PaymentStatus, upd.TransactionID
		reply(w, s)
	})

	mux.HandleFunc("POST /api/guest-bookings", func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateBookingRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		a.mu.Lock()
		defer a.mu.Unlock()
		if !a.created(w, r) {
			return
		}
		id := fmt.Sprintf("bkg-%d", len(a.bookings)+1)
		b := &models.GuestBooking{
			ID: id, InstructorID: req.InstructorID, CustomerName: req.CustomerName, CustomerEmail: req.CustomerEmail,
			CustomerPhone: req.CustomerPhone, PreferredDate: req.PreferredDate, PreferredTime: req.PreferredTime,
			SessionPrice: 150, PaymentStatus: models.PaymentPending,
			Instructor: &models.BookedInstructor{FirstName: "Marco", LastName: "Ruiz"},
		}
		a.bookings[id] = b
		reply(w, models.CreateBookingResponse{BookingID: id, InstructorID: req.InstructorID, SessionPrice: 150})
	})
	mux.HandleFunc("GET /api/guest-bookings/{id}", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		if b, ok := a.bookings[r.PathValue("id")]; ok {
			reply(w, b)
			return
		}
		replyError(w, http.StatusNotFound, "Booking not found")
	})
	mux.HandleFunc("PUT /api/guest-bookings/{id}/payment", func(w http.ResponseWriter, r *http.Request) {
		var upd models.PaymentStatusUpdate
		_ = json.NewDecoder(r.Body).Decode(&upd)
		a.mu.Lock()
		defer a.mu.Unlock()
		b := a.bookings[r.PathValue("id")]
		a.updates++
		b.PaymentStatus, b.TransactionID = upd.PaymentStatus, upd.TransactionID
		reply(w, b)
	})
	return mux
}

// created records the idempotency key and applies createFail. Callers hold mu.
func (a *fakeAPI) created(w http.ResponseWriter, r *http.Request) bool {
	a.createKeys = append(a.createKeys, r.Header.Get("Idempotency-Key"))
	if a.createFail != "" {
		replyError(w, http.StatusBadRequest, a.createFail)
		return false
	}
	return true
}

func (a *fakeAPI) setCreateFail(msg string) {
	a.mu.Lock()
	a.createFail = msg
	a.mu.Unlock()
}

func (a *fakeAPI) counts() (creates, updates int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.createKeys), a.updates
}

type harness struct {
	t      *testing.T
	api    *fakeAPI
	app    *httptest.Server
	client *http.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	fake := newFakeAPI()
	apiSrv := httptest.NewServer(fake.handler())
	t.Cleanup(apiSrv.Close)

	client := api.New(api.Options{BaseURL: apiSrv.URL + "/api", Timeout: 5 * time.Second}, api.NewStaticToken(""), log)
	retry := guest.RetryConfig{Attempts: 1}

	ledger, err := store.NewStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	require.NoError(t, ledger.Migrate())
	t.Cleanup(func() { ledger.Close() })

	templates := NewTemplateCache()
	templates.AddFunc("supportEmail", func() string { return "help@academy.test" })
	require.NoError(t, templates.Load())
	pages := Pages{
		Templates:    templates,
		SessionStore: sessions.NewCookieStore([]byte(strings.Repeat("s", 32))),
	}

	purchases := guest.NewPurchaseService(client, retry)
	courses := catalog.NewService(client)
	orch := checkout.NewOrchestrator(checkout.Options{
		Purchases:     purchases,
		Subscriptions: guest.NewSubscriptionService(client, retry),
		Bookings:      guest.NewBookingService(client, retry),
		Processor:     &payment.Simulated{},
		Ledger:        ledger,
		Logger:        log,
	})

	guard := NewSubmitGuard(pages.SessionStore, true)
	mux := http.NewServeMux()
	Routes(mux,
		&CatalogHandler{Pages: pages, Catalog: courses},
		&CheckoutHandler{
			Pages:        pages,
			Catalog:      courses,
			Instructors:  guest.NewInstructorService(client),
			Access:       purchases,
			Orchestrator: orch,
		},
		guard,
	)
	app := httptest.NewServer(mux)
	t.Cleanup(app.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &harness{
		t:   t,
		api: fake,
		app: app,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// get returns the status, Location header and body.
func (h *harness) get(path string) (int, string, string) {
	h.t.Helper()
	resp, err := h.client.Get(h.app.URL + path)
	require.NoError(h.t, err)
	return read(h.t, resp)
}

func (h *harness) post(path string, form url.Values) (int, string, string) {
	h.t.Helper()
	resp, err := h.client.PostForm(h.app.URL+path, form)
	require.NoError(h.t, err)
	return read(h.t, resp)
}

func read(t *testing.T, resp *http.Response) (int, string, string) {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header.Get("Location"), string(body)
}

func contactForm(name, email string) url.Values {
	return url.Values{"name": {name}, "email": {email}, "phone": {"555-0100"}}
}

func cardForm() url.Values {
	return url.Values{"holder": {"Jane Doe"}, "number": {"4242424242424242"}, "expiry": {"12/99"}, "cvv": {"123"}}
}
