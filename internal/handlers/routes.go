package handlers

import (
	"net/http"

	"github.com/alextreichler/detailacademy/internal/models"
)

// Routes registers every public page on mux. Form posts go through guard.
func Routes(mux *http.ServeMux, site *CatalogHandler, shop *CheckoutHandler, guard *SubmitGuard) {
	mux.HandleFunc("GET /", site.Home)
	mux.HandleFunc("GET /courses", site.Courses)
	mux.HandleFunc("GET /about", site.Static("about.html"))
	mux.HandleFunc("GET /contact", site.Static("contact_us.html"))

	// Course purchase
	mux.HandleFunc("GET /courses/{id}/enroll", shop.Enroll)
	mux.HandleFunc("GET /courses/{id}/purchase", shop.PurchaseForm)
	mux.HandleFunc("POST /courses/{id}/purchase", guard.Middleware(shop.PurchaseSubmit))

	// All-access pass from the header
	mux.HandleFunc("GET /subscribe", shop.SubscribeForm)
	mux.HandleFunc("POST /subscribe", guard.Middleware(shop.SubscribeSubmit))

	// Mentorship booking
	mux.HandleFunc("GET /mentorship", shop.Mentorship)
	mux.HandleFunc("POST /mentorship/book", guard.Middleware(shop.Book))

	// Payment pages
	mux.HandleFunc("GET /course-checkout/{id}", shop.CheckoutPage)
	mux.HandleFunc("POST /course-checkout/{id}/pay", guard.Middleware(shop.Pay))
	mux.HandleFunc("GET /checkout/{id}", shop.CheckoutPage)
	mux.HandleFunc("POST /checkout/{id}/pay", guard.Middleware(shop.Pay))

	mux.HandleFunc("GET /course-success", shop.Success(models.KindCourse, "course_success.html"))
	mux.HandleFunc("GET /subscription-success", shop.Success(models.KindSubscription, "subscription_success.html"))
	mux.HandleFunc("GET /mentorship-success", shop.Success(models.KindBooking, "mentorship_success.html"))

	mux.HandleFunc("GET /access", shop.AccessLookupPage)
}
