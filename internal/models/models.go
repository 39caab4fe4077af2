package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type Level string

const (
	LevelBeginner     Level = "BEGINNER"
	LevelIntermediate Level = "INTERMEDIATE"
	LevelAdvanced     Level = "ADVANCED"
)

// Levels lists the catalog levels in display order.
var Levels = []Level{LevelBeginner, LevelIntermediate, LevelAdvanced}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

type SubscriptionType string

const (
	SubscriptionMonthly     SubscriptionType = "MONTHLY"
	SubscriptionThreeMonths SubscriptionType = "3_MONTH"
)

type SubscriptionStatus string

const (
	SubscriptionPending   SubscriptionStatus = "PENDING"
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionExpired   SubscriptionStatus = "EXPIRED"
	SubscriptionCancelled SubscriptionStatus = "CANCELLED"
)

// Price is a dollar amount. The API sends decimals either as JSON numbers
// or as numeric strings ("299.00"), both decode here.
type Price float64

func (p *Price) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		*p = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid price %q: %w", s, err)
	}
	*p = Price(f)
	return nil
}

// Cents rounds the price to whole cents.
func (p Price) Cents() int64 {
	return int64(math.Round(float64(p) * 100))
}

type Course struct {
	ID            string            `json:"course_id"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Price         Price             `json:"price"`
	DurationHours float64           `json:"duration_hours"`
	Level         Level             `json:"level"`
	ThumbnailURL  *string           `json:"thumbnail_url"`
	IntroVideoURL *string           `json:"intro_video_url"`
	SeriesName    *string           `json:"series_name,omitempty"`
	PartNumber    *int              `json:"part_number,omitempty"`
	IsPublished   bool              `json:"is_published"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	Category      *CourseCategory   `json:"category,omitempty"`
	Instructor    *CourseInstructor `json:"instructor,omitempty"`
}

type CourseCategory struct {
	ID   string `json:"category_id"`
	Name string `json:"name"`
}

type CourseInstructor struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

type GuestCoursePurchase struct {
	ID              string           `json:"purchase_id"`
	CourseID        string           `json:"course_id"`
	CustomerName    string           `json:"customer_name"`
	CustomerEmail   string           `json:"customer_email"`
	CustomerPhone   string           `json:"customer_phone,omitempty"`
	CoursePrice     Price            `json:"course_price"`
	PaymentStatus   PaymentStatus    `json:"payment_status"`
	PaymentMethod   string           `json:"payment_method,omitempty"`
	TransactionID   string           `json:"transaction_id,omitempty"`
	AccessCode      string           `json:"access_code"`
	AccessExpiresAt *time.Time       `json:"access_expires_at,omitempty"`
	IsActive        bool             `json:"is_active"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	Course          *PurchasedCourse `json:"course,omitempty"`
}

// PurchasedCourse is the course summary embedded in a purchase record.
type PurchasedCourse struct {
	ID           string  `json:"course_id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	ThumbnailURL *string `json:"thumbnail_url,omitempty"`
	Price        Price   `json:"price"`
}

// CourseTitle returns the embedded course title or "" when the API left it out.
func (p *GuestCoursePurchase) CourseTitle() string {
	if p.Course == nil {
		return ""
	}
	return p.Course.Title
}

type GuestSubscription struct {
	ID               string             `json:"subscription_id"`
	CustomerName     string             `json:"customer_name"`
	CustomerEmail    string             `json:"customer_email"`
	CustomerPhone    string             `json:"customer_phone,omitempty"`
	SubscriptionType SubscriptionType   `json:"subscription_type"`
	Price            Price              `json:"price"`
	DurationMonths   int                `json:"duration_months"`
	PaymentStatus    PaymentStatus      `json:"payment_status"`
	Status           SubscriptionStatus `json:"status"`
	PaymentMethod    string             `json:"payment_method,omitempty"`
	TransactionID    string             `json:"transaction_id,omitempty"`
	StartDate        *time.Time         `json:"start_date,omitempty"`
	EndDate          *time.Time         `json:"end_date,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

type GuestBooking struct {
	ID             string            `json:"guest_booking_id"`
	InstructorID   string            `json:"instructor_id"`
	InstructorName string            `json:"instructor_name,omitempty"`
	CustomerName   string            `json:"customer_name"`
	CustomerEmail  string            `json:"customer_email"`
	CustomerPhone  string            `json:"customer_phone"`
	PreferredDate  string            `json:"preferred_date"`
	PreferredTime  string            `json:"preferred_time"`
	Message        string            `json:"message,omitempty"`
	SessionPrice   Price             `json:"session_price"`
	PaymentStatus  PaymentStatus     `json:"payment_status"`
	TransactionID  string            `json:"transaction_id,omitempty"`
	Instructor     *BookedInstructor `json:"instructor,omitempty"`
}

type BookedInstructor struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// MentorName prefers the embedded instructor record over the flat name field.
func (b *GuestBooking) MentorName() string {
	if b.Instructor != nil {
		return strings.TrimSpace(b.Instructor.FirstName + " " + b.Instructor.LastName)
	}
	return b.InstructorName
}

type Instructor struct {
	ID              string    `json:"instructor_id"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Email           string    `json:"email"`
	Bio             string    `json:"bio,omitempty"`
	ProfileImageURL string    `json:"profile_image_url,omitempty"`
	Specialties     []string  `json:"specialties"`
	ExperienceYears int       `json:"experience_years"`
	Certifications  []string  `json:"certifications"`
	HourlyRate      Price     `json:"hourly_rate"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

func (i Instructor) Name() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// Request/response payloads for the guest endpoints.

type CreatePurchaseRequest struct {
	CourseID      string `json:"courseId"`
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	CustomerPhone string `json:"customerPhone,omitempty"`
}

type CreatePurchaseResponse struct {
	PurchaseID    string        `json:"purchase_id"`
	CourseID      string        `json:"course_id"`
	CourseTitle   string        `json:"course_title"`
	CustomerName  string        `json:"customer_name"`
	CustomerEmail string        `json:"customer_email"`
	CoursePrice   Price         `json:"course_price"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	CheckoutURL   string        `json:"checkout_url"`
}

type CreateSubscriptionRequest struct {
	CustomerName     string           `json:"customerName"`
	CustomerEmail    string           `json:"customerEmail"`
	CustomerPhone    string           `json:"customerPhone,omitempty"`
	SubscriptionType SubscriptionType `json:"subscriptionType"`
}

type CreateSubscriptionResponse struct {
	SubscriptionID   string           `json:"subscription_id"`
	CustomerName     string           `json:"customer_name"`
	CustomerEmail    string           `json:"customer_email"`
	SubscriptionType SubscriptionType `json:"subscription_type"`
	Price            Price            `json:"price"`
	PaymentStatus    PaymentStatus    `json:"payment_status"`
	CheckoutURL      string           `json:"checkout_url"`
}

type CreateBookingRequest struct {
	InstructorID    string   `json:"instructorId"`
	CustomerName    string   `json:"customerName"`
	CustomerEmail   string   `json:"customerEmail"`
	CustomerPhone   string   `json:"customerPhone"`
	PreferredDate   string   `json:"preferredDate"`
	PreferredTime   string   `json:"preferredTime"`
	Message         string   `json:"message,omitempty"`
	PreferredTopics []string `json:"preferredTopics,omitempty"`
}

type CreateBookingResponse struct {
	BookingID      string        `json:"guest_booking_id"`
	InstructorID   string        `json:"instructor_id"`
	InstructorName string        `json:"instructor_name"`
	CustomerName   string        `json:"customer_name"`
	CustomerEmail  string        `json:"customer_email"`
	PreferredDate  string        `json:"preferred_date"`
	PreferredTime  string        `json:"preferred_time"`
	SessionPrice   Price         `json:"session_price"`
	PaymentStatus  PaymentStatus `json:"payment_status"`
	CheckoutURL    string        `json:"checkout_url"`
}

type PaymentStatusUpdate struct {
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	PaymentMethod string        `json:"paymentMethod,omitempty"`
	TransactionID string        `json:"transactionId,omitempty"`
}

// Kind names the three guest record types a checkout can produce.
type Kind string

const (
	KindCourse       Kind = "course"
	KindSubscription Kind = "subscription"
	KindBooking      Kind = "booking"
)

func (k Kind) Valid() bool {
	switch k {
	case KindCourse, KindSubscription, KindBooking:
		return true
	}
	return false
}
