package checkout

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Byte limits for free text. The whole flow has to fit in one session
// cookie, so these are checked before anything is stored or sent.
const (
	MaxNameBytes    = 100
	MaxEmailBytes   = 254
	MaxPhoneBytes   = 30
	MaxMessageBytes = 500
	MaxTopics       = 5
	MaxTopicBytes   = 40

	maxSlotBytes  = 64
	maxErrorBytes = 200
)

type Contact struct {
	Name  string `validate:"required,maxbytes=100"`
	Email string `validate:"required,email,maxbytes=254"`
	Phone string `validate:"maxbytes=30"`
}

type bookingContact struct {
	Name  string `validate:"required,maxbytes=100"`
	Email string `validate:"required,email,maxbytes=254"`
	Phone string `validate:"required,maxbytes=30"`
}

type bookingNote struct {
	Message string   `validate:"maxbytes=500"`
	Topics  []string `validate:"max=5,dive,maxbytes=40"`
}

// ValidationError carries one message per offending form field. No
// network call is made when it is returned.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e.Fields[k])
	}
	return strings.Join(msgs, "; ")
}

var validate = newValidator()

// maxbytes bounds the encoded size of a string, where max counts runes.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		return err == nil && len(fl.Field().String()) <= limit
	})
	return v
}

var fieldMessages = map[string]string{
	"Name.required":    "Please enter your name",
	"Name.maxbytes":    "Please enter a shorter name",
	"Email.required":   "Please enter your email address",
	"Email.email":      "Please enter a valid email address",
	"Email.maxbytes":   "Please enter a shorter email address",
	"Phone.required":   "Please enter your phone number",
	"Phone.maxbytes":   "Please enter a shorter phone number",
	"Message.maxbytes": "Please keep your message under " + strconv.Itoa(MaxMessageBytes) + " characters",
	"Topics.max":       "Please pick at most " + strconv.Itoa(MaxTopics) + " topics",
	"Topics.maxbytes":  "Please keep each topic under " + strconv.Itoa(MaxTopicBytes) + " characters",
}

var indexSuffix = regexp.MustCompile(`\[\d+\]$`)

func (c Contact) normalized() Contact {
	return Contact{
		Name:  strings.TrimSpace(c.Name),
		Email: strings.TrimSpace(c.Email),
		Phone: strings.TrimSpace(c.Phone),
	}
}

// ValidateContact checks the contact form. Bookings also need a phone number.
func ValidateContact(c Contact, requirePhone bool) error {
	c = c.normalized()
	var target any = c
	if requirePhone {
		target = bookingContact(c)
	}
	return validateFields(target)
}

// validateFields turns validator failures into one message per form field.
func validateFields(target any) error {
	err := validate.Struct(target)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := indexSuffix.ReplaceAllString(fe.Field(), "")
		name := strings.ToLower(field)
		if _, seen := fields[name]; seen {
			continue
		}
		fields[name] = fieldMessages[field+"."+fe.Tag()]
	}
	return &ValidationError{Fields: fields}
}

// Clipped cuts every field to its limit so rejected input can still be
// kept for the form to show again.
func (c Contact) Clipped() Contact {
	return Contact{
		Name:  clip(c.Name, MaxNameBytes),
		Email: clip(c.Email, MaxEmailBytes),
		Phone: clip(c.Phone, MaxPhoneBytes),
	}
}

// clip shortens s to at most n bytes without splitting a rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
