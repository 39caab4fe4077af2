package payment

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Card is what the payment form posts. Nothing here leaves the server.
type Card struct {
	Holder string
	Number string
	Expiry string // MM/YY
	CVV    string
}

// CardError names the first invalid field.
type CardError struct {
	Field   string
	Message string
}

func (e *CardError) Error() string { return e.Message }

type cleanCard struct {
	Holder string `validate:"required"`
	Number string `validate:"required,number,min=13,max=19"`
	Expiry string `validate:"required"`
	CVV    string `validate:"required,number,min=3,max=4"`
}

var cardMessages = map[string]string{
	"Number": "Please enter a valid card number",
	"CVV":    "Please enter a valid CVV",
}

var validate = validator.New()

// ValidateCard checks the form locally before any processor call.
func ValidateCard(c Card, now time.Time) error {
	cc := cleanCard{
		Holder: strings.TrimSpace(c.Holder),
		Number: strings.Join(strings.Fields(c.Number), ""),
		Expiry: strings.TrimSpace(c.Expiry),
		CVV:    strings.TrimSpace(c.CVV),
	}
	if cc.Holder == "" || cc.Number == "" || cc.Expiry == "" || cc.CVV == "" {
		return &CardError{Field: "card", Message: "Please fill in all payment fields"}
	}
	if err := validate.Struct(cc); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field := verrs[0].Field()
			return &CardError{Field: strings.ToLower(field), Message: cardMessages[field]}
		}
		return err
	}
	if !validExpiry(cc.Expiry, now) {
		return &CardError{Field: "expiry", Message: "Please enter a valid expiry date"}
	}
	return nil
}

func validExpiry(expiry string, now time.Time) bool {
	month, year, ok := strings.Cut(expiry, "/")
	if !ok {
		return false
	}
	m, err := strconv.Atoi(strings.TrimSpace(month))
	if err != nil || m < 1 || m > 12 {
		return false
	}
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil || y < 0 || y > 99 {
		return false
	}
	curYear, curMonth := now.Year()%100, int(now.Month())
	return y > curYear || (y == curYear && m >= curMonth)
}

// NewMethodID makes a payment method id of the form pm_<unix-ms>_<random>.
func NewMethodID() string {
	rnd := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("pm_%d_%s", time.Now().UnixMilli(), rnd)
}
