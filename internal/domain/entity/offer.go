package entity

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OfferStatus represents the lifecycle state of an offer
type OfferStatus string

const (
	// OfferStatusPending is the initial state of every offer
	OfferStatusPending OfferStatus = "PENDING"
	// OfferStatusAccepted is terminal
	OfferStatusAccepted OfferStatus = "ACCEPTED"
	// OfferStatusExpired is terminal
	OfferStatusExpired OfferStatus = "EXPIRED"
)

const (
	// DefaultExpiryWindow is how long a pending offer stays acceptable
	DefaultExpiryWindow = 30 * 24 * time.Hour
)

// DefaultPremiumRate is the share of the total loan amount charged as premium
var DefaultPremiumRate = decimal.RequireFromString("0.038")

// Offer represents a loan-protection insurance offer made to a customer
type Offer struct {
	ID             string      `json:"id"`
	PersonalNumber string      `json:"personalNumber"`
	Loans          []float64   `json:"loans"`
	MonthlyAmount  float64     `json:"monthlyAmount"`
	Premium        float64     `json:"premium"`
	Status         OfferStatus `json:"status"`
	CreatedDate    time.Time   `json:"createdDate"`
	UpdatedTime    *time.Time  `json:"updatedTime,omitempty"`
	AcceptedDate   *time.Time  `json:"acceptedDate,omitempty"`
}

// IsTerminal reports whether the offer can no longer change status
func (o *Offer) IsTerminal() bool {
	return o.Status == OfferStatusAccepted || o.Status == OfferStatusExpired
}

// IsExpired reports whether a pending offer was created more than window before ref
func (o *Offer) IsExpired(ref time.Time, window time.Duration) bool {
	return o.Status == OfferStatusPending &&
		!o.CreatedDate.IsZero() &&
		o.CreatedDate.Before(ref.Add(-window))
}

// Accept moves the offer to ACCEPTED. Callers check the transition is allowed.
func (o *Offer) Accept(at time.Time) {
	o.Status = OfferStatusAccepted
	o.AcceptedDate = &at
}

// Expire moves the offer to EXPIRED and scrubs the customer identifier.
func (o *Offer) Expire() {
	o.Status = OfferStatusExpired
	o.PersonalNumber = ""
}

// Clone returns a deep copy so stores never share the loans slice with callers
func (o *Offer) Clone() *Offer {
	c := *o
	c.Loans = append([]float64(nil), o.Loans...)
	if o.UpdatedTime != nil {
		t := *o.UpdatedTime
		c.UpdatedTime = &t
	}
	if o.AcceptedDate != nil {
		t := *o.AcceptedDate
		c.AcceptedDate = &t
	}
	return &c
}

// CalculatePremium returns sum(loans) * rate using decimal arithmetic
func CalculatePremium(loans []float64, rate decimal.Decimal) float64 {
	sum := decimal.Zero
	for _, loan := range loans {
		sum = sum.Add(decimal.NewFromFloat(loan))
	}
	return sum.Mul(rate).InexactFloat64()
}

// ValidateOfferInput checks offer input and returns the first violation found
func ValidateOfferInput(personalNumber string, loans []float64, monthlyAmount float64) error {
	if strings.TrimSpace(personalNumber) == "" {
		return &ValidationError{Field: "personalNumber", Message: "personal number cannot be null or empty"}
	}

	if !(monthlyAmount > 0) || math.IsInf(monthlyAmount, 0) {
		return &ValidationError{Field: "monthlyAmount", Message: "monthly payment cannot be negative or zero"}
	}

	if len(loans) == 0 {
		return &ValidationError{Field: "loans", Message: "loans cannot be null or empty"}
	}

	for _, loan := range loans {
		// NaN fails the comparison as well
		if !(loan > 0) || math.IsInf(loan, 0) {
			return &ValidationError{Field: "loans", Message: "loans cannot contain null, negative or zero values"}
		}
	}

	return nil
}
