package handler

import (
	"time"

	"github.com/damon-houk/insurance-offer-system/internal/domain/entity"
)

// OfferRequest is the body of the create and update offer endpoints
type OfferRequest struct {
	PersonalNumber string    `json:"personalNumber" validate:"required,number,min=10,max=12"`
	Loans          []float64 `json:"loans" validate:"required,min=1,dive,gt=0"`
	MonthlyPayment float64   `json:"monthlyPayment" validate:"required,gt=0"`
}

// OfferResponse represents an offer returned by the offer endpoints
type OfferResponse struct {
	ID             string     `json:"id"`
	PersonalNumber string     `json:"personalNumber"`
	Loans          []float64  `json:"loans"`
	MonthlyAmount  float64    `json:"monthlyAmount"`
	Premium        float64    `json:"premium"`
	Status         string     `json:"status"`
	CreatedDate    time.Time  `json:"createdDate"`
	UpdatedTime    *time.Time `json:"updatedTime,omitempty"`
	AcceptedDate   *time.Time `json:"acceptedDate,omitempty"`
}

func newOfferResponse(offer *entity.Offer) OfferResponse {
	return OfferResponse{
		ID:             offer.ID,
		PersonalNumber: offer.PersonalNumber,
		Loans:          offer.Loans,
		MonthlyAmount:  offer.MonthlyAmount,
		Premium:        offer.Premium,
		Status:         string(offer.Status),
		CreatedDate:    offer.CreatedDate,
		UpdatedTime:    offer.UpdatedTime,
		AcceptedDate:   offer.AcceptedDate,
	}
}

// ConversionStatsResponse represents the response of the conversion stats endpoint
type ConversionStatsResponse struct {
	Days                  int     `json:"days"`
	TotalOffers           int64   `json:"totalOffers"`
	AcceptedWithinDays    int64   `json:"acceptedWithinDays"`
	ConversionRatePercent float64 `json:"conversionRatePercent"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error       string            `json:"error"`
	Status      int               `json:"status"`
	Description string            `json:"description,omitempty"`
	RequestID   string            `json:"request_id,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}
