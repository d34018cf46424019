package entity

import (
	"time"
)

// OfferEventType names a lifecycle transition
type OfferEventType string

const (
	OfferCreated  OfferEventType = "offer.created"
	OfferAccepted OfferEventType = "offer.accepted"
	OfferExpired  OfferEventType = "offer.expired"
)

// OfferEvent is published after an offer changes state. It never carries personal data.
type OfferEvent struct {
	Type       OfferEventType `json:"type"`
	OfferID    string         `json:"offer_id"`
	Status     OfferStatus    `json:"status"`
	Premium    float64        `json:"premium"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewOfferEvent builds an event describing the offer's current state
func NewOfferEvent(eventType OfferEventType, offer *Offer, at time.Time) OfferEvent {
	return OfferEvent{
		Type:       eventType,
		OfferID:    offer.ID,
		Status:     offer.Status,
		Premium:    offer.Premium,
		OccurredAt: at.UTC(),
	}
}
