package entity

import (
	"time"
)

// ConversionStats summarizes how many offers were accepted within a rolling window
type ConversionStats struct {
	Days                  int       `json:"-"`
	TotalOffers           int64     `json:"totalOffers"`
	AcceptedWithinDays    int64     `json:"acceptedWithinDays"`
	ConversionRatePercent float64   `json:"conversionRatePercent"`
	ComputedAt            time.Time `json:"-"`
}
