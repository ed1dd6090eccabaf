package reporting

import "time"

// TimeRange bounds a report window. From is inclusive, To exclusive.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Valid reports whether the range is non-empty and ordered.
func (r TimeRange) Valid() bool {
	return !r.From.IsZero() && !r.To.IsZero() && r.From.Before(r.To)
}

// OrderSummaryRequest asks for dial statistics of one order over a window.
type OrderSummaryRequest struct {
	OrderID string    `json:"order_id"`
	Range   TimeRange `json:"range"`
}

// OrderSummary aggregates attempt outcomes for one order.
//
// Conversions counts completed sales plus recalls that converted. Rates
// are fractions of total attempts and zero when nothing was dialed.
type OrderSummary struct {
	OrderID string    `json:"order_id"`
	Range   TimeRange `json:"range"`

	TotalAttempts int `json:"total_attempts"`
	Incoming      int `json:"incoming"`
	Reached       int `json:"reached"`
	Conversions   int `json:"conversions"`
	NoAnswers     int `json:"no_answers"`
	Voicemails    int `json:"voicemails"`
	HungUps       int `json:"hung_ups"`
	CarrierMissed int `json:"carrier_missed"`
	InFlight      int `json:"in_flight"`

	TotalTalkSeconds int     `json:"total_talk_seconds"`
	AvgTalkSeconds   float64 `json:"avg_talk_seconds"`
	ReachRate        float64 `json:"reach_rate"`
	ConversionRate   float64 `json:"conversion_rate"`
}
