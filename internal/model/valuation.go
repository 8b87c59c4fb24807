package model

import "time"

// Comparable is a third-party market listing used to benchmark a valuation.
// Collected before the prompt is compiled, embedded into the prompt as
// evidence, and persisted alongside the final report for auditability.
type Comparable struct {
	Title       string `json:"title"`
	Price       *int   `json:"price,omitempty"` // euros
	OdometerKM  *int   `json:"odometer_km,omitempty"`
	Year        *int   `json:"year,omitempty"`
	SourceURL   string `json:"source_url"`
	OriginLabel string `json:"origin_label"`
}

// ConfidenceTier grades a valuation by how much market evidence backs it.
type ConfidenceTier string

const (
	TierEstimative ConfidenceTier = "Estimative"
	TierLow        ConfidenceTier = "Low"
	TierMedium     ConfidenceTier = "Medium"
	TierHigh       ConfidenceTier = "High"
)

// Comparable-count cut points for each tier. Policy constants carried over
// from observed directory behavior, overridable in one place.
const (
	TierLowMinComparables    = 1
	TierMediumMinComparables = 3
	TierHighMinComparables   = 5
)

// TierForComparableCount derives the confidence tier solely from the number
// of comparables found, never from the model's own claim.
func TierForComparableCount(n int) ConfidenceTier {
	switch {
	case n >= TierHighMinComparables:
		return TierHigh
	case n >= TierMediumMinComparables:
		return TierMedium
	case n >= TierLowMinComparables:
		return TierLow
	default:
		return TierEstimative
	}
}

// ValuationReport is the persisted outcome of one valuation run. Reports are
// append-only history: a new run creates a new record, never an overwrite.
type ValuationReport struct {
	ID                 string         `json:"id"`
	VehicleID          string         `json:"vehicle_id"`
	GeneratedAt        time.Time      `json:"generated_at"`
	AskingPrice        int            `json:"asking_price"`
	TargetPrice        int            `json:"target_price"`
	FloorPrice         int            `json:"floor_price"`
	ReportText         string         `json:"report_text"`
	Comparables        []Comparable   `json:"comparables,omitempty"`
	ComparableCount    int            `json:"comparable_count"`
	ConfidenceTier     ConfidenceTier `json:"confidence_tier"`
	MarketAveragePrice *float64       `json:"market_average_price,omitempty"`
	DepreciationPct    *float64       `json:"depreciation_pct,omitempty"`
}
