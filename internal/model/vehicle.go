package model

import "time"

// Vehicle is a campervan from the vehicle registry. Owned by the calling
// domain; the valuation pipeline only reads it.
type Vehicle struct {
	ID            string     `json:"id"`
	Make          string     `json:"make"`
	Model         string     `json:"model"`
	Year          int        `json:"year"`
	PurchasePrice int        `json:"purchase_price,omitempty"` // euros
	PurchaseDate  *time.Time `json:"purchase_date,omitempty"`
	OdometerKM    int        `json:"odometer_km,omitempty"`
	SevereFaults  []string   `json:"severe_faults,omitempty"`
	Upgrades      []string   `json:"upgrades,omitempty"`
}
