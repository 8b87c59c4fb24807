// Package model defines the domain types shared across the enrichment pipeline.
package model

import "time"

// Area is a campervan parking area from the directory catalog. The pipeline
// reads identity fields and writes back derived enrichment fields only; it
// never creates or deletes areas.
type Area struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	City        string          `json:"city"`
	Province    string          `json:"province"`
	Country     string          `json:"country"`
	Website     string          `json:"website,omitempty"`
	Description string          `json:"description,omitempty"`
	Services    map[string]bool `json:"services,omitempty"`
	Photos      []string        `json:"photos,omitempty"`
	EnrichedAt  *time.Time      `json:"enriched_at,omitempty"`
}

// HasAnyService reports whether at least one service flag is set.
func (a Area) HasAnyService() bool {
	for _, v := range a.Services {
		if v {
			return true
		}
	}
	return false
}

// ServiceKeys is the closed vocabulary of area service flags. Extraction
// output is validated against this set: keys outside it are dropped, keys
// missing from the model output default to false.
var ServiceKeys = []string{
	"agua",
	"electricidad",
	"aguas_grises",
	"aguas_negras",
	"wifi",
	"duchas",
	"wc",
	"lavanderia",
	"zona_picnic",
	"vigilancia",
}

// NormalizeServices returns a map containing exactly the closed vocabulary:
// every key present, true only where in carries an explicit true.
func NormalizeServices(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(ServiceKeys))
	for _, k := range ServiceKeys {
		out[k] = in[k]
	}
	return out
}
