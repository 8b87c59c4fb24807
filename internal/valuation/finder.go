// Package valuation finds market comparables for a vehicle and assembles
// the figures a valuation report is built from.
package valuation

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/furgoplaza/enrich-cli/internal/extract"
	"github.com/furgoplaza/enrich-cli/internal/model"
	"github.com/furgoplaza/enrich-cli/internal/resilience"
	"github.com/furgoplaza/enrich-cli/pkg/jina"
)

// Finder searches one marketplace for listings comparable to a vehicle.
type Finder interface {
	Find(ctx context.Context, vehicle model.Vehicle, marketplace string) ([]model.Comparable, error)
}

// JinaFinder finds comparables through site-filtered Jina searches and
// pulls price, year and mileage out of the listing snippets.
type JinaFinder struct {
	client jina.Client
	retry  resilience.RetryConfig
}

// NewJinaFinder creates a marketplace finder.
func NewJinaFinder(client jina.Client) *JinaFinder {
	return &JinaFinder{client: client, retry: resilience.DefaultRetryConfig()}
}

var (
	priceRe = regexp.MustCompile(`([0-9]{1,3}(?:\.[0-9]{3})+|[0-9]{4,6})\s*€`)
	kmRe    = regexp.MustCompile(`(?i)([0-9]{1,3}(?:\.[0-9]{3})+|[0-9]{3,6})\s*km\b`)
	yearRe  = regexp.MustCompile(`\b(19[89][0-9]|20[0-9]{2})\b`)
)

func (f *JinaFinder) Find(ctx context.Context, vehicle model.Vehicle, marketplace string) ([]model.Comparable, error) {
	query := fmt.Sprintf("%s %s camper segunda mano", vehicle.Make, vehicle.Model)
	if vehicle.Year > 0 {
		query = fmt.Sprintf("%s %s %d camper segunda mano", vehicle.Make, vehicle.Model, vehicle.Year)
	}
	query = strings.TrimSpace(query)

	retry := f.retry
	retry.OnRetry = resilience.RetryLogger("jina", "comparables:"+marketplace)
	results, err := resilience.Do(ctx, retry, func(ctx context.Context) ([]jina.Result, error) {
		return f.client.Search(ctx, query, jina.WithSite(marketplace))
	})
	if err != nil {
		return nil, eris.Wrapf(err, "search comparables on %s", marketplace)
	}

	comps := make([]model.Comparable, 0, len(results))
	for _, r := range results {
		text := r.Title + " " + r.Content + " " + r.Description
		comps = append(comps, model.Comparable{
			Title:       strings.TrimSpace(r.Title),
			Price:       findPrice(text),
			OdometerKM:  findKM(text),
			Year:        findYear(text),
			SourceURL:   r.URL,
			OriginLabel: marketplace,
		})
	}
	return comps, nil
}

func findPrice(text string) *int {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := extract.ParseEuroAmount(m[1])
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

func findKM(text string) *int {
	m := kmRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ".", ""))
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

func findYear(text string) *int {
	m := yearRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, _ := strconv.Atoi(m[1])
	return &n
}
