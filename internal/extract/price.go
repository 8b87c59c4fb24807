package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/furgoplaza/enrich-cli/internal/model"
)

// Prices are the three figures a valuation report carries, in whole euros.
type Prices struct {
	Asking int
	Target int
	Floor  int
}

var (
	askingRe = regexp.MustCompile(`(?i)precio de publicaci[oó]n:?\s*([0-9][0-9.,\s]*?)\s*€`)
	targetRe = regexp.MustCompile(`(?i)precio objetivo:?\s*([0-9][0-9.,\s]*?)\s*€`)
	floorRe  = regexp.MustCompile(`(?i)precio m[ií]nimo:?\s*([0-9][0-9.,\s]*?)\s*€`)
)

// ExtractPrices pulls the three labeled prices from a valuation report.
// Each price that the report does not state falls back, in order, to a
// heuristic over the vehicle's purchase price, then over the market average
// of the comparables, then to zero.
func ExtractPrices(report string, vehicle model.Vehicle, marketAverage *float64) Prices {
	return Prices{
		Asking: priceOrFallback(report, askingRe, vehicle, marketAverage, 1.10),
		Target: priceOrFallback(report, targetRe, vehicle, marketAverage, 1.00),
		Floor:  priceOrFallback(report, floorRe, vehicle, marketAverage, 0.90),
	}
}

func priceOrFallback(report string, re *regexp.Regexp, vehicle model.Vehicle, marketAverage *float64, factor float64) int {
	if m := re.FindStringSubmatch(report); m != nil {
		if amount, err := ParseEuroAmount(m[1]); err == nil && amount > 0 {
			return amount
		}
	}
	if vehicle.PurchasePrice > 0 {
		return int(math.Round(float64(vehicle.PurchasePrice) * factor))
	}
	if marketAverage != nil && *marketAverage > 0 {
		return int(math.Round(*marketAverage * factor))
	}
	return 0
}

// ParseEuroAmount parses a Spanish-formatted amount ("12.500", "12 500,00",
// "12500 €") into whole euros, truncating cents.
func ParseEuroAmount(s string) (int, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "€"))
	if s == "" {
		return 0, eris.New("empty amount")
	}

	// Drop a decimal part introduced by a comma.
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}

	var digits strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '.' || r == ' ' || r == ' ':
			// thousands separators
		default:
			return 0, eris.Errorf("unexpected character %q in amount %q", r, s)
		}
	}
	if digits.Len() == 0 {
		return 0, eris.Errorf("no digits in amount %q", s)
	}

	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0, eris.Wrapf(err, "parse amount %q", s)
	}
	return n, nil
}
