package valuation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/furgoplaza/enrich-cli/internal/extract"
	"github.com/furgoplaza/enrich-cli/internal/model"
)

// Assembler collects comparables across marketplaces and derives the
// figures attached to a valuation report.
type Assembler struct {
	finder         Finder
	marketplaces   []string
	maxComparables int
}

// NewAssembler creates an assembler. A nil finder yields an empty
// comparable set, which still produces an Estimative-tier report.
func NewAssembler(finder Finder, marketplaces []string, maxComparables int) *Assembler {
	return &Assembler{finder: finder, marketplaces: marketplaces, maxComparables: maxComparables}
}

// Collect searches every configured marketplace. A marketplace that fails
// is logged and skipped; comparables from the rest are still returned.
func (a *Assembler) Collect(ctx context.Context, vehicle model.Vehicle) []model.Comparable {
	if a.finder == nil {
		return nil
	}

	var comps []model.Comparable
	for _, marketplace := range a.marketplaces {
		if ctx.Err() != nil {
			break
		}
		found, err := a.finder.Find(ctx, vehicle, marketplace)
		if err != nil {
			zap.L().Warn("comparable search failed",
				zap.String("marketplace", marketplace),
				zap.Error(err),
			)
			continue
		}
		comps = append(comps, found...)
	}

	if a.maxComparables > 0 && len(comps) > a.maxComparables {
		comps = comps[:a.maxComparables]
	}
	return comps
}

// MarketAverage returns the mean price over the comparables that carry a
// price. Nil when none do.
func MarketAverage(comps []model.Comparable) *float64 {
	sum, n := 0, 0
	for _, c := range comps {
		if c.Price != nil && *c.Price > 0 {
			sum += *c.Price
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := float64(sum) / float64(n)
	return &avg
}

// DepreciationPct returns the loss of value from purchase price to target
// price as a percentage. Nil when no purchase price is known.
func DepreciationPct(vehicle model.Vehicle, targetPrice int) *float64 {
	if vehicle.PurchasePrice <= 0 {
		return nil
	}
	pct := (float64(vehicle.PurchasePrice) - float64(targetPrice)) / float64(vehicle.PurchasePrice) * 100
	return &pct
}

// BuildReport assembles the persisted valuation report from the model's
// text, the collected comparables and the extracted prices.
func BuildReport(vehicle model.Vehicle, reportText string, comps []model.Comparable, prices extract.Prices) model.ValuationReport {
	pricedAvg := MarketAverage(comps)
	return model.ValuationReport{
		ID:                 uuid.NewString(),
		VehicleID:          vehicle.ID,
		GeneratedAt:        time.Now().UTC(),
		AskingPrice:        prices.Asking,
		TargetPrice:        prices.Target,
		FloorPrice:         prices.Floor,
		ReportText:         reportText,
		Comparables:        comps,
		ComparableCount:    len(comps),
		ConfidenceTier:     model.TierForComparableCount(len(comps)),
		MarketAveragePrice: pricedAvg,
		DepreciationPct:    DepreciationPct(vehicle, prices.Target),
	}
}

// FormatComparablesBlock renders comparables for the valuation prompt.
func FormatComparablesBlock(comps []model.Comparable) string {
	if len(comps) == 0 {
		return "No se han encontrado anuncios comparables."
	}
	var b strings.Builder
	for i, c := range comps {
		fmt.Fprintf(&b, "[%d] %s", i+1, c.Title)
		if c.Price != nil {
			fmt.Fprintf(&b, " - %d €", *c.Price)
		}
		if c.Year != nil {
			fmt.Fprintf(&b, ", año %d", *c.Year)
		}
		if c.OdometerKM != nil {
			fmt.Fprintf(&b, ", %d km", *c.OdometerKM)
		}
		fmt.Fprintf(&b, " (%s)\n", c.OriginLabel)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatVehicleBlock renders the vehicle for the valuation prompt.
func FormatVehicleBlock(v model.Vehicle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", v.Make, v.Model)
	if v.Year > 0 {
		fmt.Fprintf(&b, " (%d)", v.Year)
	}
	b.WriteString("\n")
	if v.OdometerKM > 0 {
		fmt.Fprintf(&b, "Kilometraje: %d km\n", v.OdometerKM)
	}
	if v.PurchasePrice > 0 {
		fmt.Fprintf(&b, "Precio de compra: %d €\n", v.PurchasePrice)
	}
	if v.PurchaseDate != nil {
		fmt.Fprintf(&b, "Fecha de compra: %s\n", v.PurchaseDate.Format("2006-01-02"))
	}
	if len(v.SevereFaults) > 0 {
		fmt.Fprintf(&b, "Averías relevantes: %s\n", strings.Join(v.SevereFaults, "; "))
	}
	if len(v.Upgrades) > 0 {
		fmt.Fprintf(&b, "Mejoras: %s\n", strings.Join(v.Upgrades, "; "))
	}
	return strings.TrimRight(b.String(), "\n")
}
