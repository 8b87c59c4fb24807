package evidence

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/furgoplaza/enrich-cli/internal/model"
)

// ErrInsufficientEvidence is returned by Gather when the aggregated
// evidence does not reach the configured minimum amount of text.
var ErrInsufficientEvidence = eris.New("insufficient evidence gathered")

// Stage is one source queried during gathering. Stages run in ascending
// Rank order; lower rank means more trusted evidence.
type Stage struct {
	Name   string
	Rank   int
	Query  string
	Source Source
}

// Options tunes aggregation.
type Options struct {
	// MaxItems caps the evidence list after dedup. Zero means no cap.
	MaxItems int
	// MinChars is the minimum total snippet length required across all
	// kept items. Below it, Gather returns ErrInsufficientEvidence.
	MinChars int
	// Denylist drops items whose URL or text contains any of these
	// substrings (case-insensitive).
	Denylist []string
}

// Gather runs every stage, deduplicates and filters the findings, and
// returns them ordered by stage rank. A stage that fails is logged and
// skipped; only a total shortfall of evidence is an error.
func Gather(ctx context.Context, stages []Stage, opts Options) ([]model.EvidenceItem, error) {
	ordered := make([]Stage, len(stages))
	copy(ordered, stages)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Rank < ordered[j].Rank })

	seen := make(map[string]struct{})
	var items []model.EvidenceItem

	for _, stage := range ordered {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		results, err := stage.Source.Search(ctx, stage.Query)
		if err != nil {
			zap.L().Warn("evidence stage failed",
				zap.String("stage", stage.Name),
				zap.String("query", stage.Query),
				zap.Error(err),
			)
			continue
		}

		for _, r := range results {
			text := strings.TrimSpace(r.Snippet)
			if text == "" {
				continue
			}
			if denied(r, opts.Denylist) {
				continue
			}
			key := dedupKey(r)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}

			items = append(items, model.EvidenceItem{
				Text:         text,
				URL:          r.URL,
				SourceLabel:  stage.Source.Name(),
				PriorityRank: stage.Rank,
				OriginQuery:  stage.Query,
			})
		}
	}

	if opts.MaxItems > 0 && len(items) > opts.MaxItems {
		items = items[:opts.MaxItems]
	}

	total := 0
	for _, it := range items {
		total += len(it.Text)
	}
	if total < opts.MinChars {
		return nil, eris.Wrapf(ErrInsufficientEvidence, "%d chars across %d items, need %d", total, len(items), opts.MinChars)
	}

	return items, nil
}

// FormatBlock renders evidence items as the numbered text block embedded in
// extraction prompts.
func FormatBlock(items []model.EvidenceItem) string {
	var b strings.Builder
	for i, it := range items {
		fmt.Fprintf(&b, "[%d] Fuente: %s", i+1, it.SourceLabel)
		if it.URL != "" {
			fmt.Fprintf(&b, " (%s)", it.URL)
		}
		b.WriteString("\n")
		b.WriteString(it.Text)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func denied(r Result, denylist []string) bool {
	if len(denylist) == 0 {
		return false
	}
	haystack := strings.ToLower(r.URL + " " + r.Title + " " + r.Snippet)
	for _, d := range denylist {
		if d == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(d)) {
			return true
		}
	}
	return false
}

// dedupKey identifies a finding by its URL when present, otherwise by a
// diacritic-insensitive fingerprint of its text. Spanish sources routinely
// republish the same snippet with and without accents.
func dedupKey(r Result) string {
	if u := strings.TrimSpace(strings.ToLower(r.URL)); u != "" {
		return "url:" + strings.TrimRight(u, "/")
	}
	return "txt:" + fingerprint(r.Snippet)
}

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func fingerprint(text string) string {
	flat, _, err := transform.String(deaccent, strings.ToLower(text))
	if err != nil {
		flat = strings.ToLower(text)
	}
	return strings.Join(strings.Fields(flat), " ")
}
