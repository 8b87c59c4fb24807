// Package evidence gathers raw text about a parking area from several
// upstream sources and assembles the deduplicated, prioritized block the
// extraction prompts are built from.
package evidence

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/furgoplaza/enrich-cli/internal/resilience"
	"github.com/furgoplaza/enrich-cli/pkg/jina"
	"github.com/furgoplaza/enrich-cli/pkg/places"
)

// Result is a single raw finding from a source, before aggregation.
type Result struct {
	Title   string
	Snippet string
	URL     string
}

// Source produces raw findings for a query. Implementations wrap one
// upstream (web search, platform search, site reader, places).
type Source interface {
	// Name labels the source in evidence items and logs.
	Name() string
	// Search returns findings for the query. An empty slice with a nil
	// error means the source had nothing, which is not a failure.
	Search(ctx context.Context, query string) ([]Result, error)
}

// WebSearchSource runs an open web search through the Jina search API.
type WebSearchSource struct {
	client jina.Client
	retry  resilience.RetryConfig
}

// NewWebSearchSource creates a web search source.
func NewWebSearchSource(client jina.Client) *WebSearchSource {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("jina", "search")
	return &WebSearchSource{client: client, retry: retry}
}

func (s *WebSearchSource) Name() string { return "web" }

func (s *WebSearchSource) Search(ctx context.Context, query string) ([]Result, error) {
	results, err := resilience.Do(ctx, s.retry, func(ctx context.Context) ([]jina.Result, error) {
		return s.client.Search(ctx, query)
	})
	if err != nil {
		return nil, eris.Wrap(err, "web search")
	}
	return fromJina(results), nil
}

// PlatformSource searches a single campervan platform via a site-filtered
// Jina search (e.g. park4night.com, campercontact.com).
type PlatformSource struct {
	client jina.Client
	site   string
	retry  resilience.RetryConfig
}

// NewPlatformSource creates a source restricted to one platform domain.
func NewPlatformSource(client jina.Client, site string) *PlatformSource {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("jina", "search:"+site)
	return &PlatformSource{client: client, site: site, retry: retry}
}

func (s *PlatformSource) Name() string { return s.site }

func (s *PlatformSource) Search(ctx context.Context, query string) ([]Result, error) {
	results, err := resilience.Do(ctx, s.retry, func(ctx context.Context) ([]jina.Result, error) {
		return s.client.Search(ctx, query, jina.WithSite(s.site))
	})
	if err != nil {
		return nil, eris.Wrapf(err, "platform search %s", s.site)
	}
	return fromJina(results), nil
}

// SiteReaderSource fetches the area's own website through the Jina reader
// and returns its content as a single finding. The query passed to Search
// is the URL to read; an empty query yields no findings.
type SiteReaderSource struct {
	client jina.Client
	retry  resilience.RetryConfig
}

// NewSiteReaderSource creates an official-website reader source.
func NewSiteReaderSource(client jina.Client) *SiteReaderSource {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("jina", "read")
	return &SiteReaderSource{client: client, retry: retry}
}

func (s *SiteReaderSource) Name() string { return "sitio_oficial" }

func (s *SiteReaderSource) Search(ctx context.Context, query string) ([]Result, error) {
	target := strings.TrimSpace(query)
	if target == "" {
		return nil, nil
	}
	page, err := resilience.Do(ctx, s.retry, func(ctx context.Context) (*jina.Page, error) {
		return s.client.Read(ctx, target)
	})
	if err != nil {
		return nil, eris.Wrap(err, "read site")
	}
	if page == nil || strings.TrimSpace(page.Content) == "" {
		return nil, nil
	}
	return []Result{{Title: page.Title, Snippet: page.Content, URL: page.URL}}, nil
}

// PlacesSource looks the area up on Google Places and turns its reviews
// into findings.
type PlacesSource struct {
	client     places.Client
	maxReviews int
}

// NewPlacesSource creates a places/reviews source.
func NewPlacesSource(client places.Client) *PlacesSource {
	return &PlacesSource{client: client, maxReviews: 5}
}

func (s *PlacesSource) Name() string { return "places" }

func (s *PlacesSource) Search(ctx context.Context, query string) ([]Result, error) {
	matches, err := s.client.TextSearch(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "places search")
	}
	if len(matches) == 0 {
		return nil, nil
	}

	details, err := s.client.Details(ctx, matches[0].PlaceID)
	if err != nil {
		return nil, eris.Wrap(err, "places details")
	}

	var out []Result
	if details.Rating > 0 {
		out = append(out, Result{
			Title:   details.Name,
			Snippet: fmt.Sprintf("Valoración media en Google: %.1f/5", details.Rating),
			URL:     details.Website,
		})
	}
	for i, rev := range details.Reviews {
		if i >= s.maxReviews {
			break
		}
		if strings.TrimSpace(rev.Text) == "" {
			continue
		}
		out = append(out, Result{
			Title:   fmt.Sprintf("Reseña de %s (%d/5)", rev.AuthorName, rev.Rating),
			Snippet: rev.Text,
		})
	}
	return out, nil
}

func fromJina(in []jina.Result) []Result {
	out := make([]Result, 0, len(in))
	for _, r := range in {
		snippet := r.Content
		if strings.TrimSpace(snippet) == "" {
			snippet = r.Description
		}
		out = append(out, Result{Title: r.Title, Snippet: snippet, URL: r.URL})
	}
	return out
}
