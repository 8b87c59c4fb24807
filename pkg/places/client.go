// Package places provides a client for the Google Places API, used for
// map/places evidence (reviews) and area photo enrichment.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the Places operations used by the pipeline.
type Client interface {
	// TextSearch looks up places matching a free-text query.
	TextSearch(ctx context.Context, query string) ([]Place, error)
	// Details fetches reviews, photos and website for a place.
	Details(ctx context.Context, placeID string) (*Details, error)
	// PhotoURL builds a fetchable URL for a photo reference.
	PhotoURL(photoReference string, maxWidth int) string
}

// Place is a single text-search match.
type Place struct {
	PlaceID          string  `json:"place_id"`
	Name             string  `json:"name"`
	FormattedAddress string  `json:"formatted_address"`
	Rating           float64 `json:"rating"`
	UserRatingsTotal int     `json:"user_ratings_total"`
}

// Review is a user review attached to a place.
type Review struct {
	AuthorName string `json:"author_name"`
	Rating     int    `json:"rating"`
	Text       string `json:"text"`
}

// Photo is a photo reference attached to a place.
type Photo struct {
	PhotoReference string `json:"photo_reference"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
}

// Details holds the detail fields the pipeline requests.
type Details struct {
	PlaceID string   `json:"place_id"`
	Name    string   `json:"name"`
	Website string   `json:"website"`
	Rating  float64  `json:"rating"`
	Reviews []Review `json:"reviews"`
	Photos  []Photo  `json:"photos"`
}

type searchEnvelope struct {
	Results []Place `json:"results"`
	Status  string  `json:"status"`
}

type detailsEnvelope struct {
	Result Details `json:"result"`
	Status string  `json:"status"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the API base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithQPS sets the client-side request rate limit.
func WithQPS(qps float64) Option {
	return func(c *httpClient) {
		if qps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(qps), 1)
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Places client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://maps.googleapis.com/maps/api/place",
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(5), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) TextSearch(ctx context.Context, query string) ([]Place, error) {
	params := url.Values{
		"query": {query},
		"key":   {c.apiKey},
	}

	var env searchEnvelope
	if err := c.get(ctx, "/textsearch/json", params, &env); err != nil {
		return nil, err
	}
	if env.Status != "OK" && env.Status != "ZERO_RESULTS" {
		return nil, eris.Errorf("places: textsearch status %s", env.Status)
	}
	return env.Results, nil
}

func (c *httpClient) Details(ctx context.Context, placeID string) (*Details, error) {
	params := url.Values{
		"place_id": {placeID},
		"fields":   {"place_id,name,website,rating,reviews,photos"},
		"key":      {c.apiKey},
	}

	var env detailsEnvelope
	if err := c.get(ctx, "/details/json", params, &env); err != nil {
		return nil, err
	}
	if env.Status != "OK" {
		return nil, eris.Errorf("places: details status %s", env.Status)
	}
	return &env.Result, nil
}

func (c *httpClient) PhotoURL(photoReference string, maxWidth int) string {
	if maxWidth <= 0 {
		maxWidth = 1200
	}
	params := url.Values{
		"photo_reference": {photoReference},
		"maxwidth":        {fmt.Sprintf("%d", maxWidth)},
		"key":             {c.apiKey},
	}
	return c.baseURL + "/photo?" + params.Encode()
}

func (c *httpClient) get(ctx context.Context, path string, params url.Values, out any) error {
	if c.apiKey == "" {
		return eris.New("places: api key not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "places: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return eris.Wrap(err, "places: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "places: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "places: read body")
	}
	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("places: status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "places: unmarshal response")
	}
	return nil
}
