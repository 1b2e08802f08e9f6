package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
)

// PlaceholderImage is used when the upstream record has no image.
const PlaceholderImage = "assets/default-movie.png"

const searchPath = "/imdb/search"

// ErrDecode wraps failures to parse the upstream payload.
var ErrDecode = errors.New("catalog: decode response")

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog: upstream returned %d", e.StatusCode)
}

// Query is the fixed parameter set sent on every search.
type Query struct {
	Type  string
	Genre string
	Rows  int
}

// DefaultQuery returns type=movie, genre=Drama, rows=25.
func DefaultQuery() Query {
	return Query{Type: "movie", Genre: "Drama", Rows: 25}
}

// Client defines the contract for querying the upstream catalog search API.
type Client interface {
	// Search never returns a nil slice; on failure it returns an empty slice and the error.
	Search(ctx context.Context, q Query) ([]domain.Movie, error)
}

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	baseURL *url.URL
	apiKey  string
	apiHost string
	client  *http.Client
	logger  *log.Logger
}

// NewHTTPClient constructs a new HTTP-backed catalog client. A zero timeout
// leaves requests unbounded.
func NewHTTPClient(baseURL, apiKey, apiHost string, timeout time.Duration, logger *log.Logger) (*HTTPClient, error) {
	if logger == nil {
		logger = log.Default()
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse catalog url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse catalog url: %q is not absolute", baseURL)
	}
	if apiHost == "" {
		apiHost = parsed.Host
	}
	dialTimeout := timeout
	if dialTimeout == 0 {
		dialTimeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: parsed,
		apiKey:  apiKey,
		apiHost: apiHost,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   dialTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   dialTimeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		logger: logger,
	}, nil
}

// Search issues one GET against the search endpoint and maps the results.
func (c *HTTPClient) Search(ctx context.Context, q Query) ([]domain.Movie, error) {
	endpoint := c.searchURL(q)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return []domain.Movie{}, err
	}
	req.Header.Set("x-rapidapi-key", c.apiKey)
	req.Header.Set("x-rapidapi-host", c.apiHost)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Printf("catalog: request failed: %v", err)
		return []domain.Movie{}, fmt.Errorf("catalog: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Printf("catalog: unexpected status %d from %s", resp.StatusCode, c.baseURL.Host)
		return []domain.Movie{}, &StatusError{URL: endpoint, StatusCode: resp.StatusCode}
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.logger.Printf("catalog: decode failed: %v", err)
		return []domain.Movie{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return convertResults(payload.Results), nil
}

func (c *HTTPClient) searchURL(q Query) string {
	rel := &url.URL{Path: c.baseURL.Path + searchPath}
	params := rel.Query()
	if q.Type != "" {
		params.Set("type", q.Type)
	}
	if q.Genre != "" {
		params.Set("genre", q.Genre)
	}
	if q.Rows > 0 {
		params.Set("rows", strconv.Itoa(q.Rows))
	}
	rel.RawQuery = params.Encode()
	return c.baseURL.ResolveReference(rel).String()
}

type apiResponse struct {
	Rows           int         `json:"rows"`
	NumFound       int         `json:"numFound"`
	Results        []apiResult `json:"results"`
	NextCursorMark string      `json:"nextCursorMark"`
}

type apiCompany struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type apiResult struct {
	ID                  *string      `json:"id"`
	URL                 *string      `json:"url"`
	PrimaryTitle        *string      `json:"primaryTitle"`
	OriginalTitle       *string      `json:"originalTitle"`
	Type                *string      `json:"type"`
	Description         *string      `json:"description"`
	PrimaryImage        *string      `json:"primaryImage"`
	Trailer             *string      `json:"trailer"`
	ContentRating       *string      `json:"contentRating"`
	IsAdult             *bool        `json:"isAdult"`
	ReleaseDate         *string      `json:"releaseDate"`
	StartYear           *int         `json:"startYear"`
	RuntimeMinutes      *int         `json:"runtimeMinutes"`
	Genres              []string     `json:"genres"`
	CountriesOfOrigin   []string     `json:"countriesOfOrigin"`
	ProductionCompanies []apiCompany `json:"productionCompanies"`
	AverageRating       *float64     `json:"averageRating"`
	NumVotes            *int64       `json:"numVotes"`
}

func convertResults(results []apiResult) []domain.Movie {
	movies := make([]domain.Movie, 0, len(results))
	for _, r := range results {
		movies = append(movies, convertToMovie(r))
	}
	return movies
}

// convertToMovie maps one upstream record. Missing fields stay absent except
// for the image placeholder and an empty genre list.
func convertToMovie(r apiResult) domain.Movie {
	m := domain.Movie{
		ID:                deref(r.ID),
		URL:               deref(r.URL),
		PrimaryTitle:      strings.TrimSpace(deref(r.PrimaryTitle)),
		OriginalTitle:     deref(r.OriginalTitle),
		Type:              deref(r.Type),
		Description:       r.Description,
		PrimaryImage:      r.PrimaryImage,
		Trailer:           r.Trailer,
		ContentRating:     r.ContentRating,
		IsAdult:           r.IsAdult != nil && *r.IsAdult,
		StartYear:         r.StartYear,
		RuntimeMinutes:    r.RuntimeMinutes,
		Genres:            r.Genres,
		CountriesOfOrigin: r.CountriesOfOrigin,
		AverageRating:     r.AverageRating,
		NumVotes:          r.NumVotes,
	}

	if m.PrimaryImage == nil || strings.TrimSpace(*m.PrimaryImage) == "" {
		placeholder := PlaceholderImage
		m.PrimaryImage = &placeholder
	}
	if m.Genres == nil {
		m.Genres = []string{}
	}
	if r.ReleaseDate != nil && strings.TrimSpace(*r.ReleaseDate) != "" {
		// An unparseable date is dropped rather than failing the whole response.
		if d, err := domain.ParseDate(*r.ReleaseDate); err == nil {
			m.ReleaseDate = &d
		}
	}
	if len(r.ProductionCompanies) > 0 {
		m.ProductionCompanies = make([]domain.ProductionCompany, 0, len(r.ProductionCompanies))
		for _, pc := range r.ProductionCompanies {
			m.ProductionCompanies = append(m.ProductionCompanies, domain.ProductionCompany{ID: pc.ID, Name: pc.Name})
		}
	}
	return m
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
