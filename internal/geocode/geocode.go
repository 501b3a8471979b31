package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Wuchinator/landing-analytics/internal/metrics"
	"go.uber.org/zap"
)

var ErrUnexpectedStatus = errors.New("unexpected geocoder status")

// Place is the human readable location for a coordinate. Any field may be
// nil independently of the others.
type Place struct {
	Municipality *string `json:"municipality"`
	Region       *string `json:"region"`
	Country      *string `json:"country"`
}

// Resolver turns coordinates into a Place. Implementations never fail:
// a nil Place means nothing could be resolved.
type Resolver interface {
	Resolve(ctx context.Context, lat, lon float64) *Place
}

// Noop never resolves anything.
type Noop struct{}

func (Noop) Resolve(context.Context, float64, float64) *Place { return nil }

type Config struct {
	URL       string
	UserAgent string
	Timeout   time.Duration
}

// Client resolves coordinates with a Nominatim compatible reverse endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

func NewClient(cfg Config, m *metrics.Metrics, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.URL,
		userAgent:  cfg.UserAgent,
		metrics:    m,
		logger:     logger,
	}
}

type reverseResponse struct {
	Address struct {
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Municipality string `json:"municipality"`
		State        string `json:"state"`
		Province     string `json:"province"`
		Region       string `json:"region"`
		Country      string `json:"country"`
	} `json:"address"`
}

func (c *Client) Resolve(ctx context.Context, lat, lon float64) *Place {
	place, err := c.reverse(ctx, lat, lon)
	switch {
	case err != nil:
		c.logger.Warn("Reverse geocode failed",
			zap.Float64("latitude", lat),
			zap.Float64("longitude", lon),
			zap.Error(err),
		)
		c.metrics.RecordGeocode(metrics.GeocodeFailed)
		return nil
	case place == nil:
		c.metrics.RecordGeocode(metrics.GeocodeEmpty)
		return nil
	}

	c.metrics.RecordGeocode(metrics.GeocodeResolved)
	c.logger.Debug("Reverse geocode resolved",
		zap.Float64("latitude", lat),
		zap.Float64("longitude", lon),
		zap.Stringp("municipality", place.Municipality),
		zap.Stringp("region", place.Region),
		zap.Stringp("country", place.Country),
	)
	return place
}

func (c *Client) reverse(ctx context.Context, lat, lon float64) (*Place, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("zoom", "10")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call geocoder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var body reverseResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode geocoder response: %w", err)
	}

	a := body.Address
	place := &Place{
		Municipality: firstNonEmpty(a.City, a.Town, a.Village, a.Municipality),
		Region:       firstNonEmpty(a.State, a.Province, a.Region),
		Country:      firstNonEmpty(a.Country),
	}
	if place.Municipality == nil && place.Region == nil && place.Country == nil {
		return nil, nil
	}
	return place, nil
}

func firstNonEmpty(values ...string) *string {
	for _, v := range values {
		if v != "" {
			return &v
		}
	}
	return nil
}
