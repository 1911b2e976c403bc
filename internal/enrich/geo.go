package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/serroba/clickstream-go/internal/clickstream"
)

// GeoResolver resolves a normalized IP to geolocation facts. A nil result
// with a nil error means "no data".
type GeoResolver interface {
	Resolve(ctx context.Context, ip string) (*clickstream.Location, error)
}

// LocalLocation is the fixed placeholder returned for loopback and private
// addresses without an external lookup.
func LocalLocation() *clickstream.Location {
	return &clickstream.Location{
		Country: "Local",
		City:    "Private",
	}
}

type geoCacheItem struct {
	location *clickstream.Location
	expires  time.Time
}

// HTTPGeoResolver resolves geolocation through an ipwho.is-compatible HTTP
// API, with an in-process TTL cache so repeat clicks from one address do
// not re-query the service.
type HTTPGeoResolver struct {
	baseURL string
	client  *http.Client
	ttl     time.Duration

	mu    sync.Mutex
	cache map[string]geoCacheItem
}

// NewHTTPGeoResolver creates a resolver against the given API base URL.
func NewHTTPGeoResolver(baseURL string, ttl time.Duration) *HTTPGeoResolver {
	return &HTTPGeoResolver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 2 * time.Second},
		ttl:     ttl,
		cache:   make(map[string]geoCacheItem),
	}
}

type geoResponse struct {
	Success     bool    `json:"success"`
	CountryCode string  `json:"country_code"`
	Country     string  `json:"country"`
	Region      string  `json:"region"`
	City        string  `json:"city"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timezone    struct {
		ID string `json:"id"`
	} `json:"timezone"`
	Connection struct {
		ISP string `json:"isp"`
		Org string `json:"org"`
	} `json:"connection"`
}

// Resolve looks up geolocation for the address. Private and loopback
// addresses short-circuit to the Local/Private placeholder.
func (g *HTTPGeoResolver) Resolve(ctx context.Context, ip string) (*clickstream.Location, error) {
	if ip == "" || IsPrivateIP(ip) {
		return LocalLocation(), nil
	}

	now := time.Now()

	g.mu.Lock()
	if item, ok := g.cache[ip]; ok && now.Before(item.expires) {
		g.mu.Unlock()
		return item.location, nil
	}
	g.mu.Unlock()

	location, err := g.lookup(ctx, ip)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.cache[ip] = geoCacheItem{location: location, expires: now.Add(g.ttl)}
	g.mu.Unlock()

	return location, nil
}

func (g *HTTPGeoResolver) lookup(ctx context.Context, ip string) (*clickstream.Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/"+ip, nil)
	if err != nil {
		return nil, fmt.Errorf("build geo request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geo lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geo lookup: unexpected status %d", resp.StatusCode)
	}

	var out geoResponse
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode geo response: %w", err)
	}

	if !out.Success {
		return nil, nil
	}

	isp := out.Connection.ISP
	if isp == "" {
		isp = out.Connection.Org
	}

	location := &clickstream.Location{
		CountryCode: out.CountryCode,
		Country:     out.Country,
		Region:      out.Region,
		City:        out.City,
		Timezone:    out.Timezone.ID,
		ISP:         isp,
	}

	if out.Latitude != 0 || out.Longitude != 0 {
		lat, lon := out.Latitude, out.Longitude
		location.Latitude = &lat
		location.Longitude = &lon
	}

	return location, nil
}
