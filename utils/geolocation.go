package utils

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/oschwald/geoip2-golang"
	"github.com/rs/zerolog/log"
)

// Unknown is reported for nodes that cannot be located
const Unknown = "Unknown"

const defaultGeoAPI = "http://ip-api.com/json/%s"

type GeoLocation struct {
	Country string
	City    string
	Lat     float64
	Lon     float64
}

// Known reports whether the location was actually resolved
func (l GeoLocation) Known() bool {
	return l.Country != "" && l.Country != Unknown
}

type GeoResolver struct {
	db          *geoip2.Reader
	apiFallback bool
	apiURL      string
	httpClient  *http.Client
	cache       sync.Map // map[string]GeoLocation
}

// NewGeoResolver opens the GeoIP database at dbPath if given. A database
// that cannot be opened is logged and skipped.
func NewGeoResolver(dbPath string, apiFallback bool) *GeoResolver {
	var db *geoip2.Reader

	if dbPath != "" {
		var err error
		db, err = geoip2.Open(dbPath)
		if err != nil {
			log.Warn().Err(err).Str("path", dbPath).Msg("Could not open GeoIP database")
			db = nil
		}
	}

	return &GeoResolver{
		db:          db,
		apiFallback: apiFallback,
		apiURL:      defaultGeoAPI,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (g *GeoResolver) Close() {
	if g != nil && g.db != nil {
		g.db.Close()
	}
}

// NodeIP extracts an IP address from a node id such as "10.0.0.5",
// "10.0.0.5:830" or "[::1]:830". Ids that are not addresses yield nil.
func NodeIP(nodeID string) net.IP {
	s := strings.TrimSpace(nodeID)
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	return net.ParseIP(strings.Trim(s, "[]"))
}

// Lookup locates a node id. It is safe on a nil resolver.
func (g *GeoResolver) Lookup(nodeID string) GeoLocation {
	unknown := GeoLocation{Country: Unknown, City: Unknown}
	if g == nil {
		return unknown
	}

	ip := NodeIP(nodeID)
	if ip == nil {
		return unknown
	}
	key := ip.String()

	if val, ok := g.cache.Load(key); ok {
		return val.(GeoLocation)
	}

	loc, found := g.lookupDB(ip)
	if !found && g.apiFallback && !ip.IsPrivate() && !ip.IsLoopback() {
		if apiLoc, err := g.fetchFromAPI(key); err == nil {
			loc, found = *apiLoc, true
		} else {
			log.Debug().Err(err).Str("ip", key).Msg("GeoIP API lookup failed")
		}
	}
	if !found {
		loc = unknown
	}

	g.cache.Store(key, loc)
	return loc
}

func (g *GeoResolver) lookupDB(ip net.IP) (GeoLocation, bool) {
	if g.db == nil {
		return GeoLocation{}, false
	}
	record, err := g.db.City(ip)
	if err != nil || record.Country.Names["en"] == "" {
		return GeoLocation{}, false
	}
	return GeoLocation{
		Country: record.Country.Names["en"],
		City:    record.City.Names["en"],
		Lat:     record.Location.Latitude,
		Lon:     record.Location.Longitude,
	}, true
}

type ipApiResponse struct {
	Country string  `json:"country"`
	City    string  `json:"city"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Status  string  `json:"status"`
}

func (g *GeoResolver) fetchFromAPI(ip string) (*GeoLocation, error) {
	resp, err := g.httpClient.Get(fmt.Sprintf(g.apiURL, ip))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api error: %d", resp.StatusCode)
	}

	var apiResp ipApiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, err
	}

	if apiResp.Status == "fail" {
		return nil, fmt.Errorf("api returned fail status")
	}

	return &GeoLocation{
		Country: apiResp.Country,
		City:    apiResp.City,
		Lat:     apiResp.Lat,
		Lon:     apiResp.Lon,
	}, nil
}
