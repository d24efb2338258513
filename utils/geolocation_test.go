package utils

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeIP(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"10.0.0.5", "10.0.0.5"},
		{"10.0.0.5:830", "10.0.0.5"},
		{"[2001:db8::1]:830", "2001:db8::1"},
		{"2001:db8::1", "2001:db8::1"},
		{"controller1", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ip := NodeIP(tt.in)
			if tt.want == "" {
				assert.Nil(t, ip)
				return
			}
			assert.Equal(t, tt.want, ip.String())
		})
	}
}

func TestLookup_NilAndNonIP(t *testing.T) {
	var g *GeoResolver
	assert.Equal(t, Unknown, g.Lookup("8.8.8.8").Country)

	g = NewGeoResolver("", true)
	loc := g.Lookup("device-7")
	assert.Equal(t, Unknown, loc.Country)
	assert.False(t, loc.Known())
}

func TestLookup_APIFallbackCached(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/json/8.8.8.8", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"success","country":"United States","city":"Mountain View","lat":37.4,"lon":-122.1}`))
	}))
	defer srv.Close()

	g := NewGeoResolver("", true)
	g.apiURL = srv.URL + "/json/%s"

	loc := g.Lookup("8.8.8.8:830")
	assert.Equal(t, "United States", loc.Country)
	assert.Equal(t, "Mountain View", loc.City)
	assert.True(t, loc.Known())

	g.Lookup("8.8.8.8")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLookup_PrivateAndDisabledFallback(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"status":"fail"}`))
	}))
	defer srv.Close()

	g := NewGeoResolver("", true)
	g.apiURL = srv.URL + "/json/%s"
	assert.Equal(t, Unknown, g.Lookup("192.168.1.10").Country)
	assert.Equal(t, Unknown, g.Lookup("8.8.4.4").Country)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	off := NewGeoResolver("", false)
	off.apiURL = srv.URL + "/json/%s"
	assert.Equal(t, Unknown, off.Lookup("1.1.1.1").Country)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNewGeoResolver_BadDBPath(t *testing.T) {
	g := NewGeoResolver("/nonexistent/GeoLite2-City.mmdb", false)
	assert.NotNil(t, g)
	assert.Nil(t, g.db)
	g.Close()
}
