package main

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

const reply = `{"output":{"topology":[{"topology-id":"usc","channel":[{"channel-id":"c1","channel-alarms":1,"session":[]}]}]}}`

func TestRun(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("REDIS_ENABLED", "false")

	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(reply))
	}))
	defer ok.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	assert.Equal(t, 0, run([]string{"-controller", ok.URL}))
	assert.Equal(t, 1, run([]string{"-controller", down.URL}))
	assert.Equal(t, 1, run([]string{"-controller", "ftp://nowhere"}))
}
