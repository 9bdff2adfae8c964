package prober

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-mizu/blueprints/sentinel/store"
)

func TestProbeUpOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "nginx/1.21.6")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(Config{Location: "EU"}, nil)
	rec := p.Probe(context.Background(), strings.TrimPrefix(srv.URL, "http://"))

	require.NotNil(t, rec)
	assert.True(t, rec.Up)
	require.NotNil(t, rec.StatusCode)
	assert.Equal(t, 200, *rec.StatusCode)
	assert.Equal(t, "Nginx 1.21.6", rec.Platform)
	assert.Equal(t, "EU", rec.Location)
}

func TestProbeUpOn4xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := New(Config{}, nil)
	rec := p.Probe(context.Background(), strings.TrimPrefix(srv.URL, "http://"))

	assert.True(t, rec.Up, "4xx is reachable, must count as up")
}

func TestProbeDownOn5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := New(Config{}, nil)
	rec := p.Probe(context.Background(), strings.TrimPrefix(srv.URL, "http://"))

	assert.False(t, rec.Up)
}

func TestProbeUnreachableHostReportsDown(t *testing.T) {
	p := New(Config{Timeout: 2 * time.Second}, nil)
	rec := p.Probe(context.Background(), "127.0.0.1:1")

	assert.False(t, rec.Up)
	assert.Nil(t, rec.StatusCode)
	assert.Nil(t, rec.ResponseTimeMs)
	assert.NotEmpty(t, rec.ErrorMessage)
}

func TestProbeAllRespectsConcurrencyCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	hosts := make([]*store.Subdomain, 0, 20)
	for i := 0; i < 20; i++ {
		hosts = append(hosts, &store.Subdomain{Subdomain: host})
	}

	p := New(Config{ConnectionCap: 3}, nil)
	results := p.ProbeAll(context.Background(), hosts)

	assert.Len(t, results, 20)
	for _, r := range results {
		assert.True(t, r.Up)
	}
}
