package hubeau

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string, clock clockwork.Clock) *Client {
	t.Helper()
	return NewClient(Options{
		BaseURL:  url,
		Timeout:  5 * time.Second,
		Rate:     1000,
		PageSize: 1000,
		MaxPages: 3,
		Clock:    clock,
	})
}

func TestFetchSamples(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/resultats_dis", r.URL.Path)
		assert.Equal(t, "33063", r.URL.Query().Get("code_commune"))
		assert.Equal(t, "1000", r.URL.Query().Get("size"))
		assert.Contains(t, r.URL.Query().Get("fields"), "libelle_parametre")
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"count":2,"data":[
			{"libelle_parametre":"Nitrates","resultat_numerique":12.5,"date_prelevement":"2024-01-15T10:00:00Z"},
			{"libelle_parametre":"pH","resultat_alphanumerique":"7,6"}
		]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	samples, err := client.FetchSamples(context.Background(), "33063")
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Equal(t, "Nitrates", samples[0].LibelleParametre)
	require.NotNil(t, samples[0].ResultatNumerique)
	assert.InDelta(t, 12.5, *samples[0].ResultatNumerique, 1e-9)
	assert.Equal(t, "7,6", samples[1].ResultatAlphanumerique)
}

func TestFetchSamplesAcceptsPartialContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte(`{"count":5000,"data":[{"libelle_parametre":"Nitrates"}]}`))
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL, Rate: 1000, MaxPages: 1})
	resp, err := client.FetchResultats(context.Background(), "33063")
	require.NoError(t, err)
	assert.Equal(t, 5000, resp.Count)
	assert.Len(t, resp.Data, 1)
}

func TestFetchSamplesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	_, err := client.FetchSamples(context.Background(), "33063")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "boom")
}

func TestFetchSamplesDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	_, err := client.FetchSamples(context.Background(), "33063")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestFetchSamplesRateLimited(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("Retry-After", "120")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"count":0,"data":[]}`))
	}))
	defer srv.Close()

	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	client := newTestClient(t, srv.URL, clock)

	_, err := client.FetchSamples(context.Background(), "33063")
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, clock.Now().Add(120*time.Second), client.RetryAt())

	// Fails fast during the backoff, without calling Hub'Eau.
	_, err = client.FetchSamples(context.Background(), "33063")
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(1), hits.Load())

	clock.Advance(121 * time.Second)
	_, err = client.FetchSamples(context.Background(), "33063")
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestBackoffDefaultsAndHTTPDate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	client := NewClient(Options{Clock: clock})

	assert.Equal(t, now.Add(defaultRetryAfter), client.backoff(""))

	at := now.Add(10 * time.Minute)
	assert.True(t, at.Equal(client.backoff(at.Format(http.TimeFormat))))

	// An earlier deadline never shortens the current backoff.
	client.backoff("1")
	assert.True(t, at.Equal(client.RetryAt()))
}

func TestFetchResultatsFollowsNext(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "":
			_, _ = w.Write([]byte(`{"count":3,"next":"` + srv.URL + `/resultats_dis?page=2","data":[{"libelle_parametre":"A"}]}`))
		case "2":
			_, _ = w.Write([]byte(`{"count":3,"next":"` + srv.URL + `/resultats_dis?page=3","data":[{"libelle_parametre":"B"}]}`))
		default:
			_, _ = w.Write([]byte(`{"count":3,"data":[{"libelle_parametre":"C"}]}`))
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	resp, err := client.FetchResultats(context.Background(), "33063")
	require.NoError(t, err)
	require.Len(t, resp.Data, 3)
	assert.Equal(t, "C", resp.Data[2].LibelleParametre)
	assert.Empty(t, resp.Next)
}

func TestFetchResultatsStopsAtMaxPages(t *testing.T) {
	var srv *httptest.Server
	var hits atomic.Int32
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"count":99,"next":"` + srv.URL + `/resultats_dis?page=2","data":[{"libelle_parametre":"A"}]}`))
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL, Rate: 1000, MaxPages: 1})
	resp, err := client.FetchResultats(context.Background(), "33063")
	require.NoError(t, err)
	assert.Len(t, resp.Data, 1)
	assert.NotEmpty(t, resp.Next)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchSamplesDecodesLatin1(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{\"count\":1,\"data\":[{\"libelle_parametre\":\"Temp\xe9rature de l'eau\"}]}"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	samples, err := client.FetchSamples(context.Background(), "33063")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "Température de l'eau", samples[0].LibelleParametre)
}

func TestFetchSamplesCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count":0,"data":[]}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(t, srv.URL, nil)
	_, err := client.FetchSamples(ctx, "33063")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestNewClientTrimsBaseURL(t *testing.T) {
	client := NewClient(Options{BaseURL: "https://example.org/api/"})
	assert.False(t, strings.HasSuffix(client.baseURL, "/"))
	assert.Equal(t, 1000, client.pageSize)
	assert.Equal(t, 5, client.maxPages)
}
