// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func newTestClient(baseURL string, maxRetries, pageCap int) *Client {
	return New(Config{
		BaseURL:        baseURL,
		APIKeyHeader:   "chave-api-dados",
		APIKey:         "test-key",
		MaxRetries:     maxRetries,
		RetryBaseDelay: time.Millisecond,
		PageCap:        pageCap,
		Timeout:        5 * time.Second,
	})
}

func TestClient_GetJSON(t *testing.T) {
	t.Run("sends API key header", func(t *testing.T) {
		var gotKey string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotKey = r.Header.Get("chave-api-dados")
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer srv.Close()

		var result struct {
			OK bool `json:"ok"`
		}
		if err := newTestClient(srv.URL, 2, 10).GetJSON(context.Background(), "/x", nil, &result); err != nil {
			t.Fatalf("GetJSON: %v", err)
		}
		if gotKey != "test-key" {
			t.Errorf("api key header = %q, want test-key", gotKey)
		}
		if !result.OK {
			t.Error("response not decoded")
		}
	})

	t.Run("401 is permanent and not retried", func(t *testing.T) {
		var requests atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		err := newTestClient(srv.URL, 5, 10).GetJSON(context.Background(), "/x", nil, &struct{}{})
		if !errors.Is(err, ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
		if n := requests.Load(); n != 1 {
			t.Errorf("requests = %d, want 1 (no retry on credential error)", n)
		}
	})

	t.Run("429 twice then 200 succeeds transparently", func(t *testing.T) {
		var requests atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requests.Add(1) <= 2 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = w.Write([]byte(`{"value":42}`))
		}))
		defer srv.Close()

		var result struct {
			Value int `json:"value"`
		}
		err := newTestClient(srv.URL, 5, 10).GetJSON(context.Background(), "/x", nil, &result)
		if err != nil {
			t.Fatalf("expected success after two backoff waits, got %v", err)
		}
		if result.Value != 42 {
			t.Errorf("value = %d, want 42", result.Value)
		}
		if n := requests.Load(); n != 3 {
			t.Errorf("requests = %d, want 3 (two rate-limited, one success)", n)
		}
	})

	t.Run("429 beyond retry cap surfaces ErrRateLimited", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		err := newTestClient(srv.URL, 2, 10).GetJSON(context.Background(), "/x", nil, &struct{}{})
		if !errors.Is(err, ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, got %v", err)
		}
	})

	t.Run("Retry-After header overrides backoff delay", func(t *testing.T) {
		var requests atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requests.Add(1) == 1 {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		start := time.Now()
		if err := newTestClient(srv.URL, 3, 10).GetJSON(context.Background(), "/x", nil, &struct{}{}); err != nil {
			t.Fatalf("GetJSON: %v", err)
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("Retry-After: 0 should not wait, took %v", elapsed)
		}
	})
}

func TestClient_ForEachPage(t *testing.T) {
	type page struct {
		Items []int `json:"items"`
	}

	t.Run("stops on empty page", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := r.URL.Query().Get("pagina")
			switch p {
			case "1":
				_, _ = w.Write([]byte(`{"items":[1,2,3]}`))
			case "2":
				_, _ = w.Write([]byte(`{"items":[4]}`))
			default:
				_, _ = w.Write([]byte(`{"items":[]}`))
			}
		}))
		defer srv.Close()

		var collected []int
		stats, err := newTestClient(srv.URL, 2, 100).ForEachPage(
			context.Background(), "/emendas", url.Values{"ano": {"2022"}}, "pagina",
			func(body []byte) (int, error) {
				var p page
				if err := json.Unmarshal(body, &p); err != nil {
					return 0, err
				}
				collected = append(collected, p.Items...)
				return len(p.Items), nil
			})
		if err != nil {
			t.Fatalf("ForEachPage: %v", err)
		}
		if stats.Pages != 3 {
			t.Errorf("pages = %d, want 3 (two full plus terminating empty)", stats.Pages)
		}
		if len(collected) != 4 {
			t.Errorf("collected %v, want 4 items", collected)
		}
	})

	t.Run("page cap bounds a never-ending API", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"items":[1]}`)) // never empty
		}))
		defer srv.Close()

		stats, err := newTestClient(srv.URL, 2, 7).ForEachPage(
			context.Background(), "/emendas", nil, "pagina",
			func(body []byte) (int, error) { return 1, nil })
		if err != nil {
			t.Fatalf("ForEachPage: %v", err)
		}
		if stats.Pages != 7 {
			t.Errorf("pages = %d, want 7 (page cap)", stats.Pages)
		}
	})

	t.Run("rate-limited page is skipped, walk continues", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Query().Get("pagina") {
			case "2":
				w.WriteHeader(http.StatusTooManyRequests) // always
			case "4":
				_, _ = w.Write([]byte(`{"items":[]}`))
			default:
				_, _ = w.Write([]byte(`{"items":[1]}`))
			}
		}))
		defer srv.Close()

		stats, err := newTestClient(srv.URL, 1, 100).ForEachPage(
			context.Background(), "/emendas", nil, "pagina",
			func(body []byte) (int, error) {
				var p page
				if err := json.Unmarshal(body, &p); err != nil {
					return 0, err
				}
				return len(p.Items), nil
			})
		if err != nil {
			t.Fatalf("ForEachPage: %v", err)
		}
		if stats.Skipped != 1 {
			t.Errorf("skipped = %d, want 1", stats.Skipped)
		}
		if stats.Pages != 3 {
			t.Errorf("pages = %d, want 3 (pages 1, 3, and terminating 4)", stats.Pages)
		}
	})

	t.Run("401 aborts the walk", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL, 2, 100).ForEachPage(
			context.Background(), "/emendas", nil, "pagina",
			func(body []byte) (int, error) { return 0, nil })
		if !errors.Is(err, ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})
}
