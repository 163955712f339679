package coversearch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tafsync/internal/services"
	"tafsync/internal/services/coversearch"
)

func TestSearchDecodesAndTruncates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "Bibi Blocksberg Folge 3" {
			t.Fatalf("unexpected query %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Fatalf("unexpected authorization %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [
			{"url": "https://img.example/a.jpg", "title": "A", "score": 87.5, "width": 600, "height": 600},
			{"url": "", "title": "no url"},
			{"url": "https://img.example/b.jpg", "score": 40},
			{"url": "https://img.example/c.jpg", "score": 10}
		]}`))
	}))
	t.Cleanup(server.Close)

	client, err := coversearch.New(server.URL, "key", coversearch.WithRateLimit(0))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	covers, err := client.Search(context.Background(), " Bibi Blocksberg Folge 3 ", 2)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(covers) != 2 {
		t.Fatalf("expected 2 covers, got %+v", covers)
	}
	if covers[0].URL != "https://img.example/a.jpg" || covers[0].Score != 87.5 || covers[0].Width != 600 {
		t.Fatalf("unexpected first cover %+v", covers[0])
	}
	if covers[1].URL != "https://img.example/b.jpg" {
		t.Fatalf("expected empty url to be skipped, got %+v", covers[1])
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	client, err := coversearch.New("https://search.example", "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.Search(context.Background(), "   ", 5); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSearchHonoursRateLimitCancellation(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	t.Cleanup(server.Close)

	client, err := coversearch.New(server.URL, "", coversearch.WithRateLimit(0.01))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.Search(context.Background(), "first", 5); err != nil {
		t.Fatalf("first Search returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := client.Search(ctx, "second", 5); err == nil {
		t.Fatal("expected second search to be rate limited")
	}
	if calls != 1 {
		t.Fatalf("expected one request to reach the server, got %d", calls)
	}
}

func TestSearchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	client, err := coversearch.New(server.URL, "", coversearch.WithRateLimit(0))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := client.Search(context.Background(), "x", 5); !errors.Is(err, services.ErrLookup) {
		t.Fatalf("expected lookup error, got %v", err)
	}
}

func TestDownloadRequiresImageContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cover.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte{0xFF, 0xD8, 0xFF, 0xD9})
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	client, err := coversearch.New(server.URL, "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	data, err := client.Download(context.Background(), server.URL+"/cover.jpg")
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if len(data) != 4 {
		t.Fatalf("unexpected payload length %d", len(data))
	}
	if _, err := client.Download(context.Background(), server.URL+"/page.html"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for html, got %v", err)
	}
	if _, err := client.Download(context.Background(), server.URL+"/missing.jpg"); !errors.Is(err, services.ErrLookup) {
		t.Fatalf("expected lookup error for 404, got %v", err)
	}
	if _, err := client.Download(context.Background(), "ftp://example.com/x.jpg"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for scheme, got %v", err)
	}
}

func TestDownloaderCannotSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png"))
	}))
	t.Cleanup(server.Close)

	client := coversearch.NewDownloader()
	if _, err := client.Search(context.Background(), "Bibi", 5); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	data, err := client.Download(context.Background(), server.URL+"/cover.png")
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if string(data) != "png" {
		t.Fatalf("unexpected data %q", data)
	}
}
