package policy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPFetcherStripsMarkup(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><style>p{color:red}</style><script>track()</script></head>
<body><h1>Privacy</h1><p>We share data with partners.</p></body></html>`)
	}))
	defer srv.Close()

	f := NewHTTPFetcher()
	text, err := f.FetchText(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchText: %v", err)
	}
	if text != "Privacy We share data with partners." {
		t.Fatalf("text = %q", text)
	}
	if !strings.HasPrefix(gotUA, "Mozilla/5.0") {
		t.Fatalf("user agent = %q", gotUA)
	}
}

func TestHTTPFetcherBoundsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Repeat("a", 1000))
	}))
	defer srv.Close()

	f := NewHTTPFetcher()
	f.MaxBodyBytes = 10
	text, err := f.FetchText(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchText: %v", err)
	}
	if len(text) != 10 {
		t.Fatalf("len = %d", len(text))
	}
}

func TestHTTPFetcherErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewHTTPFetcher()
	for _, u := range []string{srv.URL, "ftp://example.com/policy", "not a url", ""} {
		if _, err := f.FetchText(context.Background(), u); err == nil {
			t.Fatalf("FetchText(%q) expected error", u)
		}
	}
}
