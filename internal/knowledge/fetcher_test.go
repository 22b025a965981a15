package knowledge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageFetcher_StripsChrome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title> ค่าธรรมเนียม </title><style>p{}</style></head>
<body><nav>menu</nav><script>alert(1)</script>
<table class="x"><tr><td>ค่าเทอม</td><td>1,000</td></tr></table>
<footer>copyright</footer></body></html>`))
	}))
	defer srv.Close()

	page, err := NewPageFetcher(5*time.Second, 1<<20).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "ค่าธรรมเนียม", page.Title)
	assert.Contains(t, page.HTML, "<table>")
	assert.Contains(t, page.HTML, "ค่าเทอม")
	assert.NotContains(t, page.HTML, "menu")
	assert.NotContains(t, page.HTML, "alert")
	assert.NotContains(t, page.HTML, "copyright")
	assert.NotEmpty(t, page.Raw)
}

func TestPageFetcher_PlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("Opening hours\nMon-Fri 9-17"))
	}))
	defer srv.Close()

	page, err := NewPageFetcher(5*time.Second, 0).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Opening hours", page.Title)
	assert.Equal(t, "Opening hours\nMon-Fri 9-17", page.Text)
	assert.Empty(t, page.HTML)
}

func TestPageFetcher_Rejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/image":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte{0x89, 'P', 'N', 'G'})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewPageFetcher(5*time.Second, 0)
	_, err := f.Fetch(context.Background(), srv.URL+"/image")
	assert.ErrorContains(t, err, "unsupported content-type")

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "status 404")
}

func TestPageFetcher_ChunkedBodyOverLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		n := 1004
		if r.URL.Path == "/exact" {
			n = 500
		}
		// 先flush一半，响应走分块传输，没有Content-Length
		body := strings.Repeat("a", n)
		w.Write([]byte(body[:n/2]))
		w.(http.Flusher).Flush()
		w.Write([]byte(body[n/2:]))
	}))
	defer srv.Close()

	f := NewPageFetcher(5*time.Second, 500)

	_, err := f.Fetch(context.Background(), srv.URL+"/big")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPageTooLarge))

	page, err := f.Fetch(context.Background(), srv.URL+"/exact")
	require.NoError(t, err)
	assert.Len(t, page.Raw, 500)
}
