package readeck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(srv.URL, 5*time.Second)
	c.RetryBackoff = time.Millisecond
	return c
}

func TestCreateBookmark(t *testing.T) {
	var gotAuth, gotBody string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/bookmarks" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Bookmark-Id", "PXNJqD7K")
		w.WriteHeader(http.StatusAccepted)
	}))

	id, err := c.CreateBookmark(context.Background(), "tok", "https://example.com/article", "Some Title", []string{"read-later"})
	if err != nil {
		t.Fatalf("CreateBookmark() error = %v", err)
	}
	if id != "PXNJqD7K" {
		t.Errorf("CreateBookmark() id = %q, want PXNJqD7K", id)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q, want Bearer tok", gotAuth)
	}

	var req createBookmarkRequest
	if err := json.Unmarshal([]byte(gotBody), &req); err != nil {
		t.Fatalf("request body not JSON: %v", err)
	}
	if req.URL != "https://example.com/article" || req.Title != "Some Title" {
		t.Errorf("request body = %+v", req)
	}
	if len(req.Labels) != 1 || req.Labels[0] != "read-later" {
		t.Errorf("labels = %v, want [read-later]", req.Labels)
	}
}

func TestCreateBookmarkMissingIDHeader(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	_, err := c.CreateBookmark(context.Background(), "tok", "https://example.com", "", nil)
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("error = %v, want *UpstreamError", err)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"unauthorized", http.StatusUnauthorized, func(err error) bool {
			var e *AuthError
			return errors.As(err, &e)
		}},
		{"forbidden", http.StatusForbidden, func(err error) bool {
			var e *AuthError
			return errors.As(err, &e)
		}},
		{"not found", http.StatusNotFound, func(err error) bool {
			var e *NotFoundError
			return errors.As(err, &e) && e.ID == "42"
		}},
		{"bad request", http.StatusBadRequest, func(err error) bool {
			var e *ValidationError
			return errors.As(err, &e)
		}},
		{"server error", http.StatusInternalServerError, func(err error) bool {
			var e *UpstreamError
			return errors.As(err, &e)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			_, err := c.GetBookmark(context.Background(), "tok", "42")
			if err == nil {
				t.Fatal("GetBookmark() error = nil, want taxonomy error")
			}
			if !tt.check(err) {
				t.Errorf("GetBookmark() error = %v (%T), wrong kind", err, err)
			}
		})
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls int
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(Bookmark{ID: "42", Title: "ok"})
	}))

	bm, err := c.GetBookmark(context.Background(), "tok", "42")
	if err != nil {
		t.Fatalf("GetBookmark() error = %v, want recovery on retry", err)
	}
	if bm.Title != "ok" {
		t.Errorf("GetBookmark() title = %q", bm.Title)
	}
	if calls != 2 {
		t.Errorf("server saw %d calls, want 2", calls)
	}
}

func TestRetryExhausted(t *testing.T) {
	var calls int
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.ListBookmarks(context.Background(), "tok", ListOptions{})
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("error = %v, want *UpstreamError", err)
	}
	if calls != 2 {
		t.Errorf("server saw %d calls, want exactly 1 retry (2 total)", calls)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls int
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))

	_, err := c.CreateBookmark(context.Background(), "tok", "not a url", "", nil)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if calls != 1 {
		t.Errorf("server saw %d calls, 4xx must not be retried", calls)
	}
}

func TestListBookmarksPagination(t *testing.T) {
	// 120 bookmarks on the server, client cap of 100.
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		page := make([]Bookmark, 0, limit)
		for i := offset; i < offset+limit && i < 120; i++ {
			page = append(page, Bookmark{ID: fmt.Sprintf("b%d", i)})
		}
		_ = json.NewEncoder(w).Encode(page)
	}))

	got, err := c.ListBookmarks(context.Background(), "tok", ListOptions{Cap: 100})
	if err != nil {
		t.Fatalf("ListBookmarks() error = %v", err)
	}
	if len(got) != 100 {
		t.Fatalf("ListBookmarks() returned %d items, want cap of 100", len(got))
	}
	if got[0].ID != "b0" || got[99].ID != "b99" {
		t.Errorf("ordering broken: first=%s last=%s", got[0].ID, got[99].ID)
	}
}

func TestListBookmarksStopsOnShortPage(t *testing.T) {
	var calls int
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode([]Bookmark{{ID: "only"}})
	}))

	got, err := c.ListBookmarks(context.Background(), "tok", ListOptions{})
	if err != nil {
		t.Fatalf("ListBookmarks() error = %v", err)
	}
	if len(got) != 1 || calls != 1 {
		t.Errorf("got %d items in %d calls, want 1 item in 1 call", len(got), calls)
	}
}

func TestListBookmarksFilters(t *testing.T) {
	var gotQuery map[string]string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"labels":      r.URL.Query().Get("labels"),
			"is_archived": r.URL.Query().Get("is_archived"),
			"search":      r.URL.Query().Get("search"),
		}
		_ = json.NewEncoder(w).Encode([]Bookmark{})
	}))

	_, err := c.ListBookmarks(context.Background(), "tok", ListOptions{Label: "tech", Unarchived: true, Search: "go"})
	if err != nil {
		t.Fatalf("ListBookmarks() error = %v", err)
	}
	if gotQuery["labels"] != "tech" || gotQuery["is_archived"] != "false" || gotQuery["search"] != "go" {
		t.Errorf("query = %v", gotQuery)
	}
}

func TestArticleMarkdown(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/bookmarks/42/article.md" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Accept"); got != "text/markdown" {
			t.Errorf("Accept = %q", got)
		}
		fmt.Fprint(w, "# Title\n\nbody")
	}))

	md, err := c.ArticleMarkdown(context.Background(), "tok", "42")
	if err != nil {
		t.Fatalf("ArticleMarkdown() error = %v", err)
	}
	if md != "# Title\n\nbody" {
		t.Errorf("ArticleMarkdown() = %q", md)
	}
}

func TestExportEPUBStreams(t *testing.T) {
	payload := []byte("PK\x03\x04epub-bytes")
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/bookmarks/42/article.epub" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write(payload)
	}))

	rc, err := c.ExportEPUB(context.Background(), "tok", "42")
	if err != nil {
		t.Fatalf("ExportEPUB() error = %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading stream: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("stream = %q, want %q", got, payload)
	}
}

func TestExportEPUBNegativeRetryCount(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("epub"))
	}))
	c.RetryCount = -1

	rc, err := c.ExportEPUB(context.Background(), "tok", "42")
	if err != nil {
		t.Fatalf("ExportEPUB() error = %v, want one attempt despite negative retry count", err)
	}
	_ = rc.Close()
}

func TestExportUnreadEPUBFilter(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/bookmarks/export.epub" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("is_archived"); got != "false" {
			t.Errorf("is_archived = %q, want false", got)
		}
		_, _ = w.Write([]byte("epub"))
	}))

	rc, err := c.ExportUnreadEPUB(context.Background(), "tok")
	if err != nil {
		t.Fatalf("ExportUnreadEPUB() error = %v", err)
	}
	_ = rc.Close()
}

func TestAuthenticate(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req authRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Username != "12345" || req.Password != "hunter2" {
			t.Errorf("auth request = %+v", req)
		}
		_ = json.NewEncoder(w).Encode(authResponse{Token: "issued-token"})
	}))

	token, err := c.Authenticate(context.Background(), "12345", "hunter2")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if token != "issued-token" {
		t.Errorf("Authenticate() = %q", token)
	}
}

func TestAuthenticateRejected(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := c.Authenticate(context.Background(), "u", "wrong")
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("error = %v, want *AuthError", err)
	}
}

func TestVerifyToken(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/profile" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"user":{"username":"tester"}}`)
	}))

	username, err := c.VerifyToken(context.Background(), "tok")
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if username != "tester" {
		t.Errorf("VerifyToken() = %q", username)
	}
}

func TestArchive(t *testing.T) {
	var gotBody string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/api/bookmarks/42" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))

	if err := c.Archive(context.Background(), "tok", "42"); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if gotBody != `{"is_archived":true}` {
		t.Errorf("body = %s", gotBody)
	}
}
