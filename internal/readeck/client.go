package readeck

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jmfederico/readeckbot/internal/utils"
)

const (
	defaultPageSize = 50
	defaultListCap  = 100
)

// Client talks to a Readeck instance. All authenticated calls carry the
// per-user token as a bearer credential; the client itself holds no
// credentials.
type Client struct {
	BaseURL      string
	HTTP         *http.Client
	RetryCount   int // extra attempts on transient failures
	RetryBackoff time.Duration
	ListCap      int
	UserAgent    string
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		HTTP:         &http.Client{Timeout: timeout},
		RetryCount:   1,
		RetryBackoff: 500 * time.Millisecond,
		ListCap:      defaultListCap,
		UserAgent:    "readeckbot/0.2",
	}
}

// Authenticate exchanges username/password for an API token.
func (c *Client) Authenticate(ctx context.Context, username, password string) (string, error) {
	body := authRequest{
		Application: "telegram bot",
		Username:    username,
		Password:    password,
	}
	status, _, b, err := c.doJSON(ctx, "", http.MethodPost, "/api/auth", nil, body, "application/json")
	if err != nil {
		return "", err
	}
	if err := apiError(status, b, ""); err != nil {
		return "", err
	}

	var resp authResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return "", fmt.Errorf("parse auth response: %w", err)
	}
	if resp.Token == "" {
		return "", &UpstreamError{Err: fmt.Errorf("auth succeeded but no token in response")}
	}
	return resp.Token, nil
}

// VerifyToken checks a token against the profile endpoint and returns
// the account username it belongs to.
func (c *Client) VerifyToken(ctx context.Context, token string) (string, error) {
	status, _, b, err := c.doJSON(ctx, token, http.MethodGet, "/api/profile", nil, nil, "application/json")
	if err != nil {
		return "", err
	}
	if err := apiError(status, b, ""); err != nil {
		return "", err
	}

	var resp profileResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return "", fmt.Errorf("parse profile response: %w", err)
	}
	return resp.User.Username, nil
}

// CreateBookmark saves a URL and returns the new bookmark id, taken from
// the Bookmark-Id response header (the server answers 202 before the
// page is fetched).
func (c *Client) CreateBookmark(ctx context.Context, token, bookmarkURL, title string, labels []string) (string, error) {
	body := createBookmarkRequest{URL: bookmarkURL, Title: title, Labels: labels}
	status, headers, b, err := c.doJSON(ctx, token, http.MethodPost, "/api/bookmarks", nil, body, "application/json")
	if err != nil {
		return "", err
	}
	if err := apiError(status, b, ""); err != nil {
		return "", err
	}

	id := headers.Get("Bookmark-Id")
	if id == "" {
		return "", &UpstreamError{Err: fmt.Errorf("bookmark saved but Bookmark-Id header missing")}
	}
	return id, nil
}

// GetBookmark fetches details for a single bookmark.
func (c *Client) GetBookmark(ctx context.Context, token, id string) (Bookmark, error) {
	status, _, b, err := c.doJSON(ctx, token, http.MethodGet, "/api/bookmarks/"+id, nil, nil, "application/json")
	if err != nil {
		return Bookmark{}, err
	}
	if err := apiError(status, b, id); err != nil {
		return Bookmark{}, err
	}

	var bm Bookmark
	if err := json.Unmarshal(b, &bm); err != nil {
		return Bookmark{}, fmt.Errorf("parse bookmark response: %w", err)
	}
	return bm, nil
}

// ListBookmarks follows pagination transparently until a short page or
// the configured cap, in the order the server returns (newest first).
func (c *Client) ListBookmarks(ctx context.Context, token string, opts ListOptions) ([]Bookmark, error) {
	limit := opts.Cap
	if limit <= 0 {
		limit = c.ListCap
	}
	pageSize := defaultPageSize
	if pageSize > limit {
		pageSize = limit
	}

	var all []Bookmark
	for offset := 0; len(all) < limit; offset += pageSize {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(pageSize))
		q.Set("offset", strconv.Itoa(offset))
		if opts.Search != "" {
			q.Set("search", opts.Search)
		}
		if opts.Label != "" {
			q.Set("labels", opts.Label)
		}
		if opts.Unarchived {
			q.Set("is_archived", "false")
		}

		status, _, b, err := c.doJSON(ctx, token, http.MethodGet, "/api/bookmarks", q, nil, "application/json")
		if err != nil {
			return nil, err
		}
		if err := apiError(status, b, ""); err != nil {
			return nil, err
		}

		var page []Bookmark
		if err := json.Unmarshal(b, &page); err != nil {
			return nil, fmt.Errorf("parse bookmark list: %w", err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			break
		}
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// ArticleMarkdown fetches the extracted article as markdown text.
func (c *Client) ArticleMarkdown(ctx context.Context, token, id string) (string, error) {
	status, _, b, err := c.doJSON(ctx, token, http.MethodGet, "/api/bookmarks/"+id+"/article.md", nil, nil, "text/markdown")
	if err != nil {
		return "", err
	}
	if err := apiError(status, b, id); err != nil {
		return "", err
	}
	return string(b), nil
}

// ExportEPUB streams one article as an EPUB. The caller must close the
// returned reader; closing also releases the request context.
func (c *Client) ExportEPUB(ctx context.Context, token, id string) (io.ReadCloser, error) {
	return c.stream(ctx, token, "/api/bookmarks/"+id+"/article.epub", nil, id)
}

// ExportUnreadEPUB streams a single EPUB containing every unarchived
// bookmark on the account.
func (c *Client) ExportUnreadEPUB(ctx context.Context, token string) (io.ReadCloser, error) {
	q := url.Values{}
	q.Set("is_archived", "false")
	return c.stream(ctx, token, "/api/bookmarks/export.epub", q, "")
}

// Ping reports whether the Readeck instance is reachable at all; any
// HTTP answer counts, including 401 from the unauthenticated probe.
func (c *Client) Ping(ctx context.Context) error {
	_, _, _, err := c.doOnce(ctx, "", http.MethodGet, "/api/profile", nil, nil, "application/json")
	if err != nil {
		return &UpstreamError{Err: err}
	}
	return nil
}

// Archive marks a bookmark as read.
func (c *Client) Archive(ctx context.Context, token, id string) error {
	body := archiveRequest{IsArchived: true}
	status, _, b, err := c.doJSON(ctx, token, http.MethodPatch, "/api/bookmarks/"+id, nil, body, "application/json")
	if err != nil {
		return err
	}
	return apiError(status, b, id)
}

// doJSON performs a buffered request with the bounded retry policy:
// network failures and 5xx responses are retried RetryCount times with
// doubling backoff, everything else is returned as-is.
func (c *Client) doJSON(ctx context.Context, token, method, path string, query url.Values, body any, accept string) (int, http.Header, []byte, error) {
	attempts := c.RetryCount + 1
	if attempts < 1 {
		attempts = 1
	}
	backoff := c.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var lastStatus int
	var lastHeaders http.Header
	var lastBody []byte
	var lastErr error
	for i := 0; i < attempts; i++ {
		status, headers, b, err := c.doOnce(ctx, token, method, path, query, body, accept)
		lastStatus, lastHeaders, lastBody, lastErr = status, headers, b, err
		if err == nil && status < 500 {
			return status, headers, b, nil
		}
		if ctx.Err() != nil {
			break
		}
		if i < attempts-1 {
			time.Sleep(backoff * time.Duration(1<<i))
		}
	}
	if lastErr != nil {
		return 0, nil, nil, &UpstreamError{Err: lastErr}
	}
	return lastStatus, lastHeaders, lastBody, nil
}

func (c *Client) doOnce(ctx context.Context, token, method, path string, query url.Values, body any, accept string) (int, http.Header, []byte, error) {
	req, err := c.newRequest(ctx, token, method, path, query, body, accept)
	if err != nil {
		return 0, nil, nil, err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer utils.Close(resp.Body)

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, err
	}
	return resp.StatusCode, resp.Header, b, nil
}

// stream performs a GET whose body is handed to the caller unread.
// Only the connection attempt is retried; once bytes flow the transfer
// is not restarted.
func (c *Client) stream(ctx context.Context, token, path string, query url.Values, id string) (io.ReadCloser, error) {
	attempts := c.RetryCount + 1
	if attempts < 1 {
		attempts = 1
	}
	backoff := c.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		reqCtx, cancel := context.WithCancel(ctx)
		req, err := c.newRequest(reqCtx, token, http.MethodGet, path, query, nil, "application/epub+zip")
		if err != nil {
			cancel()
			return nil, err
		}

		resp, err := c.HTTP.Do(req)
		if err != nil {
			cancel()
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			if i < attempts-1 {
				time.Sleep(backoff * time.Duration(1<<i))
			}
			continue
		}
		if resp.StatusCode >= 500 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			utils.Close(resp.Body)
			cancel()
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
			if i < attempts-1 {
				time.Sleep(backoff * time.Duration(1<<i))
			}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			utils.Close(resp.Body)
			cancel()
			return nil, apiError(resp.StatusCode, b, id)
		}
		return &utils.CancelOnClose{ReadCloser: resp.Body, Cancel: cancel}, nil
	}
	return nil, &UpstreamError{Err: lastErr}
}

func (c *Client) newRequest(ctx context.Context, token, method, path string, query url.Values, body any, accept string) (*http.Request, error) {
	fullURL := c.BaseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	return req, nil
}

// apiError maps a response to the error taxonomy. nil for 2xx.
func apiError(status int, body []byte, id string) error {
	switch {
	case status >= 200 && status <= 299:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{Status: status}
	case status == http.StatusNotFound:
		return &NotFoundError{ID: id}
	case status >= 400 && status < 500:
		return &ValidationError{Status: status, Msg: serverMessage(body)}
	default:
		return &UpstreamError{Status: status}
	}
}

func serverMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	return strings.TrimSpace(string(body))
}
