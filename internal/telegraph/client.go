// Package telegraph publishes simplified reading views of articles to
// telegra.ph.
package telegraph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jmfederico/readeckbot/internal/utils"
)

const DefaultBaseURL = "https://api.telegra.ph"

// Client is a minimal Telegraph API client: create an account, create
// a page. Everything else the API offers is unused here.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL: DefaultBaseURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type Account struct {
	AccessToken string `json:"access_token"`
	ShortName   string `json:"short_name"`
	AuthorName  string `json:"author_name"`
}

type apiResponse struct {
	OK     bool            `json:"ok"`
	Error  string          `json:"error"`
	Result json.RawMessage `json:"result"`
}

func (c *Client) CreateAccount(ctx context.Context, shortName, authorName, authorURL string) (Account, error) {
	form := url.Values{}
	form.Set("short_name", shortName)
	form.Set("author_name", authorName)
	if authorURL != "" {
		form.Set("author_url", authorURL)
	}

	var acc Account
	if err := c.call(ctx, "/createAccount", form, &acc); err != nil {
		return Account{}, err
	}
	if acc.AccessToken == "" {
		return Account{}, fmt.Errorf("telegraph: account created without access token")
	}
	return acc, nil
}

type page struct {
	URL string `json:"url"`
}

// CreatePage publishes content under the account's access token and
// returns the public page URL.
func (c *Client) CreatePage(ctx context.Context, accessToken, title string, content []Node, authorName, authorURL string) (string, error) {
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("telegraph: marshal content: %w", err)
	}

	form := url.Values{}
	form.Set("access_token", accessToken)
	form.Set("title", title)
	form.Set("content", string(contentJSON))
	if authorName != "" {
		form.Set("author_name", authorName)
	}
	if authorURL != "" {
		form.Set("author_url", authorURL)
	}

	var p page
	if err := c.call(ctx, "/createPage", form, &p); err != nil {
		return "", err
	}
	return p.URL, nil
}

func (c *Client) call(ctx context.Context, path string, form url.Values, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("telegraph: %w", err)
	}
	defer utils.Close(resp.Body)

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegraph: read response: %w", err)
	}

	var api apiResponse
	if err := json.Unmarshal(b, &api); err != nil {
		return fmt.Errorf("telegraph: parse response: %w", err)
	}
	if !api.OK {
		return fmt.Errorf("telegraph: %s", api.Error)
	}
	return json.Unmarshal(api.Result, result)
}

// Publisher converts markdown to a page and publishes it, keeping one
// Telegraph account per chat user for the process lifetime. Accounts
// are not persisted; a restart simply creates fresh ones.
type Publisher struct {
	client *Client

	mu       sync.Mutex
	accounts map[int64]string // user id -> access token
}

func NewPublisher(client *Client) *Publisher {
	return &Publisher{
		client:   client,
		accounts: make(map[int64]string),
	}
}

// Publish renders md under title and returns the public URL.
func (p *Publisher) Publish(ctx context.Context, userID int64, userName, title, authorURL, md string) (string, error) {
	token, err := p.accountToken(ctx, userID, userName)
	if err != nil {
		return "", err
	}

	dom := StripLeadingTitle(FromMarkdown(md), title)
	return p.client.CreatePage(ctx, token, title, dom, userName, authorURL)
}

func (p *Publisher) accountToken(ctx context.Context, userID int64, userName string) (string, error) {
	p.mu.Lock()
	token, ok := p.accounts[userID]
	p.mu.Unlock()
	if ok {
		return token, nil
	}

	acc, err := p.client.CreateAccount(ctx,
		fmt.Sprintf("@%s's readeckbot blog", userName),
		"@"+userName,
		"https://t.me/"+userName,
	)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.accounts[userID] = acc.AccessToken
	p.mu.Unlock()
	return acc.AccessToken, nil
}
