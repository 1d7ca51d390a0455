// Package odoo implements the REST client for the ERP: OAuth token
// lifecycle, generic search/create, and the typed queries the tools use.
package odoo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/akivoy/orion/internal/config"
	"github.com/akivoy/orion/internal/observability"
)

const (
	tokenPath  = "/api/v2/authentication/oauth2/token"
	searchPath = "/api/v2/search_read"
	createPath = "/api/v2/create"
	reportPath = "/api/v2/report/sale.report_saleorder"

	// tokenRetries bounds the renew-and-retry cycle on auth failures.
	tokenRetries = 2
)

// Record is a loosely typed ERP row. Relational fields arrive as
// [id, display_name] pairs, which RelID and RelName unpack.
type Record = map[string]any

// HTTPError is a non-2xx response from the ERP.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("odoo: http %d: %s", e.StatusCode, e.Body)
}

// isAuthError reports whether the request failed for credential reasons and
// a token renewal is worth trying.
func isAuthError(err error) bool {
	httpErr, ok := err.(*HTTPError)
	if ok && httpErr.StatusCode == http.StatusUnauthorized {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid_token") || strings.Contains(msg, "token_expired")
}

// Client talks to the ERP REST API with client-credentials OAuth. The token
// is renewed ahead of expiry and once more on a 401, then the error
// propagates.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
	buffer     time.Duration
	staticDir  string
	log        *observability.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewClient creates an ERP client. staticDir receives downloaded images and
// reports.
func NewClient(cfg config.OdooConfig, staticDir string, log *observability.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		clientID:   cfg.ClientID,
		secret:     cfg.ClientSecret,
		buffer:     cfg.TokenRenewalBuffer,
		staticDir:  staticDir,
		log:        log,
	}
}

// BaseURL exposes the ERP base URL for building portal links.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Add(c.buffer).Before(c.expiresAt) {
		return c.token, nil
	}

	c.log.Debug(ctx, "renewing erp token")
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("odoo: build token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("odoo: token request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("odoo: decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("odoo: token response missing access_token")
	}
	if payload.ExpiresIn <= 0 {
		payload.ExpiresIn = 3600
	}

	c.token = payload.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	c.log.Debug(ctx, "erp token renewed", "expires_at", c.expiresAt)
	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

// authenticated runs do with a valid bearer token, renewing once if the ERP
// rejects the credentials mid-flight.
func (c *Client) authenticated(ctx context.Context, do func(token string) error) error {
	var err error
	for attempt := 1; attempt <= tokenRetries; attempt++ {
		var token string
		token, err = c.ensureToken(ctx)
		if err != nil {
			return err
		}
		if err = do(token); err == nil {
			return nil
		}
		if !isAuthError(err) || attempt == tokenRetries {
			return err
		}
		c.log.Warn(ctx, "erp rejected token, renewing", "attempt", attempt)
		c.invalidateToken()
	}
	return err
}

// Query describes a search_read request.
type Query struct {
	Model  string
	Fields []string
	Domain [][]any
	Order  string
	Limit  int
}

// Fetch runs a search_read and returns the matching rows.
func (c *Client) Fetch(ctx context.Context, q Query) ([]Record, error) {
	fields, err := json.Marshal(q.Fields)
	if err != nil {
		return nil, fmt.Errorf("odoo: encode fields: %w", err)
	}
	domain, err := json.Marshal(q.Domain)
	if err != nil {
		return nil, fmt.Errorf("odoo: encode domain: %w", err)
	}

	params := url.Values{
		"model":  {q.Model},
		"fields": {string(fields)},
		"domain": {string(domain)},
	}
	if q.Order != "" {
		params.Set("order", q.Order)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var records []Record
	err = c.authenticated(ctx, func(token string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+searchPath+"?"+params.Encode(), nil)
		if err != nil {
			return fmt.Errorf("odoo: build fetch request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		body, err := c.do(req)
		if err != nil {
			return err
		}
		records = nil
		return json.Unmarshal(body, &records)
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Create inserts one record and returns the ERP response, normally the new
// record ID.
func (c *Client) Create(ctx context.Context, model string, values Record) (json.RawMessage, error) {
	args, err := json.Marshal([]Record{values})
	if err != nil {
		return nil, fmt.Errorf("odoo: encode create args: %w", err)
	}

	form := url.Values{
		"model":  {model},
		"method": {"create"},
		"args":   {string(args)},
	}

	var result json.RawMessage
	err = c.authenticated(ctx, func(token string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+createPath, strings.NewReader(form.Encode()))
		if err != nil {
			return fmt.Errorf("odoo: build create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		body, err := c.do(req)
		if err != nil {
			return err
		}
		result = json.RawMessage(body)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DownloadReport fetches the quotation PDF for a sale order and stores it
// under the static directory. It returns the relative path.
func (c *Client) DownloadReport(ctx context.Context, saleOrderID int) (string, error) {
	params := url.Values{
		"ids":  {fmt.Sprintf("[%d]", saleOrderID)},
		"type": {"PDF"},
	}

	var content string
	err := c.authenticated(ctx, func(token string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+reportPath+"?"+params.Encode(), nil)
		if err != nil {
			return fmt.Errorf("odoo: build report request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		body, err := c.do(req)
		if err != nil {
			return err
		}
		var payload struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return fmt.Errorf("odoo: decode report response: %w", err)
		}
		content = payload.Content
		return nil
	})
	if err != nil {
		return "", err
	}

	pdf, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return "", fmt.Errorf("odoo: decode report pdf: %w", err)
	}

	rel := filepath.Join("reports", fmt.Sprintf("%d.pdf", saleOrderID))
	path := filepath.Join(c.staticDir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("odoo: create report dir: %w", err)
	}
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return "", fmt.Errorf("odoo: write report: %w", err)
	}
	c.log.Info(ctx, "quotation report stored", "path", path)
	return path, nil
}

// DownloadImage decodes a base64 product image and stores it under the
// static directory as <name>.jpg. Empty payloads are skipped silently; the
// ERP leaves the field empty for products without photos.
func (c *Client) DownloadImage(ctx context.Context, imageBase64, name string) (string, error) {
	if imageBase64 == "" {
		c.log.Warn(ctx, "product has no image", "name", name)
		return "", nil
	}
	img, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return "", fmt.Errorf("odoo: decode image: %w", err)
	}

	rel := filepath.Join("images", name+".jpg")
	path := filepath.Join(c.staticDir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("odoo: create image dir: %w", err)
	}
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return "", fmt.Errorf("odoo: write image: %w", err)
	}
	c.log.Debug(ctx, "product image stored", "path", path)
	return path, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("odoo: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("odoo: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// RelID unpacks the id from a relational [id, name] field.
func RelID(v any) (int, bool) {
	pair, ok := v.([]any)
	if !ok || len(pair) == 0 {
		return 0, false
	}
	return toInt(pair[0])
}

// RelName unpacks the display name from a relational [id, name] field.
func RelName(v any) (string, bool) {
	pair, ok := v.([]any)
	if !ok || len(pair) < 2 {
		return "", false
	}
	name, ok := pair[1].(string)
	return name, ok
}

// AsInt coerces a JSON-decoded numeric field to int.
func AsInt(v any) (int, bool) { return toInt(v) }

// AsString returns a string field, tolerating Odoo's false-for-empty
// convention.
func AsString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// AsBool returns a boolean field, defaulting to false for anything else.
func AsBool(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

// AsFloat coerces a JSON-decoded numeric field to float64.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}
