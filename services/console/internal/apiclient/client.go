package apiclient

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

	"adminconsole/internal/util"
)

const maxResponseBytes = 10 << 20

// TokenSource supplies the bearer token for each call. *session.Store
// satisfies it.
type TokenSource interface {
	Token() string
}

// Observer is told about every completed call. route is the path template,
// status is 0 when no response arrived.
type Observer interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	// Timeout bounds each call; zero means no timeout.
	Timeout    time.Duration
	Tokens     TokenSource
	Observer   Observer
	HTTPClient *http.Client
}

// Client calls the remote admin API over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	observer   Observer
}

// APIError represents an API error response.
type APIError struct {
	Status  int
	Message string
	Code    string
	// remote is set when Message came from the response payload.
	remote bool
}

func (e *APIError) Error() string {
	return e.Message
}

// UserMessage returns the message sent by the API, if any.
func (e *APIError) UserMessage() string {
	if !e.remote {
		return ""
	}
	return e.Message
}

// New constructs a client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient: httpClient,
		tokens:     cfg.Tokens,
		observer:   cfg.Observer,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.tokens != nil {
		addAuthHeader(req, c.tokens.Token())
	}
	requestID := util.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = util.NewRequestID()
	}
	req.Header.Set(util.RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// doJSON sends in as a JSON body (when non-nil) and decodes the response into
// out. out may be *[]byte to receive the raw body.
func (c *Client) doJSON(ctx context.Context, method, route, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, route, out)
}

func (c *Client) do(req *http.Request, route string, out any) error {
	start := time.Now()
	status := 0
	defer func() {
		if c.observer != nil {
			c.observer.ObserveRequest(req.Method, route, status, time.Since(start))
		}
	}()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, route, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", req.Method, route, err)
	}
	if resp.StatusCode >= 400 {
		return decodeError(resp, data)
	}
	switch o := out.(type) {
	case nil:
		return nil
	case *[]byte:
		*o = data
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", req.Method, route, err)
	}
	return nil
}

func decodeError(resp *http.Response, data []byte) error {
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	_ = json.Unmarshal(data, &errResp)
	msg := strings.TrimSpace(errResp.Message)
	if msg == "" {
		msg = strings.TrimSpace(errResp.Error)
	}
	apiErr := &APIError{Status: resp.StatusCode, Message: msg, Code: strings.TrimSpace(errResp.Code), remote: msg != ""}
	if msg == "" {
		apiErr.Message = resp.Status
	}
	return apiErr
}

func addAuthHeader(req *http.Request, token string) {
	if strings.TrimSpace(token) == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

// decodeEntity decodes a single object that may be wrapped under one of keys.
func decodeEntity[T any](data []byte, keys ...string) (T, error) {
	var out T
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err == nil {
		for _, key := range keys {
			raw, ok := obj[key]
			if ok && len(raw) > 0 && raw[0] == '{' {
				err := json.Unmarshal(raw, &out)
				return out, err
			}
		}
	}
	err := json.Unmarshal(data, &out)
	return out, err
}

func listQuery(page, limit int, search string, filters map[string]string) string {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if s := strings.TrimSpace(search); s != "" {
		q.Set("search", s)
	}
	for k, v := range filters {
		if v != "" {
			q.Set(k, v)
		}
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func escape(id string) string {
	return url.PathEscape(strings.TrimSpace(id))
}
