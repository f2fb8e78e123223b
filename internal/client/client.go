// Package client talks to the rule service over HTTP. Client implements
// rules.Collaborator.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/inamate/tripwire/internal/geometry"
	"github.com/inamate/tripwire/internal/rules"
)

// APIError is a non-2xx reply. Detail carries the server's message.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("rule service returned %d", e.Status)
	}
	return fmt.Sprintf("rule service returned %d: %s", e.Status, e.Detail)
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Option func(*Client)

func WithToken(token string) Option { return func(c *Client) { c.token = token } }

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token used for /api requests.
func (c *Client) SetToken(token string) { c.token = token }

type LoginResult struct {
	Token    string `json:"token"`
	Operator struct {
		ID          string `json:"id"`
		Username    string `json:"username"`
		DisplayName string `json:"displayName"`
	} `json:"operator"`
}

// Login exchanges credentials for a token and starts using it.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	var res LoginResult
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &res); err != nil {
		return nil, err
	}
	c.token = res.Token
	return &res, nil
}

func (c *Client) ListCameras(ctx context.Context) ([]rules.Camera, error) {
	var cameras []rules.Camera
	if err := c.do(ctx, http.MethodGet, "/api/cameras", nil, &cameras); err != nil {
		return nil, err
	}
	return cameras, nil
}

func (c *Client) CreateCamera(ctx context.Context, name, streamURL string) (rules.Camera, error) {
	var cam rules.Camera
	err := c.do(ctx, http.MethodPost, "/api/cameras", map[string]string{"name": name, "url": streamURL}, &cam)
	return cam, err
}

func (c *Client) GetCamera(ctx context.Context, cameraID string) (rules.Camera, error) {
	var cam rules.Camera
	err := c.do(ctx, http.MethodGet, "/api/camera/"+url.PathEscape(cameraID), nil, &cam)
	return cam, err
}

func (c *Client) SubmitPolygon(ctx context.Context, cameraID string, zone geometry.NormalizedPolygon) error {
	return c.do(ctx, http.MethodPost, "/api/camera/"+url.PathEscape(cameraID)+"/polygon", zone, nil)
}

func (c *Client) SubmitLine(ctx context.Context, cameraID string, line geometry.NormalizedLine) error {
	return c.do(ctx, http.MethodPost, "/api/camera/"+url.PathEscape(cameraID)+"/line", line, nil)
}

func (c *Client) Redeploy(ctx context.Context, cameraID string) error {
	return c.do(ctx, http.MethodPost, "/api/camera/"+url.PathEscape(cameraID)+"/deploy", nil, nil)
}

// ActiveConfig returns the raw active configuration document.
func (c *Client) ActiveConfig(ctx context.Context, cameraID string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.do(ctx, http.MethodGet, "/api/camera/"+url.PathEscape(cameraID)+"/active-config", nil, &raw)
	return raw, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	switch {
	case json.Unmarshal(data, &body) == nil && body.Detail != "":
		apiErr.Detail = body.Detail
	case body.Error != "":
		apiErr.Detail = body.Error
	default:
		apiErr.Detail = strings.TrimSpace(string(data))
	}
	return apiErr
}
