// Package client talks to the events API. Writes are checked against the
// shared schema before anything is sent.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ms-events/internal/events/schema"
	"ms-events/internal/models"
)

// APIError carries the server's message for a failed call.
type APIError struct {
	Status  int
	Message string
	Errors  map[string]string
}

func (e *APIError) Error() string {
	return e.Message
}

// NotFound reports whether the server answered 404.
func (e *APIError) NotFound() bool {
	return e.Status == http.StatusNotFound
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New returns a client for the API rooted at baseURL, e.g.
// http://localhost:8080 or http://localhost:8080/api.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type messageBody struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

func (c *Client) ListEvents(ctx context.Context) ([]models.Event, error) {
	var out struct {
		Events []models.Event `json:"events"`
	}
	resp, err := c.do(ctx, http.MethodGet, "/events", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Message: "Failed to fetch events"}
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	if out.Events == nil {
		out.Events = []models.Event{}
	}
	return out.Events, nil
}

func (c *Client) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	resp, err := c.do(ctx, http.MethodGet, eventPath(id), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, &APIError{Status: resp.StatusCode, Message: "Event not found"}
	default:
		return nil, &APIError{Status: resp.StatusCode, Message: "Failed to fetch event"}
	}

	var event models.Event
	if err := json.NewDecoder(resp.Body).Decode(&event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &event, nil
}

// CreateEvent returns schema.FieldErrors without a request when in does not
// pass validation.
func (c *Client) CreateEvent(ctx context.Context, in models.EventInput) (*models.Event, error) {
	if err := schema.ValidateCreate(in); err != nil {
		return nil, err
	}
	return c.write(ctx, http.MethodPost, "/events", in, http.StatusCreated, "Failed to create event")
}

// UpdateEvent sends only the fields set on in.
func (c *Client) UpdateEvent(ctx context.Context, id string, in models.EventInput) (*models.Event, error) {
	if err := schema.ValidateUpdate(in); err != nil {
		return nil, err
	}
	return c.write(ctx, http.MethodPut, eventPath(id), in, http.StatusOK, "Failed to update event")
}

func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, eventPath(id), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failure(resp, "Failed to delete event")
	}
	return nil
}

// Stats fetches the status counts shown on the dashboard.
func (c *Client) Stats(ctx context.Context) (map[string]int, error) {
	resp, err := c.do(ctx, http.MethodGet, "/events/stats", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, failure(resp, "Failed to fetch event stats")
	}
	stats := map[string]int{}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return stats, nil
}

// EventQR downloads the share QR code as PNG.
func (c *Client) EventQR(ctx context.Context, id string) ([]byte, error) {
	return c.download(ctx, eventPath(id)+"/qr", "Failed to generate QR code")
}

// EventICS downloads the event as an iCalendar file.
func (c *Client) EventICS(ctx context.Context, id string) ([]byte, error) {
	return c.download(ctx, eventPath(id)+"/ics", "Failed to export event")
}

// eventPath escapes id so it always stays one path segment.
func eventPath(id string) string {
	return "/events/" + url.PathEscape(id)
}

func (c *Client) download(ctx context.Context, path, fallback string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, failure(resp, fallback)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return body, nil
}

func (c *Client) write(ctx context.Context, method, path string, in models.EventInput, want int, fallback string) (*models.Event, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}

	resp, err := c.do(ctx, method, path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return nil, failure(resp, fallback)
	}

	var out struct {
		Event *models.Event `json:"event"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if out.Event == nil {
		return nil, &APIError{Status: resp.StatusCode, Message: fallback}
	}
	return out.Event, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// failure prefers the server's message and falls back when the body has none.
func failure(resp *http.Response, fallback string) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: fallback}

	var body messageBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		if body.Message != "" {
			apiErr.Message = body.Message
		}
		apiErr.Errors = body.Errors
	}
	return apiErr
}
