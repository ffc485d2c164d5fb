// Package client is a typed HTTP client for the vitalwatch API.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"vitalwatch/internal/engine"
	"vitalwatch/internal/handlers"
	"vitalwatch/internal/middleware"
	"vitalwatch/internal/models"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	// Alert is the stored alert on a 409 from resolve.
	Alert *models.Alert
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vitalwatch api: %d: %s", e.StatusCode, e.Message)
}

// Is maps status codes onto the model error classes so callers can use
// errors.Is(err, models.ErrNotFound) and friends.
func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case http.StatusNotFound:
		return target == models.ErrNotFound
	case http.StatusBadRequest:
		return target == models.ErrInvalidInput
	case http.StatusConflict:
		return target == models.ErrAlreadyResolved
	}
	return false
}

type errorBody struct {
	Success bool          `json:"success"`
	Error   string        `json:"error"`
	Alert   *models.Alert `json:"alert,omitempty"`
}

// Actor is sent on every request through the actor headers.
type Actor struct {
	ID   string
	Name string
	Role models.Role
}

// Config holds client configuration
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	Actor      Actor
}

// Client talks to a vitalwatch server
type Client struct {
	http *resty.Client
}

// New creates a client for cfg.BaseURL
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("client: base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("client: invalid base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryCount < 0 {
		cfg.RetryCount = 0
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json").
		SetError(&errorBody{})

	if cfg.Actor.Role != "" {
		rc.SetHeader(middleware.ActorRoleHeader, string(cfg.Actor.Role))
	}
	if cfg.Actor.ID != "" {
		rc.SetHeader(middleware.ActorIDHeader, cfg.Actor.ID)
	}
	if cfg.Actor.Name != "" {
		rc.SetHeader(middleware.ActorNameHeader, cfg.Actor.Name)
	}

	return &Client{http: rc}, nil
}

func (c *Client) do(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("vitalwatch api: %w", err)
	}
	if !resp.IsError() {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode(), Message: strings.TrimSpace(resp.String())}
	if body, ok := resp.Error().(*errorBody); ok && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Alert = body.Alert
	}
	return apiErr
}

// ListPatients returns the patients visible to the actor whose name or
// condition contains query. An empty query lists all of them.
func (c *Client) ListPatients(ctx context.Context, query string) ([]models.Patient, error) {
	var out []models.Patient
	req := c.http.R().SetContext(ctx).SetResult(&out)
	if query != "" {
		req.SetQueryParam("q", query)
	}
	if err := c.do(req.Get("/patients")); err != nil {
		return nil, err
	}
	return out, nil
}

// Patient returns one patient by id
func (c *Client) Patient(ctx context.Context, id string) (models.Patient, error) {
	var out models.Patient
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&out).
		Get("/patients/{id}")
	if err := c.do(resp, err); err != nil {
		return models.Patient{}, err
	}
	return out, nil
}

// AlertQuery filters ListAlerts. Zero fields do not filter.
type AlertQuery struct {
	Status     string
	Severity   models.Severity
	PatientIDs []string
	Limit      int
}

// ListAlerts returns the alerts matching q, newest first.
func (c *Client) ListAlerts(ctx context.Context, q AlertQuery) ([]models.Alert, error) {
	var out []models.Alert
	req := c.http.R().SetContext(ctx).SetResult(&out)
	if q.Status != "" {
		req.SetQueryParam("status", q.Status)
	}
	if q.Severity != "" {
		req.SetQueryParam("severity", string(q.Severity))
	}
	if len(q.PatientIDs) > 0 {
		req.SetQueryParam("patient", strings.Join(q.PatientIDs, ","))
	}
	if q.Limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(q.Limit))
	}
	if err := c.do(req.Get("/alerts")); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveAlert closes an alert. On a second resolve the returned error
// matches models.ErrAlreadyResolved and the stored alert is returned with it.
func (c *Client) ResolveAlert(ctx context.Context, id, actionTaken, resolvedBy string) (models.Alert, error) {
	var out models.Alert
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetHeader("Content-Type", "application/json").
		SetBody(handlers.ResolveRequest{ActionTaken: actionTaken, ResolvedBy: resolvedBy}).
		SetResult(&out).
		Post("/alerts/{id}/resolve")
	if err := c.do(resp, err); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Alert != nil {
			return *apiErr.Alert, err
		}
		return models.Alert{}, err
	}
	return out, nil
}

// AddRemark appends a remark to a patient's log.
func (c *Client) AddRemark(ctx context.Context, patientID string, r handlers.RemarkRequest) (models.Remark, error) {
	var out models.Remark
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", patientID).
		SetHeader("Content-Type", "application/json").
		SetBody(r).
		SetResult(&out).
		Post("/patients/{id}/remarks")
	if err := c.do(resp, err); err != nil {
		return models.Remark{}, err
	}
	return out, nil
}

// Summary returns the dashboard header for the actor's scope.
func (c *Client) Summary(ctx context.Context) (engine.Summary, error) {
	var out engine.Summary
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/summary")
	if err := c.do(resp, err); err != nil {
		return engine.Summary{}, err
	}
	return out, nil
}
