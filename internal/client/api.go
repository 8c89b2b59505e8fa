// Package client talks to the CRM HTTP API and keeps client-side pipeline state.
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
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/salescrm/crm-api/internal/domain"
	"go.uber.org/zap"
)

// APIError is a failure reported by the server, either a non-2xx status or a body carrying "error"
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Filters narrows an opportunity listing. Zero fields are not sent.
type Filters struct {
	SellerID   *uuid.UUID
	CustomerID *uuid.UUID
	Stage      domain.OpportunityStage
}

// Query encodes the filters as seller_id, stage and customer_id parameters
func (f Filters) Query() url.Values {
	q := url.Values{}
	if f.SellerID != nil {
		q.Set("seller_id", f.SellerID.String())
	}
	if f.Stage != "" {
		q.Set("stage", string(f.Stage))
	}
	if f.CustomerID != nil {
		q.Set("customer_id", f.CustomerID.String())
	}
	return q
}

// OpportunityAPI is the remote collaborator behind OpportunityStore
type OpportunityAPI interface {
	ListOpportunities(ctx context.Context, filters Filters) ([]domain.OpportunityDTO, error)
	CreateOpportunity(ctx context.Context, req domain.CreateOpportunityRequest) (*domain.OpportunityDTO, error)
	UpdateOpportunity(ctx context.Context, id uuid.UUID, req domain.UpdateOpportunityRequest) (*domain.OpportunityDTO, error)
	MoveOpportunity(ctx context.Context, id uuid.UUID, stage domain.OpportunityStage) (*domain.OpportunityDTO, error)
	DeleteOpportunity(ctx context.Context, id uuid.UUID) error
}

// Config holds the settings of an APIClient
type Config struct {
	// BaseURL is the API root, for example http://localhost:8080/api/v1
	BaseURL string
	Token   string
	Timeout time.Duration
	// HTTPClient overrides the default client, mainly for tests
	HTTPClient *http.Client
}

// APIClient is a JSON client for the CRM API
type APIClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewAPIClient creates a client for the API rooted at cfg.BaseURL
func NewAPIClient(cfg Config, logger *zap.Logger) *APIClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Login exchanges credentials for a session token and stores it on the client
func (c *APIClient) Login(ctx context.Context, email, password string) (*domain.AuthResponse, error) {
	var resp domain.AuthResponse
	body := domain.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, body, &resp); err != nil {
		return nil, err
	}
	c.token = resp.Token
	return &resp, nil
}

func (c *APIClient) ListOpportunities(ctx context.Context, filters Filters) ([]domain.OpportunityDTO, error) {
	var resp struct {
		Opportunities []domain.OpportunityDTO `json:"opportunities"`
	}
	if err := c.do(ctx, http.MethodGet, "/opportunities", filters.Query(), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Opportunities == nil {
		resp.Opportunities = []domain.OpportunityDTO{}
	}
	return resp.Opportunities, nil
}

func (c *APIClient) CreateOpportunity(ctx context.Context, req domain.CreateOpportunityRequest) (*domain.OpportunityDTO, error) {
	return c.opportunityCall(ctx, http.MethodPost, "/opportunities", req)
}

func (c *APIClient) UpdateOpportunity(ctx context.Context, id uuid.UUID, req domain.UpdateOpportunityRequest) (*domain.OpportunityDTO, error) {
	return c.opportunityCall(ctx, http.MethodPut, "/opportunities/"+id.String(), updateBody(req))
}

func (c *APIClient) MoveOpportunity(ctx context.Context, id uuid.UUID, stage domain.OpportunityStage) (*domain.OpportunityDTO, error) {
	return c.opportunityCall(ctx, http.MethodPatch, "/opportunities/"+id.String(), domain.MoveOpportunityRequest{Stage: stage})
}

func (c *APIClient) DeleteOpportunity(ctx context.Context, id uuid.UUID) error {
	var resp domain.SuccessResponse
	return c.do(ctx, http.MethodDelete, "/opportunities/"+id.String(), nil, nil, &resp)
}

// KPIs fetches the dashboard cards for the given period
func (c *APIClient) KPIs(ctx context.Context, period domain.KPIPeriod) (*domain.DashboardKPIs, error) {
	q := url.Values{}
	if period != "" {
		q.Set("period", string(period))
	}
	var resp struct {
		KPIs domain.DashboardKPIs `json:"kpis"`
	}
	if err := c.do(ctx, http.MethodGet, "/dashboard/kpis", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.KPIs, nil
}

// Charts fetches the dashboard chart series for the trailing number of months
func (c *APIClient) Charts(ctx context.Context, months int) (*domain.DashboardCharts, error) {
	q := url.Values{}
	if months > 0 {
		q.Set("months", strconv.Itoa(months))
	}
	var resp struct {
		Charts domain.DashboardCharts `json:"charts"`
	}
	if err := c.do(ctx, http.MethodGet, "/dashboard/charts", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Charts, nil
}

func (c *APIClient) opportunityCall(ctx context.Context, method, path string, body interface{}) (*domain.OpportunityDTO, error) {
	var resp struct {
		Opportunity *domain.OpportunityDTO `json:"opportunity"`
	}
	if err := c.do(ctx, method, path, nil, body, &resp); err != nil {
		return nil, err
	}
	if resp.Opportunity == nil {
		return nil, &APIError{Status: http.StatusOK, Message: "response did not contain an opportunity"}
	}
	return resp.Opportunity, nil
}

// updateBody turns a partial update into a JSON object, sending an explicit null to clear the seller
func updateBody(req domain.UpdateOpportunityRequest) map[string]interface{} {
	body := make(map[string]interface{})
	if req.CustomerID != nil {
		body["customerId"] = req.CustomerID
	}
	if req.ClearSeller {
		body["sellerId"] = nil
	} else if req.SellerID != nil {
		body["sellerId"] = req.SellerID
	}
	if req.Stage != nil {
		body["stage"] = req.Stage
	}
	if req.Notes != nil {
		body["notes"] = req.Notes
	}
	if req.Products != nil {
		body["products"] = *req.Products
	}
	return body
}

// do sends a JSON request and decodes the response into out.
// Transport failures are returned unchanged so their message reaches the caller as is.
func (c *APIClient) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	c.logger.Debug("request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	var envelope struct {
		Error string `json:"error"`
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &envelope)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || envelope.Error != "" {
		msg := envelope.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		if msg == "" {
			msg = fmt.Sprintf("request failed with status %d", resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ErrorMessage normalizes err to the text shown to users: the server message when
// the server reported one, otherwise the error's own message.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
