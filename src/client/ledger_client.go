package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"errorledger/src/capture"
	"errorledger/src/handler"
	"errorledger/src/model"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"
)

const (
	defaultRetryAttempts   = 3
	defaultRetryBaseDelay  = 200 * time.Millisecond
	defaultRetryMaxBackoff = 2 * time.Second
)

// Client talks to the read API of a running ledger server.
type Client struct {
	baseURL string
	http    *resty.Client
}

// Captures are not idempotent: a retried POST would count the error twice.
func isRetryableResp(r *resty.Response, err error) bool {
	if r != nil && r.Request != nil && r.Request.Method == http.MethodPost {
		return false
	}
	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()
	if code >= 500 && code <= 599 {
		return code != http.StatusServiceUnavailable
	}
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

// NewClient creates a client for the server at baseURL, e.g. http://localhost:9898.
func NewClient(baseURL string) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &Client{
		baseURL: baseURL,
		http:    httpClient,
	}
}

// TopErrors fetches the limit most frequent errors.
func (c *Client) TopErrors(ctx context.Context, limit int) ([]model.ErrorRecord, error) {
	req := c.http.R().SetContext(ctx)
	if limit > 0 {
		req = req.SetQueryParam("limit", strconv.Itoa(limit))
	}

	resp, err := req.Get("/errors")
	if err != nil {
		return nil, fmt.Errorf("list top errors: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var records []model.ErrorRecord
	if err := json.Unmarshal(resp.Body(), &records); err != nil {
		return nil, fmt.Errorf("decode top errors: %w", err)
	}
	return records, nil
}

// GetError fetches one error. Returns (nil, nil) if the server does not know
// the signature.
func (c *Client) GetError(ctx context.Context, signature string) (*model.ErrorDetail, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("signature", signature).
		Get("/errors/{signature}")
	if err != nil {
		return nil, fmt.Errorf("get error: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound:
		logger.WithField("signature", signature).Debug("Error signature not found on server")
		return nil, nil
	default:
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var detail model.ErrorDetail
	if err := json.Unmarshal(resp.Body(), &detail); err != nil {
		return nil, fmt.Errorf("decode error detail: %w", err)
	}
	return &detail, nil
}

// Capture forwards report to the server.
func (c *Client) Capture(ctx context.Context, report capture.Report) (*handler.CaptureResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(report).
		SetHeader("Content-Type", "application/json").
		Post("/errors")
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}

	var out handler.CaptureResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), string(resp.Body()))
	}
	return &out, nil
}
