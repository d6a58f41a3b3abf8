package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/trafficmeter/internal/config"
)

const maxErrorBodySize = 4096

// ErrUnauthorized indicates the analytics endpoint rejected the credentials.
var ErrUnauthorized = errors.New("analytics sink unauthorized")

// ErrInvalidArgument indicates the analytics endpoint rejected the payload.
var ErrInvalidArgument = errors.New("analytics sink invalid argument")

// ErrNotFound indicates the analytics endpoint or dataset does not exist.
var ErrNotFound = errors.New("analytics sink dataset not found")

// HTTP posts each data point as JSON to an analytics ingestion endpoint.
type HTTP struct {
	url    string
	token  string
	client *http.Client
}

// NewHTTP creates an HTTP sink. A nil client gets one with cfg.Timeout.
func NewHTTP(cfg config.HTTPSinkConf, client *http.Client) (*HTTP, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("analytics sink url required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	} else if client.Timeout == 0 {
		client.Timeout = timeout
	}
	return &HTTP{
		url:    url,
		token:  strings.TrimSpace(cfg.Token),
		client: client,
	}, nil
}

func (*HTTP) Name() string { return "http" }

// WriteDataPoint sends dp in a single POST request.
func (s *HTTP) WriteDataPoint(ctx context.Context, dp DataPoint) error {
	body, err := json.Marshal(dp)
	if err != nil {
		return fmt.Errorf("marshal data point: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sink request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sink request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return errorForStatus(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func errorForStatus(resp *http.Response) error {
	buf, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	summary := strings.TrimSpace(string(buf))
	if summary == "" {
		summary = resp.Status
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, summary)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrInvalidArgument, summary)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, summary)
	default:
		return fmt.Errorf("analytics sink request failed: %s", summary)
	}
}

func (*HTTP) Close() error { return nil }
