// Package detector calls the external defect classification model over HTTP.
package detector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/roadwatch/internal/core/domain"
)

// ErrUnavailable is returned when the model service cannot be reached or
// answers with a non-2xx status.
var ErrUnavailable = errors.New("detector unavailable")

// response is the model service's JSON answer.
type response struct {
	Detected   bool             `json:"detected"`
	DefectType domain.IssueType `json:"defect_type"`
	Confidence float64          `json:"confidence"`
	BBox       domain.BBox      `json:"bbox"`
}

// Client implements ports.Detector against a model service that accepts a
// raw image body and returns a single top prediction.
type Client struct {
	url     string
	timeout time.Duration
	http    *fasthttp.Client
}

// New creates a Client posting to url. A zero timeout means 10s.
func New(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:     url,
		timeout: timeout,
		http: &fasthttp.Client{
			Name:                "roadwatch-detector",
			MaxConnsPerHost:     16,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: time.Minute,
		},
	}
}

// Detect sends image to the model. It returns nil when the model found nothing.
func (c *Client) Detect(ctx context.Context, image []byte) (*domain.DefectObservation, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/octet-stream")
	req.SetBodyRaw(image)

	timeout := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if code := resp.StatusCode(); code < 200 || code > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, code)
	}

	var out response
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode detector response: %w", err)
	}
	if !out.Detected {
		return nil, nil
	}
	return &domain.DefectObservation{
		Type:       out.DefectType,
		Confidence: out.Confidence,
		BBox:       out.BBox,
	}, nil
}
