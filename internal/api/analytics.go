package api

import (
	"context"
	"net/http"

	"divtrack/internal/models"
)

// SafetyScore requests a dividend safety grade.
func (c *Client) SafetyScore(ctx context.Context, req SafetyRequest) (models.SafetyScore, error) {
	var out models.SafetyScore
	err := c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: "dividend/safety-score",
		path:     "dividend/safety-score",
		body:     req,
	}, &out)
	return out, err
}

// CaptureStrategy requests a dividend capture recommendation.
func (c *Client) CaptureStrategy(ctx context.Context, req CaptureRequest) (models.CaptureStrategy, error) {
	var out models.CaptureStrategy
	err := c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: "dividend/capture-strategy",
		path:     "dividend/capture-strategy",
		body:     req,
	}, &out)
	return out, err
}
