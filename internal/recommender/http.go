package recommender

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

type httpRecommendRequest struct {
	TeacherID   string `json:"teacher_id"`
	IssueID     string `json:"feedback_id,omitempty"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Cluster     string `json:"cluster"`
}

type httpRecommendResponse struct {
	ModuleID            string   `json:"module_id"`
	AssignedModule      string   `json:"assigned_module"`
	InferredGaps        []string `json:"inferred_gaps"`
	PersonalizedMessage string   `json:"personalized_message"`
	Priority            string   `json:"priority"`
}

// HTTPRecommender delegates to an external personalisation service.
type HTTPRecommender struct {
	client *resty.Client
	url    string
	logger *zap.Logger
}

// NewHTTPRecommender constructs a client posting to url.
func NewHTTPRecommender(url string, timeout time.Duration, logger *zap.Logger) *HTTPRecommender {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &HTTPRecommender{client: client, url: url, logger: logger}
}

// Recommend implements Recommender.
func (h *HTTPRecommender) Recommend(ctx context.Context, req Request) (*Recommendation, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		SetBody(httpRecommendRequest{
			TeacherID:   req.TeacherID,
			IssueID:     req.IssueID,
			Description: req.Description,
			Category:    string(req.Category),
			Cluster:     req.Cluster,
		}).
		Post(h.url)
	if err != nil {
		return nil, fmt.Errorf("call recommender: %w", err)
	}
	if resp.IsError() {
		h.logger.Warn("recommender returned error status",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", truncate(resp.String(), 512)),
		)
		return nil, fmt.Errorf("recommender status %d", resp.StatusCode())
	}

	var body httpRecommendResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode recommender response: %w", err)
	}
	if strings.TrimSpace(body.ModuleID) == "" {
		return nil, fmt.Errorf("recommender response missing module_id")
	}

	rec := &Recommendation{
		ModuleID:            body.ModuleID,
		ModuleTitle:         body.AssignedModule,
		PersonalizedContent: body.PersonalizedMessage,
		InferredGaps:        body.InferredGaps,
		Priority:            body.Priority,
		Provider:            "http",
	}
	if rec.Priority == "" {
		rec.Priority = DefaultPriority
	}
	return rec, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
