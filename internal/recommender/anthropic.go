package recommender

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/noah-isme/teacher-training-api/internal/models"
)

const anthropicSystemPrompt = `You are an expert teacher trainer. A teacher reported a classroom issue.
Choose exactly one training module from the candidate list that best addresses the issue.
Return ONLY a JSON object with these fields:
- "module_id": the id of the chosen candidate, copied exactly
- "inferred_gaps": competency areas the issue reveals, most important first, using the candidates' competency values
- "priority": one of "low", "medium", "high"
- "personalized_message": two short encouraging sentences addressed to the teacher explaining why this module helps
Return valid JSON only, no markdown fencing or explanation.`

type anthropicChoice struct {
	ModuleID            string   `json:"module_id"`
	InferredGaps        []string `json:"inferred_gaps"`
	Priority            string   `json:"priority"`
	PersonalizedMessage string   `json:"personalized_message"`
}

// AnthropicRecommender asks Claude to pick among catalog candidates.
type AnthropicRecommender struct {
	api           *anthropic.Client
	model         anthropic.Model
	maxCandidates int
	catalog       Catalog
	logger        *zap.Logger
}

// NewAnthropicRecommender constructs the recommender.
func NewAnthropicRecommender(apiKey, model string, maxCandidates int, catalog Catalog, logger *zap.Logger) *AnthropicRecommender {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	if maxCandidates <= 0 {
		maxCandidates = 25
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnthropicRecommender{
		api:           &client,
		model:         anthropic.Model(model),
		maxCandidates: maxCandidates,
		catalog:       catalog,
		logger:        logger,
	}
}

// Recommend implements Recommender.
func (a *AnthropicRecommender) Recommend(ctx context.Context, req Request) (*Recommendation, error) {
	candidates, err := a.catalog.List(ctx, models.ModuleFilter{Cluster: req.Cluster})
	if err != nil {
		return nil, fmt.Errorf("list candidate modules: %w", err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: empty catalog for cluster %q", ErrNoModule, req.Cluster)
	}
	if len(candidates) > a.maxCandidates {
		candidates = candidates[:a.maxCandidates]
	}

	msg, err := a.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: anthropicSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildUserPrompt(req, candidates))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return parseChoice(text, candidates)
}

func buildUserPrompt(req Request, candidates []models.TrainingModule) string {
	var sb strings.Builder
	if req.TeacherName != "" {
		fmt.Fprintf(&sb, "Teacher: %s\n", req.TeacherName)
	}
	fmt.Fprintf(&sb, "Cluster: %s\nIssue category: %s\nIssue:\n%s\n\nCandidates:\n", req.Cluster, req.Category, req.Description)
	for _, m := range candidates {
		fmt.Fprintf(&sb, "- id=%s | title=%s | competency=%s | difficulty=%s\n", m.ID, m.Title, m.CompetencyArea, m.DifficultyLevel)
	}
	return sb.String()
}

// parseChoice decodes the model output and checks the chosen module was offered.
func parseChoice(text string, candidates []models.TrainingModule) (*Recommendation, error) {
	text = stripFences(text)
	var choice anthropicChoice
	if err := json.Unmarshal([]byte(text), &choice); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w", err)
	}

	var chosen *models.TrainingModule
	for i := range candidates {
		if candidates[i].ID == choice.ModuleID {
			chosen = &candidates[i]
			break
		}
	}
	if chosen == nil {
		return nil, fmt.Errorf("model chose unknown module %q", choice.ModuleID)
	}

	rec := &Recommendation{
		ModuleID:            chosen.ID,
		ModuleTitle:         chosen.Title,
		PersonalizedContent: strings.TrimSpace(choice.PersonalizedMessage),
		InferredGaps:        choice.InferredGaps,
		Priority:            choice.Priority,
		Provider:            "anthropic",
	}
	if rec.PersonalizedContent == "" {
		rec.PersonalizedContent = AssignmentMessage(chosen.Title)
	}
	if len(rec.InferredGaps) == 0 {
		rec.InferredGaps = []string{string(chosen.CompetencyArea)}
	}
	switch rec.Priority {
	case "low", "medium", "high":
	default:
		rec.Priority = DefaultPriority
	}
	return rec, nil
}
