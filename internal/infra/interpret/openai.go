package interpret

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/plano-ai/plano/internal/domain"
	"github.com/plano-ai/plano/internal/infra/document"
	"github.com/plano-ai/plano/internal/infra/metrics"
	"github.com/plano-ai/plano/internal/logger"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

const systemPersona = "Você é um assistente de nutrição que responde apenas com JSON válido."

// OpenAIConfig configures the OpenAI backend.
type OpenAIConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint, e.g. for a compatible gateway.
	BaseURL string
	Limiter *rate.Limiter
}

// OpenAIClient interprets plans and analyzes meals with chat completions.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewOpenAIClient validates the config and creates the client.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY not set", domain.ErrServiceUnavailable)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	log := logger.Named("openai")
	log.Info("initializing OpenAI client", zap.String("model", cfg.Model))
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(oc),
		model:   cfg.Model,
		limiter: cfg.Limiter,
		log:     log,
	}, nil
}

// InterpretPlan sends PDF text, or the image itself for scanned plans.
func (o *OpenAIClient) InterpretPlan(ctx context.Context, doc domain.Document) (domain.RawDietPlan, error) {
	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: DietPlanPrompt}}
	if document.IsImage(doc) {
		parts = append(parts, imagePart(doc.MIMEType, doc.Data))
	} else {
		text, err := document.Text(doc)
		if err != nil {
			return domain.RawDietPlan{}, err
		}
		if strings.TrimSpace(text) == "" {
			return domain.RawDietPlan{}, fmt.Errorf("%w: %s has no extractable text", domain.ErrUnsupportedDocument, doc.Name)
		}
		parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: text})
	}

	content, err := o.complete(ctx, "interpret_plan", parts)
	if err != nil {
		return domain.RawDietPlan{}, err
	}
	plan, err := DecodePlan([]byte(content))
	if err != nil {
		metrics.ServiceErrors.WithLabelValues(BackendOpenAI, "interpret_plan").Inc()
		return domain.RawDietPlan{}, err
	}
	return plan, nil
}

// AnalyzeMeal sends the filled analysis prompt and every photo.
func (o *OpenAIClient) AnalyzeMeal(ctx context.Context, req domain.AnalysisRequest) (domain.MealAnalysis, error) {
	if len(req.Photos) == 0 {
		return domain.MealAnalysis{}, domain.ErrNoPhotos
	}
	prompt := AnalysisPrompt(req.DayLabel, req.Meal.Name, PlannedMealJSON(req.Meal))
	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: prompt}}
	for _, p := range req.Photos {
		parts = append(parts, imagePart(p.MIMEType, p.Data))
	}

	content, err := o.complete(ctx, "analyze_meal", parts)
	if err != nil {
		return domain.MealAnalysis{}, err
	}
	a, err := DecodeAnalysis([]byte(content))
	if err != nil {
		metrics.ServiceErrors.WithLabelValues(BackendOpenAI, "analyze_meal").Inc()
		return domain.MealAnalysis{}, err
	}
	return a, nil
}

func (o *OpenAIClient) complete(ctx context.Context, op string, parts []openai.ChatMessagePart) (string, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: %s: %v", domain.ErrServiceUnavailable, op, err)
		}
	}

	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPersona},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, req)
	metrics.ServiceLatency.WithLabelValues(BackendOpenAI, op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ServiceErrors.WithLabelValues(BackendOpenAI, op).Inc()
		o.log.Error("OpenAI API call failed", zap.String("op", op), zap.Error(err))
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &StatusError{Op: op, Code: apiErr.HTTPStatusCode, Message: apiErr.Message}
		}
		return "", fmt.Errorf("%w: %s: %v", domain.ErrServiceUnavailable, op, err)
	}
	if len(resp.Choices) == 0 {
		metrics.ServiceErrors.WithLabelValues(BackendOpenAI, op).Inc()
		return "", fmt.Errorf("%w: %s: OpenAI returned no choices", domain.ErrBadServiceResponse, op)
	}
	o.log.Debug("received response from OpenAI",
		zap.String("op", op),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
	)
	return resp.Choices[0].Message.Content, nil
}

func imagePart(mime string, data []byte) openai.ChatMessagePart {
	if mime == "" {
		mime = "image/jpeg"
	}
	return openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeImageURL,
		ImageURL: &openai.ChatMessageImageURL{
			URL:    "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data),
			Detail: openai.ImageURLDetailAuto,
		},
	}
}
