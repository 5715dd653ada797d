package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	gradeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zhipi",
		Subsystem: "ai",
		Name:      "grade_duration_seconds",
		Help:      "Duration of AI grading requests",
	}, []string{"model"})

	gradeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zhipi",
		Subsystem: "ai",
		Name:      "grade_failures_total",
		Help:      "Number of AI grading failures",
	}, []string{"model"})
)

// DeepSeekConfig defines configuration options for the DeepSeek grader.
type DeepSeekConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// DeepSeekGrader implements Grader against the DeepSeek chat completion
// API, which speaks the OpenAI wire protocol.
type DeepSeekGrader struct {
	client *openai.Client
	cfg    DeepSeekConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewDeepSeekGrader builds a new grader using the provided configuration.
func NewDeepSeekGrader(cfg DeepSeekConfig) (*DeepSeekGrader, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("deepseek api key is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.deepseek.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "deepseek-chat"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}

	tracer := otel.Tracer("github.com/zhipi-dev/zhipi-go-api/pkg/ai/deepseek")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL
	client := openai.NewClientWithConfig(config)

	return &DeepSeekGrader{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Grade sends the grading request to DeepSeek and returns the Markdown verdict.
func (g *DeepSeekGrader) Grade(parent context.Context, input GradeInput) (string, error) {
	ctx, span := g.tracer.Start(parent, "deepseek.grade", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
	))
	defer span.End()

	if strings.TrimSpace(input.RecognizedText) == "" {
		err := fmt.Errorf("no recognized text to grade")
		gradeFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildGradingPrompt(input),
			},
		},
	}

	resp, err := g.client.CreateChatCompletion(ctx, request)
	duration := time.Since(start)
	gradeDuration.WithLabelValues(g.cfg.Model).Observe(duration.Seconds())
	if err != nil {
		gradeFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("deepseek grade: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from deepseek")
		gradeFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	result := strings.TrimSpace(resp.Choices[0].Message.Content)
	if result == "" {
		err := fmt.Errorf("empty grading response from deepseek")
		gradeFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	return result, nil
}

func buildGradingPrompt(input GradeInput) string {
	builder := strings.Builder{}
	builder.WriteString(input.Prompt)
	builder.WriteString("\n\n## Student Homework (recognized text)\n")
	builder.WriteString(input.RecognizedText)
	if input.Student != "" {
		builder.WriteString("\n\n## Student\n")
		builder.WriteString(input.Student)
	}
	builder.WriteString("\n\nReturn your feedback as Markdown.")
	return builder.String()
}
