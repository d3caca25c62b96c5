package judge

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/veritaslab/tribunal/internal/adapters/limiter"
	"github.com/veritaslab/tribunal/internal/domain/model"
	"github.com/veritaslab/tribunal/pkg/logger"
	"github.com/veritaslab/tribunal/pkg/metrics"
)

const (
	defaultTemperature     = 0.0
	defaultMaxOutputTokens = 4096
	defaultRequestTimeout  = 120 * time.Second

	systemPrompt = "You are a strict evaluation judge. Respond with JSON only."
)

var errEmptyCompletion = errors.New("judge: completion has no choices")

// completer performs a single chat attempt. Swapped out in tests.
type completer func(ctx context.Context, prompt string, schema map[string]any, strict bool) (string, error)

// Chat is a Client backed by an OpenAI-compatible chat endpoint. SDK-level
// retries are disabled; the Policy owns the attempt loop so backoff and
// schema degradation stay observable.
type Chat struct {
	spec       Spec
	modelKey   string
	client     openai.Client
	policy     *Policy
	buckets    *limiter.Registry
	gates      *limiter.GateRegistry
	log        logger.Logger
	complete   completer
	temp       float64
	maxTokens  int
	structured bool
}

// ChatOption configures a Chat client.
type ChatOption func(*Chat)

// WithPolicy replaces the retry policy.
func WithPolicy(p *Policy) ChatOption {
	return func(c *Chat) {
		if p != nil {
			c.policy = p
		}
	}
}

// WithBuckets attaches the token-rate registry consulted before each call.
func WithBuckets(r *limiter.Registry) ChatOption {
	return func(c *Chat) { c.buckets = r }
}

// WithGates attaches the per-model concurrency gates held across attempts.
func WithGates(g *limiter.GateRegistry) ChatOption {
	return func(c *Chat) { c.gates = g }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ChatOption {
	return func(c *Chat) { c.temp = t }
}

// WithMaxOutputTokens caps the completion size, which also feeds the token
// estimate handed to the rate limiter.
func WithMaxOutputTokens(n int) ChatOption {
	return func(c *Chat) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithStructuredOutput controls whether the first attempt requests a strict
// json_schema response format.
func WithStructuredOutput(enabled bool) ChatOption {
	return func(c *Chat) { c.structured = enabled }
}

// WithChatLogger sets the logger.
func WithChatLogger(l logger.Logger) ChatOption {
	return func(c *Chat) {
		if l != nil {
			c.log = l
		}
	}
}

// withCompleter replaces the transport, used by tests.
func withCompleter(fn completer) ChatOption {
	return func(c *Chat) { c.complete = fn }
}

// NewChat builds a chat-backed judge from its roster entry. The API key is
// read from the environment variable named in APIKeyEnv.
func NewChat(spec Spec, timeout time.Duration, opts ...ChatOption) (*Chat, error) {
	if spec.Model == "" {
		return nil, ErrEmptyModel
	}
	key := os.Getenv(spec.APIKeyEnv)
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if spec.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(spec.BaseURL))
	}

	c := &Chat{
		spec:       spec,
		modelKey:   limiter.Key(spec.Provider, spec.Model),
		client:     openai.NewClient(reqOpts...),
		policy:     NewPolicy(),
		log:        logger.Get().Named("judge"),
		temp:       defaultTemperature,
		maxTokens:  defaultMaxOutputTokens,
		structured: true,
	}
	c.complete = c.completeChat
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// ID returns the roster identifier.
func (c *Chat) ID() string { return c.spec.ID }

// Name returns the display name.
func (c *Chat) Name() string {
	if c.spec.Name != "" {
		return c.spec.Name
	}
	return c.spec.ID
}

// Judge runs one batched call: estimate tokens, wait for rate budget, then
// drive the attempt loop with the concurrency gate held per attempt. Any
// terminal failure degrades to invalid verdicts.
func (c *Chat) Judge(ctx context.Context, req Request) []model.JudgeVerdict {
	prompt := BuildBatchPrompt(req.Items, req.Dims, req.Metrics)
	schema := VerdictsSchema(req.Dims, req.Metrics)

	need := limiter.EstimateTokens(prompt, c.maxTokens, limiter.EstimateOverhead)
	if c.buckets != nil {
		waitStart := time.Now()
		err := c.buckets.Acquire(ctx, c.modelKey, need)
		metrics.RecordRateLimitWait(c.spec.ID, float64(time.Since(waitStart))/float64(time.Millisecond))
		if err != nil {
			c.log.Warn(ctx, "rate budget wait aborted",
				logger.JudgeID(c.spec.ID), logger.Error(err))
			return invalidBatch(c.spec.ID, req)
		}
	}

	start := time.Now()
	attempts := 0
	degraded := false
	content, err := c.policy.Do(ctx, c.structured, func(ctx context.Context, strict bool) (string, error) {
		attempts++
		if attempts > 1 {
			metrics.RecordJudgeRetry(c.spec.ID)
		}
		if c.structured && !strict && !degraded {
			degraded = true
			metrics.RecordSchemaDegradation(c.spec.ID)
		}
		if c.gates != nil {
			if err := c.gates.Acquire(ctx, c.modelKey); err != nil {
				return "", err
			}
			defer c.gates.Release(c.modelKey)
		}
		metrics.RecordJudgeRequest(c.spec.ID)
		return c.complete(ctx, prompt, schema, strict)
	})
	elapsed := float64(time.Since(start)) / float64(time.Millisecond)
	metrics.RecordJudgeLatency(c.spec.ID, elapsed)

	if err != nil {
		c.log.Warn(ctx, "judge call failed, emitting invalid verdicts",
			logger.JudgeID(c.spec.ID),
			logger.Int("items", len(req.Items)),
			logger.Int("attempts", attempts),
			logger.Error(err))
		metrics.RecordInvalidVerdicts(c.spec.ID, len(req.Items))
		return invalidBatch(c.spec.ID, req)
	}

	verdicts := ParseVerdictArray(c.spec.ID, content, len(req.Items), req.Dims, req.Metrics)
	invalid := 0
	for i := range verdicts {
		verdicts[i].LatencyMS = elapsed
		if verdicts[i].Invalid {
			invalid++
		}
	}
	if invalid > 0 {
		metrics.RecordInvalidVerdicts(c.spec.ID, invalid)
	}
	return verdicts
}

// completeChat performs one request against the provider.
func (c *Chat) completeChat(ctx context.Context, prompt string, schema map[string]any, strict bool) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.spec.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature:         openai.Float(c.temp),
		MaxCompletionTokens: openai.Int(int64(c.maxTokens)),
	}
	if strict {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "verdicts",
					Schema: schema,
					Strict: openai.Bool(true),
				},
			},
		}
	} else {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}
