// Package flows implements the portal's AI flows: a query goes into a fixed
// prompt template, the configured model answers, and the answer is checked
// against the flow's output schema before it is returned.
package flows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/sfaret/stipslite/internal/llm"
	"github.com/sfaret/stipslite/internal/store"
)

// Flow names, as recorded in metrics and flow_runs.
const (
	InternetSearch      = "internetSearch"
	PrintLocationSearch = "printLocationSearch"
	TaskSearch          = "taskSearch"
)

// MaxQueryLen is the longest accepted query, in characters.
const MaxQueryLen = 2000

const defaultTimeout = 60 * time.Second

var (
	ErrInvalidInput    = errors.New("invalid flow input")
	ErrSchemaViolation = errors.New("model output does not match schema")
	ErrNoModel         = errors.New("no model configured")
)

// InternetSearchInput is the input of the internet search flow.
type InternetSearchInput struct {
	Query string `json:"query"`
}

// InternetSearchOutput is the output of the internet search flow.
type InternetSearchOutput struct {
	Answer string `json:"answer"`
}

// SearchInput is the input of the print-location and task search flows.
type SearchInput struct {
	Query string `json:"query"`
}

// SearchOutput is the output of the print-location and task search flows.
// Results is never nil on success.
type SearchOutput struct {
	Results []string `json:"results"`
}

// Recorder persists flow runs. *store.DB satisfies it.
type Recorder interface {
	AddFlowRun(ctx context.Context, run *store.FlowRun) error
}

// Runner executes flows against a model client.
type Runner struct {
	llm      llm.Client
	timeout  time.Duration
	metrics  *Metrics
	recorder Recorder
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMetrics records run counts and latency.
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithRecorder persists every run.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// New creates a Runner. A nil client is allowed: every flow then fails with
// ErrNoModel after input validation.
func New(client llm.Client, opts ...Option) *Runner {
	r := &Runner{llm: client, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Available reports whether a model is configured.
func (r *Runner) Available() bool {
	return r != nil && r.llm != nil
}

type actorKey struct{}

// WithActor attaches the email of the user running a flow, for flow_runs.
func WithActor(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, actorKey{}, email)
}

func actorFrom(ctx context.Context) string {
	s, _ := ctx.Value(actorKey{}).(string)
	return s
}

var (
	answerSchema = &llm.Schema{
		Type: "object",
		Properties: map[string]*llm.Schema{
			"answer": {Type: "string", Description: "answer to the question"},
		},
		Required: []string{"answer"},
	}
	printLocationSchema = &llm.Schema{
		Type: "object",
		Properties: map[string]*llm.Schema{
			"results": {Type: "array", Items: &llm.Schema{Type: "string"}, Description: "matching print locations"},
		},
		Required: []string{"results"},
	}
	taskSchema = &llm.Schema{
		Type: "object",
		Properties: map[string]*llm.Schema{
			"results": {Type: "array", Items: &llm.Schema{Type: "string"}, Description: "matching tasks"},
		},
		Required: []string{"results"},
	}
)

// InternetSearch answers a natural-language question.
func (r *Runner) InternetSearch(ctx context.Context, in InternetSearchInput) (*InternetSearchOutput, error) {
	return execute(ctx, r, InternetSearch, in.Query, llm.InternetSearchPrompt, answerSchema,
		func(obj map[string]json.RawMessage) (*InternetSearchOutput, error) {
			answer, err := requiredString(obj, "answer")
			if err != nil {
				return nil, err
			}
			return &InternetSearchOutput{Answer: answer}, nil
		})
}

// PrintLocationSearch lists print locations matching the query.
func (r *Runner) PrintLocationSearch(ctx context.Context, in SearchInput) (*SearchOutput, error) {
	return execute(ctx, r, PrintLocationSearch, in.Query, llm.PrintLocationSearchPrompt, printLocationSchema, decodeResults)
}

// TaskSearch lists virtual-assistant tasks matching the query.
func (r *Runner) TaskSearch(ctx context.Context, in SearchInput) (*SearchOutput, error) {
	return execute(ctx, r, TaskSearch, in.Query, llm.TaskSearchPrompt, taskSchema, decodeResults)
}

func decodeResults(obj map[string]json.RawMessage) (*SearchOutput, error) {
	results, err := requiredStrings(obj, "results")
	if err != nil {
		return nil, err
	}
	return &SearchOutput{Results: results}, nil
}

// ValidateQuery normalizes a flow query and checks its bounds.
func ValidateQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(q); n > MaxQueryLen {
		return "", fmt.Errorf("%w: query too long (%d chars, max %d)", ErrInvalidInput, n, MaxQueryLen)
	}
	return q, nil
}

func execute[T any](ctx context.Context, r *Runner, flow, query string,
	prompt func(string) string, schema *llm.Schema,
	decode func(map[string]json.RawMessage) (*T, error)) (*T, error) {

	start := time.Now()
	query, err := ValidateQuery(query)
	if err != nil {
		r.observe(flow, outcomeInvalidInput, start)
		return nil, err
	}
	if !r.Available() {
		r.observe(flow, outcomeNoModel, start)
		return nil, ErrNoModel
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.llm.Complete(callCtx, llm.Request{Prompt: prompt(query), Schema: schema})
	if err != nil {
		r.finish(ctx, flow, query, start, outcomeProviderError, nil, err)
		return nil, fmt.Errorf("%s: %w", flow, err)
	}
	if resp == nil {
		err := fmt.Errorf("%w: empty response", ErrSchemaViolation)
		r.finish(ctx, flow, query, start, outcomeSchemaViolation, nil, err)
		return nil, err
	}

	obj, err := extractObject(resp.Content)
	var out *T
	if err == nil {
		out, err = decode(obj)
	}
	if err != nil {
		r.finish(ctx, flow, query, start, outcomeSchemaViolation, nil, err)
		return nil, err
	}

	log.Debug().Str("flow", flow).Str("provider", resp.Provider).Int("tokens", resp.TokensUsed).
		Dur("took", time.Since(start)).Msg("flow completed")
	r.finish(ctx, flow, query, start, outcomeOK, out, nil)
	return out, nil
}

func (r *Runner) observe(flow, outcome string, start time.Time) {
	if r != nil && r.metrics != nil {
		r.metrics.observe(flow, outcome, time.Since(start))
	}
}

// finish records metrics and, when a recorder is configured, the run itself.
// Recording failures are logged, never returned.
func (r *Runner) finish(ctx context.Context, flow, query string, start time.Time, outcome string, out any, runErr error) {
	took := time.Since(start)
	r.observe(flow, outcome, start)
	if runErr != nil {
		log.Warn().Str("flow", flow).Str("outcome", outcome).Err(runErr).Msg("flow failed")
	}
	if r.recorder == nil {
		return
	}

	run := &store.FlowRun{
		Flow:       flow,
		Query:      query,
		Status:     outcome,
		ActorEmail: actorFrom(ctx),
		DurationMs: took.Milliseconds(),
	}
	if out != nil {
		if data, err := json.Marshal(out); err == nil {
			run.Output = string(data)
		}
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	// Record even when the caller's context is already cancelled.
	if err := r.recorder.AddFlowRun(context.WithoutCancel(ctx), run); err != nil {
		log.Error().Str("flow", flow).Err(err).Msg("record flow run")
	}
}
