// Package generate turns free-text prompts into design specifications by
// invoking an external chat model and parsing its output strictly.
//
// Failure semantics are deliberately flat: a transport error, a timeout and
// unparseable output all surface as *GenerationError. Retry policy belongs
// to the caller, and raw error detail is logged here, never shown to clients.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/draftwire/draftwire/design"
	"github.com/draftwire/draftwire/idgen"
	"github.com/draftwire/draftwire/prompt"
)

// Config bounds the model call.
type Config struct {
	// Temperature is the creativity setting. Outputs are creative artifacts,
	// not computations, so reproducibility is not a goal.
	Temperature float32

	// MaxTokens caps the model's output size.
	MaxTokens int

	// Timeout bounds each model call. A timeout is an ordinary
	// GenerationError, not a special case.
	Timeout time.Duration
}

func (c *Config) defaults() {
	if c.Temperature <= 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 2000
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
}

// GenerationError is the uniform failure for both Generate and Modify.
// Op records the failing stage for server-side logs.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate: %s: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Service is the generation pipeline: compose, invoke, parse, stamp.
type Service struct {
	model   model.BaseChatModel
	prompts *prompt.Registry
	cfg     Config
	newID   idgen.Generator
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithConfig overrides the model-call bounds.
func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

// WithIDGenerator sets the generator used to stamp design IDs.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Service) { s.newID = gen }
}

// WithClock overrides the timestamp source. Test seam.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service over any eino chat model.
func New(m model.BaseChatModel, prompts *prompt.Registry, opts ...Option) *Service {
	s := &Service{
		model:   m,
		prompts: prompts,
		newID:   idgen.Default,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.cfg.defaults()
	return s
}

// Generate produces a new specification from a user prompt and an optional
// design-type hint. The returned specification carries a fresh ID, a
// server-side timestamp and the verbatim prompt, regardless of what the
// model put in those fields.
func (s *Service) Generate(ctx context.Context, userText, designType string) (*design.Specification, error) {
	msgs := s.prompts.ComposeGeneration(designType, userText)
	spec, err := s.invoke(ctx, msgs)
	if err != nil {
		return nil, err
	}
	s.stamp(spec, userText)
	return spec, nil
}

// Modify derives a new specification from a prior one plus an edit request.
// The design-type hint defaults to the prior design's type so the archetype
// survives edits unless the model changes it. On success the result links
// back to the parent and records the modification label. The prior
// specification is never mutated.
func (s *Service) Modify(ctx context.Context, prior *design.Specification, editText, label string) (*design.Specification, error) {
	msgs, err := s.prompts.ComposeModification(prior, editText)
	if err != nil {
		return nil, &GenerationError{Op: "compose", Err: err}
	}
	spec, err := s.invoke(ctx, msgs)
	if err != nil {
		return nil, err
	}
	s.stamp(spec, editText)
	spec.ParentID = prior.ID
	spec.Modification = label
	return spec, nil
}

// invoke runs one bounded model call and parses the response strictly.
// No partial recovery: if the output is not the JSON object the contract
// asks for, the whole call fails.
func (s *Service) invoke(ctx context.Context, msgs []*schema.Message) (*design.Specification, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	resp, err := s.model.Generate(callCtx, msgs,
		model.WithTemperature(s.cfg.Temperature),
		model.WithMaxTokens(s.cfg.MaxTokens),
	)
	if err != nil {
		s.logger.Error("model call failed", "error", err)
		return nil, &GenerationError{Op: "model", Err: err}
	}

	spec, err := design.Parse([]byte(strings.TrimSpace(resp.Content)))
	if err != nil {
		s.logger.Error("model returned unparseable design", "error", err)
		return nil, &GenerationError{Op: "parse", Err: err}
	}
	return spec, nil
}

func (s *Service) stamp(spec *design.Specification, userText string) {
	spec.ID = s.newID()
	spec.Timestamp = s.now().UTC()
	spec.Prompt = userText
}
