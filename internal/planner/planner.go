// Package planner asks a model for a command plan and turns the reply into
// an executable chain.
package planner

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stevehiehn/spren/internal/chain"
	"github.com/stevehiehn/spren/internal/engine"
	"github.com/stevehiehn/spren/internal/plan"
	"github.com/stevehiehn/spren/internal/provider"
	"github.com/stevehiehn/spren/internal/retry"
	"github.com/stevehiehn/spren/internal/shell"
)

const DefaultTimeout = 30 * time.Second

type Planner struct {
	client    provider.Client
	profile   shell.Profile
	model     string
	maxTokens int
	timeout   time.Duration
	retry     retry.Config
	patterns  []string
	logger    *zap.Logger
}

type Option func(*Planner)

func WithModel(model string) Option { return func(p *Planner) { p.model = model } }
func WithMaxTokens(n int) Option { return func(p *Planner) { p.maxTokens = n } }
func WithRetry(cfg retry.Config) Option { return func(p *Planner) { p.retry = cfg } }
func WithDangerousPatterns(pats []string) Option { return func(p *Planner) { p.patterns = pats } }

// WithTimeout bounds each request attempt. Zero keeps DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Planner) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Planner) {
		if l != nil {
			p.logger = l
		}
	}
}

func New(client provider.Client, profile shell.Profile, opts ...Option) *Planner {
	p := &Planner{
		client:    client,
		profile:   profile,
		maxTokens: 4000,
		timeout:   DefaultTimeout,
		retry:     retry.DefaultConfig(),
		logger:    zap.NewNop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Generate requests a plan for query and returns it validated. Request
// failures and replies without a recoverable plan object are retried;
// validation failures are not.
func (p *Planner) Generate(ctx context.Context, query string) (*plan.Plan, error) {
	req := provider.Request{
		System:    SystemPrompt(p.profile),
		Prompt:    UserPrompt(query, p.profile),
		Model:     p.model,
		MaxTokens: p.maxTokens,
	}

	obj, err := retry.Do(ctx, p.retry, p.logger, func(ctx context.Context) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		text, err := p.complete(ctx, req)
		if err != nil {
			return "", err
		}
		return plan.Extract(text)
	})
	if err != nil {
		return nil, err
	}

	pl, err := plan.Decode(obj)
	if err != nil {
		return nil, err
	}
	if err := plan.Validate(pl); err != nil {
		return nil, err
	}
	p.logger.Info("plan generated", zap.Int("steps", len(pl.Steps)))
	return pl, nil
}

// Plan generates a plan for query and interprets it for the planner's shell.
func (p *Planner) Plan(ctx context.Context, query string) (*chain.CommandChain, error) {
	pl, err := p.Generate(ctx, query)
	if err != nil {
		return nil, err
	}
	return chain.Interpret(pl, p.profile, chain.Options{DangerousPatterns: p.patterns})
}

// Diagnose asks the model why a step failed and how to fix it. The reply is
// free text meant for the user.
func (p *Planner) Diagnose(ctx context.Context, rec engine.Record) (string, error) {
	req := provider.Request{
		System:    DiagnosisSystemPrompt(p.profile),
		Prompt:    DiagnosisPrompt(rec.Command, rec.Stdout, rec.Stderr, p.profile),
		Model:     p.model,
		MaxTokens: p.maxTokens,
	}
	text, err := retry.Do(ctx, p.retry, p.logger, func(ctx context.Context) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		return p.complete(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (p *Planner) complete(ctx context.Context, req provider.Request) (string, error) {
	start := time.Now()
	text, err := p.client.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	p.logger.Debug("model replied",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("bytes", len(text)))
	return text, nil
}
