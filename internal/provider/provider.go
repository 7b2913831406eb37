// Package provider sends a single prompt to a hosted model and returns the
// text of its reply. Failures are classified into sprenerrors types so the
// planner's retry loop can tell transient errors from fatal ones.
package provider

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/stevehiehn/spren/internal/config"
	sprenerrors "github.com/stevehiehn/spren/internal/errors"
)

type Request struct {
	System    string
	Prompt    string
	Model     string
	MaxTokens int
}

// Client is anything that can turn a prompt into response text.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (string, error)

func (f ClientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// New builds the client selected by cfg.Provider.
func New(cfg config.AI) (Client, error) {
	key := cfg.APIKey()
	if key == "" {
		return nil, sprenerrors.NewRequestError(sprenerrors.AuthError,
			fmt.Sprintf("no API key configured for provider %q", cfg.Provider), nil)
	}
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return NewAnthropic(key, cfg.APIURL), nil
	case config.ProviderOpenAI:
		return NewOpenAI(key, cfg.APIURL), nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}

// classify maps an HTTP status (0 when no response arrived) and the
// underlying error to a RunError.
func classify(provider string, status int, err error) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return sprenerrors.NewRequestError(sprenerrors.AuthError,
			fmt.Sprintf("%s rejected the API key (HTTP %d)", provider, status), err)
	case status == http.StatusTooManyRequests:
		return sprenerrors.NewRequestError(sprenerrors.RateLimited,
			fmt.Sprintf("%s rate limit exceeded", provider), err)
	case status != 0:
		return sprenerrors.NewRequestError(sprenerrors.APIError,
			fmt.Sprintf("%s returned HTTP %d", provider, status), err)
	}

	switch {
	case stderrors.Is(err, context.Canceled):
		return err
	case stderrors.Is(err, context.DeadlineExceeded):
		return sprenerrors.NewRequestError(sprenerrors.NetworkError,
			fmt.Sprintf("%s request timed out", provider), err)
	}
	return sprenerrors.NewRequestError(sprenerrors.NetworkError,
		fmt.Sprintf("%s request failed: %v", provider, err), err)
}

func emptyResponse(provider string) error {
	return sprenerrors.NewRequestError(sprenerrors.MalformedResponse,
		fmt.Sprintf("%s returned no text", provider), nil)
}
