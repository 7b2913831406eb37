package provider

import (
	"context"
	"sync"
)

// Static replays canned responses in order, repeating the last one once
// the list is exhausted. An entry may be an error. It records every request.
type Static struct {
	mu        sync.Mutex
	responses []any
	requests  []Request
}

// NewStatic returns a Static client. Each response must be a string or an
// error.
func NewStatic(responses ...any) *Static {
	return &Static{responses: responses}
}

func (s *Static) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := len(s.requests)
	s.requests = append(s.requests, req)
	if len(s.responses) == 0 {
		return "", emptyResponse("static")
	}
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	switch r := s.responses[i].(type) {
	case error:
		return "", r
	case string:
		return r, nil
	}
	return "", emptyResponse("static")
}

// Requests returns a copy of the requests seen so far.
func (s *Static) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}
