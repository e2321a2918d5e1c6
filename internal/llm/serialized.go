package llm

import (
	"context"
	"sync"
)

// #region serialized

// Serialized wraps a Gateway that is not safe for concurrent invocation,
// forcing callers through a mutual-exclusion boundary. Batch workers share
// one gateway; wrap it here when the backend cannot handle parallel calls.
type Serialized struct {
	mu    sync.Mutex
	inner Gateway
}

// Serialize wraps gw so at most one call is in flight at a time.
func Serialize(gw Gateway) *Serialized {
	return &Serialized{inner: gw}
}

func (s *Serialized) Route(ctx context.Context, req RouteRequest) (RouteReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Route(ctx, req)
}

func (s *Serialized) GenerateQuery(ctx context.Context, req QueryRequest) (QueryReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.GenerateQuery(ctx, req)
}

func (s *Serialized) RefineQuery(ctx context.Context, req RefineRequest) (RefineReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.RefineQuery(ctx, req)
}

func (s *Serialized) ExtractConstraints(ctx context.Context, req ConstraintRequest) (ConstraintReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.ExtractConstraints(ctx, req)
}

func (s *Serialized) SynthesizeAnswer(ctx context.Context, req AnswerRequest) (AnswerReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.SynthesizeAnswer(ctx, req)
}

// #endregion
