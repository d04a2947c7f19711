package llm

import "context"

// Limited bounds the number of in-flight Generate calls across all pipeline
// invocations sharing this client. Callers over the bound queue instead of
// failing; a cancelled context aborts the wait.
type Limited struct {
	inner     Client
	semaphore chan struct{}
}

// NewLimited wraps inner with a concurrency bound. maxConcurrent < 1 is
// treated as 1.
func NewLimited(inner Client, maxConcurrent int) *Limited {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Limited{
		inner:     inner,
		semaphore: make(chan struct{}, maxConcurrent),
	}
}

func (l *Limited) Generate(ctx context.Context, req Request) (Generation, error) {
	select {
	case l.semaphore <- struct{}{}:
		defer func() { <-l.semaphore }()
	case <-ctx.Done():
		return Generation{}, ctx.Err()
	}
	return l.inner.Generate(ctx, req)
}
