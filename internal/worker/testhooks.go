package worker

import (
	"context"

	"lathe/internal/chunk"
)

// SetEncodeHookForTests replaces the subprocess pipeline during tests. The
// returned function restores the pool's real pipeline.
func (p *Pool) SetEncodeHookForTests(fn func(ctx context.Context, c *chunk.Chunk, workerID int) (int, error)) func() {
	previous := p.encodeHook
	p.encodeHook = fn
	return func() {
		p.encodeHook = previous
	}
}
