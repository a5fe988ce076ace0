package follower

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"github.com/acidprime/garden/internal/logpipeline"
)

// Collector is the public handle for the one-shot (non-following) log
// collection mode (spec §4.3).
type Collector[T any] struct {
	core *logpipeline.Collector[T]
}

// NewCollector builds a one-shot Collector. filter is optional; a zero
// value accepts every line.
func NewCollector[T any](adapter ClusterAdapter, converter Converter[T], consumer ConsumerStream[T], filter FilterConfig, options ...Option[T]) *Collector[T] {
	cfg := &followerConfig[T]{
		logger: zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
	for _, o := range options {
		o(cfg)
	}
	return &Collector[T]{core: logpipeline.NewCollector(adapter, logpipeline.Converter[T](converter), consumer, filter, cfg.logger)}
}

// Collect enumerates the target containers once, fetches each one's
// bounded tail in parallel, merges, sorts by timestamp ascending, and
// writes the result to the consumer. It returns once every container's
// fetch has completed.
func (c *Collector[T]) Collect(ctx context.Context, opts OneShotOptions) error {
	return c.core.Collect(ctx, opts)
}
