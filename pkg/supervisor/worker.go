package supervisor

import (
	"context"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// StartableConsumer is the subset of kafka.Consumer a worker process hosts:
// Start blocks until ctx is cancelled or the consumer is stopped.
type StartableConsumer interface {
	Start(ctx context.Context) error
}

// RunWorker hosts consumers as concurrent cooperative tasks within a single
// worker process. The engine's concurrency guarantees (serialized handler
// invocation per partition, no ordering across consumers) hold regardless
// of whether the runtime multiplexes the goroutines onto one OS thread or
// several. RunWorker blocks until every consumer's Start returns, which
// happens when ctx is cancelled.
func RunWorker(ctx context.Context, consumers []StartableConsumer, logger hclog.Logger) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("worker")

	var wg sync.WaitGroup
	wg.Add(len(consumers))
	for i, c := range consumers {
		go func(i int, c StartableConsumer) {
			defer wg.Done()
			if err := c.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("consumer stopped unexpectedly", "index", i, "error", err)
			}
		}(i, c)
	}
	wg.Wait()
}
