package jobs

import (
	"context"

	"github.com/hibiken/asynq"

	"produceledger/pkg/logger"
)

// Worker wraps the asynq server.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewWorker(opt asynq.RedisConnOpt, concurrency int, handlers *Handlers, log *logger.Logger) *Worker {
	l := log.WithComponent("asynq")
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueDefault: 1},
		Logger:      l,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
			l.Errorw("task failed", "task_type", t.Type(), "error", err)
		}),
	})
	mux := asynq.NewServeMux()
	handlers.Register(mux)
	return &Worker{server: srv, mux: mux}
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}
