package pipeline

import (
	"context"
	"log/slog"

	"github.com/mmga-lab/casebase/pkg/milvus"
)

// Job is a pipeline stage submitted in the background. Its goroutine ends
// once the backend accepted (or rejected) the request; the backend may still
// be working afterwards.
type Job struct {
	name string
	done chan struct{}
	task milvus.Task
	err  error
}

func startJob(ctx context.Context, name string, logger *slog.Logger, submit func(context.Context) (milvus.Task, error)) *Job {
	j := &Job{name: name, done: make(chan struct{})}
	go func() {
		defer close(j.done)
		j.task, j.err = submit(ctx)
		if j.err != nil {
			logger.Error("stage submission failed", "stage", name, "error", j.err)
			return
		}
		logger.Info("stage submitted", "stage", name)
	}()
	return j
}

// Name returns the stage name.
func (j *Job) Name() string { return j.name }

// Done is closed when the submission returned.
func (j *Job) Done() <-chan struct{} { return j.done }

// Err returns the submission error. It is nil while the job is running.
func (j *Job) Err() error {
	select {
	case <-j.done:
		return j.err
	default:
		return nil
	}
}

// Wait blocks until the submission returned and reports its error.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Await blocks until the backend finished the work, not just accepted it.
func (j *Job) Await(ctx context.Context) error {
	if err := j.Wait(ctx); err != nil {
		return err
	}
	if j.task == nil {
		return nil
	}
	return j.task.Await(ctx)
}
