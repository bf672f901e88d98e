// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"pgt-ticketing/internal/common/config"
	"pgt-ticketing/internal/common/logger"
	"pgt-ticketing/internal/common/metrics"
)

// JobHandler completes or fails the job itself.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

type Worker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// NewWorker opens a job worker for taskType. Active-job gauges and
// durations are recorded around every handler call.
func NewWorker(
	client zbc.Client,
	taskType string,
	cfg config.WorkerConfig,
	handler JobHandler,
	log logger.Logger,
) *Worker {
	maxActive := cfg.MaxJobsActive
	if maxActive <= 0 {
		maxActive = 5
	}
	jobTimeout := config.GetDuration(cfg.Timeout)
	if jobTimeout <= 0 {
		jobTimeout = 30 * time.Second
	}

	wlog := log.WithFields(map[string]interface{}{"taskType": taskType})

	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(func(c worker.JobClient, job entities.Job) {
			start := time.Now()
			metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
			defer func() {
				metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()
				metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
			}()
			handler.Handle(c, job)
		}).
		MaxJobsActive(maxActive).
		Timeout(jobTimeout).
		Open()

	wlog.Info("worker started", map[string]interface{}{"maxJobsActive": maxActive})

	return &Worker{worker: jobWorker, logger: wlog, taskType: taskType}
}

func (w *Worker) Stop() {
	w.logger.Info("stopping worker", nil)
	w.worker.Close()
	w.worker.AwaitClose()
}
