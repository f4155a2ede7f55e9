package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(workerTaskErrors, workerQueueFull)
}

var (
	workerTaskErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "worker_task_errors_total",
			Help: "Async tasks that returned an error.",
		},
	)

	workerQueueFull = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "worker_queue_full_total",
			Help: "Tasks dropped because the worker queue was saturated.",
		},
	)
)

func IncWorkerTaskErrors() { workerTaskErrors.Inc() }
func IncWorkerQueueFull()  { workerQueueFull.Inc() }
