// Package dispatch реализует фоновое исполнение побочных эффектов запроса:
// ограниченную очередь задач с пулом воркеров и мост к очереди сообщений
// для задач вызова языковой модели.
package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/magabrotheeeer/chat-gateway/internal/lib/sl"
	"github.com/magabrotheeeer/chat-gateway/internal/metrics"
)

// Task — единица фоновой работы. Ошибки исполнения логируются и
// считаются в метриках, но не доходят до инициатора запроса: он уже
// получил успешный ответ.
type Task struct {
	Kind string
	Run  func(ctx context.Context) error
}

// Dispatcher — ограниченная очередь фоновых задач с пулом воркеров.
type Dispatcher struct {
	log     *slog.Logger
	tasks   chan Task
	workers int
	wg      sync.WaitGroup
}

// New создает Dispatcher с заданным размером очереди и числом воркеров.
func New(log *slog.Logger, queueSize, workers int) *Dispatcher {
	return &Dispatcher{
		log:     log,
		tasks:   make(chan Task, queueSize),
		workers: workers,
	}
}

// Start запускает воркеров. Воркеры завершаются после Stop либо
// отмены контекста.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
}

// Enqueue ставит задачу в очередь без блокировки. Возвращает false,
// если очередь заполнена; задача при этом отбрасывается.
func (d *Dispatcher) Enqueue(task Task) bool {
	select {
	case d.tasks <- task:
		return true
	default:
		d.log.Error("dispatch queue full, task dropped", slog.String("kind", task.Kind))
		metrics.DispatchTasks.WithLabelValues(task.Kind, "dropped").Inc()
		return false
	}
}

// Stop закрывает очередь и дожидается завершения начатых задач.
func (d *Dispatcher) Stop() {
	close(d.tasks)
	d.wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case task, ok := <-d.tasks:
			if !ok {
				return
			}
			d.runTask(ctx, task)
		case <-ctx.Done():
			return
		}
	}
}

func metricsOutcome(kind, outcome string) {
	metrics.DispatchTasks.WithLabelValues(kind, outcome).Inc()
}

func (d *Dispatcher) runTask(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("dispatch task panicked",
				slog.String("kind", task.Kind), slog.Any("panic", r))
			metrics.DispatchTasks.WithLabelValues(task.Kind, "panic").Inc()
		}
	}()

	if err := task.Run(ctx); err != nil {
		d.log.Error("dispatch task failed",
			slog.String("kind", task.Kind), sl.Err(err))
		metrics.DispatchTasks.WithLabelValues(task.Kind, "failure").Inc()
		return
	}
	metrics.DispatchTasks.WithLabelValues(task.Kind, "success").Inc()
}
