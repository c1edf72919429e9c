package ingress

import (
	"sync"

	"github.com/rs/zerolog"
)

// workerPool is a bounded goroutine pool: a fixed number of workers drain
// a buffered task channel, each task isolated from the others by a
// recover() so one panicking payload cannot take down ingestion.
type workerPool struct {
	tasks  chan func()
	logger zerolog.Logger
	wg     sync.WaitGroup
}

func newWorkerPool(workers, queueSize int, logger zerolog.Logger) *workerPool {
	if workers <= 0 {
		workers = 1
	}
	p := &workerPool{
		tasks:  make(chan func(), queueSize),
		logger: logger.With().Str("component", "worker_pool").Logger(),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.loop()
	}
	return p
}

func (p *workerPool) loop() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.runTask(task)
	}
}

func (p *workerPool) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Msg("ingestion task panicked, recovered")
		}
	}()
	task()
}

// Submit enqueues task, blocking if the queue is full.
func (p *workerPool) Submit(task func()) {
	p.tasks <- task
}

// Close stops accepting new work and waits for queued tasks to drain.
func (p *workerPool) Close() {
	close(p.tasks)
	p.wg.Wait()
}
