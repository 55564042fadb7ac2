package index

import (
	"fmt"
	"sync"

	"github.com/giai-dev/giai/internal/astgraph"
	"github.com/giai-dev/giai/internal/store"
)

// FileTask is the message the main thread sends to a worker.
// ExistingChunkHashes is read-only to the worker: it is a snapshot
// taken before dispatch, never mutated while workers run; hashes first
// seen during the run are tracked separately by the main thread.
type FileTask struct {
	FilePath            string
	Content             []byte
	Dim                 int
	QuantizationBits    int
	ExistingChunkHashes map[string]bool
}

// FileResult is the message a worker sends back. Err set
// means the file is skipped (WorkerFailure): the indexer continues
// with the remaining files and the worker that produced it exits.
type FileResult struct {
	FilePath       string
	Lang           string
	ChunkRows      []store.ChunkRow
	RefRows        []store.RefRow
	Batch          astgraph.Batch
	NewChunkHashes []string
	Err            error
}

// ProcessFunc does the actual parse/chunk/quantize work for one file,
// run on a worker goroutine. One parser instance is reused across
// every task a worker processes (each worker owns one parser
// instance).
type ProcessFunc func(task FileTask) (FileResult, error)

// Pool is a shared-nothing worker pool: a fixed
// number of workers pull FileTasks off one shared channel (which gives
// FIFO task order) and push FileResults onto a shared results channel.
// Submit blocks once 2*size tasks are in flight, the bounded race-loop
// backpressure cap.
type Pool struct {
	tasks      chan FileTask
	results    chan FileResult
	inFlight   chan struct{}
	wg         sync.WaitGroup
	newProcess func() ProcessFunc

	mu    sync.Mutex
	alive int // workers still running; shrinks on WorkerFailure
}

// NewPool starts size workers (clamped to at least 1) reading from an
// internally buffered task queue. newProcess is called once per
// worker goroutine to build that worker's ProcessFunc, so a factory
// that closes over a freshly constructed parser gives every worker
// its own parser instance.
func NewPool(size int, newProcess func() ProcessFunc) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		tasks:      make(chan FileTask),
		results:    make(chan FileResult, size),
		inFlight:   make(chan struct{}, 2*size),
		newProcess: newProcess,
		alive:      size,
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// AliveWorkers reports how many workers are still running (workers
// that hit a WorkerFailure exit rather than continuing).
func (p *Pool) AliveWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

func (p *Pool) worker() {
	defer p.wg.Done()
	process := p.newProcess()
	for task := range p.tasks {
		res := p.runTask(process, task)
		p.results <- res
		<-p.inFlight
		if res.Err != nil {
			// The worker is removed from the pool on error:
			// this worker's goroutine exits; remaining tasks are
			// served by the others.
			p.mu.Lock()
			p.alive--
			p.mu.Unlock()
			return
		}
	}
}

func (p *Pool) runTask(process ProcessFunc, task FileTask) (res FileResult) {
	defer func() {
		if r := recover(); r != nil {
			res = FileResult{FilePath: task.FilePath, Err: fmt.Errorf("worker panic on %s: %v", task.FilePath, r)}
		}
	}()
	res, err := process(task)
	res.FilePath = task.FilePath
	if err != nil {
		res.Err = err
	}
	return res
}

// Submit enqueues a task, blocking while 2*poolSize tasks are already
// in flight (the bounded in-flight cap). It panics if called
// after Close — callers must not submit concurrently with Close.
func (p *Pool) Submit(task FileTask) {
	p.inFlight <- struct{}{}
	p.tasks <- task
}

// Results returns the channel FileResults are delivered on. Callers
// must drain exactly as many results as tasks submitted before
// calling Close.
func (p *Pool) Results() <-chan FileResult {
	return p.results
}

// Close stops accepting new tasks, waits for every worker to exit
// (each does once the task channel drains), and closes the results
// channel. Callers that need to abort early rather than drain to
// completion should cancel the context passed to whatever is calling
// Submit and simply stop draining Results — the pool has no separate
// task queue to reject once Submit has accepted a task ("rejects
// queued and in-flight tasks" describes discarding work not yet
// submitted, which is the caller's responsibility).
func (p *Pool) Close() {
	close(p.tasks)
	p.wg.Wait()
	close(p.results)
}
