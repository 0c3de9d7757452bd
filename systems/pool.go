package systems

import "sync"

// parallelThreshold is the minimum item count to use the worker pool.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 64

// chunkFunc processes items [start, end) on the given worker.
type chunkFunc func(start, end, worker int)

// workChunk represents a range of items for a worker to process.
type workChunk struct {
	start, end int
	fn         chunkFunc
}

// WorkerPool runs index ranges on persistent goroutines. Run must only be
// called from one goroutine at a time; results are written by index so the
// outcome does not depend on scheduling.
type WorkerPool struct {
	numWorkers int

	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

// NewWorkerPool creates a pool with n workers. Goroutines start lazily on
// the first parallel Run.
func NewWorkerPool(n int) *WorkerPool {
	if n < 1 {
		n = 1
	}
	return &WorkerPool{numWorkers: n}
}

// Workers returns the worker count; worker IDs passed to chunk functions
// are in [0, Workers()).
func (p *WorkerPool) Workers() int {
	return p.numWorkers
}

// start launches persistent worker goroutines.
func (p *WorkerPool) start() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop signals all workers to exit and waits for them.
func (p *WorkerPool) Stop() {
	if p == nil || !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *WorkerPool) worker(workerID int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			chunk.fn(chunk.start, chunk.end, workerID)
			p.doneChan <- struct{}{}
		}
	}
}

// Run processes n items, in parallel when n reaches parallelThreshold.
func (p *WorkerPool) Run(n int, fn chunkFunc) {
	if n <= 0 {
		return
	}
	if n < parallelThreshold || p.numWorkers == 1 {
		fn(0, n, 0)
		return
	}

	p.start()

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers

	// Dispatch chunks to workers
	chunksDispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}
		p.workChan <- workChunk{start: start, end: end, fn: fn}
		chunksDispatched++
	}

	// Wait for all chunks to complete
	for i := 0; i < chunksDispatched; i++ {
		<-p.doneChan
	}
}
