package engine

import (
	"math/rand/v2"
	"sync"

	"github.com/pthm-cable/evosim/systems"
)

// workerScratch holds per-worker reusable buffers.
type workerScratch struct {
	neighbors []systems.Neighbor
	pcg       *rand.PCG
	rng       *rand.Rand
}

// reseed points the worker RNG at the stream for one agent on one tick.
// The stream depends only on (seed, tick, id), never on which worker runs it.
func (s *workerScratch) reseed(seed, tick, id uint64) *rand.Rand {
	s.pcg.Seed(seed^(tick*0x9E3779B97F4A7C15), id)
	return s.rng
}

// chunkJob processes items [start, end) using one worker's scratch.
type chunkJob func(start, end int, scratch *workerScratch)

// workChunk represents a range of items for a worker to process.
type workChunk struct {
	start, end int
	job        chunkJob
}

// workerPool fans a compute phase out over persistent goroutines.
// Jobs only write to per-item output slots, so no locking is needed.
type workerPool struct {
	numWorkers int
	threshold  int
	scratches  []workerScratch

	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool
}

func newWorkerPool(numWorkers, threshold int) *workerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	scratches := make([]workerScratch, numWorkers)
	for i := range scratches {
		pcg := rand.NewPCG(0, 0)
		scratches[i] = workerScratch{
			neighbors: make([]systems.Neighbor, 0, 64),
			pcg:       pcg,
			rng:       rand.New(pcg),
		}
	}
	return &workerPool{
		numWorkers: numWorkers,
		threshold:  threshold,
		scratches:  scratches,
	}
}

// start launches persistent worker goroutines.
func (p *workerPool) start() {
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

// stop signals all workers to exit and waits for them.
func (p *workerPool) stop() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *workerPool) worker(workerID int) {
	defer p.wg.Done()
	scratch := &p.scratches[workerID]

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			chunk.job(chunk.start, chunk.end, scratch)
			p.doneChan <- struct{}{}
		}
	}
}

// run executes job over [0, n) and blocks until every chunk is done.
// Small batches run on the caller with worker 0's scratch.
func (p *workerPool) run(n int, job chunkJob) {
	if n == 0 {
		return
	}
	if n < p.threshold || p.numWorkers == 1 {
		job(0, n, &p.scratches[0])
		return
	}

	if !p.running {
		p.start()
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers

	chunksDispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}
		p.workChan <- workChunk{start: start, end: end, job: job}
		chunksDispatched++
	}

	// Barrier before the sequential merge
	for i := 0; i < chunksDispatched; i++ {
		<-p.doneChan
	}
}
