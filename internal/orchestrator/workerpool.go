package orchestrator

// workerPool bounds the number of pipeline runs executing concurrently
// across all sessions (§5 "a bounded worker pool limits concurrent
// summary/mind-map runs"). A fixed number of goroutines drain a job
// channel; submit blocks the caller only as long as the channel is full,
// never as long as a job itself runs.
type workerPool struct {
	jobs chan func()
}

func newWorkerPool(size int) *workerPool {
	if size <= 0 {
		size = 2
	}
	p := &workerPool{jobs: make(chan func(), size*4)}
	for i := 0; i < size; i++ {
		go p.loop()
	}
	return p
}

func (p *workerPool) loop() {
	for job := range p.jobs {
		job()
	}
}

func (p *workerPool) submit(job func()) {
	p.jobs <- job
}
