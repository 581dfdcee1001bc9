package uhdr

import (
	"sync"
	"testing"
)

func TestJobQueueDrain(t *testing.T) {
	q := newJobQueue()
	q.Enqueue(0, 4)
	q.Enqueue(4, 8)
	q.MarkDone()

	job, ok := q.Dequeue()
	if !ok || job.start != 0 || job.end != 4 {
		t.Fatalf("first dequeue = %+v, %v", job, ok)
	}
	job, ok = q.Dequeue()
	if !ok || job.start != 4 || job.end != 8 {
		t.Fatalf("second dequeue = %+v, %v", job, ok)
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("dequeue after drain should report done")
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("drained queue must stay drained")
	}
}

func TestJobQueueBlocksUntilMarkDone(t *testing.T) {
	q := newJobQueue()
	done := make(chan bool)
	go func() {
		_, ok := q.Dequeue()
		done <- ok
	}()
	q.MarkDone()
	if ok := <-done; ok {
		t.Fatal("blocked dequeue should return no job after MarkDone")
	}
}

func TestJobQueueConcurrentConsumers(t *testing.T) {
	q := newJobQueue()
	const jobs = 64
	for i := 0; i < jobs; i++ {
		q.Enqueue(i, i+1)
	}
	q.MarkDone()

	var mu sync.Mutex
	seen := make(map[int]int)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, ok := q.Dequeue()
				if !ok {
					return
				}
				mu.Lock()
				seen[job.start]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != jobs {
		t.Fatalf("consumed %d distinct jobs, want %d", len(seen), jobs)
	}
	for start, n := range seen {
		if n != 1 {
			t.Fatalf("job %d consumed %d times", start, n)
		}
	}
}

func TestJobQueueReset(t *testing.T) {
	q := newJobQueue()
	q.Enqueue(0, 1)
	q.MarkDone()
	q.Reset()

	q.Enqueue(2, 3)
	q.MarkDone()
	job, ok := q.Dequeue()
	if !ok || job.start != 2 {
		t.Fatalf("after reset dequeue = %+v, %v", job, ok)
	}
}
