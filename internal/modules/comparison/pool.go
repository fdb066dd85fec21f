package comparison

import (
	"context"
	"sync"

	"github.com/aristath/tailrisk/internal/modules/tailrisk"
)

// WorkerPool manages a pool of worker goroutines for parallel per-instrument fits
type WorkerPool struct {
	numWorkers int
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 10 // Default to 10 workers
	}
	return &WorkerPool{
		numWorkers: numWorkers,
	}
}

// Workers returns the configured worker count
func (wp *WorkerPool) Workers() int {
	return wp.numWorkers
}

// evaluateFunc runs the whole pipeline for one instrument
type evaluateFunc func(ctx context.Context, item batchItem) Outcome

// batchItem is one instrument queued for evaluation
type batchItem struct {
	series tailrisk.ReturnSeries
	role   Role
}

// EvaluateBatch distributes items across worker goroutines and collects one outcome
// per item, in input order.
//
// When ctx ends before every item has reported, collection stops: outcomes already
// delivered are kept and the rest are recorded as Abandoned. Both channels are
// buffered for the whole batch so workers still running never block.
func (wp *WorkerPool) EvaluateBatch(ctx context.Context, items []batchItem, evaluate evaluateFunc) []Outcome {
	numItems := len(items)
	if numItems == 0 {
		return []Outcome{}
	}

	jobs := make(chan jobItem, numItems)
	results := make(chan resultItem, numItems)

	var wg sync.WaitGroup
	numActualWorkers := wp.numWorkers
	if numItems < numActualWorkers {
		numActualWorkers = numItems // Don't spawn more workers than instruments
	}

	for i := 0; i < numActualWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(ctx, jobs, results, evaluate)
		}()
	}

	for idx, item := range items {
		jobs <- jobItem{index: idx, item: item}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make([]Outcome, numItems)
	received := make([]bool, numItems)

collect:
	for {
		select {
		case result, ok := <-results:
			if !ok {
				break collect
			}
			outcomes[result.index] = result.outcome
			received[result.index] = true
		case <-ctx.Done():
			drain(results, outcomes, received)
			break collect
		}
	}

	for idx, ok := range received {
		if !ok {
			outcomes[idx] = abandonedOutcome(items[idx], ctx.Err())
		}
	}
	return outcomes
}

// drain keeps every result that is already waiting in the channel.
func drain(results <-chan resultItem, outcomes []Outcome, received []bool) {
	for {
		select {
		case result, ok := <-results:
			if !ok {
				return
			}
			outcomes[result.index] = result.outcome
			received[result.index] = true
		default:
			return
		}
	}
}

// jobItem represents a single evaluation job
type jobItem struct {
	index int
	item  batchItem
}

// resultItem represents the result of an evaluation job
type resultItem struct {
	index   int
	outcome Outcome
}

// worker is the worker goroutine that processes evaluation jobs
func worker(
	ctx context.Context,
	jobs <-chan jobItem,
	results chan<- resultItem,
	evaluate evaluateFunc,
) {
	for job := range jobs {
		if err := ctx.Err(); err != nil {
			results <- resultItem{index: job.index, outcome: abandonedOutcome(job.item, err)}
			continue
		}

		results <- resultItem{
			index:   job.index,
			outcome: evaluate(ctx, job.item),
		}
	}
}

func abandonedOutcome(item batchItem, cause error) Outcome {
	if cause == nil {
		cause = context.Canceled
	}
	return Outcome{
		Instrument: item.series.Instrument,
		Role:       item.role,
		Err:        tailrisk.Abandoned(tailrisk.StageBatch, item.series.Instrument, cause),
	}
}
