package pipeline

import (
	"context"
	"sync"

	"video-transcript-go/internal/audio"
	"video-transcript-go/internal/transcription"
)

// Transcriber turns one chunk into an outcome. It must not panic on failure;
// every failure is reported through the outcome.
type Transcriber interface {
	Transcribe(ctx context.Context, chunk audio.Chunk) transcription.Outcome
}

type slotResult struct {
	slot    int
	outcome transcription.Outcome
}

// Dispatch sends every chunk through t and returns outcomes in chunk order.
// workers <= 1 is strictly sequential: chunk i+1 is not sent until chunk i
// has its final outcome. With more workers, outcomes land in an indexed slot
// array so completion order never affects the result. onOutcome is called
// from a single goroutine, once per dispatched chunk. Chunks never
// dispatched because ctx ended are filled with cancelled outcomes and are
// not reported.
func Dispatch(ctx context.Context, chunks []audio.Chunk, workers int, t Transcriber, onOutcome func(transcription.Outcome)) []transcription.Outcome {
	slots := make([]transcription.Outcome, len(chunks))
	filled := make([]bool, len(chunks))
	if onOutcome == nil {
		onOutcome = func(transcription.Outcome) {}
	}

	if workers <= 1 {
		for i, c := range chunks {
			if ctx.Err() != nil {
				break
			}
			slots[i] = t.Transcribe(ctx, c)
			filled[i] = true
			onOutcome(slots[i])
		}
	} else {
		workers = min(workers, len(chunks))
		queue := make(chan int)
		results := make(chan slotResult)

		var wg sync.WaitGroup
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range queue {
					results <- slotResult{slot: i, outcome: t.Transcribe(ctx, chunks[i])}
				}
			}()
		}

		go func() {
			defer close(queue)
			for i := range chunks {
				select {
				case queue <- i:
				case <-ctx.Done():
					return
				}
			}
		}()

		go func() {
			wg.Wait()
			close(results)
		}()

		for r := range results {
			slots[r.slot] = r.outcome
			filled[r.slot] = true
			onOutcome(r.outcome)
		}
	}

	for i := range slots {
		if !filled[i] {
			slots[i] = cancelledOutcome(chunks[i].Index, ctx.Err())
		}
	}
	return slots
}

func cancelledOutcome(index int, err error) transcription.Outcome {
	if err == nil {
		err = context.Canceled
	}
	return transcription.Outcome{
		Index:   index,
		Failure: &transcription.Failure{Kind: transcription.KindCancelled, Detail: "not dispatched", Err: err},
	}
}
