package transcription

import (
	"context"
	"fmt"

	"video-transcript-go/internal/audio"
)

// Mock returns canned text per chunk. Enabled with USE_MOCK_TRANSCRIBE=true
// for offline demos.
type Mock struct{}

func (Mock) Transcribe(ctx context.Context, chunk audio.Chunk) Outcome {
	if err := ctx.Err(); err != nil {
		return Failed(chunk.Index, &Failure{Kind: KindCancelled, Detail: err.Error(), Err: err})
	}
	return Success(chunk.Index, fmt.Sprintf("MOCK TRANSCRIPT %d (%s)", chunk.Index, chunk.End()-chunk.Start()))
}
