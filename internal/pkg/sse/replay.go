package sse

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

const (
	DefaultChunkSize = 5
	DefaultMinDelay  = 10 * time.Millisecond
	DefaultMaxDelay  = 20 * time.Millisecond
)

// Replayer re-emits a stored answer with the same event shape a live backend
// produces: one results event, then the text in fixed-size token chunks with
// a short random pause before each.
type Replayer struct {
	ChunkSize int
	MinDelay  time.Duration
	MaxDelay  time.Duration

	// Int63n and Sleep are replaceable in tests
	Int63n func(n int64) int64
	Sleep  func(ctx context.Context, d time.Duration) error
}

func NewReplayer() *Replayer {
	return &Replayer{
		ChunkSize: DefaultChunkSize,
		MinDelay:  DefaultMinDelay,
		MaxDelay:  DefaultMaxDelay,
		Int63n:    rand.Int63n,
		Sleep:     sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Replay writes results and then text as token events. It stops with the
// context error when the client goes away between chunks.
func (r *Replayer) Replay(ctx context.Context, w *Writer, results ResultsPayload, text string) error {
	if err := w.Event(EventResults, results); err != nil {
		return err
	}

	for _, chunk := range Chunk(NormalizeNewlines(text), r.ChunkSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.Sleep(ctx, r.delay()); err != nil {
			return err
		}
		if err := w.Event(EventToken, TokenPayload{Token: chunk}); err != nil {
			return err
		}
	}
	return nil
}

func (r *Replayer) delay() time.Duration {
	span := int64(r.MaxDelay - r.MinDelay)
	if span <= 0 {
		return r.MinDelay
	}
	return r.MinDelay + time.Duration(r.Int63n(span+1))
}

// NormalizeNewlines turns every line break into a single space
func NormalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
}

// Chunk splits s into pieces of size runes; the last piece may be shorter
func Chunk(s string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	runes := []rune(s)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
