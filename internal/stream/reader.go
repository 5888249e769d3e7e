package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
)

const readChunkSize = 4 * 1024

// FrameResult wraps a frame or an error from reading the stream.
type FrameResult struct {
	Frame string
	Err   error
}

// ReadFrames reads body until EOF and emits each complete frame on the returned channel.
// The channel is closed when the body is exhausted, fails, or ctx is cancelled; a
// read failure is delivered as a final FrameResult with Err set. The body is closed
// before the channel closes.
func ReadFrames(ctx context.Context, body io.ReadCloser) <-chan FrameResult {
	out := make(chan FrameResult)
	go readFrames(ctx, body, out)
	return out
}

func readFrames(ctx context.Context, body io.ReadCloser, out chan<- FrameResult) {
	defer close(out)
	defer body.Close()

	r := NewReassembler()
	defer r.Reset()

	buf := make([]byte, readChunkSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, frame := range r.Feed(string(buf[:n])) {
				select {
				case out <- FrameResult{Frame: frame}:
				case <-ctx.Done():
					return
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			select {
			case out <- FrameResult{Err: fmt.Errorf("stream read error: %w", err)}:
			case <-ctx.Done():
			}
			return
		}
	}
}
