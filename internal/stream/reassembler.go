// Package stream turns a chunked event-stream response body into decoded events.
//
// Bytes flow through three stages:
//
//	io.Reader -> Reassembler (complete frames) -> Decoder (typed events)
//
// The Reassembler only deals with frame boundaries; it knows nothing about
// payloads. The Decoder never fails: frames it cannot classify are dropped.
package stream

import "strings"

// FrameDelimiter terminates every frame once line endings are normalised.
const FrameDelimiter = "\n\n"

// Reassembler splits arbitrarily fragmented text into delimiter-terminated frames.
// It holds back any trailing partial frame until more data arrives.
// A Reassembler is scoped to one turn and is not safe for concurrent use.
type Reassembler struct {
	buf string
}

// NewReassembler returns an empty reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Feed appends chunk to the pending remainder and returns every frame completed by it,
// in order, without their delimiters. Empty frames (runs of blank lines) are skipped.
func (r *Reassembler) Feed(chunk string) []string {
	if chunk == "" {
		return nil
	}

	data := normalizeNewlines(r.buf + chunk)

	var frames []string
	for {
		idx := strings.Index(data, FrameDelimiter)
		if idx < 0 {
			break
		}
		frame := data[:idx]
		data = data[idx+len(FrameDelimiter):]
		if strings.TrimSpace(frame) == "" {
			continue
		}
		frames = append(frames, frame)
	}

	r.buf = data
	return frames
}

// Pending returns the buffered partial frame.
func (r *Reassembler) Pending() string {
	return r.buf
}

// Reset discards the partial frame. A truncated final frame is never surfaced.
func (r *Reassembler) Reset() {
	r.buf = ""
}

// normalizeNewlines rewrites CRLF to LF. A trailing lone CR is kept so a CRLF
// split across two chunks still collapses once the LF arrives.
func normalizeNewlines(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	trailingCR := strings.HasSuffix(s, "\r")
	if trailingCR {
		s = s[:len(s)-1]
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if trailingCR {
		s += "\r"
	}
	return s
}
