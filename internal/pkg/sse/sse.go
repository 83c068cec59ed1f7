// Package sse implements the event-stream framing shared by live backend
// streams and replayed cache hits.
package sse

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

const (
	EventResults = "results"
	EventToken   = "token"
	EventError   = "error"
)

// ResultsPayload is the body of a results event
type ResultsPayload struct {
	BibleResults      json.RawMessage `json:"bible_results"`
	CommentaryResults json.RawMessage `json:"commentary_results"`
	SearchID          int64           `json:"search_id,omitempty"`
}

// TokenPayload is the body of a token event
type TokenPayload struct {
	Token string `json:"token"`
}

// ErrorPayload is the body of an error event
type ErrorPayload struct {
	Error string `json:"error"`
}

// Encode frames one event. Raw CR and LF bytes in data are replaced by
// spaces so the blank-line delimiter cannot appear inside a payload.
func Encode(name string, data []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(name) + len(data) + 16)
	buf.WriteString("event: ")
	buf.WriteString(name)
	buf.WriteString("\ndata: ")
	buf.Write(flatten(data))
	buf.WriteString("\n\n")
	return buf.Bytes()
}

func flatten(data []byte) []byte {
	if bytes.IndexAny(data, "\r\n") < 0 {
		return data
	}
	out := make([]byte, len(data))
	for i, b := range data {
		if b == '\r' || b == '\n' {
			b = ' '
		}
		out[i] = b
	}
	return out
}

// Writer writes events to a client and flushes after each one when the
// underlying writer supports it.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

func NewWriter(w io.Writer) *Writer {
	f, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: f}
}

// Event marshals v and writes it as one framed event
func (w *Writer) Event(name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.Forward(Encode(name, data))
}

// Forward writes already framed bytes untouched
func (w *Writer) Forward(p []byte) error {
	if _, err := w.w.Write(p); err != nil {
		return err
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}
