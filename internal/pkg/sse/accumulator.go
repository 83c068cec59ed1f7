package sse

import (
	"encoding/json"
	"strings"
)

// Accumulator folds a live stream into the record persisted for a cache
// entry. Malformed payloads are counted and otherwise ignored.
type Accumulator struct {
	parser *Parser

	bible       json.RawMessage
	commentary  json.RawMessage
	text        strings.Builder
	sawError    bool
	errMessage  string
	ParseErrors int
}

func NewAccumulator() *Accumulator {
	a := &Accumulator{}
	a.parser = NewParser(a.handle)
	return a
}

// Write feeds raw stream bytes. It never fails, so it can sit behind an
// io.TeeReader without affecting the forwarded branch.
func (a *Accumulator) Write(p []byte) (int, error) {
	a.parser.Feed(p)
	return len(p), nil
}

// Close flushes a trailing unterminated event
func (a *Accumulator) Close() {
	a.parser.Close()
}

func (a *Accumulator) handle(ev Event) {
	switch ev.Name {
	case EventResults:
		var payload struct {
			BibleResults      json.RawMessage `json:"bible_results"`
			CommentaryResults json.RawMessage `json:"commentary_results"`
		}
		if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
			a.ParseErrors++
			return
		}
		a.bible = payload.BibleResults
		a.commentary = payload.CommentaryResults
	case EventToken:
		var payload TokenPayload
		if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
			a.ParseErrors++
			return
		}
		a.text.WriteString(payload.Token)
	case EventError:
		a.sawError = true
		var payload ErrorPayload
		if err := json.Unmarshal([]byte(ev.Data), &payload); err == nil {
			a.errMessage = payload.Error
		}
	}
}

// Text is the concatenated generated text
func (a *Accumulator) Text() string {
	return a.text.String()
}

// BibleResults returns the bible match list, an empty array when none arrived
func (a *Accumulator) BibleResults() json.RawMessage {
	return arrayOrEmpty(a.bible)
}

// CommentaryResults returns the commentary match list, an empty array when
// none arrived
func (a *Accumulator) CommentaryResults() json.RawMessage {
	return arrayOrEmpty(a.commentary)
}

func (a *Accumulator) SawError() bool {
	return a.sawError
}

func (a *Accumulator) ErrorMessage() string {
	return a.errMessage
}

// HasMatches reports whether either match list is non-empty
func (a *Accumulator) HasMatches() bool {
	return !IsEmptyList(a.bible) || !IsEmptyList(a.commentary)
}

// HasResults reports whether the stream produced anything worth keeping
func (a *Accumulator) HasResults() bool {
	return a.HasMatches() || a.text.Len() > 0
}

// IsEmptyList reports whether raw is absent, null or an empty JSON array
func IsEmptyList(raw json.RawMessage) bool {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return true
	}
	return len(items) == 0
}

func arrayOrEmpty(raw json.RawMessage) json.RawMessage {
	if IsEmptyList(raw) {
		return json.RawMessage("[]")
	}
	return raw
}
