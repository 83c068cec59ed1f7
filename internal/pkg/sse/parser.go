package sse

import (
	"bytes"
	"strings"
)

// Event is one parsed event
type Event struct {
	Name string
	Data string
}

// Parser splits a byte stream into events. Input may arrive in arbitrary
// pieces; an event is emitted once its terminating blank line is seen.
type Parser struct {
	buf  []byte
	name string
	data []string
	emit func(Event)
}

func NewParser(emit func(Event)) *Parser {
	return &Parser{emit: emit}
}

// Feed consumes the next piece of the stream
func (p *Parser) Feed(chunk []byte) {
	p.buf = append(p.buf, chunk...)
	for {
		i := bytes.IndexByte(p.buf, '\n')
		if i < 0 {
			return
		}
		line := strings.TrimSuffix(string(p.buf[:i]), "\r")
		p.buf = p.buf[i+1:]
		p.line(line)
	}
}

// Close flushes an event left unterminated at end of stream
func (p *Parser) Close() {
	if len(p.buf) > 0 {
		p.line(strings.TrimSuffix(string(p.buf), "\r"))
		p.buf = nil
	}
	p.dispatch()
}

func (p *Parser) line(line string) {
	if line == "" {
		p.dispatch()
		return
	}
	if strings.HasPrefix(line, ":") {
		return
	}

	field, value := line, ""
	if i := strings.IndexByte(line, ':'); i >= 0 {
		field = line[:i]
		value = strings.TrimPrefix(line[i+1:], " ")
	}

	switch field {
	case "event":
		p.name = strings.TrimSpace(value)
	case "data":
		p.data = append(p.data, value)
	}
}

func (p *Parser) dispatch() {
	if p.name == "" && len(p.data) == 0 {
		return
	}
	ev := Event{Name: p.name, Data: strings.Join(p.data, "\n")}
	if ev.Name == "" {
		ev.Name = "message"
	}
	p.name = ""
	p.data = nil
	p.emit(ev)
}
