// Package extract pulls complete JSON objects out of a streamed JSON array
// as soon as each one closes, so callers can relay records while the model
// is still writing the rest.
package extract

import (
	"encoding/json"

	"go.uber.org/zap"
)

// Validator reports whether a parsed candidate has the minimal shape a
// stage expects (for example both a question and a solution).
type Validator func(raw json.RawMessage) bool

type scanState int

const (
	stateNormal scanState = iota
	stateInString
	stateEscaped
)

// Extractor is not safe for concurrent use; one stream feeds one Extractor.
type Extractor struct {
	validate Validator
	logger   *zap.Logger

	buf   []byte
	pos   int
	start int
	depth int
	state scanState
	// opened is set right after a top-level '{' until its first
	// non-space byte shows whether an object really started.
	opened bool

	emitted   int
	discarded int
}

func New(validate Validator, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = func(json.RawMessage) bool { return true }
	}
	return &Extractor{validate: validate, logger: logger, start: -1}
}

// Feed appends a fragment and returns every record completed by it, in
// stream order.
func (e *Extractor) Feed(fragment string) []json.RawMessage {
	e.buf = append(e.buf, fragment...)
	var out []json.RawMessage

	for e.pos < len(e.buf) {
		c := e.buf[e.pos]
		switch e.state {
		case stateEscaped:
			e.state = stateInString
		case stateInString:
			switch c {
			case '\\':
				e.state = stateEscaped
			case '"':
				e.state = stateNormal
			}
		default:
			if e.opened {
				if isSpace(c) {
					e.pos++
					continue
				}
				e.opened = false
				if c != '"' && c != '}' {
					// A brace in prose, not an object: rescan this byte at
					// depth 0.
					e.depth = 0
					e.start = -1
					continue
				}
			}
			switch c {
			case '"':
				// Quotes only matter inside an object; prose around the
				// array must not open a string.
				if e.depth > 0 {
					e.state = stateInString
				}
			case '{':
				if e.depth == 0 {
					e.start = e.pos
					e.opened = true
				}
				e.depth++
			case '}':
				if e.depth == 0 {
					break
				}
				e.depth--
				if e.depth == 0 {
					if rec, ok := e.candidate(e.buf[e.start : e.pos+1]); ok {
						out = append(out, rec)
						e.buf = append(e.buf[:0], e.buf[e.pos+1:]...)
						e.pos = 0
						e.start = -1
						continue
					}
					e.start = -1
				}
			}
		}
		e.pos++
	}
	return out
}

func (e *Extractor) candidate(b []byte) (json.RawMessage, bool) {
	if !json.Valid(b) {
		e.discarded++
		e.logger.Debug("discarding unparseable record", zap.String("candidate", preview(b)))
		return nil, false
	}
	rec := make(json.RawMessage, len(b))
	copy(rec, b)
	if !e.validate(rec) {
		e.discarded++
		e.logger.Debug("discarding record that failed validation", zap.String("candidate", preview(b)))
		return nil, false
	}
	e.emitted++
	return rec, true
}

// Finalize returns whatever text remains buffered after the last emitted
// record. When nothing was emitted this is the whole stream.
func (e *Extractor) Finalize() string {
	return string(e.buf)
}

// Emitted is the number of records returned by Feed so far.
func (e *Extractor) Emitted() int { return e.emitted }

// Discarded is the number of complete candidates rejected so far.
func (e *Extractor) Discarded() int { return e.discarded }

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t'
}

func preview(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
