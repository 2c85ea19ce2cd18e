// Package reasoning splits an assistant message's raw text into ordered
// answer/thinking segments. Models served behind the gateway emit their
// thinking inline, wrapped in a sentinel tag pair, so the split has to be
// re-derived as the buffer grows.
package reasoning

import "strings"

const (
	DefaultOpenMarker  = "<think>"
	DefaultCloseMarker = "</think>"
)

type SegmentKind string

const (
	SegmentText      SegmentKind = "text"
	SegmentReasoning SegmentKind = "reasoning"
)

type Segment struct {
	Kind     SegmentKind
	Text     string
	Complete bool
}

// Parser is a stateless pure function over the full buffer. Recomputing on
// every delta is O(n) per delta, which is fine at chat-message scale.
type Parser struct {
	open  string
	close string
}

func NewParser(openMarker, closeMarker string) *Parser {
	if openMarker == "" {
		openMarker = DefaultOpenMarker
	}
	if closeMarker == "" {
		closeMarker = DefaultCloseMarker
	}
	return &Parser{open: openMarker, close: closeMarker}
}

// Segment scans the buffer in arrival order. Text outside marker pairs
// becomes complete text segments; content inside a pair becomes a complete
// reasoning segment; an unterminated open marker captures the remainder as
// an incomplete reasoning segment. Zero-length segments are dropped.
func (p *Parser) Segment(buffer string) []Segment {
	var segments []Segment
	rest := buffer

	for {
		openIdx := strings.Index(rest, p.open)
		if openIdx < 0 {
			if rest != "" {
				segments = append(segments, Segment{Kind: SegmentText, Text: rest, Complete: true})
			}
			return segments
		}

		if openIdx > 0 {
			segments = append(segments, Segment{Kind: SegmentText, Text: rest[:openIdx], Complete: true})
		}
		rest = rest[openIdx+len(p.open):]

		closeIdx := strings.Index(rest, p.close)
		if closeIdx < 0 {
			// Stream ended (so far) mid-reasoning; keep what we have.
			if rest != "" {
				segments = append(segments, Segment{Kind: SegmentReasoning, Text: rest, Complete: false})
			}
			return segments
		}

		if closeIdx > 0 {
			segments = append(segments, Segment{Kind: SegmentReasoning, Text: rest[:closeIdx], Complete: true})
		}
		rest = rest[closeIdx+len(p.close):]
	}
}
