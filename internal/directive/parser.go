package directive

import (
	"fmt"
	"strings"
)

const (
	markerOpen  = "${"
	markerClose = "}"

	elseMarker = markerOpen + "else" + markerClose
)

type frameKind int

const (
	frameRoot frameKind = iota
	frameCond
	frameLoop
)

// frame is one level of open directive span during parsing. nodes
// accumulates the branch currently being filled; for a conditional that
// has passed ${else}, thenNodes holds the completed positive branch.
type frame struct {
	kind      frameKind
	path      string
	marker    string
	nodes     []node
	thenNodes []node
	sawElse   bool
}

type parser struct {
	src   string
	pos   int
	stack []*frame
	diags []string
}

func (p *parser) run() []node {
	p.stack = []*frame{{kind: frameRoot}}

	for p.pos < len(p.src) {
		open := strings.Index(p.src[p.pos:], markerOpen)
		if open < 0 {
			p.text(p.src[p.pos:])
			break
		}
		open += p.pos
		if open > p.pos {
			p.text(p.src[p.pos:open])
		}

		end := strings.Index(p.src[open:], markerClose)
		if end < 0 {
			p.text(p.src[open:])
			p.diag("unterminated marker at offset %d", open)
			break
		}
		end += open

		marker := p.src[open : end+1]
		content := p.src[open+len(markerOpen) : end]
		if p.marker(marker, content) {
			p.pos = end + 1
			continue
		}
		// Not a directive. Keep the opener as text and rescan from just
		// past it so a marker nested in the invalid span still matches.
		p.text(markerOpen)
		p.pos = open + len(markerOpen)
	}

	for len(p.stack) > 1 {
		p.unwind()
	}
	return p.stack[0].nodes
}

// marker interprets one well-delimited `${...}` span. It reports false
// when the content is not a directive at all, in which case the caller
// releases the span for rescanning.
func (p *parser) marker(marker, content string) bool {
	switch {
	case content == "else":
		top := p.top()
		if top.kind != frameCond || top.sawElse {
			p.literal(marker, "stray %s", marker)
			return true
		}
		top.thenNodes = top.nodes
		top.nodes = nil
		top.sawElse = true

	case content == "endif":
		if p.top().kind != frameCond {
			p.literal(marker, "stray %s", marker)
			return true
		}
		p.closeCond()

	case content == "endloop":
		if p.top().kind != frameLoop {
			p.literal(marker, "stray %s", marker)
			return true
		}
		p.closeLoop()

	case strings.HasPrefix(content, "if:"):
		path := strings.TrimPrefix(content, "if:")
		if !ValidPath(path) {
			p.diag("conditional with invalid path %q", path)
			return false
		}
		p.push(&frame{kind: frameCond, path: path, marker: marker})

	case strings.HasPrefix(content, "loop:"):
		path := strings.TrimPrefix(content, "loop:")
		if !ValidPath(path) {
			p.diag("loop with invalid path %q", path)
			return false
		}
		p.push(&frame{kind: frameLoop, path: path, marker: marker})

	default:
		if !ValidPath(content) {
			p.diag("marker %s is not a directive", marker)
			return false
		}
		p.append(&valueNode{path: content})
	}
	return true
}

func (p *parser) top() *frame {
	return p.stack[len(p.stack)-1]
}

func (p *parser) push(f *frame) {
	p.stack = append(p.stack, f)
}

func (p *parser) append(n node) {
	top := p.top()
	top.nodes = append(top.nodes, n)
}

// text appends literal text to the open frame, coalescing with a
// preceding text node so degraded markers do not fragment the output.
func (p *parser) text(s string) {
	if s == "" {
		return
	}
	top := p.top()
	if len(top.nodes) > 0 {
		if prev, ok := top.nodes[len(top.nodes)-1].(*textNode); ok {
			prev.text += s
			return
		}
	}
	top.nodes = append(top.nodes, &textNode{text: s})
}

func (p *parser) literal(marker, format string, args ...any) {
	p.text(marker)
	p.diag(format, args...)
}

func (p *parser) closeCond() {
	f := p.pop()
	n := &condNode{path: f.path}
	if f.sawElse {
		n.then, n.els = f.thenNodes, f.nodes
	} else {
		n.then = f.nodes
	}
	p.append(n)
}

func (p *parser) closeLoop() {
	f := p.pop()
	p.append(&loopNode{path: f.path, body: f.nodes})
}

func (p *parser) pop() *frame {
	f := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	return f
}

// unwind degrades the innermost unclosed span back to literal text,
// splicing its already-parsed children into the parent so the rendered
// output reproduces the source.
func (p *parser) unwind() {
	f := p.pop()
	p.text(f.marker)
	if f.sawElse {
		p.splice(f.thenNodes)
		p.text(elseMarker)
	}
	p.splice(f.nodes)
	p.diag("unterminated %s", f.marker)
}

func (p *parser) splice(nodes []node) {
	for _, n := range nodes {
		if t, ok := n.(*textNode); ok {
			p.text(t.text)
			continue
		}
		p.append(n)
	}
}

func (p *parser) diag(format string, args ...any) {
	p.diags = append(p.diags, fmt.Sprintf(format, args...))
}
