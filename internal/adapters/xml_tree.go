package adapters

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

type xmlNodeKind int

const (
	xmlElement xmlNodeKind = iota
	xmlText
	xmlComment
	xmlProcInst
	xmlDirective
)

// xmlNode is an element tree for rewriting manifests. Parsed tags and
// text keep their source bytes and are written back verbatim unless they
// were edited, so untouched parts of a document keep their quoting,
// entities, and CDATA sections.
type xmlNode struct {
	kind     xmlNodeKind
	name     xml.Name
	attrs    []xml.Attr
	children []*xmlNode
	parent   *xmlNode
	data     []byte
	target   string

	// selfClose holds the original "/>" or " />" tail of an empty element.
	selfClose string

	// Source bytes. raw is the text of a character-data node; rawStart and
	// rawEnd are an element's tags. dirty marks edited attributes.
	raw           []byte
	rawStart      []byte
	rawEnd        []byte
	rawSelfClosed bool
	origName      xml.Name
	dirty         bool
	quote         byte
}

const utf8BOM = "\xef\xbb\xbf"

var (
	xmlTextEscaper        = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	xmlAttrEscaper        = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	xmlSingleQuoteEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "'", "&apos;")
)

// parseXMLTree reads content into a document node whose children are the
// top-level tokens. Namespace prefixes are kept verbatim.
func parseXMLTree(content []byte) (*xmlNode, error) {
	doc := &xmlNode{kind: xmlElement}
	decoder := xml.NewDecoder(bytes.NewReader(content))
	current := doc
	for {
		start := decoder.InputOffset()
		tok, err := decoder.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		raw := content[start:decoder.InputOffset()]
		switch t := tok.(type) {
		case xml.StartElement:
			el := &xmlNode{
				kind:     xmlElement,
				name:     t.Name,
				origName: t.Name,
				attrs:    append([]xml.Attr(nil), t.Attr...),
				parent:   current,
				rawStart: bytes.Clone(raw),
				quote:    attrQuote(raw),
			}
			el.selfClose = selfCloseTail(content, decoder.InputOffset())
			el.rawSelfClosed = el.selfClose != ""
			current.children = append(current.children, el)
			current = el
		case xml.EndElement:
			if current == doc || current.name != t.Name {
				return nil, fmt.Errorf("unexpected closing tag </%s>", qualifiedName(t.Name))
			}
			// Self-closing elements get a synthetic end token with no bytes.
			if len(raw) > 0 {
				current.rawEnd = bytes.Clone(raw)
			}
			current = current.parent
		case xml.CharData:
			current.appendLeaf(xmlText, bytes.Clone(t), "")
			current.children[len(current.children)-1].raw = bytes.Clone(raw)
		case xml.Comment:
			current.appendLeaf(xmlComment, bytes.Clone(t), "")
		case xml.ProcInst:
			current.appendLeaf(xmlProcInst, bytes.Clone(t.Inst), t.Target)
		case xml.Directive:
			current.appendLeaf(xmlDirective, bytes.Clone(t), "")
		}
	}
	if current != doc {
		return nil, fmt.Errorf("element <%s> is not closed", qualifiedName(current.name))
	}
	return doc, nil
}

func selfCloseTail(content []byte, offset int64) string {
	if offset < 2 || int(offset) > len(content) {
		return ""
	}
	head := content[:offset]
	if !bytes.HasSuffix(head, []byte("/>")) {
		return ""
	}
	if bytes.HasSuffix(head, []byte(" />")) {
		return " />"
	}
	return "/>"
}

// attrQuote reports the quote character a start tag uses for its
// attributes, defaulting to a double quote.
func attrQuote(startTag []byte) byte {
	if i := bytes.IndexAny(startTag, `"'`); i >= 0 {
		return startTag[i]
	}
	return '"'
}

func (n *xmlNode) appendLeaf(kind xmlNodeKind, data []byte, target string) {
	n.children = append(n.children, &xmlNode{kind: kind, data: data, target: target, parent: n})
}

func (n *xmlNode) render() []byte {
	var buf bytes.Buffer
	n.writeTo(&buf)
	return buf.Bytes()
}

func (n *xmlNode) writeTo(buf *bytes.Buffer) {
	switch n.kind {
	case xmlElement:
		if n.name.Local == "" {
			for _, child := range n.children {
				child.writeTo(buf)
			}
			return
		}
		selfClosed := len(n.children) == 0 && n.selfClose != ""
		renamed := n.name != n.origName
		if n.rawStart != nil && !n.dirty && !renamed && selfClosed == n.rawSelfClosed {
			buf.Write(n.rawStart)
		} else {
			n.writeStartTag(buf, selfClosed)
		}
		if selfClosed {
			return
		}
		for _, child := range n.children {
			child.writeTo(buf)
		}
		if n.rawEnd != nil && !renamed {
			buf.Write(n.rawEnd)
			return
		}
		buf.WriteString("</")
		buf.WriteString(qualifiedName(n.name))
		buf.WriteByte('>')
	case xmlText:
		if n.raw != nil {
			buf.Write(n.raw)
			return
		}
		buf.WriteString(xmlTextEscaper.Replace(string(n.data)))
	case xmlComment:
		buf.WriteString("<!--")
		buf.Write(n.data)
		buf.WriteString("-->")
	case xmlProcInst:
		buf.WriteString("<?")
		buf.WriteString(n.target)
		if len(n.data) > 0 {
			buf.WriteByte(' ')
			buf.Write(n.data)
		}
		buf.WriteString("?>")
	case xmlDirective:
		buf.WriteString("<!")
		buf.Write(n.data)
		buf.WriteByte('>')
	}
}

func (n *xmlNode) writeStartTag(buf *bytes.Buffer, selfClosed bool) {
	quote := n.quote
	if quote == 0 {
		quote = '"'
	}
	escaper := xmlAttrEscaper
	if quote == '\'' {
		escaper = xmlSingleQuoteEscaper
	}
	buf.WriteByte('<')
	buf.WriteString(qualifiedName(n.name))
	for _, attr := range n.attrs {
		buf.WriteByte(' ')
		buf.WriteString(qualifiedName(attr.Name))
		buf.WriteByte('=')
		buf.WriteByte(quote)
		buf.WriteString(escaper.Replace(attr.Value))
		buf.WriteByte(quote)
	}
	if selfClosed {
		buf.WriteString(n.selfClose)
		return
	}
	buf.WriteByte('>')
}

func qualifiedName(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}

func (n *xmlNode) attr(local string) (string, bool) {
	for _, attr := range n.attrs {
		if attr.Name.Space == "" && attr.Name.Local == local {
			return attr.Value, true
		}
	}
	return "", false
}

func (n *xmlNode) setAttr(local string, value string) {
	n.dirty = true
	for i, attr := range n.attrs {
		if attr.Name.Space == "" && attr.Name.Local == local {
			n.attrs[i].Value = value
			return
		}
	}
	n.attrs = append(n.attrs, xml.Attr{Name: xml.Name{Local: local}, Value: value})
}

func (n *xmlNode) removeAttr(local string) {
	kept := n.attrs[:0]
	for _, attr := range n.attrs {
		if attr.Name.Space == "" && attr.Name.Local == local {
			n.dirty = true
			continue
		}
		kept = append(kept, attr)
	}
	n.attrs = kept
}

func (n *xmlNode) childElements() []*xmlNode {
	var out []*xmlNode
	for _, child := range n.children {
		if child.kind == xmlElement {
			out = append(out, child)
		}
	}
	return out
}

func (n *xmlNode) childElement(local string) *xmlNode {
	for _, child := range n.children {
		if child.kind == xmlElement && child.name.Local == local {
			return child
		}
	}
	return nil
}

// text returns the concatenated character data directly below n.
func (n *xmlNode) text() string {
	var sb strings.Builder
	for _, child := range n.children {
		if child.kind == xmlText {
			sb.Write(child.data)
		}
	}
	return sb.String()
}

func (n *xmlNode) setText(value string) {
	n.children = []*xmlNode{{kind: xmlText, data: []byte(value), parent: n}}
}

// walk visits n and every element below it in document order.
func (n *xmlNode) walk(visit func(*xmlNode)) {
	if n.kind != xmlElement {
		return
	}
	visit(n)
	for _, child := range n.children {
		child.walk(visit)
	}
}

// indent returns the whitespace that precedes n on its own line.
func (n *xmlNode) indent() string {
	if n.parent == nil {
		return ""
	}
	for i, sibling := range n.parent.children {
		if sibling != n {
			continue
		}
		if i == 0 || n.parent.children[i-1].kind != xmlText {
			return ""
		}
		prev := string(n.parent.children[i-1].data)
		if idx := strings.LastIndex(prev, "\n"); idx >= 0 && strings.TrimSpace(prev[idx+1:]) == "" {
			return prev[idx+1:]
		}
		return ""
	}
	return ""
}

// appendChildElement adds a new element as the last child of n, matching
// the indentation of existing children or nesting one level deeper.
func (n *xmlNode) appendChildElement(child *xmlNode) {
	child.parent = n
	own := n.indent()
	childIndent := own + indentStep(n)
	if n.onlyWhitespace() {
		n.children = []*xmlNode{
			{kind: xmlText, data: []byte("\n" + childIndent), parent: n},
			child,
			{kind: xmlText, data: []byte("\n" + own), parent: n},
		}
		return
	}
	for _, existing := range n.childElements() {
		if ind := existing.indent(); ind != "" {
			childIndent = ind
			break
		}
	}
	insertAt := len(n.children)
	if last := n.children[len(n.children)-1]; last.kind == xmlText && strings.TrimSpace(string(last.data)) == "" {
		insertAt = len(n.children) - 1
	}
	spacer := &xmlNode{kind: xmlText, data: []byte("\n" + childIndent), parent: n}
	tail := append([]*xmlNode{spacer, child}, n.children[insertAt:]...)
	n.children = append(n.children[:insertAt], tail...)
}

// removeChildElement drops child and the whitespace that leads into it.
// An element left with nothing but whitespace collapses to self-closing.
func (n *xmlNode) removeChildElement(child *xmlNode) {
	for i, existing := range n.children {
		if existing != child {
			continue
		}
		start := i
		if i > 0 {
			prev := n.children[i-1]
			if prev.kind == xmlText && strings.TrimSpace(string(prev.data)) == "" {
				start = i - 1
			}
		}
		n.children = append(n.children[:start], n.children[i+1:]...)
		break
	}
	if n.onlyWhitespace() {
		n.children = nil
		if n.selfClose == "" {
			n.selfClose = " />"
		}
	}
}

func (n *xmlNode) onlyWhitespace() bool {
	for _, child := range n.children {
		if child.kind != xmlText || strings.TrimSpace(string(child.data)) != "" {
			return false
		}
	}
	return true
}

// indentStep guesses one level of indentation from n and its parent.
func indentStep(n *xmlNode) string {
	own := n.indent()
	if n.parent != nil {
		parent := n.parent.indent()
		if strings.HasPrefix(own, parent) && len(own) > len(parent) {
			return own[len(parent):]
		}
	}
	if strings.Contains(own, "\t") {
		return "\t"
	}
	return "  "
}

func xmlName(local string) xml.Name {
	return xml.Name{Local: local}
}
