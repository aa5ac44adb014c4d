package waterml

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Node is a generic XML element. WaterML responses arrive with varying
// namespace prefixes (ns1:, wml:, none), so all lookups match on local names
// only. Dynamic element bags like siteProperty make fixed struct tags a poor
// fit; the generic tree keeps every child reachable by name.
type Node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Chardata string     `xml:",chardata"`
	Children []Node     `xml:",any"`
}

// Name returns the element's local name.
func (n *Node) Name() string { return n.XMLName.Local }

// Text returns the element's own character data, trimmed.
func (n *Node) Text() string { return strings.TrimSpace(n.Chardata) }

// FlatText returns the concatenated trimmed character data of the element and
// all its descendants, e.g. <unit><unitCode>ft3/s</unitCode></unit> -> "ft3/s".
func (n *Node) FlatText() string {
	var b strings.Builder
	b.WriteString(n.Text())
	for i := range n.Children {
		b.WriteString(n.Children[i].FlatText())
	}
	return b.String()
}

// Attr returns the value of the attribute with the given local name, or "".
func (n *Node) Attr(local string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// Child returns the first direct child with the given local name, or nil.
func (n *Node) Child(name string) *Node {
	for i := range n.Children {
		if n.Children[i].XMLName.Local == name {
			return &n.Children[i]
		}
	}
	return nil
}

// ChildrenNamed returns all direct children with the given local name.
func (n *Node) ChildrenNamed(name string) []*Node {
	var out []*Node
	for i := range n.Children {
		if n.Children[i].XMLName.Local == name {
			out = append(out, &n.Children[i])
		}
	}
	return out
}

// FindAll walks the given path of local names from this node and returns every
// element reached, in document order.
func (n *Node) FindAll(path ...string) []*Node {
	nodes := []*Node{n}
	for _, segment := range path {
		var next []*Node
		for _, nd := range nodes {
			next = append(next, nd.ChildrenNamed(segment)...)
		}
		nodes = next
	}
	if len(path) == 0 {
		return nil
	}
	return nodes
}

// Document is a parsed WaterML response.
type Document struct {
	root Node
}

// ParseDocument parses a raw WaterML payload.
func ParseDocument(data []byte) (*Document, error) {
	var d Document
	if err := xml.Unmarshal(data, &d.root); err != nil {
		return nil, fmt.Errorf("parse waterml document: %w", err)
	}
	return &d, nil
}

// TimeSeries returns the document's timeSeries elements in document order.
func (d *Document) TimeSeries() []*Node {
	return d.root.FindAll("timeSeries")
}

// QueryNotes returns the text of every queryInfo note.
func (d *Document) QueryNotes() []string {
	var notes []string
	for _, n := range d.root.FindAll("queryInfo", "note") {
		notes = append(notes, n.Text())
	}
	return notes
}

// Note returns the text of the queryInfo note with the given title, or "".
func (d *Document) Note(title string) string {
	for _, n := range d.root.FindAll("queryInfo", "note") {
		if n.Attr("title") == title {
			return n.Text()
		}
	}
	return ""
}
