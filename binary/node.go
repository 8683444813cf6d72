package binary

import (
	"fmt"
	"strings"

	"github.com/elliotchance/orderedmap/v3"
)

// Attrs is the ordered string->string attribute map of a Node. Order matters
// for wire encoding, so a plain Go map cannot back it.
type Attrs = *orderedmap.OrderedMap[string, string]

// NewAttrs builds an empty ordered attribute map.
func NewAttrs() Attrs {
	return orderedmap.NewOrderedMap[string, string]()
}

// AttrsFrom builds an ordered attribute map from key/value pairs, preserving
// the order the pairs are given in.
func AttrsFrom(kv ...string) Attrs {
	if len(kv)%2 != 0 {
		panic("binary: AttrsFrom requires an even number of arguments")
	}
	a := NewAttrs()
	for i := 0; i < len(kv); i += 2 {
		a.Set(kv[i], kv[i+1])
	}
	return a
}

// Node is the single in-memory protocol tree entity. A Node has
// children XOR a payload on the wire; both may be set in memory, in which
// case the codec prefers Children.
type Node struct {
	Tag      string
	Attrs    Attrs
	Children []Node
	Payload  []byte
}

// GetChildren returns the node's child list, or nil if there are none.
func (n Node) GetChildren() []Node {
	return n.Children
}

// GetChildrenByTag returns every direct child whose tag matches.
func (n Node) GetChildrenByTag(tag string) []Node {
	var out []Node
	for _, c := range n.Children {
		if c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}

// GetChildByTag returns the first direct child with the given tag, or the
// zero Node if there is none.
func (n Node) GetChildByTag(tag string) Node {
	for _, c := range n.Children {
		if c.Tag == tag {
			return c
		}
	}
	return Node{}
}

// GetOptionalChildByTag returns the first direct child with the given tag
// and whether it was found.
func (n Node) GetOptionalChildByTag(tag string) (Node, bool) {
	for _, c := range n.Children {
		if c.Tag == tag {
			return c, true
		}
	}
	return Node{}, false
}

// Attr returns a single attribute value, or "" if unset.
func (n Node) Attr(key string) string {
	if n.Attrs == nil {
		return ""
	}
	v, _ := n.Attrs.Get(key)
	return v
}

// OptionalAttr returns a single attribute value and whether it was present.
func (n Node) OptionalAttr(key string) (string, bool) {
	if n.Attrs == nil {
		return "", false
	}
	return n.Attrs.Get(key)
}

// XMLString renders a node as an XML-ish string for log lines and error
// messages; it is not a valid wire format.
func (n Node) XMLString() string {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(n.Tag)
	if n.Attrs != nil {
		for key, val := range n.Attrs.AllFromFront() {
			fmt.Fprintf(&b, " %s=%q", key, val)
		}
	}
	if len(n.Children) == 0 && len(n.Payload) == 0 {
		b.WriteString("/>")
		return b.String()
	}
	b.WriteByte('>')
	if len(n.Children) > 0 {
		for _, c := range n.Children {
			b.WriteString(c.XMLString())
		}
	} else {
		b.WriteString(string(n.Payload))
	}
	b.WriteString("</")
	b.WriteString(n.Tag)
	b.WriteByte('>')
	return b.String()
}
