package soap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/ChrisTrenkamp/goxpath"
	"github.com/ChrisTrenkamp/goxpath/tree"
	"github.com/ChrisTrenkamp/goxpath/tree/xmltree"
)

// Parameter is one element of a parsed SOAP response. All navigation methods are
// safe on a nil receiver and return zero values, so lookups can be chained
// without intermediate checks.
type Parameter struct {
	elem     tree.Elem
	name     string
	children []*Parameter
	parent   *Parameter
	index    int
}

// Name returns the element's local name without namespace prefix.
func (p *Parameter) Name() string {
	if p == nil {
		return ""
	}
	return p.name
}

func (p *Parameter) attr(name string) (string, bool) {
	if p == nil {
		return "", false
	}
	for _, a := range p.elem.GetAttrs() {
		if attr, ok := a.GetToken().(xml.Attr); ok && attr.Name.Local == name {
			return attr.Value, true
		}
	}
	return "", false
}

// Property returns the value of the named attribute, or "" if absent.
func (p *Parameter) Property(name string) string {
	v, _ := p.attr(name)
	return v
}

// HasProperty reports whether the named attribute is present.
func (p *Parameter) HasProperty(name string) bool {
	_, ok := p.attr(name)
	return ok
}

// Value returns the element's own character data with surrounding whitespace
// removed. Text of nested elements is not included.
func (p *Parameter) Value() string {
	if p == nil {
		return ""
	}
	var sb strings.Builder
	for _, n := range p.elem.GetChildren() {
		if n.GetNodeType() == tree.NtChd {
			sb.WriteString(n.ResValue())
		}
	}
	return strings.TrimSpace(sb.String())
}

// Children returns the element's child elements in document order.
func (p *Parameter) Children() []*Parameter {
	if p == nil {
		return nil
	}
	return p.children
}

// FirstChild returns the first child element.
func (p *Parameter) FirstChild() *Parameter {
	if p == nil || len(p.children) == 0 {
		return nil
	}
	return p.children[0]
}

// FirstChildByName returns the first child element with the given local name.
func (p *Parameter) FirstChildByName(name string) *Parameter {
	if p == nil {
		return nil
	}
	for _, child := range p.children {
		if child.name == name {
			return child
		}
	}
	return nil
}

// ChildrenByName returns every child element with the given local name.
func (p *Parameter) ChildrenByName(name string) []*Parameter {
	if p == nil {
		return nil
	}
	var out []*Parameter
	for _, child := range p.children {
		if child.name == name {
			out = append(out, child)
		}
	}
	return out
}

// NextSibling returns the element following p under the same parent.
func (p *Parameter) NextSibling() *Parameter {
	if p == nil || p.parent == nil {
		return nil
	}
	siblings := p.parent.children
	if p.index+1 >= len(siblings) {
		return nil
	}
	return siblings[p.index+1]
}

// NextSiblingByName returns the next element after p with the given local name.
func (p *Parameter) NextSiblingByName(name string) *Parameter {
	for s := p.NextSibling(); s != nil; s = s.NextSibling() {
		if s.name == name {
			return s
		}
	}
	return nil
}

// ChildValue is shorthand for FirstChildByName(name).Value().
func (p *Parameter) ChildValue(name string) string {
	return p.FirstChildByName(name).Value()
}

// Document is a parsed XML document. Elements can be reached by navigation
// from Root or by XPath through Select.
type Document struct {
	root  tree.Node
	top   *Parameter
	nodes map[tree.Node]*Parameter
}

// Namespaces binds the s, m and t prefixes for XPath expressions evaluated
// with Select.
func Namespaces(o *goxpath.Opts) {
	o.NS["s"] = NamespaceSOAP
	o.NS["m"] = NamespaceMessages
	o.NS["t"] = NamespaceTypes
}

// ParseDocument parses any XML document, such as a plain-XML autodiscover
// response or an OAB manifest.
func ParseDocument(data []byte) (*Document, error) {
	root, err := xmltree.ParseXML(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse XML response: %w", err)
	}

	rootElem, ok := root.(tree.Elem)
	if !ok {
		return nil, errors.New("failed to parse XML response: no document node")
	}

	doc := &Document{root: root, nodes: make(map[tree.Node]*Parameter)}
	for _, n := range rootElem.GetChildren() {
		elem, ok := n.(tree.Elem)
		if !ok || n.GetNodeType() != tree.NtElem {
			continue
		}
		if doc.top != nil {
			return nil, errors.New("failed to parse XML response: multiple root elements")
		}
		doc.top = doc.wrap(elem, nil, 0)
	}
	if doc.top == nil {
		return nil, errors.New("failed to parse XML response: empty document")
	}
	return doc, nil
}

func (d *Document) wrap(elem tree.Elem, parent *Parameter, index int) *Parameter {
	p := &Parameter{elem: elem, parent: parent, index: index}
	if start, ok := elem.GetToken().(xml.StartElement); ok {
		p.name = start.Name.Local
	}
	d.nodes[elem] = p

	for _, n := range elem.GetChildren() {
		child, ok := n.(tree.Elem)
		if !ok || n.GetNodeType() != tree.NtElem {
			continue
		}
		p.children = append(p.children, d.wrap(child, p, len(p.children)))
	}
	return p
}

// Root returns the document element.
func (d *Document) Root() *Parameter {
	if d == nil {
		return nil
	}
	return d.top
}

// Select evaluates xp against the document with the Namespaces bindings and
// returns the matching elements in document order. Non-element results and
// evaluation errors yield nil.
func (d *Document) Select(xp goxpath.XPathExec) []*Parameter {
	if d == nil {
		return nil
	}
	nodes, err := xp.ExecNode(d.root, Namespaces)
	if err != nil {
		return nil
	}
	var out []*Parameter
	for _, n := range nodes {
		if p, ok := d.nodes[n]; ok {
			out = append(out, p)
		}
	}
	return out
}

// SelectFirst returns the first element matched by xp, or nil.
func (d *Document) SelectFirst(xp goxpath.XPathExec) *Parameter {
	if found := d.Select(xp); len(found) > 0 {
		return found[0]
	}
	return nil
}

// Response is a parsed SOAP envelope.
type Response struct {
	*Document
	body *Parameter
}

// ErrNotEnvelope is returned when the document root is not a SOAP Envelope.
var ErrNotEnvelope = errors.New("document is not a SOAP envelope")

var faultStringPath = goxpath.MustParse(`/s:Envelope/s:Body/s:Fault/*[local-name()='faultstring']`)

// ParseResponse parses a SOAP envelope from data.
func ParseResponse(data []byte) (*Response, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SOAP response: %w", err)
	}
	if doc.top.name != "Envelope" {
		return nil, ErrNotEnvelope
	}

	body := doc.top.FirstChildByName("Body")
	if body == nil {
		return nil, errors.New("SOAP envelope has no Body")
	}

	return &Response{Document: doc, body: body}, nil
}

// Method returns the first element inside the SOAP Body, normally the
// <OperationResponse> element or a <Fault>.
func (r *Response) Method() *Parameter {
	if r == nil {
		return nil
	}
	return r.body.FirstChild()
}

// Parameters returns the children of the method element.
func (r *Response) Parameters() []*Parameter {
	return r.Method().Children()
}

// FirstParameterByName returns the first child of the method element with the
// given local name.
func (r *Response) FirstParameterByName(name string) *Parameter {
	return r.Method().FirstChildByName(name)
}

// Header returns the SOAP Header element, if any.
func (r *Response) Header() *Parameter {
	if r == nil {
		return nil
	}
	return r.top.FirstChildByName("Header")
}

// IsFault reports whether the body carries a SOAP Fault.
func (r *Response) IsFault() bool {
	return r.Method().Name() == "Fault"
}

// FaultString returns the text of Fault/faultstring, or "".
func (r *Response) FaultString() string {
	if r == nil {
		return ""
	}
	return r.SelectFirst(faultStringPath).Value()
}
