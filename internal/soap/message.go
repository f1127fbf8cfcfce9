// Package soap builds EWS SOAP request envelopes and parses SOAP responses into a
// navigable parameter tree.
package soap

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
)

// Namespace URIs used by every EWS envelope.
const (
	NamespaceSOAP     = "http://schemas.xmlsoap.org/soap/envelope/"
	NamespaceTypes    = "http://schemas.microsoft.com/exchange/services/2006/types"
	NamespaceMessages = "http://schemas.microsoft.com/exchange/services/2006/messages"
)

// Element prefixes accepted by the builder. An empty prefix means PrefixTypes.
const (
	PrefixTypes    = "types"
	PrefixMessages = "messages"
	PrefixSOAP     = "soap"
)

// Exchange schema versions written into RequestServerVersion.
const (
	Exchange2007     = "Exchange2007"
	Exchange2007SP1  = "Exchange2007_SP1"
	Exchange2010     = "Exchange2010"
	Exchange2010SP1  = "Exchange2010_SP1"
	DefaultSchemaVer = Exchange2007SP1
)

// Message is an EWS request envelope under construction. Elements are written in
// call order; EWS is sensitive to element ordering so callers must follow the
// schema sequence for their operation.
type Message struct {
	operation string
	buf       bytes.Buffer
	enc       *xml.Encoder
	open      []xml.Name
	pending   *xml.StartElement
	depth     int // depth of the operation element, footer closes down to zero
	finished  bool
	err       error
}

// NewMessage starts an envelope for operation. When topAttr is non-empty the
// operation element carries topAttr=topAttrValue. version selects the
// RequestServerVersion header and defaults to Exchange2007_SP1.
func NewMessage(operation, topAttr, topAttrValue, version string) *Message {
	if version == "" {
		version = DefaultSchemaVer
	}

	m := &Message{operation: operation}
	m.enc = xml.NewEncoder(&m.buf)

	m.buf.WriteString(xml.Header)

	m.StartElement("Envelope", PrefixSOAP)
	m.AddAttribute("xmlns:"+PrefixSOAP, NamespaceSOAP)
	m.AddAttribute("xmlns:"+PrefixTypes, NamespaceTypes)
	m.AddAttribute("xmlns:"+PrefixMessages, NamespaceMessages)

	m.StartElement("Header", PrefixSOAP)
	m.StartElement("RequestServerVersion", PrefixTypes)
	m.AddAttribute("Version", version)
	m.EndElement()
	m.EndElement()

	m.StartElement("Body", PrefixSOAP)
	m.StartElement(operation, PrefixMessages)
	if topAttr != "" {
		m.AddAttribute(topAttr, topAttrValue)
	}
	m.depth = len(m.open)

	return m
}

// Operation returns the EWS operation name the message was created for.
func (m *Message) Operation() string {
	return m.operation
}

// StartElement opens a new element. Attributes may be added until the next
// write call.
func (m *Message) StartElement(name, prefix string) {
	if m.err != nil {
		return
	}
	if m.finished {
		m.err = errors.New("message already finished")
		return
	}
	m.flush()

	start := xml.StartElement{Name: qualify(name, prefix)}
	m.pending = &start
	m.open = append(m.open, start.Name)
}

// AddAttribute adds an attribute to the most recently started element.
func (m *Message) AddAttribute(name, value string) {
	if m.err != nil {
		return
	}
	if m.pending == nil {
		m.err = fmt.Errorf("attribute %s added outside of a start element", name)
		return
	}
	m.pending.Attr = append(m.pending.Attr, xml.Attr{Name: xml.Name{Local: name}, Value: value})
}

// EndElement closes the most recently opened element.
func (m *Message) EndElement() {
	if m.err != nil {
		return
	}
	if len(m.open) == 0 {
		m.err = errors.New("end element without matching start")
		return
	}
	m.flush()

	name := m.open[len(m.open)-1]
	m.open = m.open[:len(m.open)-1]
	m.encode(xml.EndElement{Name: name})
}

// WriteStringParameter writes <prefix:name>value</prefix:name>.
func (m *Message) WriteStringParameter(name, prefix, value string) {
	m.StartElement(name, prefix)
	m.writeText(value)
	m.EndElement()
}

// WriteStringParameterWithAttribute writes an element carrying a single
// attribute. An empty value produces an element with no text content.
func (m *Message) WriteStringParameterWithAttribute(name, prefix, value, attrName, attrValue string) {
	m.StartElement(name, prefix)
	m.AddAttribute(attrName, attrValue)
	m.writeText(value)
	m.EndElement()
}

// WriteBase64 writes data as base64 character content of the open element.
func (m *Message) WriteBase64(data []byte) {
	m.writeText(base64.StdEncoding.EncodeToString(data))
}

// WriteFooter closes the operation, body and envelope elements. Further writes
// are rejected.
func (m *Message) WriteFooter() {
	if m.err != nil || m.finished {
		return
	}
	if len(m.open) < m.depth {
		m.err = fmt.Errorf("operation %s closed before footer", m.operation)
		return
	}
	for len(m.open) > 0 {
		m.EndElement()
	}
	if m.err == nil {
		m.err = m.enc.Flush()
	}
	m.finished = true
}

// Bytes returns the serialized envelope. The footer is written if the caller
// has not done so yet.
func (m *Message) Bytes() ([]byte, error) {
	if !m.finished {
		m.WriteFooter()
	}
	if m.err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", m.operation, m.err)
	}
	return m.buf.Bytes(), nil
}

func (m *Message) writeText(value string) {
	if m.err != nil || value == "" {
		return
	}
	m.flush()
	m.encode(xml.CharData(value))
}

func (m *Message) flush() {
	if m.pending == nil {
		return
	}
	start := *m.pending
	m.pending = nil
	m.encode(start)
}

func (m *Message) encode(tok xml.Token) {
	if m.err != nil {
		return
	}
	if err := m.enc.EncodeToken(tok); err != nil {
		m.err = err
	}
}

func qualify(name, prefix string) xml.Name {
	if prefix == "" {
		prefix = PrefixTypes
	}
	return xml.Name{Local: prefix + ":" + name}
}
