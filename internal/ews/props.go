package ews

import (
	"strings"

	"github.com/vaterlangen/evolution-ews/internal/soap"
)

// BaseShape selects the default property set returned for items and folders.
type BaseShape string

const (
	ShapeIDOnly        BaseShape = "IdOnly"
	ShapeDefault       BaseShape = "Default"
	ShapeAllProperties BaseShape = "AllProperties"
)

// RequestWriter writes caller-supplied content, such as a restriction or a
// list of item changes, into a request body.
type RequestWriter func(msg *soap.Message)

// ExtendedFieldURI names a MAPI property. Empty fields are omitted.
type ExtendedFieldURI struct {
	DistinguishedPropertySetID string
	PropertySetID              string
	PropertyTag                string
	PropertyName               string
	PropertyID                 string
	PropertyType               string
}

func (e ExtendedFieldURI) write(msg *soap.Message) {
	msg.StartElement("ExtendedFieldURI", "")
	for _, attr := range [...]struct{ name, value string }{
		{"DistinguishedPropertySetId", e.DistinguishedPropertySetID},
		{"PropertySetId", e.PropertySetID},
		{"PropertyTag", e.PropertyTag},
		{"PropertyName", e.PropertyName},
		{"PropertyId", e.PropertyID},
		{"PropertyType", e.PropertyType},
	} {
		if attr.value != "" {
			msg.AddAttribute(attr.name, attr.value)
		}
	}
	msg.EndElement()
}

// IndexedFieldURI names one entry of a dictionary property, e.g.
// contacts:EmailAddress with index EmailAddress1.
type IndexedFieldURI struct {
	FieldURI   string
	FieldIndex string
}

func (i IndexedFieldURI) write(msg *soap.Message) {
	msg.StartElement("IndexedFieldURI", "")
	msg.AddAttribute("FieldURI", i.FieldURI)
	msg.AddAttribute("FieldIndex", i.FieldIndex)
	msg.EndElement()
}

// mapiIntPrefix marks a FieldURI that is really an integer MAPI property tag,
// e.g. "mapi:int:0x0e07".
const mapiIntPrefix = "mapi:int:0x"

// AdditionalProps lists properties requested on top of the base shape.
type AdditionalProps struct {
	FieldURIs []string
	Extended  []ExtendedFieldURI
	Indexed   []IndexedFieldURI
}

// FieldURIs builds AdditionalProps from a space-separated list of field URIs.
func FieldURIs(list string) *AdditionalProps {
	fields := strings.Fields(list)
	if len(fields) == 0 {
		return nil
	}
	return &AdditionalProps{FieldURIs: fields}
}

func (a *AdditionalProps) empty() bool {
	return a == nil || len(a.FieldURIs)+len(a.Extended)+len(a.Indexed) == 0
}

func (a *AdditionalProps) write(msg *soap.Message) {
	if a.empty() {
		return
	}

	msg.StartElement("AdditionalProperties", "")
	for _, uri := range a.FieldURIs {
		if len(uri) > len(mapiIntPrefix) && strings.EqualFold(uri[:len(mapiIntPrefix)], mapiIntPrefix) {
			ExtendedFieldURI{PropertyTag: uri[len("mapi:int:"):], PropertyType: "Integer"}.write(msg)
			continue
		}
		msg.WriteStringParameterWithAttribute("FieldURI", "", "", "FieldURI", uri)
	}
	for _, e := range a.Extended {
		e.write(msg)
	}
	for _, i := range a.Indexed {
		i.write(msg)
	}
	msg.EndElement()
}

// SortOrder orders FindItem results by one field. Exactly one of FieldURI,
// Indexed and Extended should be set.
type SortOrder struct {
	Ascending bool
	FieldURI  string
	Indexed   *IndexedFieldURI
	Extended  *ExtendedFieldURI
}

func (s *SortOrder) write(msg *soap.Message) {
	if s == nil {
		return
	}

	order := "Descending"
	if s.Ascending {
		order = "Ascending"
	}

	msg.StartElement("SortOrder", soap.PrefixMessages)
	msg.StartElement("FieldOrder", "")
	msg.AddAttribute("Order", order)
	switch {
	case s.Indexed != nil:
		s.Indexed.write(msg)
	case s.Extended != nil:
		s.Extended.write(msg)
	default:
		msg.WriteStringParameterWithAttribute("FieldURI", "", "", "FieldURI", s.FieldURI)
	}
	msg.EndElement()
	msg.EndElement()
}
