package ews

import (
	"bytes"
	"fmt"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// MimeSummary holds the headers of an item's MIME content.
type MimeSummary struct {
	MessageID   string
	Subject     string
	From        []string
	To          []string
	Date        time.Time
	ContentType string
}

// ParseMimeContent reads the RFC 5322 header of data. Unknown charsets are
// tolerated; the affected values are returned undecoded.
func ParseMimeContent(data []byte) (*MimeSummary, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty MIME content")
	}

	entity, err := message.Read(bytes.NewReader(data))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to parse MIME content: %w", err)
	}

	h := mail.Header{Header: entity.Header}
	s := &MimeSummary{}

	s.Subject, _ = h.Subject()
	s.MessageID, _ = h.MessageID()
	s.Date, _ = h.Date()
	s.ContentType, _, _ = h.ContentType()
	s.From = addressList(h, "From")
	s.To = addressList(h, "To")

	return s, nil
}

// Mime parses the item's MIME content, if it was requested.
func (i *Item) Mime() (*MimeSummary, error) {
	return ParseMimeContent(i.MimeContent)
}

func addressList(h mail.Header, key string) []string {
	list, err := h.AddressList(key)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Address)
	}
	return out
}
