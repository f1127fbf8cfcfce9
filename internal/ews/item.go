package ews

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vaterlangen/evolution-ews/internal/soap"
)

// ItemID identifies an item, folder or attachment on the server.
type ItemID struct {
	ID        string
	ChangeKey string
}

// ItemType is the local name of the element an item was returned in.
type ItemType string

const (
	ItemTypeGeneric          ItemType = "Item"
	ItemTypeMessage          ItemType = "Message"
	ItemTypeCalendarItem     ItemType = "CalendarItem"
	ItemTypeContact          ItemType = "Contact"
	ItemTypeDistributionList ItemType = "DistributionList"
	ItemTypeMeetingMessage   ItemType = "MeetingMessage"
	ItemTypeMeetingRequest   ItemType = "MeetingRequest"
	ItemTypeMeetingResponse  ItemType = "MeetingResponse"
	ItemTypeMeetingCancel    ItemType = "MeetingCancellation"
	ItemTypeTask             ItemType = "Task"
	ItemTypePostItem         ItemType = "PostItem"
)

// Item is the subset of an EWS item this package understands.
type Item struct {
	Type           ItemType
	ID             ItemID
	ParentFolderID ItemID
	AttachmentID   ItemID // set for items returned as an ItemAttachment

	ItemClass  string
	Subject    string
	Importance string
	Categories []string
	Size       int64

	DateTimeReceived time.Time
	DateTimeSent     time.Time
	DateTimeCreated  time.Time

	HasAttachments bool
	IsRead         bool

	From *Mailbox

	MimeContent []byte
}

// parseItem converts an item element such as <t:Message>.
func parseItem(p *soap.Parameter) (*Item, error) {
	if p == nil {
		return nil, fmt.Errorf("missing item element")
	}

	item := &Item{Type: ItemType(p.Name())}
	for _, child := range p.Children() {
		var err error
		switch child.Name() {
		case "ItemId":
			item.ID = parseItemID(child)
		case "ParentFolderId":
			item.ParentFolderID = parseItemID(child)
		case "AttachmentId":
			item.AttachmentID = parseItemID(child)
		case "ItemClass":
			item.ItemClass = child.Value()
		case "Subject":
			item.Subject = child.Value()
		case "Importance":
			item.Importance = child.Value()
		case "Categories":
			for _, s := range child.ChildrenByName("String") {
				item.Categories = append(item.Categories, s.Value())
			}
		case "Size":
			item.Size, err = strconv.ParseInt(child.Value(), 10, 64)
		case "DateTimeReceived":
			item.DateTimeReceived, err = parseTime(child.Value())
		case "DateTimeSent":
			item.DateTimeSent, err = parseTime(child.Value())
		case "DateTimeCreated":
			item.DateTimeCreated, err = parseTime(child.Value())
		case "HasAttachments":
			item.HasAttachments = parseBool(child.Value())
		case "IsRead":
			item.IsRead = parseBool(child.Value())
		case "From", "Sender":
			if item.From == nil {
				item.From = parseMailbox(child.FirstChildByName("Mailbox"))
			}
		case "MimeContent":
			item.MimeContent, err = decodeBase64(child.Value())
		}
		if err != nil {
			return item, fmt.Errorf("invalid %s in %s: %w", child.Name(), item.Type, err)
		}
	}

	return item, nil
}

// parseItemChange converts the payload of a Create, Update or ReadFlagChange
// element. ReadFlagChange carries only the id and the new read state.
func parseItemChange(p *soap.Parameter) (*Item, error) {
	inner := p.FirstChild()
	if inner.Name() == "ItemId" {
		return &Item{
			Type:   ItemTypeGeneric,
			ID:     parseItemID(inner),
			IsRead: parseBool(p.ChildValue("IsRead")),
		}, nil
	}
	return parseItem(inner)
}

// parseItems appends every item below an <m:Items> element.
func parseItems(items *soap.Parameter, out *[]*Item) error {
	for _, child := range items.Children() {
		item, err := parseItem(child)
		if err != nil {
			return err
		}
		*out = append(*out, item)
	}
	return nil
}

func parseItemID(p *soap.Parameter) ItemID {
	return ItemID{ID: p.Property("Id"), ChangeKey: p.Property("ChangeKey")}
}

func parseBool(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}

// parseTime accepts xs:dateTime values. Values without a zone are UTC.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if len(s) == len("2006-01-02T15:04:05") {
		s += "Z"
	}
	return time.Parse(time.RFC3339, s)
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	return base64.StdEncoding.DecodeString(s)
}
