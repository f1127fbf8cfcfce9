package ews

import (
	"fmt"
	"strings"
	"time"

	"github.com/vaterlangen/evolution-ews/internal/soap"
)

// Mailbox is an EWS mailbox address.
type Mailbox struct {
	Name        string
	Email       string
	RoutingType string
	MailboxType string
	ItemID      *ItemID // set for private distribution lists and contacts
}

// parseMailbox returns nil for a missing element.
func parseMailbox(p *soap.Parameter) *Mailbox {
	if p == nil {
		return nil
	}
	mb := &Mailbox{
		Name:        p.ChildValue("Name"),
		Email:       p.ChildValue("EmailAddress"),
		RoutingType: p.ChildValue("RoutingType"),
		MailboxType: p.ChildValue("MailboxType"),
	}
	if id := p.FirstChildByName("ItemId"); id != nil {
		itemID := parseItemID(id)
		mb.ItemID = &itemID
	}
	if mb.Name == "" && mb.Email == "" && mb.ItemID == nil {
		return nil
	}
	return mb
}

// Contact is the directory or contacts-folder entry attached to a resolution.
type Contact struct {
	DisplayName    string
	GivenName      string
	Initials       string
	Surname        string
	CompanyName    string
	Department     string
	JobTitle       string
	OfficeLocation string
	EmailAddresses map[string]string
	PhoneNumbers   map[string]string
}

func parseContact(p *soap.Parameter) *Contact {
	if p == nil {
		return nil
	}
	c := &Contact{
		DisplayName:    p.ChildValue("DisplayName"),
		GivenName:      p.ChildValue("GivenName"),
		Initials:       p.ChildValue("Initials"),
		Surname:        p.ChildValue("Surname"),
		CompanyName:    p.ChildValue("CompanyName"),
		Department:     p.ChildValue("Department"),
		JobTitle:       p.ChildValue("JobTitle"),
		OfficeLocation: p.ChildValue("OfficeLocation"),
		EmailAddresses: parseKeyedEntries(p.FirstChildByName("EmailAddresses")),
		PhoneNumbers:   parseKeyedEntries(p.FirstChildByName("PhoneNumbers")),
	}
	return c
}

func parseKeyedEntries(p *soap.Parameter) map[string]string {
	entries := p.ChildrenByName("Entry")
	if len(entries) == 0 {
		return nil
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		if v := e.Value(); v != "" {
			out[e.Property("Key")] = v
		}
	}
	return out
}

// PermissionLevel is a delegate's access to one of the owner's folders.
type PermissionLevel string

const (
	PermissionNone     PermissionLevel = "None"
	PermissionReviewer PermissionLevel = "Reviewer"
	PermissionAuthor   PermissionLevel = "Author"
	PermissionEditor   PermissionLevel = "Editor"
	PermissionCustom   PermissionLevel = "Custom"
)

func parsePermissionLevel(s string) PermissionLevel {
	for _, level := range []PermissionLevel{PermissionReviewer, PermissionAuthor, PermissionEditor, PermissionCustom} {
		if strings.EqualFold(s, string(level)) {
			return level
		}
	}
	return PermissionNone
}

// DelegateUser identifies a delegate.
type DelegateUser struct {
	SID                string
	PrimarySMTPAddress string
	DisplayName        string
}

// DelegateInfo describes one delegate of a mailbox.
type DelegateInfo struct {
	User DelegateUser

	Calendar PermissionLevel
	Contacts PermissionLevel
	Inbox    PermissionLevel
	Tasks    PermissionLevel
	Notes    PermissionLevel
	Journal  PermissionLevel

	ReceiveCopiesOfMeetingMessages bool
	ViewPrivateItems               bool
}

func parseDelegate(p *soap.Parameter) (*DelegateInfo, error) {
	node := p.FirstChildByName("DelegateUser")
	if node == nil {
		return nil, fmt.Errorf("missing DelegateUser element")
	}

	user := node.FirstChildByName("UserId")
	perms := node.FirstChildByName("DelegatePermissions")

	return &DelegateInfo{
		User: DelegateUser{
			SID:                user.ChildValue("SID"),
			PrimarySMTPAddress: user.ChildValue("PrimarySmtpAddress"),
			DisplayName:        user.ChildValue("DisplayName"),
		},
		Calendar:                       parsePermissionLevel(perms.ChildValue("CalendarFolderPermissionLevel")),
		Contacts:                       parsePermissionLevel(perms.ChildValue("ContactsFolderPermissionLevel")),
		Inbox:                          parsePermissionLevel(perms.ChildValue("InboxFolderPermissionLevel")),
		Tasks:                          parsePermissionLevel(perms.ChildValue("TasksFolderPermissionLevel")),
		Notes:                          parsePermissionLevel(perms.ChildValue("NotesFolderPermissionLevel")),
		Journal:                        parsePermissionLevel(perms.ChildValue("JournalFolderPermissionLevel")),
		ReceiveCopiesOfMeetingMessages: parseBool(node.ChildValue("ReceiveCopiesOfMeetingMessages")),
		ViewPrivateItems:               parseBool(node.ChildValue("ViewPrivateItems")),
	}, nil
}

// OOF states and audiences.
const (
	OOFStateEnabled   = "Enabled"
	OOFStateDisabled  = "Disabled"
	OOFStateScheduled = "Scheduled"

	OOFAudienceNone  = "None"
	OOFAudienceKnown = "Known"
	OOFAudienceAll   = "All"
)

// OOFSettings is a mailbox's automatic-reply configuration.
type OOFSettings struct {
	State            string
	ExternalAudience string
	Start            time.Time
	End              time.Time
	InternalReply    string
	ExternalReply    string
}

func parseOOFSettings(p *soap.Parameter) (*OOFSettings, error) {
	if p == nil {
		return nil, fmt.Errorf("missing OofSettings element")
	}

	s := &OOFSettings{
		State:            p.ChildValue("OofState"),
		ExternalAudience: p.ChildValue("ExternalAudience"),
		InternalReply:    replyText(p.FirstChildByName("InternalReply").ChildValue("Message")),
		ExternalReply:    replyText(p.FirstChildByName("ExternalReply").ChildValue("Message")),
	}

	// Unparseable durations leave the zero time.
	duration := p.FirstChildByName("Duration")
	s.Start, _ = parseTime(duration.ChildValue("StartTime"))
	s.End, _ = parseTime(duration.ChildValue("EndTime"))

	return s, nil
}

// replyText reduces an HTML reply to the text inside its body.
func replyText(msg string) string {
	if !strings.Contains(msg, "</body>") {
		return msg
	}
	return stripHTML(msg)
}

// stripHTML drops every tag between "<body" and "</body>".
func stripHTML(html string) string {
	start := strings.Index(html, "<body")
	if start < 0 {
		start = 0
	}
	end := strings.LastIndex(html, "</body>")
	if end < start {
		end = len(html)
	}

	var b strings.Builder
	inTag := false
	for _, r := range html[start:end] {
		switch {
		case r == '<':
			inTag = true
		case r == '>' && inTag:
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Free/busy types as used in iCalendar FBTYPE.
const (
	FreeBusyFree            = "FREE"
	FreeBusyBusy            = "BUSY"
	FreeBusyTentative       = "BUSY-TENTATIVE"
	FreeBusyUnavailable     = "BUSY-UNAVAILABLE"
	freeBusyUnknownBusyType = ""
)

// FreeBusyEvent is one busy period of an attendee.
type FreeBusyEvent struct {
	Start    time.Time
	End      time.Time
	BusyType string // raw EWS value, e.g. "Tentative"
	FBType   string // FREE, BUSY, BUSY-TENTATIVE or BUSY-UNAVAILABLE
}

// FreeBusy is the free/busy view of one mailbox.
type FreeBusy struct {
	Events []FreeBusyEvent
}

func fbType(busyType string) string {
	switch busyType {
	case "Busy":
		return FreeBusyBusy
	case "Tentative":
		return FreeBusyTentative
	case "OOF":
		return FreeBusyUnavailable
	case "Free":
		return FreeBusyFree
	}
	return freeBusyUnknownBusyType
}

// parseFreeBusy converts a FreeBusyResponse. A response without a
// FreeBusyView yields an empty view.
func parseFreeBusy(p *soap.Parameter) (*FreeBusy, error) {
	fb := &FreeBusy{}
	view := p.FirstChildByName("FreeBusyView")
	if view == nil {
		return fb, nil
	}

	for _, ev := range view.FirstChildByName("CalendarEventArray").Children() {
		start, err := parseTime(ev.ChildValue("StartTime"))
		if err != nil {
			return fb, fmt.Errorf("invalid StartTime: %w", err)
		}
		end, err := parseTime(ev.ChildValue("EndTime"))
		if err != nil {
			return fb, fmt.Errorf("invalid EndTime: %w", err)
		}
		busy := ev.ChildValue("BusyType")
		fb.Events = append(fb.Events, FreeBusyEvent{
			Start:    start,
			End:      end,
			BusyType: busy,
			FBType:   fbType(busy),
		})
	}
	return fb, nil
}
