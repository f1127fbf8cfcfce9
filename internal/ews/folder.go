package ews

import (
	"fmt"
	"strconv"

	"github.com/vaterlangen/evolution-ews/internal/soap"
)

// FolderType is the local name of the element a folder was returned in.
type FolderType string

const (
	FolderTypeMail     FolderType = "Folder"
	FolderTypeCalendar FolderType = "CalendarFolder"
	FolderTypeContacts FolderType = "ContactsFolder"
	FolderTypeSearch   FolderType = "SearchFolder"
	FolderTypeTasks    FolderType = "TasksFolder"
)

// Well-known distinguished folder ids.
const (
	FolderMsgFolderRoot = "msgfolderroot"
	FolderInbox         = "inbox"
	FolderCalendar      = "calendar"
	FolderContacts      = "contacts"
	FolderDeletedItems  = "deleteditems"
	FolderDrafts        = "drafts"
	FolderSentItems     = "sentitems"
	FolderTasks         = "tasks"
)

// FolderID names a folder either by server id or by distinguished name.
type FolderID struct {
	ID            string
	ChangeKey     string
	Distinguished bool
}

// DistinguishedFolder returns the id of a well-known folder such as "inbox".
func DistinguishedFolder(name string) FolderID {
	return FolderID{ID: name, Distinguished: true}
}

// Folder is the subset of an EWS folder this package understands.
type Folder struct {
	Type             FolderType
	ID               ItemID
	ParentFolderID   ItemID
	DisplayName      string
	FolderClass      string
	TotalCount       int
	UnreadCount      int
	ChildFolderCount int
}

func parseFolder(p *soap.Parameter) (*Folder, error) {
	if p == nil {
		return nil, fmt.Errorf("missing folder element")
	}

	f := &Folder{Type: FolderType(p.Name())}
	for _, child := range p.Children() {
		var err error
		switch child.Name() {
		case "FolderId":
			f.ID = parseItemID(child)
		case "ParentFolderId":
			f.ParentFolderID = parseItemID(child)
		case "DisplayName":
			f.DisplayName = child.Value()
		case "FolderClass":
			f.FolderClass = child.Value()
		case "TotalCount":
			f.TotalCount, err = strconv.Atoi(child.Value())
		case "UnreadCount":
			f.UnreadCount, err = strconv.Atoi(child.Value())
		case "ChildFolderCount":
			f.ChildFolderCount, err = strconv.Atoi(child.Value())
		}
		if err != nil {
			return f, fmt.Errorf("invalid %s in %s: %w", child.Name(), f.Type, err)
		}
	}
	return f, nil
}

// parseFolderChange converts the payload of a Create or Update element.
func parseFolderChange(p *soap.Parameter) (*Folder, error) {
	return parseFolder(p.FirstChild())
}

// writeFolderIDs writes each id as FolderId or DistinguishedFolderId.
// Distinguished ids carry a Mailbox element when email is known so that
// delegated mailboxes resolve correctly.
func writeFolderIDs(msg *soap.Message, email string, ids []FolderID) {
	for _, id := range ids {
		writeFolderID(msg, email, id)
	}
}

func writeFolderID(msg *soap.Message, email string, id FolderID) {
	if id.Distinguished {
		msg.StartElement("DistinguishedFolderId", "")
	} else {
		msg.StartElement("FolderId", "")
	}
	msg.AddAttribute("Id", id.ID)
	if id.ChangeKey != "" {
		msg.AddAttribute("ChangeKey", id.ChangeKey)
	}
	if id.Distinguished && email != "" {
		msg.StartElement("Mailbox", "")
		msg.WriteStringParameter("EmailAddress", "", email)
		msg.EndElement()
	}
	msg.EndElement()
}
