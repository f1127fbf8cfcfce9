package ews

import (
	"context"
	"strconv"

	"github.com/vaterlangen/evolution-ews/internal/soap"
)

// SearchScope selects where ResolveNames looks.
type SearchScope int

const (
	SearchActiveDirectory SearchScope = iota
	SearchActiveDirectoryContacts
	SearchContacts
	SearchContactsActiveDirectory
)

func (s SearchScope) String() string {
	switch s {
	case SearchActiveDirectory:
		return "ActiveDirectory"
	case SearchActiveDirectoryContacts:
		return "ActiveDirectoryContacts"
	case SearchContacts:
		return "Contacts"
	case SearchContactsActiveDirectory:
		return "ContactsActiveDirectory"
	}
	return "ActiveDirectory"
}

// ResolveNamesResult pairs each resolved mailbox with its contact data.
// Contacts[i] belongs to Mailboxes[i] and is nil when none was returned.
type ResolveNamesResult struct {
	Mailboxes        []*Mailbox
	Contacts         []*Contact
	IncludesLastItem bool
}

// ResolveNamesStart resolves name against scope. parentFolders restricts
// contact-folder lookups.
func (c *Connection) ResolveNamesStart(ctx context.Context, priority Priority, name string, scope SearchScope, parentFolders []FolderID, fetchContactData bool) *Pending[ResolveNamesResult] {
	msg := c.newMessage("ResolveNames", "SearchScope", scope.String())
	msg.AddAttribute("ReturnFullContactData", strconv.FormatBool(fetchContactData))

	if len(parentFolders) > 0 {
		msg.StartElement("ParentFolderIds", soap.PrefixMessages)
		writeFolderIDs(msg, c.Email(), parentFolders)
		msg.EndElement()
	}
	msg.WriteStringParameter("UnresolvedEntry", soap.PrefixMessages, name)
	msg.WriteFooter()

	return submit(ctx, c, priority, msg, func(p *soap.Parameter, r *ResolveNamesResult) error {
		set := p.FirstChildByName("ResolutionSet")
		r.IncludesLastItem = parseBool(set.Property("IncludesLastItemInRange"))

		for _, res := range set.ChildrenByName("Resolution") {
			mb := parseMailbox(res.FirstChildByName("Mailbox"))
			if mb == nil {
				continue
			}
			r.Mailboxes = append(r.Mailboxes, mb)
			r.Contacts = append(r.Contacts, parseContact(res.FirstChildByName("Contact")))
		}
		return nil
	})
}

// ResolveNames is the blocking form of ResolveNamesStart.
func (c *Connection) ResolveNames(ctx context.Context, priority Priority, name string, scope SearchScope, parentFolders []FolderID, fetchContactData bool) (ResolveNamesResult, error) {
	return c.ResolveNamesStart(ctx, priority, name, scope, parentFolders, fetchContactData).Finish()
}

// ExpandDLResult lists the members of a distribution list. Nested lists are
// not expanded.
type ExpandDLResult struct {
	Mailboxes        []*Mailbox
	IncludesLastItem bool
}

// ExpandDLStart expands mb, identified by ItemID when set and by Email
// otherwise.
func (c *Connection) ExpandDLStart(ctx context.Context, priority Priority, mb Mailbox) *Pending[ExpandDLResult] {
	msg := c.newMessage("ExpandDL", "", "")

	msg.StartElement("Mailbox", soap.PrefixMessages)
	switch {
	case mb.ItemID != nil:
		msg.StartElement("ItemId", "")
		msg.AddAttribute("Id", mb.ItemID.ID)
		if mb.ItemID.ChangeKey != "" {
			msg.AddAttribute("ChangeKey", mb.ItemID.ChangeKey)
		}
		msg.EndElement()
	case mb.Email != "":
		msg.WriteStringParameter("EmailAddress", "", mb.Email)
	}
	msg.EndElement()
	msg.WriteFooter()

	return submit(ctx, c, priority, msg, func(p *soap.Parameter, r *ExpandDLResult) error {
		dl := p.FirstChildByName("DLExpansion")
		r.IncludesLastItem = parseBool(dl.Property("IncludesLastItemInRange"))
		for _, child := range dl.ChildrenByName("Mailbox") {
			if m := parseMailbox(child); m != nil {
				r.Mailboxes = append(r.Mailboxes, m)
			}
		}
		return nil
	})
}

// ExpandDL is the blocking form of ExpandDLStart.
func (c *Connection) ExpandDL(ctx context.Context, priority Priority, mb Mailbox) (ExpandDLResult, error) {
	return c.ExpandDLStart(ctx, priority, mb).Finish()
}

// GetDelegateStart lists the delegates of mailbox, or of the connection's
// mailbox when mailbox is empty.
func (c *Connection) GetDelegateStart(ctx context.Context, priority Priority, mailbox string, includePermissions bool) *Pending[[]*DelegateInfo] {
	if mailbox == "" {
		mailbox = c.Email()
	}
	if mailbox == "" {
		return failed[[]*DelegateInfo]("GetDelegate", newError("GetDelegate", KindMissingEmailAddress, "no mailbox address known"))
	}

	msg := c.newMessage("GetDelegate", "IncludePermissions", strconv.FormatBool(includePermissions))

	msg.StartElement("Mailbox", soap.PrefixMessages)
	msg.WriteStringParameter("EmailAddress", "", mailbox)
	msg.EndElement()
	msg.WriteFooter()

	return submit(ctx, c, priority, msg, func(p *soap.Parameter, r *[]*DelegateInfo) error {
		d, err := parseDelegate(p)
		if err != nil {
			return err
		}
		*r = append(*r, d)
		return nil
	})
}

// GetDelegate is the blocking form of GetDelegateStart.
func (c *Connection) GetDelegate(ctx context.Context, priority Priority, mailbox string, includePermissions bool) ([]*DelegateInfo, error) {
	return c.GetDelegateStart(ctx, priority, mailbox, includePermissions).Finish()
}
