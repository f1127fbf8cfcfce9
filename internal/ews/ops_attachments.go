package ews

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/vaterlangen/evolution-ews/internal/soap"
)

// FileAttachment is an attachment to upload or one that was downloaded.
type FileAttachment struct {
	ID          string
	Name        string
	ContentType string
	Content     []byte
}

// fileAttachmentFromPath reads path into a FileAttachment named after its
// base name.
func fileAttachmentFromPath(path string) (FileAttachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileAttachment{}, fmt.Errorf("failed to read attachment: %w", err)
	}
	return FileAttachment{Name: filepath.Base(path), Content: data}, nil
}

// CreateAttachmentsResult holds the new attachment ids and the parent item's
// change key after the last attachment was added.
type CreateAttachmentsResult struct {
	AttachmentIDs []string
	ChangeKey     string
}

// CreateAttachmentsStart adds files to parent.
func (c *Connection) CreateAttachmentsStart(ctx context.Context, priority Priority, parent ItemID, files []FileAttachment) *Pending[CreateAttachmentsResult] {
	msg := c.newMessage("CreateAttachment", "", "")
	tflog.SubsystemTrace(c.ctx, SubsystemCore, "Building request", map[string]any{
		"operation": "CreateAttachment",
		"count":     len(files),
	})

	msg.StartElement("ParentItemId", soap.PrefixMessages)
	msg.AddAttribute("Id", parent.ID)
	if parent.ChangeKey != "" {
		msg.AddAttribute("ChangeKey", parent.ChangeKey)
	}
	msg.EndElement()

	msg.StartElement("Attachments", soap.PrefixMessages)
	for _, f := range files {
		msg.StartElement("FileAttachment", "")
		msg.WriteStringParameter("Name", "", f.Name)
		if f.ContentType != "" {
			msg.WriteStringParameter("ContentType", "", f.ContentType)
		}
		msg.StartElement("Content", "")
		msg.WriteBase64(f.Content)
		msg.EndElement()
		msg.EndElement()
	}
	msg.EndElement()
	msg.WriteFooter()

	return submit(ctx, c, priority, msg, func(p *soap.Parameter, r *CreateAttachmentsResult) error {
		var last *soap.Parameter
		for _, att := range p.FirstChildByName("Attachments").ChildrenByName("FileAttachment") {
			id := att.FirstChildByName("AttachmentId")
			r.AttachmentIDs = append(r.AttachmentIDs, id.Property("Id"))
			last = id
		}
		if last != nil {
			r.ChangeKey = last.Property("RootItemChangeKey")
		}
		return nil
	})
}

// CreateAttachments is the blocking form of CreateAttachmentsStart.
func (c *Connection) CreateAttachments(ctx context.Context, priority Priority, parent ItemID, files []FileAttachment) (CreateAttachmentsResult, error) {
	return c.CreateAttachmentsStart(ctx, priority, parent, files).Finish()
}

// DeleteAttachmentsStart removes ids and returns the parent items' new
// change keys, one per attachment.
func (c *Connection) DeleteAttachmentsStart(ctx context.Context, priority Priority, ids []string) *Pending[[]string] {
	msg := c.newMessage("DeleteAttachment", "", "")
	tflog.SubsystemTrace(c.ctx, SubsystemCore, "Building request", map[string]any{
		"operation": "DeleteAttachment",
		"count":     len(ids),
	})

	msg.StartElement("AttachmentIds", soap.PrefixMessages)
	for _, id := range ids {
		msg.WriteStringParameterWithAttribute("AttachmentId", "", "", "Id", id)
	}
	msg.EndElement()
	msg.WriteFooter()

	return submit(ctx, c, priority, msg, func(p *soap.Parameter, r *[]string) error {
		*r = append(*r, p.FirstChildByName("RootItemId").Property("RootItemChangeKey"))
		return nil
	})
}

// DeleteAttachments is the blocking form of DeleteAttachmentsStart.
func (c *Connection) DeleteAttachments(ctx context.Context, priority Priority, ids []string) ([]string, error) {
	return c.DeleteAttachmentsStart(ctx, priority, ids).Finish()
}

// Attachment is a downloaded attachment: either a file or an embedded item.
type Attachment struct {
	File *FileAttachment
	Item *Item
}

// ID returns the attachment id.
func (a *Attachment) ID() string {
	if a.File != nil {
		return a.File.ID
	}
	if a.Item != nil {
		return a.Item.AttachmentID.ID
	}
	return ""
}

// GetAttachmentsStart downloads ids. Item attachments include their MIME
// content.
func (c *Connection) GetAttachmentsStart(ctx context.Context, priority Priority, ids []string) *Pending[[]*Attachment] {
	msg := c.newMessage("GetAttachment", "", "")
	tflog.SubsystemTrace(c.ctx, SubsystemCore, "Building request", map[string]any{
		"operation": "GetAttachment",
		"count":     len(ids),
	})

	msg.StartElement("AttachmentShape", soap.PrefixMessages)
	msg.WriteStringParameter("IncludeMimeContent", "", "true")
	msg.EndElement()

	msg.StartElement("AttachmentIds", soap.PrefixMessages)
	for _, id := range ids {
		msg.WriteStringParameterWithAttribute("AttachmentId", "", "", "Id", id)
	}
	msg.EndElement()
	msg.WriteFooter()

	return submit(ctx, c, priority, msg, func(p *soap.Parameter, r *[]*Attachment) error {
		for _, child := range p.FirstChildByName("Attachments").Children() {
			switch child.Name() {
			case "FileAttachment":
				f, err := parseFileAttachment(child)
				if err != nil {
					return err
				}
				*r = append(*r, &Attachment{File: f})
			case "ItemAttachment":
				item, err := parseItemAttachment(child)
				if err != nil {
					return err
				}
				*r = append(*r, &Attachment{Item: item})
			}
		}
		return nil
	})
}

// GetAttachments is the blocking form of GetAttachmentsStart.
func (c *Connection) GetAttachments(ctx context.Context, priority Priority, ids []string) ([]*Attachment, error) {
	return c.GetAttachmentsStart(ctx, priority, ids).Finish()
}

func parseFileAttachment(p *soap.Parameter) (*FileAttachment, error) {
	f := &FileAttachment{
		ID:          p.FirstChildByName("AttachmentId").Property("Id"),
		Name:        p.ChildValue("Name"),
		ContentType: p.ChildValue("ContentType"),
	}
	content, err := decodeBase64(p.ChildValue("Content"))
	if err != nil {
		return f, fmt.Errorf("invalid content of attachment %q: %w", f.Name, err)
	}
	f.Content = content
	return f, nil
}

// parseItemAttachment returns the embedded item with AttachmentID set from
// the enclosing ItemAttachment.
func parseItemAttachment(p *soap.Parameter) (*Item, error) {
	attID := parseItemID(p.FirstChildByName("AttachmentId"))

	var inner *soap.Parameter
	for _, child := range p.Children() {
		switch child.Name() {
		case "AttachmentId", "Name", "ContentType", "ContentId", "ContentLocation", "Size", "LastModifiedTime", "IsInline":
			continue
		}
		inner = child
		break
	}
	if inner == nil {
		return nil, fmt.Errorf("item attachment %s has no item", attID.ID)
	}

	item, err := parseItem(inner)
	if item != nil {
		item.AttachmentID = attID
	}
	return item, err
}
