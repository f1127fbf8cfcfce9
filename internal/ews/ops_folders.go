package ews

import (
	"context"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/vaterlangen/evolution-ews/internal/soap"
)

// SyncFolderHierarchyStart requests the folder changes since syncState. An
// empty syncState returns the whole hierarchy.
func (c *Connection) SyncFolderHierarchyStart(ctx context.Context, priority Priority, syncState string) *Pending[SyncFolderHierarchyResult] {
	msg := c.newMessage("SyncFolderHierarchy", "", "")

	msg.StartElement("FolderShape", soap.PrefixMessages)
	msg.WriteStringParameter("BaseShape", "", string(ShapeAllProperties))
	msg.EndElement()

	if syncState != "" {
		msg.WriteStringParameter("SyncState", soap.PrefixMessages, syncState)
	}
	msg.WriteFooter()

	return submit(ctx, c, priority, msg, func(p *soap.Parameter, r *SyncFolderHierarchyResult) error {
		return parseSyncChanges(p, r, "IncludesLastFolderInRange", "FolderId", parseFolderChange)
	})
}

// SyncFolderHierarchy is the blocking form of SyncFolderHierarchyStart.
func (c *Connection) SyncFolderHierarchy(ctx context.Context, priority Priority, syncState string) (SyncFolderHierarchyResult, error) {
	return c.SyncFolderHierarchyStart(ctx, priority, syncState).Finish()
}

// GetFolderStart fetches ids. Distinguished ids are scoped to the
// connection's mailbox.
func (c *Connection) GetFolderStart(ctx context.Context, priority Priority, shape BaseShape, props *AdditionalProps, ids []FolderID) *Pending[[]*Folder] {
	msg := c.newMessage("GetFolder", "", "")
	tflog.SubsystemTrace(c.ctx, SubsystemCore, "Building request", map[string]any{
		"operation": "GetFolder",
		"count":     len(ids),
	})

	msg.StartElement("FolderShape", soap.PrefixMessages)
	msg.WriteStringParameter("BaseShape", "", string(shape))
	props.write(msg)
	msg.EndElement()

	if len(ids) > 0 {
		msg.StartElement("FolderIds", soap.PrefixMessages)
		writeFolderIDs(msg, c.Email(), ids)
		msg.EndElement()
	}
	msg.WriteFooter()

	return submit(ctx, c, priority, msg, func(p *soap.Parameter, r *[]*Folder) error {
		for _, child := range p.FirstChildByName("Folders").Children() {
			f, err := parseFolder(child)
			if err != nil {
				return err
			}
			*r = append(*r, f)
		}
		return nil
	})
}

// GetFolder is the blocking form of GetFolderStart.
func (c *Connection) GetFolder(ctx context.Context, priority Priority, shape BaseShape, props *AdditionalProps, ids []FolderID) ([]*Folder, error) {
	return c.GetFolderStart(ctx, priority, shape, props, ids).Finish()
}

// CreateFolderStart creates a folder named name below parent. A zero parent
// means msgfolderroot. folderClass, e.g. "IPF.Note", may be empty.
func (c *Connection) CreateFolderStart(ctx context.Context, priority Priority, parent FolderID, name, folderClass string) *Pending[ItemID] {
	if parent.ID == "" {
		parent = DistinguishedFolder(FolderMsgFolderRoot)
	}

	msg := c.newMessage("CreateFolder", "", "")

	msg.StartElement("ParentFolderId", soap.PrefixMessages)
	writeFolderID(msg, c.Email(), parent)
	msg.EndElement()

	msg.StartElement("Folders", soap.PrefixMessages)
	msg.StartElement("Folder", "")
	if folderClass != "" {
		msg.WriteStringParameter("FolderClass", "", folderClass)
	}
	msg.WriteStringParameter("DisplayName", "", name)
	msg.EndElement()
	msg.EndElement()
	msg.WriteFooter()

	return submit(ctx, c, priority, msg, func(p *soap.Parameter, r *ItemID) error {
		folder := p.FirstChildByName("Folders").FirstChild()
		*r = parseItemID(folder.FirstChildByName("FolderId"))
		return nil
	})
}

// CreateFolder is the blocking form of CreateFolderStart.
func (c *Connection) CreateFolder(ctx context.Context, priority Priority, parent FolderID, name, folderClass string) (ItemID, error) {
	return c.CreateFolderStart(ctx, priority, parent, name, folderClass).Finish()
}

// UpdateFolderStart applies the <t:FolderChange> elements written by changes.
func (c *Connection) UpdateFolderStart(ctx context.Context, priority Priority, changes RequestWriter) *Pending[struct{}] {
	msg := c.newMessage("UpdateFolder", "", "")

	msg.StartElement("FolderChanges", soap.PrefixMessages)
	if changes != nil {
		changes(msg)
	}
	msg.EndElement()
	msg.WriteFooter()

	return submit[struct{}](ctx, c, priority, msg, nil)
}

// UpdateFolder is the blocking form of UpdateFolderStart.
func (c *Connection) UpdateFolder(ctx context.Context, priority Priority, changes RequestWriter) error {
	_, err := c.UpdateFolderStart(ctx, priority, changes).Finish()
	return err
}

// SetFolderDisplayName returns a FolderChange renaming id to name.
func SetFolderDisplayName(id FolderID, name string) RequestWriter {
	return func(msg *soap.Message) {
		msg.StartElement("FolderChange", "")
		writeFolderID(msg, "", id)
		msg.StartElement("Updates", "")
		msg.StartElement("SetFolderField", "")
		msg.WriteStringParameterWithAttribute("FieldURI", "", "", "FieldURI", "folder:DisplayName")
		msg.StartElement("Folder", "")
		msg.WriteStringParameter("DisplayName", "", name)
		msg.EndElement()
		msg.EndElement()
		msg.EndElement()
		msg.EndElement()
	}
}

// MoveFolderStart moves folder below toFolder, or below msgfolderroot when
// toFolder is empty.
func (c *Connection) MoveFolderStart(ctx context.Context, priority Priority, toFolder, folder string) *Pending[struct{}] {
	msg := c.newMessage("MoveFolder", "", "")

	msg.StartElement("ToFolderId", soap.PrefixMessages)
	if toFolder != "" {
		msg.WriteStringParameterWithAttribute("FolderId", "", "", "Id", toFolder)
	} else {
		msg.WriteStringParameterWithAttribute("DistinguishedFolderId", "", "", "Id", FolderMsgFolderRoot)
	}
	msg.EndElement()

	msg.StartElement("FolderIds", soap.PrefixMessages)
	msg.WriteStringParameterWithAttribute("FolderId", "", "", "Id", folder)
	msg.EndElement()
	msg.WriteFooter()

	return submit[struct{}](ctx, c, priority, msg, nil)
}

// MoveFolder is the blocking form of MoveFolderStart.
func (c *Connection) MoveFolder(ctx context.Context, priority Priority, toFolder, folder string) error {
	_, err := c.MoveFolderStart(ctx, priority, toFolder, folder).Finish()
	return err
}

// DeleteFolderStart deletes id. deleteType defaults to HardDelete.
func (c *Connection) DeleteFolderStart(ctx context.Context, priority Priority, id FolderID, deleteType string) *Pending[struct{}] {
	if deleteType == "" {
		deleteType = HardDelete
	}
	msg := c.newMessage("DeleteFolder", "DeleteType", deleteType)

	msg.StartElement("FolderIds", soap.PrefixMessages)
	writeFolderID(msg, c.Email(), id)
	msg.EndElement()
	msg.WriteFooter()

	return submit[struct{}](ctx, c, priority, msg, nil)
}

// DeleteFolder is the blocking form of DeleteFolderStart.
func (c *Connection) DeleteFolder(ctx context.Context, priority Priority, id FolderID, deleteType string) error {
	_, err := c.DeleteFolderStart(ctx, priority, id, deleteType).Finish()
	return err
}
