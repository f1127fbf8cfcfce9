package ews

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/vaterlangen/evolution-ews/internal/soap"
)

// SyncResult is the outcome of a SyncFolderItems or SyncFolderHierarchy call.
// ReadFlagChange entries are reported in Updated.
type SyncResult[T any] struct {
	SyncState    string
	IncludesLast bool
	Created      []*T
	Updated      []*T
	Deleted      []string
}

type (
	SyncFolderItemsResult     = SyncResult[Item]
	SyncFolderHierarchyResult = SyncResult[Folder]
)

// parseSyncChanges fills r from a Sync*ResponseMessage. lastTag names the
// IncludesLast* element and deleteTag the id element inside Delete.
func parseSyncChanges[T any](p *soap.Parameter, r *SyncResult[T], lastTag, deleteTag string, conv func(*soap.Parameter) (*T, error)) error {
	r.SyncState = p.ChildValue("SyncState")
	r.IncludesLast = parseBool(p.ChildValue(lastTag))

	changes := p.FirstChildByName("Changes")
	for _, change := range changes.Children() {
		switch change.Name() {
		case "Create":
			v, err := conv(change)
			if err != nil {
				return err
			}
			r.Created = append(r.Created, v)
		case "Update", "ReadFlagChange":
			v, err := conv(change)
			if err != nil {
				return err
			}
			r.Updated = append(r.Updated, v)
		case "Delete":
			r.Deleted = append(r.Deleted, change.FirstChildByName(deleteTag).Property("Id"))
		}
	}
	return nil
}

// SyncFolderItemsStart requests up to maxEntries changes to the items of
// folderID since syncState. An empty syncState starts a full sync.
// additional is a space-separated list of field URIs.
func (c *Connection) SyncFolderItemsStart(ctx context.Context, priority Priority, syncState, folderID string, shape BaseShape, additional string, maxEntries int) *Pending[SyncFolderItemsResult] {
	msg := c.newMessage("SyncFolderItems", "", "")

	msg.StartElement("ItemShape", soap.PrefixMessages)
	msg.WriteStringParameter("BaseShape", "", string(shape))
	if props := FieldURIs(additional); props != nil {
		msg.StartElement("AdditionalProperties", "")
		for _, uri := range props.FieldURIs {
			msg.WriteStringParameterWithAttribute("FieldURI", "", "", "FieldURI", uri)
		}
		msg.EndElement()
	}
	msg.EndElement()

	msg.StartElement("SyncFolderId", soap.PrefixMessages)
	msg.WriteStringParameterWithAttribute("FolderId", "", "", "Id", folderID)
	msg.EndElement()

	if syncState != "" {
		msg.WriteStringParameter("SyncState", soap.PrefixMessages, syncState)
	}
	msg.WriteStringParameter("MaxChangesReturned", soap.PrefixMessages, strconv.Itoa(maxEntries))
	msg.WriteFooter()

	return submit(ctx, c, priority, msg, func(p *soap.Parameter, r *SyncFolderItemsResult) error {
		return parseSyncChanges(p, r, "IncludesLastItemInRange", "ItemId", parseItemChange)
	})
}

// SyncFolderItems is the blocking form of SyncFolderItemsStart.
func (c *Connection) SyncFolderItems(ctx context.Context, priority Priority, syncState, folderID string, shape BaseShape, additional string, maxEntries int) (SyncFolderItemsResult, error) {
	return c.SyncFolderItemsStart(ctx, priority, syncState, folderID, shape, additional, maxEntries).Finish()
}

// FindItemResult is one page of FindItem results.
type FindItemResult struct {
	Items            []*Item
	TotalItemsInView int
	IncludesLastItem bool
}

// FindItemStart searches folder shallowly. restriction, when non-nil,
// writes the <m:Restriction> element.
func (c *Connection) FindItemStart(ctx context.Context, priority Priority, folder FolderID, shape BaseShape, props *AdditionalProps, sort *SortOrder, restriction RequestWriter) *Pending[FindItemResult] {
	msg := c.newMessage("FindItem", "Traversal", "Shallow")

	msg.StartElement("ItemShape", soap.PrefixMessages)
	msg.WriteStringParameter("BaseShape", "", string(shape))
	props.write(msg)
	msg.EndElement()

	if restriction != nil {
		restriction(msg)
	}
	sort.write(msg)

	msg.StartElement("ParentFolderIds", soap.PrefixMessages)
	writeFolderID(msg, "", folder)
	msg.EndElement()
	msg.WriteFooter()

	return submit(ctx, c, priority, msg, func(p *soap.Parameter, r *FindItemResult) error {
		root := p.FirstChildByName("RootFolder")
		if total := root.Property("TotalItemsInView"); total != "" {
			n, err := strconv.Atoi(total)
			if err != nil {
				return fmt.Errorf("invalid TotalItemsInView: %w", err)
			}
			r.TotalItemsInView = n
		}
		r.IncludesLastItem = parseBool(root.Property("IncludesLastItemInRange"))
		return parseItems(root.FirstChildByName("Items"), &r.Items)
	})
}

// FindItem is the blocking form of FindItemStart.
func (c *Connection) FindItem(ctx context.Context, priority Priority, folder FolderID, shape BaseShape, props *AdditionalProps, sort *SortOrder, restriction RequestWriter) (FindItemResult, error) {
	return c.FindItemStart(ctx, priority, folder, shape, props, sort, restriction).Finish()
}

// collectItems is the parser shared by operations answering with <m:Items>.
func collectItems(p *soap.Parameter, r *[]*Item) error {
	return parseItems(p.FirstChildByName("Items"), r)
}

// GetItemStart fetches ids. additional is a space-separated list of field
// URIs; "mapi:int:0x…" entries request integer MAPI properties.
func (c *Connection) GetItemStart(ctx context.Context, priority Priority, ids []string, shape BaseShape, additional string, includeMime bool) *Pending[[]*Item] {
	if len(ids) == 0 {
		return failed[[]*Item]("GetItem", newError("GetItem", KindInvalidIdEmpty, "no item ids given"))
	}

	msg := c.newMessage("GetItem", "", "")
	tflog.SubsystemTrace(c.ctx, SubsystemCore, "Building request", map[string]any{
		"operation":    "GetItem",
		"count":        len(ids),
		"include_mime": includeMime,
	})

	msg.StartElement("ItemShape", soap.PrefixMessages)
	msg.WriteStringParameter("BaseShape", "", string(shape))
	msg.WriteStringParameter("IncludeMimeContent", "", strconv.FormatBool(includeMime))
	FieldURIs(additional).write(msg)
	msg.EndElement()

	msg.StartElement("ItemIds", soap.PrefixMessages)
	for _, id := range ids {
		msg.WriteStringParameterWithAttribute("ItemId", "", "", "Id", id)
	}
	msg.EndElement()
	msg.WriteFooter()

	return submit(ctx, c, priority, msg, collectItems)
}

// GetItem is the blocking form of GetItemStart.
func (c *Connection) GetItem(ctx context.Context, priority Priority, ids []string, shape BaseShape, additional string, includeMime bool) ([]*Item, error) {
	return c.GetItemStart(ctx, priority, ids, shape, additional, includeMime).Finish()
}

// CreateItemOptions are the optional attributes of CreateItem.
type CreateItemOptions struct {
	MessageDisposition     string // SaveOnly, SendOnly or SendAndSaveCopy
	SendMeetingInvitations string // SendToNone, SendOnlyToAll or SendToAllAndSaveCopy
	SavedItemFolderID      string
}

// CreateItemStart creates the items written by items inside <m:Items>.
func (c *Connection) CreateItemStart(ctx context.Context, priority Priority, opts CreateItemOptions, items RequestWriter) *Pending[[]*Item] {
	msg := c.newMessage("CreateItem", "", "")
	if opts.MessageDisposition != "" {
		msg.AddAttribute("MessageDisposition", opts.MessageDisposition)
	}
	if opts.SendMeetingInvitations != "" {
		msg.AddAttribute("SendMeetingInvitations", opts.SendMeetingInvitations)
	}
	writeSavedItemFolder(msg, opts.SavedItemFolderID)

	msg.StartElement("Items", soap.PrefixMessages)
	if items != nil {
		items(msg)
	}
	msg.EndElement()
	msg.WriteFooter()

	return submit(ctx, c, priority, msg, collectItems)
}

// CreateItem is the blocking form of CreateItemStart.
func (c *Connection) CreateItem(ctx context.Context, priority Priority, opts CreateItemOptions, items RequestWriter) ([]*Item, error) {
	return c.CreateItemStart(ctx, priority, opts, items).Finish()
}

// UpdateItemOptions are the optional attributes of UpdateItem.
type UpdateItemOptions struct {
	ConflictResolution                    string // NeverOverwrite, AutoResolve or AlwaysOverwrite
	MessageDisposition                    string
	SendMeetingInvitationsOrCancellations string
	SavedItemFolderID                     string
}

// UpdateItemStart applies the <t:ItemChange> elements written by changes.
func (c *Connection) UpdateItemStart(ctx context.Context, priority Priority, opts UpdateItemOptions, changes RequestWriter) *Pending[[]*Item] {
	msg := c.newMessage("UpdateItem", "", "")
	if opts.ConflictResolution != "" {
		msg.AddAttribute("ConflictResolution", opts.ConflictResolution)
	}
	if opts.MessageDisposition != "" {
		msg.AddAttribute("MessageDisposition", opts.MessageDisposition)
	}
	if opts.SendMeetingInvitationsOrCancellations != "" {
		msg.AddAttribute("SendMeetingInvitationsOrCancellations", opts.SendMeetingInvitationsOrCancellations)
	}
	writeSavedItemFolder(msg, opts.SavedItemFolderID)

	msg.StartElement("ItemChanges", soap.PrefixMessages)
	if changes != nil {
		changes(msg)
	}
	msg.EndElement()
	msg.WriteFooter()

	return submit(ctx, c, priority, msg, collectItems)
}

// UpdateItem is the blocking form of UpdateItemStart.
func (c *Connection) UpdateItem(ctx context.Context, priority Priority, opts UpdateItemOptions, changes RequestWriter) ([]*Item, error) {
	return c.UpdateItemStart(ctx, priority, opts, changes).Finish()
}

func writeSavedItemFolder(msg *soap.Message, folderID string) {
	if folderID == "" {
		return
	}
	msg.StartElement("SavedItemFolderId", soap.PrefixMessages)
	msg.WriteStringParameterWithAttribute("FolderId", "", "", "Id", folderID)
	msg.EndElement()
}

// Delete types.
const (
	HardDelete         = "HardDelete"
	SoftDelete         = "SoftDelete"
	MoveToDeletedItems = "MoveToDeletedItems"
)

// DeleteItemOptions are the attributes of DeleteItem. DeleteType defaults
// to HardDelete.
type DeleteItemOptions struct {
	DeleteType               string
	SendMeetingCancellations string // SendToNone, SendOnlyToAll or SendToAllAndSaveCopy
	AffectedTaskOccurrences  string // AllOccurrences or SpecifiedOccurrenceOnly
}

func (c *Connection) newDeleteItemMessage(opts DeleteItemOptions) *soap.Message {
	deleteType := opts.DeleteType
	if deleteType == "" {
		deleteType = HardDelete
	}
	msg := c.newMessage("DeleteItem", "DeleteType", deleteType)
	if opts.SendMeetingCancellations != "" {
		msg.AddAttribute("SendMeetingCancellations", opts.SendMeetingCancellations)
	}
	if opts.AffectedTaskOccurrences != "" {
		msg.AddAttribute("AffectedTaskOccurrences", opts.AffectedTaskOccurrences)
	}
	return msg
}

// DeleteItemsStart deletes ids.
func (c *Connection) DeleteItemsStart(ctx context.Context, priority Priority, ids []ItemID, opts DeleteItemOptions) *Pending[struct{}] {
	msg := c.newDeleteItemMessage(opts)
	tflog.SubsystemTrace(c.ctx, SubsystemCore, "Building request", map[string]any{
		"operation": "DeleteItem",
		"count":     len(ids),
	})

	msg.StartElement("ItemIds", soap.PrefixMessages)
	for _, id := range ids {
		msg.StartElement("ItemId", "")
		msg.AddAttribute("Id", id.ID)
		if id.ChangeKey != "" {
			msg.AddAttribute("ChangeKey", id.ChangeKey)
		}
		msg.EndElement()
	}
	msg.EndElement()
	msg.WriteFooter()

	return submit[struct{}](ctx, c, priority, msg, nil)
}

// DeleteItems is the blocking form of DeleteItemsStart.
func (c *Connection) DeleteItems(ctx context.Context, priority Priority, ids []ItemID, opts DeleteItemOptions) error {
	_, err := c.DeleteItemsStart(ctx, priority, ids, opts).Finish()
	return err
}

// DeleteItemStart deletes one item. A positive index deletes only that
// occurrence of the recurring master id.
func (c *Connection) DeleteItemStart(ctx context.Context, priority Priority, id ItemID, index int, opts DeleteItemOptions) *Pending[struct{}] {
	if index <= 0 {
		return c.DeleteItemsStart(ctx, priority, []ItemID{id}, opts)
	}

	msg := c.newDeleteItemMessage(opts)

	msg.StartElement("ItemIds", soap.PrefixMessages)
	msg.StartElement("OccurrenceItemId", "")
	msg.AddAttribute("RecurringMasterId", id.ID)
	if id.ChangeKey != "" {
		msg.AddAttribute("ChangeKey", id.ChangeKey)
	}
	msg.AddAttribute("InstanceIndex", strconv.Itoa(index))
	msg.EndElement()
	msg.EndElement()
	msg.WriteFooter()

	return submit[struct{}](ctx, c, priority, msg, nil)
}

// DeleteItem is the blocking form of DeleteItemStart.
func (c *Connection) DeleteItem(ctx context.Context, priority Priority, id ItemID, index int, opts DeleteItemOptions) error {
	_, err := c.DeleteItemStart(ctx, priority, id, index, opts).Finish()
	return err
}

func (c *Connection) moveItemsStart(ctx context.Context, priority Priority, operation, toFolder string, ids []string) *Pending[[]*Item] {
	msg := c.newMessage(operation, "", "")
	tflog.SubsystemTrace(c.ctx, SubsystemCore, "Building request", map[string]any{
		"operation": operation,
		"count":     len(ids),
		"to_folder": toFolder,
	})

	msg.StartElement("ToFolderId", soap.PrefixMessages)
	msg.StartElement("FolderId", "")
	msg.AddAttribute("Id", toFolder)
	msg.EndElement()
	msg.EndElement()

	msg.StartElement("ItemIds", soap.PrefixMessages)
	for _, id := range ids {
		msg.WriteStringParameterWithAttribute("ItemId", "", "", "Id", id)
	}
	msg.EndElement()
	msg.WriteFooter()

	return submit(ctx, c, priority, msg, collectItems)
}

// MoveItemStart moves ids into toFolder and returns the moved items.
func (c *Connection) MoveItemStart(ctx context.Context, priority Priority, toFolder string, ids []string) *Pending[[]*Item] {
	return c.moveItemsStart(ctx, priority, "MoveItem", toFolder, ids)
}

// MoveItem is the blocking form of MoveItemStart.
func (c *Connection) MoveItem(ctx context.Context, priority Priority, toFolder string, ids []string) ([]*Item, error) {
	return c.MoveItemStart(ctx, priority, toFolder, ids).Finish()
}

// CopyItemStart copies ids into toFolder and returns the copies.
func (c *Connection) CopyItemStart(ctx context.Context, priority Priority, toFolder string, ids []string) *Pending[[]*Item] {
	return c.moveItemsStart(ctx, priority, "CopyItem", toFolder, ids)
}

// CopyItem is the blocking form of CopyItemStart.
func (c *Connection) CopyItem(ctx context.Context, priority Priority, toFolder string, ids []string) ([]*Item, error) {
	return c.CopyItemStart(ctx, priority, toFolder, ids).Finish()
}
