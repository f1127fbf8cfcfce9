package provider

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hashicorp/terraform-plugin-testing/helper/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaterlangen/evolution-ews/internal/ews"
)

func TestSyncAllFolders(t *testing.T) {
	fake := newFakeEWS(t,
		syncPage("s1", false,
			`<t:Create>`+folderXML("inbox", "root", "Inbox", "IPF.Note")+`</t:Create>`,
			`<t:Create>`+folderXML("tmp", "root", "Temp", "IPF.Note")+`</t:Create>`,
			`<t:Create>`+folderXML("cal", "root", "Calendar", "IPF.Appointment")+`</t:Create>`,
		),
		syncPage("s2", true,
			`<t:Update>`+folderXML("inbox", "root", "Inbox (renamed)", "IPF.Note")+`</t:Update>`,
			`<t:Delete><t:FolderId Id="tmp"/></t:Delete>`,
			`<t:Create>`+folderXML("proj", "inbox", "Projects", "IPF.Note")+`</t:Create>`,
		),
	)
	conn := fake.connect(t)

	folders, state, err := syncAllFolders(context.Background(), conn)
	require.NoError(t, err)

	assert.Equal(t, "s2", state)
	require.Len(t, fake.recorded(), 2, "paging stops once the last page is seen")
	assert.NotContains(t, fake.recorded()[0], "SyncState", "first page starts from scratch")
	assert.Contains(t, fake.recorded()[1], ">s1<", "second page continues from the first state")

	var names []string
	for _, f := range folders {
		names = append(names, f.DisplayName)
	}
	assert.Equal(t, []string{"Calendar", "Inbox (renamed)", "Projects"}, names)
	assert.Equal(t, "inbox", folders[2].ParentFolderID.ID)
}

func TestSyncAllFolders_Error(t *testing.T) {
	shortSyncRetryDelay(t)

	fake := newFakeEWS(t) // every request fails
	conn := fake.connect(t)

	_, _, err := syncAllFolders(context.Background(), conn)
	require.Error(t, err)
}

func shortSyncRetryDelay(t *testing.T) {
	t.Helper()
	delay := syncRetryDelay
	syncRetryDelay = time.Millisecond
	t.Cleanup(func() { syncRetryDelay = delay })
}

func TestSyncAllFolders_RetriesServerBusy(t *testing.T) {
	shortSyncRetryDelay(t)

	fake := newFakeEWS(t,
		fakeError("SyncFolderHierarchy", "ErrorServerBusy", "The server cannot service this request right now."),
		syncPage("s1", true, `<t:Create>`+folderXML("inbox", "root", "Inbox", "IPF.Note")+`</t:Create>`),
	)
	conn := fake.connect(t)

	folders, state, err := syncAllFolders(context.Background(), conn)
	require.NoError(t, err)

	assert.Equal(t, "s1", state)
	require.Len(t, fake.recorded(), 2)
	assert.Equal(t, fake.recorded()[0], fake.recorded()[1], "the busy page is resubmitted unchanged")
	require.Len(t, folders, 1)
	assert.Equal(t, "Inbox", folders[0].DisplayName)
}

func TestSyncAllFolders_GivesUpWhenBusy(t *testing.T) {
	shortSyncRetryDelay(t)

	busy := fakeError("SyncFolderHierarchy", "ErrorServerBusy", "busy")
	fake := newFakeEWS(t, busy, busy, busy, busy, busy)
	conn := fake.connect(t)

	_, _, err := syncAllFolders(context.Background(), conn)
	require.Error(t, err)
	assert.Equal(t, ews.KindServerBusy, ews.GetErrorKind(err))
	assert.Len(t, fake.recorded(), maxSyncRetries+1)
}

func TestSyncAllFolders_NoRetryOnPermanentError(t *testing.T) {
	fake := newFakeEWS(t,
		fakeError("SyncFolderHierarchy", "ErrorAccessDenied", "denied"),
		syncPage("s1", true),
	)
	conn := fake.connect(t)

	_, _, err := syncAllFolders(context.Background(), conn)
	require.Error(t, err)
	assert.Len(t, fake.recorded(), 1)
}

func TestFilterFolders(t *testing.T) {
	folders := []*ews.Folder{
		{ID: ews.ItemID{ID: "a"}, ParentFolderID: ews.ItemID{ID: "root"}, FolderClass: "IPF.Note"},
		{ID: ews.ItemID{ID: "b"}, ParentFolderID: ews.ItemID{ID: "a"}, FolderClass: "IPF.Note.OutlookHomepage"},
		{ID: ews.ItemID{ID: "c"}, ParentFolderID: ews.ItemID{ID: "root"}, FolderClass: "IPF.Appointment"},
		{ID: ews.ItemID{ID: "d"}, ParentFolderID: ews.ItemID{ID: "a"}, FolderClass: "IPF.Notes"},
	}

	ids := func(fs []*ews.Folder) []string {
		var out []string
		for _, f := range fs {
			out = append(out, f.ID.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		class  string
		parent string
		want   []string
	}{
		{name: "no filter", want: []string{"a", "b", "c", "d"}},
		{name: "class prefix", class: "IPF.Note", want: []string{"a", "b"}},
		{name: "exact class", class: "IPF.Notes", want: []string{"d"}},
		{name: "parent", parent: "a", want: []string{"b", "d"}},
		{name: "class and parent", class: "IPF.Note", parent: "a", want: []string{"b"}},
		{name: "no match", class: "IPF.Task", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(filterFolders(folders, tt.class, tt.parent)))
		})
	}
	assert.Len(t, folders, 4, "filtering must not modify the input")
}

func TestAccFoldersDataSource_paths(t *testing.T) {
	name := GenerateTestName(TestFolderPrefix)

	resource.Test(t, resource.TestCase{
		PreCheck:                 func() { testAccPreCheck(t) },
		ProtoV6ProviderFactories: testAccProtoV6ProviderFactories,
		CheckDestroy:             TestCheckFolderDestroy,
		Steps: []resource.TestStep{
			{
				Config: TestProviderConfig() + fmt.Sprintf(`
resource "ews_folder" "parent" {
  display_name     = %[1]q
  parent_folder_id = "inbox"
}

resource "ews_folder" "child" {
  display_name     = "child"
  parent_folder_id = ews_folder.parent.id
}

data "ews_folders" "test" {
  parent_id  = ews_folder.parent.id
  depends_on = [ews_folder.child]
}

locals {
  paths = provider::ews::folder_paths(data.ews_folders.test.folders, null)
}

output "child_path" {
  value = local.paths[ews_folder.child.id]
}
`, name),
				Check: resource.ComposeAggregateTestCheckFunc(
					resource.TestCheckResourceAttr("data.ews_folders.test", "folder_count", "1"),
					resource.TestCheckResourceAttrPair("data.ews_folders.test", "folders.0.id", "ews_folder.child", "id"),
					resource.TestCheckOutput("child_path", "child"),
				),
			},
		},
	})
}
