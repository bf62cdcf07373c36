package intake

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-pipeline/internal/model"
)

type fakeNotion struct {
	responses []*notionapi.DatabaseQueryResponse
	queries   []*notionapi.DatabaseQueryRequest
	updates   map[string]*notionapi.PageUpdateRequest
	err       error
}

func (f *fakeNotion) QueryDatabase(_ context.Context, _ string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.queries = append(f.queries, req)
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func (f *fakeNotion) UpdatePage(_ context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	if f.updates == nil {
		f.updates = make(map[string]*notionapi.PageUpdateRequest)
	}
	f.updates[pageID] = req
	return &notionapi.Page{}, f.err
}

func queuePage(id, name string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(id),
		Properties: notionapi.Properties{
			"Name": &notionapi.TitleProperty{
				Title: []notionapi.RichText{{PlainText: name}},
			},
			"Website": &notionapi.URLProperty{URL: " https://example.com "},
			"Location": &notionapi.RichTextProperty{
				RichText: []notionapi.RichText{{PlainText: "Knoxville, TN"}},
			},
			"Industry": &notionapi.SelectProperty{
				Select: notionapi.Option{Name: "plumbing"},
			},
		},
	}
}

func TestQueryQueued_Paginates(t *testing.T) {
	fake := &fakeNotion{responses: []*notionapi.DatabaseQueryResponse{
		{
			Results:    []notionapi.Page{queuePage("page-1", "First"), queuePage("page-2", "Second")},
			HasMore:    true,
			NextCursor: "cursor-2",
		},
		{
			Results: []notionapi.Page{queuePage("page-3", "Third")},
		},
	}}

	pages, err := QueryQueued(context.Background(), fake, "db-1")
	require.NoError(t, err)
	assert.Len(t, pages, 3)

	require.Len(t, fake.queries, 2)
	assert.Empty(t, fake.queries[0].StartCursor)
	assert.Equal(t, notionapi.Cursor("cursor-2"), fake.queries[1].StartCursor)
}

func TestPageToProspect(t *testing.T) {
	p := PageToProspect(queuePage("page-1", "  Smoky Mountain Plumbing "))

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "page-1", p.NotionPageID)
	assert.Equal(t, "Smoky Mountain Plumbing", p.BusinessName)
	assert.Equal(t, "https://example.com", p.WebsiteURL)
	assert.Equal(t, "Knoxville, TN", p.Location)
	assert.Equal(t, "plumbing", p.Industry)
	assert.Equal(t, model.StageCold, p.PipelineStage)
}

func TestPageToProspect_StableIdentity(t *testing.T) {
	first := PageToProspect(queuePage("page-1", "Smoky Mountain Plumbing"))
	again := PageToProspect(queuePage("page-1", "Smoky Mountain Plumbing LLC"))
	other := PageToProspect(queuePage("page-2", "Smoky Mountain Plumbing"))

	// Re-queuing a page must resolve to the same prospect so its attempt
	// history resumes instead of a duplicate starting from scratch.
	assert.Equal(t, first.ID, again.ID)
	assert.NotEqual(t, first.ID, other.ID)
	assert.Equal(t, ProspectID("page-1"), first.ID)
}

func TestPageToProspect_MissingProperties(t *testing.T) {
	p := PageToProspect(notionapi.Page{ID: "page-x"})

	assert.Equal(t, "page-x", p.NotionPageID)
	assert.Empty(t, p.BusinessName)
	assert.Empty(t, p.WebsiteURL)
}

func TestMarkStatus(t *testing.T) {
	fake := &fakeNotion{}
	require.NoError(t, MarkStatus(context.Background(), fake, "page-1", StatusDone))

	req := fake.updates["page-1"]
	require.NotNil(t, req)
	status, ok := req.Properties["Status"].(notionapi.StatusProperty)
	require.True(t, ok)
	assert.Equal(t, "Done", status.Status.Name)
}
