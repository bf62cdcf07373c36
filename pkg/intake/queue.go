package intake

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-pipeline/internal/model"
)

// Status values tracked on the Notion queue.
const (
	StatusQueued      = "Queued"
	StatusResearching = "Researching"
	StatusDone        = "Done"
	StatusFailed      = "Failed"
)

// QueryQueued fetches every queued prospect page, handling pagination.
// The next page is prefetched while the caller's filter result is being
// accumulated, halving effective latency for multi-page queues.
func QueryQueued(ctx context.Context, c Client, dbID string) ([]notionapi.Page, error) {
	req := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Status",
			Status: &notionapi.StatusFilterCondition{
				Equals: StatusQueued,
			},
		},
	}

	type prefetchResult struct {
		resp *notionapi.DatabaseQueryResponse
		err  error
	}
	var prefetchCh <-chan prefetchResult

	var all []notionapi.Page
	for {
		var resp *notionapi.DatabaseQueryResponse
		var err error
		if prefetchCh != nil {
			result := <-prefetchCh
			resp, err = result.resp, result.err
		} else {
			resp, err = c.QueryDatabase(ctx, dbID, req)
		}
		if err != nil {
			return nil, eris.Wrap(err, "intake: query queued prospects")
		}

		all = append(all, resp.Results...)
		if !resp.HasMore {
			break
		}

		nextReq := &notionapi.DatabaseQueryRequest{
			Filter:      req.Filter,
			StartCursor: resp.NextCursor,
		}
		ch := make(chan prefetchResult, 1)
		prefetchCh = ch
		go func() {
			r, e := c.QueryDatabase(ctx, dbID, nextReq)
			ch <- prefetchResult{resp: r, err: e}
		}()
	}
	return all, nil
}

// ProspectID derives the prospect ID from the Notion page identity. The
// derivation is stable so re-queuing a page resumes the prospect's
// attempt history instead of minting a duplicate.
func ProspectID(pageID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("notion-page:"+pageID)).String()
}

// PageToProspect maps a Notion queue page to a new prospect record.
func PageToProspect(page notionapi.Page) model.Prospect {
	p := model.Prospect{
		ID:            ProspectID(string(page.ID)),
		NotionPageID:  string(page.ID),
		PipelineStage: model.StageCold,
	}

	if prop, ok := page.Properties["Name"]; ok {
		if tp, ok := prop.(*notionapi.TitleProperty); ok {
			for _, rt := range tp.Title {
				p.BusinessName += rt.PlainText
			}
		}
	}
	if prop, ok := page.Properties["Website"]; ok {
		if up, ok := prop.(*notionapi.URLProperty); ok {
			p.WebsiteURL = up.URL
		}
	}
	if prop, ok := page.Properties["Location"]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			for _, rt := range rtp.RichText {
				p.Location += rt.PlainText
			}
		}
	}
	if prop, ok := page.Properties["Industry"]; ok {
		if sp, ok := prop.(*notionapi.SelectProperty); ok {
			p.Industry = sp.Select.Name
		}
	}
	if prop, ok := page.Properties["Contact"]; ok {
		if rtp, ok := prop.(*notionapi.RichTextProperty); ok {
			for _, rt := range rtp.RichText {
				p.ContactName += rt.PlainText
			}
		}
	}
	if prop, ok := page.Properties["Email"]; ok {
		if ep, ok := prop.(*notionapi.EmailProperty); ok {
			p.ContactEmail = ep.Email
		}
	}

	p.BusinessName = strings.TrimSpace(p.BusinessName)
	p.WebsiteURL = strings.TrimSpace(p.WebsiteURL)
	p.Location = strings.TrimSpace(p.Location)
	p.ContactName = strings.TrimSpace(p.ContactName)
	return p
}

// MarkStatus updates the queue page's Status property.
func MarkStatus(ctx context.Context, c Client, pageID, status string) error {
	_, err := c.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{
		Properties: notionapi.Properties{
			"Status": notionapi.StatusProperty{
				Status: notionapi.Status{Name: status},
			},
		},
	})
	if err != nil {
		return eris.Wrapf(err, "intake: mark page %s %s", pageID, status)
	}
	return nil
}
