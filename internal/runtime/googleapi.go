// Package runtime wires Gmail, OAuth and Postgres for the CLIs.
package runtime

import (
	"context"
	"fmt"

	"google.golang.org/api/gmail/v1"

	gc "github.com/joshsymonds/footprint/internal/gmail"
)

type googleClient struct{ svc *gmail.Service }

func NewGoogleAPIClient(svc *gmail.Service) gc.Client { return &googleClient{svc} }

func (g *googleClient) List(ctx context.Context, q gc.Query, pageToken string, pageSize int) (gc.ListPage, error) {
	call := g.svc.Users.Messages.List("me").Q(q.Raw).MaxResults(int64(pageSize)).Fields("messages(id)", "nextPageToken")
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	res, err := call.Context(ctx).Do()
	if err != nil {
		return gc.ListPage{}, fmt.Errorf("list messages: %w", err)
	}
	page := gc.ListPage{NextPageToken: res.NextPageToken, IDs: make([]gc.MessageID, 0, len(res.Messages))}
	for _, m := range res.Messages {
		page.IDs = append(page.IDs, gc.MessageID(m.Id))
	}
	return page, nil
}

func (g *googleClient) GetMetadata(ctx context.Context, id gc.MessageID, headers []string) (gc.MessageMeta, error) {
	msg, err := g.svc.Users.Messages.Get("me", string(id)).Format("metadata").MetadataHeaders(headers...).Context(ctx).Do()
	if err != nil {
		return gc.MessageMeta{}, fmt.Errorf("get message %s: %w", id, err)
	}
	return toMeta(id, msg), nil
}

func toMeta(id gc.MessageID, msg *gmail.Message) gc.MessageMeta {
	h := map[string]string{}
	if msg.Payload != nil {
		for _, hd := range msg.Payload.Headers {
			// first occurrence wins; Gmail returns duplicates for relayed mail
			if _, ok := h[hd.Name]; !ok {
				h[hd.Name] = hd.Value
			}
		}
	}
	return gc.MessageMeta{ID: id, Headers: h}
}
