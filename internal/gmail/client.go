package gmail

import "context"

// Client is the narrow, read-only Gmail surface required for account discovery.
type Client interface {
	List(ctx context.Context, q Query, pageToken string, pageSize int) (ListPage, error)
	GetMetadata(ctx context.Context, id MessageID, headers []string) (MessageMeta, error)
}
