package filestore

import (
	"context"

	"github.com/mrz1836/vaultdb/internal/storage"
)

type cursor struct {
	items      []storage.Item
	pos        int
	totalKnown bool
}

func newCursor(items []storage.Item, retrieveTotal bool) *cursor {
	return &cursor{items: items, totalKnown: retrieveTotal}
}

func (c *cursor) Next(_ context.Context) (*storage.Item, error) {
	if c.pos >= len(c.items) {
		return nil, nil
	}
	item := c.items[c.pos]
	c.pos++
	return &item, nil
}

func (c *cursor) TotalCount() (int, error) {
	if !c.totalKnown {
		return -1, nil
	}
	return len(c.items), nil
}

func (c *cursor) Close() error { return nil }

var _ storage.Cursor = (*cursor)(nil)
