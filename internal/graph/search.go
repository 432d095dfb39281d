package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// Search runs a keyword search scoped to the folder at rootPath ("/" for the
// whole drive). Results are returned in relevance order as the API ranks them.
func (c *Client) Search(ctx context.Context, rootPath, keyword string) (Children, error) {
	c.logger.Info("searching drive",
		slog.String("root", rootPath),
		slog.Int("keyword_len", len(keyword)),
	)

	// OData string literal: single quotes are doubled.
	q := url.PathEscape(strings.ReplaceAll(keyword, "'", "''"))

	items, err := c.fetchCollection(ctx,
		fmt.Sprintf("%s/search(q='%s')?%s&$top=%d", c.pathRef(rootPath), q, itemQuery, listPageSize))
	if err != nil {
		return nil, err
	}

	c.logger.Info("search complete", slog.Int("total_items", len(items)))

	return items, nil
}

// GetThumbnail returns the thumbnail of the given size ("small", "medium",
// "large", or a custom "cWxH" spec) from the item's first thumbnail set.
func (c *Client) GetThumbnail(ctx context.Context, itemID, size string) (*Thumbnail, error) {
	c.logger.Debug("getting thumbnail",
		slog.String("item_id", itemID),
		slog.String("size", size),
	)

	resp, err := c.Get(ctx, fmt.Sprintf("%s/items/%s/thumbnails/0/%s",
		c.drivePath, url.PathEscape(itemID), url.PathEscape(size)))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var tr thumbnailResp
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("graph: decoding thumbnail response: %w", err)
	}

	thumb := tr.normalize()

	return &thumb, nil
}
