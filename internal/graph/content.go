package graph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// ErrNoDownloadURL is returned when an item has no pre-authenticated
// download URL (folders, packages).
var ErrNoDownloadURL = errors.New("graph: item has no download URL")

// FetchContent reads the body behind a pre-authenticated download URL, up
// to limit bytes. A body larger than limit yields ErrContentTooLarge; limit
// <= 0 means unlimited. The URL embeds auth tokens and is never logged.
func (c *Client) FetchContent(ctx context.Context, downloadURL string, limit int64) ([]byte, error) {
	if downloadURL == "" {
		return nil, ErrNoDownloadURL
	}

	resp, err := c.doRetry(ctx, "(download url)", func() (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, http.NoBody)
		if reqErr != nil {
			return nil, fmt.Errorf("graph: creating download request: %w", reqErr)
		}

		req.Header.Set("User-Agent", c.userAgent)

		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if limit > 0 {
		if resp.ContentLength > limit {
			return nil, fmt.Errorf("%w: %d > %d bytes", ErrContentTooLarge, resp.ContentLength, limit)
		}

		body = io.LimitReader(resp.Body, limit+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		c.logger.Error("reading download content failed",
			slog.String("error", err.Error()),
			slog.Int("bytes_before_error", len(data)),
		)

		return nil, fmt.Errorf("graph: reading download content: %w", err)
	}

	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrContentTooLarge, limit)
	}

	return data, nil
}
