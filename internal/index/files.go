package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/tonimelisma/onedrive-index/internal/graph"
	"github.com/tonimelisma/onedrive-index/internal/listing"
)

// Stock thumbnail sizes.
const (
	ThumbSmall  = "small"
	ThumbMedium = "medium"
	ThumbLarge  = "large"
)

// ResolveFileOrRedirect returns the file record at virtual. The caller
// decides from the extension whether to redirect to DownloadURL or render a
// preview. Folders are a type mismatch, and control files do not exist for
// unauthenticated viewers.
func (s *Service) ResolveFileOrRedirect(ctx context.Context, viewer Viewer, virtual string) (*graph.Item, error) {
	const op = "file"

	clean, origin, err := s.origin(virtual)
	if err != nil {
		return nil, fail(op, virtual, ErrInvalidPath, err)
	}

	return s.resolveFile(ctx, viewer, clean, origin)
}

// resolveFile is ResolveFileOrRedirect for a path that has already been
// decoded.
func (s *Service) resolveFile(ctx context.Context, viewer Viewer, clean, origin string) (*graph.Item, error) {
	const op = "file"

	if clean == "/" {
		return nil, fail(op, clean, ErrTypeMismatch, nil)
	}

	if !viewer.Authenticated && listing.IsControlFile(clean) {
		return nil, fail(op, clean, ErrNotFound, nil)
	}

	if err := s.checkAccess(ctx, viewer, op, clean); err != nil {
		return nil, err
	}

	item, err := s.resolve(ctx, clean, origin)
	if err != nil {
		return nil, err
	}

	if item.IsFolder() || item.IsPackage() {
		return nil, fail(op, clean, ErrTypeMismatch, nil)
	}

	return item, nil
}

// Download returns the pre-authenticated download URL of the file at
// virtual.
func (s *Service) Download(ctx context.Context, viewer Viewer, virtual string) (string, error) {
	const op = "download"

	clean, origin, err := s.origin(virtual)
	if err != nil || clean == "/" {
		return "", fail(op, virtual, ErrInvalidPath, err)
	}

	item, err := s.resolveFile(ctx, viewer, clean, origin)
	if err != nil {
		return "", err
	}

	if item.DownloadURL == "" {
		return "", fail(op, clean, ErrTypeMismatch, graph.ErrNoDownloadURL)
	}

	return item.DownloadURL, nil
}

// InlineContent returns the body of item for inline previews. Items larger
// than the configured inline limit are refused with ErrTooLarge before any
// download starts.
func (s *Service) InlineContent(ctx context.Context, item *graph.Item) ([]byte, error) {
	data, err := s.inline(ctx, item)
	if err != nil {
		return nil, wrap("inline", item.Name, err)
	}

	return data, nil
}

func (s *Service) inline(ctx context.Context, item *graph.Item) ([]byte, error) {
	if item.Size > s.cfg.InlineMaxSize {
		return nil, fail("inline", item.Name, ErrTooLarge,
			fmt.Errorf("%d bytes exceeds %d", item.Size, s.cfg.InlineMaxSize))
	}

	return remoteCall(ctx, s, func(ctx context.Context) ([]byte, error) {
		return s.remote.FetchContent(ctx, item.DownloadURL, s.cfg.InlineMaxSize)
	})
}

// Thumbnail returns the URL of a stock thumbnail for an item ID. The item
// passes the same gates as a path lookup first. When the thumbnail lookup
// fails and a fallback image is configured, the fallback is returned
// instead of the error.
func (s *Service) Thumbnail(ctx context.Context, viewer Viewer, itemID, size string) (string, error) {
	const op = "thumbnail"

	switch size {
	case "":
		size = ThumbLarge
	case ThumbSmall, ThumbMedium, ThumbLarge:
	default:
		return "", fail(op, itemID, ErrInvalidPath, fmt.Errorf("unknown thumbnail size %q", size))
	}

	if err := s.checkItem(ctx, viewer, op, itemID); err != nil {
		return s.thumbnailFallback(itemID, err)
	}

	thumb, err := remoteCall(ctx, s, func(ctx context.Context) (*graph.Thumbnail, error) {
		return s.remote.GetThumbnail(ctx, itemID, size)
	})
	if err == nil && thumb != nil && thumb.URL != "" {
		return thumb.URL, nil
	}

	if err == nil {
		err = fail(op, itemID, ErrNotFound, nil)
	}

	return s.thumbnailFallback(itemID, wrap(op, itemID, err))
}

// thumbnailFallback swaps err for the configured fallback image. Password
// prompts are never swallowed.
func (s *Service) thumbnailFallback(itemID string, err error) (string, error) {
	var de *DisplayError
	if errors.As(err, &de) && de.Prompt != nil {
		return "", err
	}

	if s.cfg.ThumbnailFallback == "" {
		return "", err
	}

	s.logger.Warn("thumbnail unavailable, using fallback",
		slog.String("item_id", itemID),
		slog.Any("error", err),
	)

	return s.cfg.ThumbnailFallback, nil
}

// ThumbnailCrop returns the large thumbnail of the file at virtual,
// rescaled to width x height by rewriting the thumbnail URL.
func (s *Service) ThumbnailCrop(ctx context.Context, viewer Viewer, virtual string, width, height int) (string, error) {
	const op = "thumbnail"

	if width <= 0 || height <= 0 {
		return "", fail(op, virtual, ErrInvalidPath, fmt.Errorf("invalid size %dx%d", width, height))
	}

	item, err := s.ResolveFileOrRedirect(ctx, viewer, virtual)
	if err != nil {
		var de *DisplayError
		if errors.As(err, &de) && de.Prompt != nil {
			return "", err
		}

		if s.cfg.ThumbnailFallback != "" {
			return s.cfg.ThumbnailFallback, nil
		}

		return "", err
	}

	raw := item.LargeThumbnailURL()
	if raw == "" {
		if s.cfg.ThumbnailFallback != "" {
			return s.cfg.ThumbnailFallback, nil
		}

		return "", fail(op, virtual, ErrNotFound, nil)
	}

	return resizeThumbnail(raw, width, height)
}

// resizeThumbnail sets the width and height query parameters the thumbnail
// service scales by.
func resizeThumbnail(raw string, width, height int) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fail("thumbnail", "", ErrRemoteUnavailable, fmt.Errorf("parsing thumbnail url: %w", err))
	}

	q := u.Query()
	q.Set("width", strconv.Itoa(width))
	q.Set("height", strconv.Itoa(height))
	q.Set("cropmode", "none")
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Locate maps an item ID to its virtual path. Items outside the storage
// root are reported as not found.
func (s *Service) Locate(ctx context.Context, itemID string) (string, error) {
	abs, err := s.itemVirtual(ctx, itemID)
	if err != nil {
		return "", wrap("locate", itemID, err)
	}

	return abs, nil
}

// checkItem applies the path gates to an item addressed by ID: it must lie
// inside the root, control files are hidden from unauthenticated viewers,
// and protected subtrees need a credential.
func (s *Service) checkItem(ctx context.Context, viewer Viewer, op, itemID string) error {
	virtual, err := s.itemVirtual(ctx, itemID)
	if err != nil {
		return wrap(op, itemID, err)
	}

	if !viewer.Authenticated && listing.IsControlFile(virtual) {
		return fail(op, virtual, ErrNotFound, nil)
	}

	return s.checkAccess(ctx, viewer, op, virtual)
}
