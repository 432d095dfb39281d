package index

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/onedrive-index/internal/graph"
	"github.com/tonimelisma/onedrive-index/internal/listing"
	"github.com/tonimelisma/onedrive-index/internal/vpath"
)

// ListingRequest asks for one page of a folder. Limit 0 uses the configured
// page size; a negative Limit returns every item.
type ListingRequest struct {
	Viewer
	Path          string
	SortField     string
	SortDirection string
	Limit         int
	Page          int
}

// Listing is a resolved folder page. When the path turned out to be a file,
// only Object and RedirectURL are set and the children were never fetched.
type Listing struct {
	Path        string
	Object      *graph.Item
	RedirectURL string
	Page        listing.Page
	Head        string
	Readme      string
	HasImages   bool
	Breadcrumb  []string
}

// ResolveListing resolves a folder and returns the requested page of its
// processed children along with the HEAD.md and README.md sources.
func (s *Service) ResolveListing(ctx context.Context, req ListingRequest) (*Listing, error) {
	const op = "list"

	clean, origin, err := s.origin(req.Path)
	if err != nil {
		return nil, fail(op, req.Path, ErrInvalidPath, err)
	}

	if !req.Authenticated && listing.IsControlFile(clean) {
		return nil, fail(op, clean, ErrNotFound, nil)
	}

	if err := s.checkAccess(ctx, req.Viewer, op, clean); err != nil {
		return nil, err
	}

	crumbs, err := vpath.DecodeSegments(req.Path)
	if err != nil {
		return nil, fail(op, clean, ErrInvalidPath, err)
	}

	// The object must be inspected before listing: a file short-circuits
	// into a redirect and its children are never requested.
	obj, err := s.object(ctx, origin)
	if err != nil {
		return nil, wrap(op, clean, err)
	}

	if obj == nil {
		return nil, fail(op, clean, ErrNotFound, nil)
	}

	out := &Listing{Path: clean, Object: obj, Breadcrumb: crumbs}

	if !obj.IsFolder() {
		if obj.DownloadURL == "" {
			return nil, fail(op, clean, ErrTypeMismatch, nil)
		}

		out.RedirectURL = obj.DownloadURL

		return out, nil
	}

	children, err := s.children(ctx, origin)
	if err != nil {
		return nil, wrap(op, clean, err)
	}

	limit := req.Limit
	if limit == 0 {
		limit = s.cfg.PageSize
	}

	res := listing.Process(children, listing.Options{
		SortField:     req.SortField,
		SortDirection: req.SortDirection,
		Authenticated: req.Authenticated,
		Limit:         limit,
		Page:          req.Page,
	})

	out.Page = res.Page
	out.HasImages = res.HasImages

	if err := s.fetchBanners(ctx, res.Head, res.Readme, out); err != nil {
		return nil, wrap(op, clean, err)
	}

	s.logger.Debug("listing resolved",
		slog.String("path", clean),
		slog.Int("total", out.Page.Total),
		slog.Int("page", out.Page.Page),
	)

	return out, nil
}

// fetchBanners downloads HEAD.md and README.md concurrently. A banner over
// the inline size limit is skipped; any other failure fails the listing.
func (s *Service) fetchBanners(ctx context.Context, head, readme *graph.Item, out *Listing) error {
	g, gctx := errgroup.WithContext(ctx)

	fetch := func(item *graph.Item, dst *string) {
		if item == nil {
			return
		}

		g.Go(func() error {
			data, err := s.inline(gctx, item)
			if errors.Is(err, ErrTooLarge) || errors.Is(err, graph.ErrContentTooLarge) {
				s.logger.Warn("banner too large, skipping",
					slog.String("name", item.Name),
					slog.Int64("size", item.Size),
				)

				return nil
			}

			if err != nil {
				return err
			}

			*dst = string(data)

			return nil
		})
	}

	fetch(head, &out.Head)
	fetch(readme, &out.Readme)

	return g.Wait()
}
