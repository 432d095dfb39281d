package index

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tonimelisma/onedrive-index/internal/graph"
	"github.com/tonimelisma/onedrive-index/internal/listing"
)

// Search runs a keyword search under the storage root and returns one page
// of matching files. Folders and packages are excluded, as are control
// files for unauthenticated viewers and anything inside a protected subtree
// the viewer has not unlocked. Results are not cached.
func (s *Service) Search(ctx context.Context, viewer Viewer, keyword string, limit, page int) (*listing.Page, error) {
	const op = "search"

	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		p := listing.Paginate(nil, limit, page)
		return &p, nil
	}

	found, err := remoteCall(ctx, s, func(ctx context.Context) (graph.Children, error) {
		return s.remote.Search(ctx, s.paths.Root(), keyword)
	})
	if err != nil {
		return nil, wrap(op, keyword, err)
	}

	allowed := make(map[string]bool) // key ID -> unlocked
	kept := make([]graph.Item, 0, len(found))

	for i := range found {
		it := found[i]
		if it.IsFolder() || it.IsPackage() {
			continue
		}

		if !viewer.Authenticated && listing.IsControlFile(it.Name) {
			continue
		}

		if !s.searchVisible(ctx, viewer, &it, allowed) {
			continue
		}

		kept = append(kept, it)
	}

	if limit == 0 {
		limit = s.cfg.PageSize
	}

	p := listing.Paginate(kept, limit, page)

	s.logger.Info("search complete",
		slog.Int("results", len(found)),
		slog.Int("visible", len(kept)),
	)

	return &p, nil
}

// searchVisible reports whether a search hit lies inside the root and
// outside any subtree the viewer cannot open. Unlock state is memoized per
// key ID for the duration of one search. A hit whose path cannot be
// established is hidden.
func (s *Service) searchVisible(ctx context.Context, viewer Viewer, it *graph.Item, allowed map[string]bool) bool {
	virtual, err := s.hitPath(ctx, it)
	if err != nil {
		s.logger.Debug("search hit dropped",
			slog.String("item_id", it.ID),
			slog.String("error", err.Error()),
		)

		return false
	}

	st, ok := s.guard.SubtreeFor(virtual)
	if !ok {
		return true
	}

	unlocked, seen := allowed[st.KeyID]
	if !seen {
		unlocked = s.checkAccess(ctx, viewer, "search", virtual) == nil
		allowed[st.KeyID] = unlocked
	}

	return unlocked
}

// hitPath returns the virtual path of a search hit. Search responses often
// omit the parent reference; those hits are looked up by ID.
func (s *Service) hitPath(ctx context.Context, it *graph.Item) (string, error) {
	if it.ParentPath == "" {
		return s.itemVirtual(ctx, it.ID)
	}

	return s.virtualOf(strings.TrimSuffix(it.ParentPath, "/") + "/" + it.Name)
}

// itemVirtual maps an item ID to its virtual path.
func (s *Service) itemVirtual(ctx context.Context, itemID string) (string, error) {
	p, err := remoteCall(ctx, s, func(ctx context.Context) (string, error) {
		return s.remote.ItemPath(ctx, itemID)
	})
	if err != nil {
		return "", err
	}

	return s.virtualOf(p)
}

// virtualOf strips the root from a decoded drive path. Paths outside the
// root do not exist as far as the index is concerned.
func (s *Service) virtualOf(drivePath string) (string, error) {
	if drivePath == "" || !s.paths.Contains(drivePath) {
		return "", fmt.Errorf("%w: %s is outside the index root", ErrNotFound, drivePath)
	}

	return s.paths.AbsolutePath(drivePath)
}
