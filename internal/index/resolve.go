package index

import (
	"context"
	"log/slog"

	"github.com/tonimelisma/onedrive-index/internal/cache"
	"github.com/tonimelisma/onedrive-index/internal/graph"
	"github.com/tonimelisma/onedrive-index/internal/listing"
	"github.com/tonimelisma/onedrive-index/internal/vpath"
)

// Resolve returns the object at a virtual path. The parent folder's cached
// listing is consulted first, which costs no remote call when the parent
// was browsed recently; otherwise the object is looked up directly and
// cached under its file key.
func (s *Service) Resolve(ctx context.Context, virtual string) (*graph.Item, error) {
	const op = "resolve"

	clean, origin, err := s.origin(virtual)
	if err != nil {
		return nil, fail(op, virtual, ErrInvalidPath, err)
	}

	return s.resolve(ctx, clean, origin)
}

// resolve is Resolve for a path that has already been decoded.
func (s *Service) resolve(ctx context.Context, clean, origin string) (*graph.Item, error) {
	const op = "resolve"

	if item, ok := s.fromParentListing(ctx, clean); ok {
		return item, nil
	}

	item, err := cache.Remember(ctx, s.aside, cache.FileKey(origin), s.cfg.Expires,
		func(ctx context.Context) (*graph.Item, error) {
			return remoteCall(ctx, s, func(ctx context.Context) (*graph.Item, error) {
				return s.remote.GetItemByPath(ctx, origin)
			})
		})
	if err != nil {
		return nil, wrap(op, clean, err)
	}

	if item == nil {
		return nil, fail(op, clean, ErrNotFound, nil)
	}

	return item, nil
}

// Stat returns the record at virtual for display. Unlike Resolve it applies
// the viewer gates: control files do not exist for unauthenticated viewers
// and protected subtrees need a credential.
func (s *Service) Stat(ctx context.Context, viewer Viewer, virtual string) (*graph.Item, error) {
	const op = "stat"

	clean, origin, err := s.origin(virtual)
	if err != nil {
		return nil, fail(op, virtual, ErrInvalidPath, err)
	}

	if !viewer.Authenticated && listing.IsControlFile(clean) {
		return nil, fail(op, clean, ErrNotFound, nil)
	}

	if err := s.checkAccess(ctx, viewer, op, clean); err != nil {
		return nil, err
	}

	return s.resolve(ctx, clean, origin)
}

// fromParentListing looks name up in the parent's cached children.
func (s *Service) fromParentListing(ctx context.Context, clean string) (*graph.Item, bool) {
	parent, name, err := vpath.Split(clean)
	if err != nil || name == "" {
		return nil, false
	}

	parentOrigin, err := s.paths.OriginPath(parent)
	if err != nil {
		return nil, false
	}

	children, ok := cache.Lookup[graph.Children](ctx, s.aside, cache.ListKey(parentOrigin))
	if !ok {
		return nil, false
	}

	item, ok := children.Find(name)
	if !ok {
		s.logger.Debug("name absent from cached parent listing",
			slog.String("path", clean),
		)

		return nil, false
	}

	return &item, true
}

// object fetches the object record of a listed path (path: key).
func (s *Service) object(ctx context.Context, origin string) (*graph.Item, error) {
	return cache.Remember(ctx, s.aside, cache.PathKey(origin), s.cfg.Expires,
		func(ctx context.Context) (*graph.Item, error) {
			return remoteCall(ctx, s, func(ctx context.Context) (*graph.Item, error) {
				return s.remote.GetItemByPath(ctx, origin)
			})
		})
}

// children fetches the raw children of a folder (list: key).
func (s *Service) children(ctx context.Context, origin string) (graph.Children, error) {
	return cache.Remember(ctx, s.aside, cache.ListKey(origin), s.cfg.Expires,
		func(ctx context.Context) (graph.Children, error) {
			return remoteCall(ctx, s, func(ctx context.Context) (graph.Children, error) {
				return s.remote.ListChildrenByPath(ctx, origin)
			})
		})
}

// Forget drops every cached entry for a virtual path, plus its parent's
// listing so the resolver cannot serve the old record from there.
func (s *Service) Forget(ctx context.Context, virtual string) error {
	const op = "forget"

	clean, origin, err := s.origin(virtual)
	if err != nil {
		return fail(op, virtual, ErrInvalidPath, err)
	}

	keys := []string{cache.PathKey(origin), cache.ListKey(origin), cache.FileKey(origin)}

	if parent, name, err := vpath.Split(clean); err == nil && name != "" {
		if parentOrigin, err := s.paths.OriginPath(parent); err == nil {
			keys = append(keys, cache.ListKey(parentOrigin))
		}
	}

	if err := s.aside.Forget(ctx, keys...); err != nil {
		return fail(op, clean, ErrRemoteUnavailable, err)
	}

	s.logger.Info("cache entries forgotten",
		slog.String("path", clean),
		slog.Int("keys", len(keys)),
	)

	return nil
}
