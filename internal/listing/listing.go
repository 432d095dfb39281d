// Package listing turns a folder's raw children into the page a viewer sees.
//
// Process runs these steps in a fixed order; reordering them changes the
// output:
//
//  1. stable sort by the requested field (unknown fields keep API order)
//  2. stable folder-first pass: folders ahead of files, folders by child
//     count descending, ties keep step 1's order
//  3. drop package bundles (OneNote notebooks)
//  4. capture HEAD.md and README.md from the set as it stands
//  5. hide control files from unauthenticated viewers
//  6. paginate
//
// Step 4 runs before step 5 so the banner files can still be rendered for
// viewers who may not see them in the listing.
package listing

import (
	"cmp"
	"path"
	"slices"
	"strings"

	"github.com/tonimelisma/onedrive-index/internal/graph"
)

// Sort fields and directions.
const (
	SortName     = "name"
	SortSize     = "size"
	SortModified = "modified"

	Asc  = "asc"
	Desc = "desc"
)

// Banner file names rendered above and below a listing.
const (
	HeadFile   = "HEAD.md"
	ReadmeFile = "README.md"
)

// controlFiles are hidden from unauthenticated viewers by exact name.
var controlFiles = map[string]bool{
	ReadmeFile:  true,
	HeadFile:    true,
	".password": true,
	".deny":     true,
}

var imageExts = map[string]bool{
	"bmp": true, "gif": true, "ico": true, "jpeg": true, "jpg": true,
	"png": true, "svg": true, "tif": true, "tiff": true, "webp": true,
}

// Options controls a single Process call. Page is 1-based; Limit <= 0
// disables pagination.
type Options struct {
	SortField     string
	SortDirection string
	Authenticated bool
	Limit         int
	Page          int
}

// Page is one page of a processed listing. Total counts every visible item
// before pagination.
type Page struct {
	Items []graph.Item `json:"items"`
	Total int          `json:"total"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
}

// Pages returns the number of pages, at least 1.
func (p *Page) Pages() int {
	if p.Limit <= 0 || p.Total == 0 {
		return 1
	}

	return (p.Total + p.Limit - 1) / p.Limit
}

// Result is a processed listing plus the banner files found in it.
type Result struct {
	Page      Page
	Head      *graph.Item
	Readme    *graph.Item
	HasImages bool
}

// Process applies the listing pipeline to children. The input is not
// modified. It never fails: items missing a field sort as its zero value.
func Process(children graph.Children, opts Options) Result {
	items := slices.Clone(children)

	sortByField(items, opts.SortField, opts.SortDirection)
	slices.SortStableFunc(items, folderFirst)

	var res Result

	// Image detection sees the raw children, before packages and control
	// files are dropped.
	res.HasImages = slices.ContainsFunc(items, func(it graph.Item) bool { return isImage(&it) })

	items = slices.DeleteFunc(items, func(it graph.Item) bool { return it.IsPackage() })

	for i := range items {
		switch items[i].Name {
		case HeadFile:
			res.Head = &items[i]
		case ReadmeFile:
			res.Readme = &items[i]
		}
	}

	// Banner pointers must not alias the slice compacted below.
	res.Head = clonePtr(res.Head)
	res.Readme = clonePtr(res.Readme)

	if !opts.Authenticated {
		items = slices.DeleteFunc(items, func(it graph.Item) bool { return controlFiles[it.Name] })
	}

	res.Page = paginate(items, opts.Limit, opts.Page)

	return res
}

// Paginate slices items without any other processing, for search results.
func Paginate(items []graph.Item, limit, page int) Page {
	return paginate(items, limit, page)
}

func paginate(items []graph.Item, limit, page int) Page {
	if page < 1 {
		page = 1
	}

	p := Page{Total: len(items), Page: page, Limit: limit}

	if limit <= 0 {
		p.Items = items
		p.Page = 1

		return p
	}

	start := min((page-1)*limit, len(items))
	end := min(start+limit, len(items))
	p.Items = items[start:end]

	return p
}

func sortByField(items []graph.Item, field, direction string) {
	var cmpFn func(a, b graph.Item) int

	switch field {
	case SortName:
		cmpFn = func(a, b graph.Item) int { return cmp.Compare(a.Name, b.Name) }
	case SortSize:
		cmpFn = func(a, b graph.Item) int { return cmp.Compare(a.Size, b.Size) }
	case SortModified:
		cmpFn = func(a, b graph.Item) int { return a.ModifiedAt.Compare(b.ModifiedAt) }
	default:
		return
	}

	if direction == Desc {
		slices.SortStableFunc(items, func(a, b graph.Item) int { return cmpFn(b, a) })
		return
	}

	slices.SortStableFunc(items, cmpFn)
}

// folderFirst orders by child count descending, with files at
// graph.NoChildCount. An empty folder (0) therefore still precedes every
// file, and folders are grouped ahead of files as a consequence.
func folderFirst(a, b graph.Item) int {
	return cmp.Compare(b.ChildCount(), a.ChildCount())
}

func isImage(it *graph.Item) bool {
	if it.IsFolder() {
		return false
	}

	return it.Image || imageExts[it.Ext()]
}

func clonePtr(it *graph.Item) *graph.Item {
	if it == nil {
		return nil
	}

	c := *it

	return &c
}

// ParseOrder splits an "orderBy" value such as "size,desc" into a field and
// direction. Missing parts come back empty; the direction is lowercased.
func ParseOrder(s string) (field, direction string) {
	field, direction, _ = strings.Cut(s, ",")
	field = strings.ToLower(strings.TrimSpace(field))
	direction = strings.ToLower(strings.TrimSpace(direction))

	if direction != Desc && direction != "" {
		direction = Asc
	}

	return field, direction
}

// IsControlFile reports whether name is hidden from unauthenticated viewers.
func IsControlFile(name string) bool {
	return controlFiles[path.Base(name)]
}
