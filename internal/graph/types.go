package graph

import (
	"path"
	"strings"
	"time"
)

// NoChildCount is what ChildCount reports for anything that is not a folder.
// Files sort after every folder, including empty ones, because of it.
const NoChildCount = -1

// Item is a drive item normalized from the Graph API response. The
// file-or-folder discriminant is decided once in toItem: exactly one of
// Folder and File is set for regular items, and packages (OneNote notebooks)
// additionally carry PackageType. Callers never inspect raw JSON.
//
// Items are cached verbatim, hence the JSON tags.
type Item struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Size        int64          `json:"size"`
	ETag        string         `json:"etag,omitempty"`
	ModifiedAt  time.Time      `json:"modified_at"`
	ParentPath  string         `json:"parent_path,omitempty"` // drive-root-relative, e.g. "/Docs"
	Folder      *Folder        `json:"folder,omitempty"`
	File        *File          `json:"file,omitempty"`
	PackageType string         `json:"package_type,omitempty"`
	Image       bool           `json:"image,omitempty"`
	Thumbnails  []ThumbnailSet `json:"thumbnails,omitempty"`
	DownloadURL string         `json:"download_url,omitempty"` // pre-authenticated, ephemeral; NEVER log
}

// Folder is the folder facet.
type Folder struct {
	ChildCount int `json:"child_count"`
}

// File is the file facet.
type File struct {
	MimeType string `json:"mime_type,omitempty"`
}

// ThumbnailSet holds the three stock thumbnail sizes Graph generates.
type ThumbnailSet struct {
	Small  Thumbnail `json:"small"`
	Medium Thumbnail `json:"medium"`
	Large  Thumbnail `json:"large"`
}

// Thumbnail is a single rendered thumbnail.
type Thumbnail struct {
	URL    string `json:"url,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// IsFolder reports whether the item carries the folder facet.
func (i *Item) IsFolder() bool {
	return i.Folder != nil
}

// IsPackage reports whether the item is a non-browsable package bundle.
func (i *Item) IsPackage() bool {
	return i.PackageType != ""
}

// ChildCount returns the folder's child count, or NoChildCount for files.
func (i *Item) ChildCount() int {
	if i.Folder == nil {
		return NoChildCount
	}

	return i.Folder.ChildCount
}

// Ext returns the lowercase extension without the dot ("" if none).
func (i *Item) Ext() string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(i.Name), "."))
}

// LargeThumbnailURL returns the first large thumbnail URL, if any.
func (i *Item) LargeThumbnailURL() string {
	if len(i.Thumbnails) == 0 {
		return ""
	}

	return i.Thumbnails[0].Large.URL
}

// Children is a folder listing in the order the API returned it. The order
// is significant: listings sorted by an unknown field keep it.
type Children []Item

// Find returns the child with the given name.
func (c Children) Find(name string) (Item, bool) {
	for i := range c {
		if c[i].Name == name {
			return c[i], true
		}
	}

	return Item{}, false
}
