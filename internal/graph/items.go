package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// listPageSize is the $top value for collection requests; 200 is the Graph
// maximum for drive item collections.
const listPageSize = 200

// itemQuery is the $select/$expand applied to every item and collection
// request. The download URL annotation is listed explicitly because $select
// drops it otherwise.
const itemQuery = "$select=id,eTag,name,size,lastModifiedDateTime,file,image,folder,package,parentReference," +
	"@microsoft.graph.downloadUrl&$expand=thumbnails"

// encodePathSegments URL-encodes each segment of a slash-separated path so
// characters like #, ?, % and spaces survive interpolation into Graph URLs.
func encodePathSegments(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	return strings.Join(segments, "/")
}

// driveItemResponse mirrors the Graph API driveItem JSON.
// Unexported; callers get Item via toItem().
type driveItemResponse struct {
	ID                   string             `json:"id"`
	Name                 string             `json:"name"`
	Size                 int64              `json:"size"`
	ETag                 string             `json:"eTag"`
	LastModifiedDateTime string             `json:"lastModifiedDateTime"`
	ParentReference      *parentRef         `json:"parentReference"`
	File                 *fileFacet         `json:"file"`
	Folder               *folderFacet       `json:"folder"`
	Package              *packageFacet      `json:"package"`
	Image                *json.RawMessage   `json:"image"`
	Thumbnails           []thumbnailSetResp `json:"thumbnails"`
	DownloadURL          string             `json:"@microsoft.graph.downloadUrl"` //nolint:tagliatelle // Graph API annotation key
}

type parentRef struct {
	ID      string `json:"id"`
	DriveID string `json:"driveId"`
	Path    string `json:"path"`
}

type fileFacet struct {
	MimeType string `json:"mimeType"`
}

type folderFacet struct {
	ChildCount int `json:"childCount"`
}

type packageFacet struct {
	Type string `json:"type"`
}

type thumbnailResp struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type thumbnailSetResp struct {
	Small  *thumbnailResp `json:"small"`
	Medium *thumbnailResp `json:"medium"`
	Large  *thumbnailResp `json:"large"`
}

type collectionResponse struct {
	Value    []driveItemResponse `json:"value"`
	NextLink string              `json:"@odata.nextLink"` //nolint:tagliatelle // OData annotation key
}

// toItem normalizes a Graph API driveItem into Item. This is the only place
// facet presence is inspected.
func (d *driveItemResponse) toItem(logger *slog.Logger) Item {
	item := Item{
		ID:          d.ID,
		Name:        d.Name,
		Size:        d.Size,
		ETag:        d.ETag,
		Image:       d.Image != nil,
		DownloadURL: d.DownloadURL,
		ModifiedAt:  parseTimestamp(d.LastModifiedDateTime, d.ID, logger),
	}

	switch {
	case d.Folder != nil:
		item.Folder = &Folder{ChildCount: d.Folder.ChildCount}
	case d.File != nil:
		item.File = &File{MimeType: d.File.MimeType}
	}

	// A package with an empty type string is still a package.
	if d.Package != nil {
		item.PackageType = d.Package.Type
		if item.PackageType == "" {
			item.PackageType = "unknown"
		}
	}

	if d.ParentReference != nil {
		item.ParentPath = stripDriveRoot(d.ParentReference.Path)
	}

	for _, ts := range d.Thumbnails {
		item.Thumbnails = append(item.Thumbnails, ThumbnailSet{
			Small:  ts.Small.normalize(),
			Medium: ts.Medium.normalize(),
			Large:  ts.Large.normalize(),
		})
	}

	return item
}

func (t *thumbnailResp) normalize() Thumbnail {
	if t == nil {
		return Thumbnail{}
	}

	return Thumbnail{URL: t.URL, Width: t.Width, Height: t.Height}
}

// stripDriveRoot converts a parentReference.path ("/drive/root:/Docs") to a
// drive-root-relative path ("/Docs"). Returns "" when the reference has no
// path (the drive root itself).
func stripDriveRoot(p string) string {
	_, after, found := strings.Cut(p, "root:")
	if !found {
		return ""
	}

	if decoded, err := url.PathUnescape(after); err == nil {
		after = decoded
	}

	if after == "" {
		return "/"
	}

	return after
}

// parseTimestamp parses an RFC3339 timestamp. Invalid values yield the zero
// time and a warning rather than failing the whole response.
func parseTimestamp(raw, itemID string, logger *slog.Logger) time.Time {
	if raw == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		logger.Warn("invalid lastModifiedDateTime, leaving unset",
			slog.String("item_id", itemID),
			slog.String("raw", raw),
			slog.String("error", err.Error()),
		)

		return time.Time{}
	}

	return t
}

// pathRef returns the API path addressing a drive item by root-relative
// path. "/" and "" address the drive root.
func (c *Client) pathRef(remotePath string) string {
	clean := strings.Trim(remotePath, "/")
	if clean == "" {
		return c.drivePath + "/root"
	}

	return c.drivePath + "/root:/" + encodePathSegments(clean) + ":"
}

// fetchItem GETs a single drive item and decodes it.
func (c *Client) fetchItem(ctx context.Context, apiPath string) (*Item, error) {
	resp, err := c.Get(ctx, apiPath)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var dir driveItemResponse
	if err := json.NewDecoder(resp.Body).Decode(&dir); err != nil {
		return nil, fmt.Errorf("graph: decoding item response: %w", err)
	}

	item := dir.toItem(c.logger)

	return &item, nil
}

// GetItemByPath retrieves a drive item by its path relative to the drive
// root, including thumbnails and the download URL.
func (c *Client) GetItemByPath(ctx context.Context, remotePath string) (*Item, error) {
	c.logger.Info("getting item by path", slog.String("path", remotePath))

	return c.fetchItem(ctx, c.pathRef(remotePath)+"?"+itemQuery)
}

// GetItem retrieves a drive item by ID.
func (c *Client) GetItem(ctx context.Context, itemID string) (*Item, error) {
	c.logger.Info("getting item", slog.String("item_id", itemID))

	return c.fetchItem(ctx, fmt.Sprintf("%s/items/%s?%s", c.drivePath, url.PathEscape(itemID), itemQuery))
}

// ListChildrenByPath returns every child of the folder at remotePath in API
// order, following @odata.nextLink pages.
func (c *Client) ListChildrenByPath(ctx context.Context, remotePath string) (Children, error) {
	c.logger.Info("listing children by path", slog.String("path", remotePath))

	items, err := c.fetchCollection(ctx,
		fmt.Sprintf("%s/children?%s&$top=%d", c.pathRef(remotePath), itemQuery, listPageSize))
	if err != nil {
		return nil, err
	}

	c.logger.Info("listed children complete",
		slog.String("path", remotePath),
		slog.Int("total_items", len(items)),
	)

	return items, nil
}

// ItemPath resolves an item ID to its drive-root-relative path.
func (c *Client) ItemPath(ctx context.Context, itemID string) (string, error) {
	item, err := c.GetItem(ctx, itemID)
	if err != nil {
		return "", err
	}

	if item.ParentPath == "" {
		return "/", nil
	}

	return strings.TrimSuffix(item.ParentPath, "/") + "/" + item.Name, nil
}

// fetchCollection pages through a drive item collection.
func (c *Client) fetchCollection(ctx context.Context, apiPath string) (Children, error) {
	var items Children

	for page := 1; apiPath != ""; page++ {
		pageItems, next, err := c.collectionPage(ctx, apiPath)
		if err != nil {
			return nil, err
		}

		c.logger.Debug("fetched collection page",
			slog.Int("page", page),
			slog.Int("count", len(pageItems)),
		)

		items = append(items, pageItems...)
		apiPath = next
	}

	return items, nil
}

// collectionPage fetches one page and returns the items and the next page
// path ("" when done).
func (c *Client) collectionPage(ctx context.Context, apiPath string) (Children, string, error) {
	resp, err := c.Get(ctx, apiPath)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	var cr collectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, "", fmt.Errorf("graph: decoding collection response: %w", err)
	}

	items := make(Children, 0, len(cr.Value))
	for i := range cr.Value {
		items = append(items, cr.Value[i].toItem(c.logger))
	}

	if cr.NextLink == "" {
		return items, "", nil
	}

	next, err := c.stripBaseURL(cr.NextLink)
	if err != nil {
		return nil, "", err
	}

	return items, next, nil
}

// stripBaseURL removes the client's base URL prefix from a nextLink.
func (c *Client) stripBaseURL(fullURL string) (string, error) {
	if !strings.HasPrefix(fullURL, c.baseURL) {
		return "", fmt.Errorf("graph: nextLink URL %q does not match base URL %q", fullURL, c.baseURL)
	}

	return fullURL[len(c.baseURL):], nil
}
