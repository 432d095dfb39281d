package main

import (
	"bytes"
	"context"
	"log/slog"
	"path"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/onedrive-index/internal/cache"
	"github.com/tonimelisma/onedrive-index/internal/config"
	"github.com/tonimelisma/onedrive-index/internal/graph"
)

// testLogger returns a debug-level logger that writes to t.Log.
func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(testLogWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type testLogWriter struct{ t *testing.T }

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimRight(string(p), "\n"))

	return len(p), nil
}

// fakeDrive is an in-memory drive keyed by drive-root-relative path.
type fakeDrive struct {
	items     map[string]*graph.Item
	children  map[string]graph.Children
	content   map[string][]byte
	listCalls int
}

func newFakeDrive() *fakeDrive {
	d := &fakeDrive{
		items:    map[string]*graph.Item{},
		children: map[string]graph.Children{},
		content:  map[string][]byte{},
	}
	d.items["/"] = &graph.Item{ID: "root", Name: "root", Folder: &graph.Folder{}}

	return d
}

func (d *fakeDrive) addFolder(p string, childCount int) {
	d.add(p, graph.Item{ID: "id" + p, Name: path.Base(p), Folder: &graph.Folder{ChildCount: childCount}})
}

func (d *fakeDrive) addFile(p string, body string) {
	url := "https://dl" + p
	d.content[url] = []byte(body)
	d.add(p, graph.Item{
		ID:          "id" + p,
		Name:        path.Base(p),
		Size:        int64(len(body)),
		File:        &graph.File{},
		ModifiedAt:  time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC),
		DownloadURL: url,
		Thumbnails:  []graph.ThumbnailSet{{Large: graph.Thumbnail{URL: "https://thumb" + p + "?width=800"}}},
	})
}

func (d *fakeDrive) add(p string, it graph.Item) {
	parent := path.Dir(p)
	it.ParentPath = parent
	d.items[p] = &it
	d.children[parent] = append(d.children[parent], it)

	if _, ok := d.children[p]; !ok && it.Folder != nil {
		d.children[p] = graph.Children{}
	}
}

func (d *fakeDrive) GetItemByPath(_ context.Context, p string) (*graph.Item, error) {
	it, ok := d.items[p]
	if !ok {
		return nil, graph.ErrNotFound
	}

	cp := *it

	return &cp, nil
}

func (d *fakeDrive) ListChildrenByPath(_ context.Context, p string) (graph.Children, error) {
	d.listCalls++

	kids, ok := d.children[p]
	if !ok {
		return nil, graph.ErrNotFound
	}

	return append(graph.Children(nil), kids...), nil
}

func (d *fakeDrive) GetThumbnail(_ context.Context, itemID, size string) (*graph.Thumbnail, error) {
	return &graph.Thumbnail{URL: "https://thumb/" + itemID + "/" + size}, nil
}

func (d *fakeDrive) Search(_ context.Context, _, keyword string) (graph.Children, error) {
	var out graph.Children

	for _, it := range d.items {
		if strings.Contains(strings.ToLower(it.Name), strings.ToLower(keyword)) {
			out = append(out, *it)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

func (d *fakeDrive) ItemPath(_ context.Context, itemID string) (string, error) {
	for p, it := range d.items {
		if it.ID == itemID {
			return p, nil
		}
	}

	return "", graph.ErrNotFound
}

func (d *fakeDrive) FetchContent(_ context.Context, url string, _ int64) ([]byte, error) {
	body, ok := d.content[url]
	if !ok {
		return nil, graph.ErrNotFound
	}

	return body, nil
}

// newTestCLI returns a CLIContext over a populated fake drive with one
// protected subtree, /Private (key "priv", password "hunter2").
func newTestCLI(t *testing.T) (*CLIContext, *fakeDrive, *bytes.Buffer) {
	t.Helper()

	d := newFakeDrive()
	d.addFolder("/Docs", 2)
	d.addFolder("/Photos", 5)
	d.addFolder("/Private", 1)
	d.addFile("/notes.md", "# Notes\n")
	d.addFile("/archive.zip", "PK")
	d.addFile("/README.md", "Welcome")
	d.addFile("/Docs/plan.txt", "step one")
	d.addFile("/Private/secret.txt", "classified")

	cfg := config.DefaultConfig()
	cfg.Protect.Secret = "test-secret"
	cfg.Protect.Subtrees = []config.SubtreeSection{{Path: "/Private", KeyID: "priv", Password: "hunter2"}}

	store, err := cache.NewMemoryStore(256)
	require.NoError(t, err)

	sessions, err := sessionStore(cfg.Cache.Backend, store)
	require.NoError(t, err)

	svc, err := newService(d, store, sessions, cfg, testLogger(t))
	require.NoError(t, err)

	out := &bytes.Buffer{}
	cc := &CLIContext{
		Cfg:       cfg,
		Flags:     CLIFlags{Quiet: true},
		Logger:    testLogger(t),
		Out:       out,
		Service:   svc,
		SessionID: "sess-test",
		closers:   []func() error{store.Close, sessions.Close},
	}

	t.Cleanup(func() { _ = cc.Close() })

	return cc, d, out
}
