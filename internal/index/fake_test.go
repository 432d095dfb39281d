package index

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/onedrive-index/internal/cache"
	"github.com/tonimelisma/onedrive-index/internal/graph"
	"github.com/tonimelisma/onedrive-index/internal/protect"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(testLogWriter{t: t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// testLogWriter adapts testing.T.Log to io.Writer for slog output.
type testLogWriter struct {
	t *testing.T
}

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// fakeRemote is an in-memory drive keyed by origin path. It counts calls so
// tests can assert which lookups went remote.
type fakeRemote struct {
	mu       sync.Mutex
	items    map[string]graph.Item     // origin path -> item
	children map[string]graph.Children // origin folder -> children
	content  map[string]string         // download URL -> body
	thumbs   map[string]string         // item ID -> large thumbnail URL
	paths    map[string]string         // item ID -> drive path
	results  graph.Children
	fail     error
	calls    map[string]int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		items:    make(map[string]graph.Item),
		children: make(map[string]graph.Children),
		content:  make(map[string]string),
		thumbs:   make(map[string]string),
		paths:    make(map[string]string),
		calls:    make(map[string]int),
	}
}

func (f *fakeRemote) count(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[name]++

	return f.fail
}

func (f *fakeRemote) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[name]
}

func (f *fakeRemote) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.calls {
		n += c
	}

	return n
}

func (f *fakeRemote) SetFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fail = err
}

// addFolder registers a folder and its children under origin.
func (f *fakeRemote) addFolder(origin string, kids ...graph.Item) {
	name := origin[strings.LastIndex(origin, "/")+1:]
	f.items[origin] = graph.Item{ID: "id:" + origin, Name: name, Folder: &graph.Folder{ChildCount: len(kids)}}

	for i := range kids {
		kids[i].ParentPath = origin
		f.items[strings.TrimSuffix(origin, "/")+"/"+kids[i].Name] = kids[i]
	}

	f.children[origin] = kids
}

func (f *fakeRemote) GetItemByPath(_ context.Context, p string) (*graph.Item, error) {
	if err := f.count("GetItemByPath"); err != nil {
		return nil, err
	}

	it, ok := f.items[p]
	if !ok {
		return nil, &graph.GraphError{StatusCode: 404, Err: graph.ErrNotFound}
	}

	return &it, nil
}

func (f *fakeRemote) ListChildrenByPath(_ context.Context, p string) (graph.Children, error) {
	if err := f.count("ListChildrenByPath"); err != nil {
		return nil, err
	}

	kids, ok := f.children[p]
	if !ok {
		return nil, &graph.GraphError{StatusCode: 404, Err: graph.ErrNotFound}
	}

	return kids, nil
}

func (f *fakeRemote) GetThumbnail(_ context.Context, id, _ string) (*graph.Thumbnail, error) {
	if err := f.count("GetThumbnail"); err != nil {
		return nil, err
	}

	u, ok := f.thumbs[id]
	if !ok {
		return nil, &graph.GraphError{StatusCode: 404, Err: graph.ErrNotFound}
	}

	return &graph.Thumbnail{URL: u}, nil
}

func (f *fakeRemote) Search(_ context.Context, _, _ string) (graph.Children, error) {
	if err := f.count("Search"); err != nil {
		return nil, err
	}

	return f.results, nil
}

func (f *fakeRemote) ItemPath(_ context.Context, id string) (string, error) {
	if err := f.count("ItemPath"); err != nil {
		return "", err
	}

	p, ok := f.paths[id]
	if !ok {
		return "", &graph.GraphError{StatusCode: 404, Err: graph.ErrNotFound}
	}

	return p, nil
}

func (f *fakeRemote) FetchContent(_ context.Context, u string, _ int64) ([]byte, error) {
	if err := f.count("FetchContent"); err != nil {
		return nil, err
	}

	if u == "" {
		return nil, graph.ErrNoDownloadURL
	}

	body, ok := f.content[u]
	if !ok {
		return nil, &graph.GraphError{StatusCode: 404, Err: graph.ErrNotFound}
	}

	return []byte(body), nil
}

func fileItem(name string, size int64) graph.Item {
	return graph.Item{
		ID:          "id-" + name,
		Name:        name,
		Size:        size,
		File:        &graph.File{},
		DownloadURL: "https://dl/" + name,
	}
}

func folderItem(name string, count int) graph.Item {
	return graph.Item{ID: "id-" + name, Name: name, Folder: &graph.Folder{ChildCount: count}}
}

type testEnv struct {
	svc    *Service
	remote *fakeRemote
	store  cache.Store
}

var testSubtrees = []protect.Subtree{
	{Path: "/Private", KeyID: "k1", Password: "hunter2"},
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	store, err := cache.NewMemoryStore(256)
	require.NoError(t, err)

	guard, err := protect.NewGuard("test-secret", testSubtrees, testLogger(t))
	require.NoError(t, err)

	if cfg.Root == "" {
		cfg.Root = "/Public"
	}

	if cfg.RemoteTimeout == 0 {
		cfg.RemoteTimeout = time.Second
	}

	remote := newFakeRemote()
	svc := NewService(remote, cache.NewAside(store, testLogger(t)), store, guard, cfg, testLogger(t))

	return &testEnv{svc: svc, remote: remote, store: store}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)

	return data
}

func itemNames(items []graph.Item) []string {
	out := make([]string, len(items))
	for i := range items {
		out[i] = items[i].Name
	}

	return out
}
