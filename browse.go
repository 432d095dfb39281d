package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/onedrive-index/internal/config"
	"github.com/tonimelisma/onedrive-index/internal/graph"
	"github.com/tonimelisma/onedrive-index/internal/index"
	"github.com/tonimelisma/onedrive-index/internal/listing"
	"github.com/tonimelisma/onedrive-index/internal/vpath"
)

type lsOptions struct {
	order   string
	limit   int
	page    int
	banners bool
}

func newLsCmd() *cobra.Command {
	var opts lsOptions

	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a folder, folders first",
		Long: `List one page of a folder. Folders come first, most children first; within
each group items follow --order. When the path is a file, its download URL
is printed instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLs(cmd.Context(), mustCLIContext(cmd.Context()), argOrRoot(args), opts)
		},
	}

	cmd.Flags().StringVar(&opts.order, "order", listing.SortName, `sort as "field[,asc|desc]", field one of name, size, modified`)
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "items per page (0 = configured page size, -1 = all)")
	cmd.Flags().IntVar(&opts.page, "page", 1, "page number")
	cmd.Flags().BoolVar(&opts.banners, "banners", false, "print HEAD.md above and README.md below the listing")

	return cmd
}

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "Show the cached record of a file or folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStat(cmd.Context(), mustCLIContext(cmd.Context()), pathArg(args[0]))
		},
	}
}

func newURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "url <path>",
		Short: "Print the pre-authenticated download URL of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runURL(cmd.Context(), mustCLIContext(cmd.Context()), pathArg(args[0]))
		},
	}
}

func newCatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <path>",
		Short: "Print a text or code file, or the download URL for anything else",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCat(cmd.Context(), mustCLIContext(cmd.Context()), pathArg(args[0]))
		},
	}
}

func newForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget <path>",
		Short: "Drop cached entries for a path and its parent listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForget(cmd.Context(), mustCLIContext(cmd.Context()), pathArg(args[0]))
		},
	}
}

func argOrRoot(args []string) string {
	if len(args) > 0 {
		return pathArg(args[0])
	}

	return "/"
}

// pathArg encodes a literal command-line path into the request form the
// index decodes, so names containing "%" or "#" are taken as typed.
func pathArg(arg string) string {
	return vpath.Encode(arg)
}

func runLs(ctx context.Context, cc *CLIContext, path string, opts lsOptions) error {
	field, dir := listing.ParseOrder(opts.order)

	cc.Logger.Debug("ls", slog.String("path", path), slog.String("order", field+","+dir))

	res, err := cc.Service.ResolveListing(ctx, index.ListingRequest{
		Viewer:        cc.Viewer(),
		Path:          path,
		SortField:     field,
		SortDirection: dir,
		Limit:         opts.limit,
		Page:          opts.page,
	})
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return writeJSON(cc.Out, res)
	}

	if res.RedirectURL != "" {
		cc.Statusf("%s is a file; download URL:\n", res.Path)
		fmt.Fprintln(cc.Out, res.RedirectURL)

		return nil
	}

	if opts.banners && res.Head != "" {
		fmt.Fprintln(cc.Out, res.Head)
	}

	printItemsTable(cc.Out, res.Page.Items)

	if opts.banners && res.Readme != "" {
		fmt.Fprintln(cc.Out)
		fmt.Fprintln(cc.Out, res.Readme)
	}

	cc.Statusf("page %d of %d, %d items\n", res.Page.Page, res.Page.Pages(), res.Page.Total)

	return nil
}

func runStat(ctx context.Context, cc *CLIContext, path string) error {
	item, err := cc.Service.Stat(ctx, cc.Viewer(), path)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return writeJSON(cc.Out, statJSON(item))
	}

	kind := "file"

	switch {
	case item.IsPackage():
		kind = "package (" + item.PackageType + ")"
	case item.IsFolder():
		kind = "folder, " + strconv.Itoa(item.ChildCount()) + " children"
	}

	rows := [][]string{
		{"name", item.Name},
		{"id", item.ID},
		{"type", kind},
		{"size", formatSize(item.Size)},
		{"modified", formatTime(item.ModifiedAt)},
	}

	if item.File != nil && item.File.MimeType != "" {
		rows = append(rows, []string{"mime", item.File.MimeType})
	}

	printTable(cc.Out, []string{"FIELD", "VALUE"}, rows)

	return nil
}

func runURL(ctx context.Context, cc *CLIContext, path string) error {
	u, err := cc.Service.Download(ctx, cc.Viewer(), path)
	if err != nil {
		return err
	}

	fmt.Fprintln(cc.Out, u)

	return nil
}

// runCat streams text and code previews inline. Any other preview kind has
// no terminal rendering, so the download URL is printed instead.
func runCat(ctx context.Context, cc *CLIContext, path string) error {
	item, err := cc.Service.ResolveFileOrRedirect(ctx, cc.Viewer(), path)
	if err != nil {
		return err
	}

	kind := cc.Cfg.Preview.Classify(item.Ext())
	cc.Logger.Debug("cat", slog.String("path", path), slog.String("preview", kind))

	if kind != config.PreviewStream && kind != config.PreviewCode {
		if item.DownloadURL == "" {
			return &index.DisplayError{Op: "cat", Path: path, Kind: index.ErrTypeMismatch, Cause: graph.ErrNoDownloadURL}
		}

		cc.Statusf("%s preview is %q; download URL:\n", item.Name, kind)
		fmt.Fprintln(cc.Out, item.DownloadURL)

		return nil
	}

	data, err := cc.Service.InlineContent(ctx, item)
	if err != nil {
		return err
	}

	_, err = cc.Out.Write(data)

	return err
}

func runForget(ctx context.Context, cc *CLIContext, path string) error {
	if err := cc.Service.Forget(ctx, path); err != nil {
		return err
	}

	cc.Statusf("Forgot cached entries for %s.\n", path)

	return nil
}

// itemJSON is the JSON output schema for a single item.
type itemJSON struct {
	Name       string `json:"name"`
	ID         string `json:"id"`
	Size       int64  `json:"size"`
	IsFolder   bool   `json:"is_folder"`
	ChildCount int    `json:"child_count,omitempty"`
	ModifiedAt string `json:"modified_at"`
}

func statJSON(it *graph.Item) itemJSON {
	out := itemJSON{
		Name:       it.Name,
		ID:         it.ID,
		Size:       it.Size,
		IsFolder:   it.IsFolder(),
		ModifiedAt: it.ModifiedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}

	if it.IsFolder() {
		out.ChildCount = it.ChildCount()
	}

	return out
}

func printItemsTable(w io.Writer, items []graph.Item) {
	headers := []string{"NAME", "SIZE", "MODIFIED"}
	rows := make([][]string, 0, len(items))

	for i := range items {
		name := items[i].Name
		if items[i].IsFolder() {
			name += "/"
		}

		rows = append(rows, []string{name, formatSize(items[i].Size), formatTime(items[i].ModifiedAt)})
	}

	printTable(w, headers, rows)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
