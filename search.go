package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/onedrive-index/internal/index"
)

func newSearchCmd() *cobra.Command {
	var limit, page int

	cmd := &cobra.Command{
		Use:   "search <keyword>...",
		Short: "Search files under the storage root",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), mustCLIContext(cmd.Context()), strings.Join(args, " "), limit, page)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", index.DefaultPageSize, "results per page (-1 = all)")
	cmd.Flags().IntVar(&page, "page", 1, "page number")

	return cmd
}

func newLocateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locate <item-id>",
		Short: "Print the path of a search result by item ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocate(cmd.Context(), mustCLIContext(cmd.Context()), args[0])
		},
	}
}

type thumbOptions struct {
	size          string
	width, height int
}

func newThumbCmd() *cobra.Command {
	var opts thumbOptions

	cmd := &cobra.Command{
		Use:   "thumb <item-id | path>",
		Short: "Print a thumbnail URL",
		Long: `Print a thumbnail URL. With --width and --height the argument is a path and
the large thumbnail is rescaled; otherwise it is an item ID and --size picks
a stock thumbnail.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runThumb(cmd.Context(), mustCLIContext(cmd.Context()), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.size, "size", index.ThumbLarge, "stock size: small, medium or large")
	cmd.Flags().IntVar(&opts.width, "width", 0, "rescaled width in pixels")
	cmd.Flags().IntVar(&opts.height, "height", 0, "rescaled height in pixels")

	return cmd
}

func runSearch(ctx context.Context, cc *CLIContext, keyword string, limit, page int) error {
	res, err := cc.Service.Search(ctx, cc.Viewer(), keyword, limit, page)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return writeJSON(cc.Out, res)
	}

	rows := make([][]string, 0, len(res.Items))
	for i := range res.Items {
		it := &res.Items[i]
		rows = append(rows, []string{it.Name, formatSize(it.Size), formatTime(it.ModifiedAt), it.ID})
	}

	printTable(cc.Out, []string{"NAME", "SIZE", "MODIFIED", "ID"}, rows)
	cc.Statusf("page %d of %d, %d results\n", res.Page, res.Pages(), res.Total)

	return nil
}

func runLocate(ctx context.Context, cc *CLIContext, itemID string) error {
	p, err := cc.Service.Locate(ctx, itemID)
	if err != nil {
		return err
	}

	fmt.Fprintln(cc.Out, p)

	return nil
}

func runThumb(ctx context.Context, cc *CLIContext, arg string, opts thumbOptions) error {
	var (
		u   string
		err error
	)

	if opts.width > 0 || opts.height > 0 {
		u, err = cc.Service.ThumbnailCrop(ctx, cc.Viewer(), pathArg(arg), opts.width, opts.height)
	} else {
		u, err = cc.Service.Thumbnail(ctx, cc.Viewer(), arg, opts.size)
	}

	if err != nil {
		return err
	}

	fmt.Fprintln(cc.Out, u)

	return nil
}
