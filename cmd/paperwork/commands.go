package main

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/CZERTAINLY/Paperwork/internal/job"
	"github.com/CZERTAINLY/Paperwork/internal/model"
	"github.com/CZERTAINLY/Paperwork/internal/workflow"

	"github.com/spf13/cobra"
)

var errNoDevice = errors.New("no scanner device configured, set scanner.device or use --device")

// withApp runs fn with a started app and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) (err error) {
	ctx := cmd.Context()
	a, err := startApp(ctx, config, withProgress(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close(ctx))
	}()
	return fn(ctx, a)
}

// state reads the coordinator state on the consumer goroutine.
func state[T any](ctx context.Context, a *app, get func(st *workflow.State) T) (T, error) {
	var ret T
	err := a.do(ctx, func(_ context.Context, c *workflow.Coordinator) error {
		ret = get(c.State())
		return nil
	})
	return ret, err
}

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "rebuild the document index of the working directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.reindex(ctx); err != nil {
					return err
				}
				n, err := state(ctx, a, func(st *workflow.State) int { return len(st.Documents) })
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d documents indexed\n", n)
				return nil
			})
		},
	}
}

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search [keywords...]",
		Short: "list the documents matching all keywords, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if _, err := a.openIndex(ctx); err != nil {
					return err
				}
				var (
					docs        []model.Document
					suggestions []string
				)
				err := a.do(ctx, func(ctx context.Context, c *workflow.Coordinator) error {
					if err := c.Search(ctx, query); err != nil {
						return err
					}
					docs = c.State().Documents
					suggestions = c.State().Suggestions
					return nil
				})
				if err != nil {
					return err
				}
				printDocuments(cmd.OutOrStdout(), docs)
				if len(docs) == 0 && len(suggestions) > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "did you mean: %s\n", strings.Join(suggestions, ", "))
				}
				return nil
			})
		},
	}
}

func printDocuments(w io.Writer, docs []model.Document) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, d := range docs {
		labels := make([]string, 0, len(d.Labels()))
		for _, l := range d.Labels() {
			labels = append(labels, l.Name)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", d.ID(), d.Name(), d.PageCount(), strings.Join(labels, ", "))
	}
	_ = tw.Flush()
}

func newScanCmd() *cobra.Command {
	var (
		docID  string
		count  int
		device string
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "scan pages into a new or an existing document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if device != "" {
				if config.Scanner == nil {
					config.Scanner = &model.Scanner{}
				}
				config.Scanner.Device = device
			}
			if config.ScannerDevice() == "" {
				return errNoDevice
			}
			if count < 0 {
				return fmt.Errorf("negative --count %d", count)
			}
			kind := job.KindScanMulti
			if count == 1 {
				kind = job.KindScanSingle
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if _, err := a.openIndex(ctx); err != nil {
					return err
				}
				// a successful scan reindexes the working directory
				indexed := a.await(job.KindReindex)
				_, err := a.run(ctx, kind, func(ctx context.Context, c *workflow.Coordinator) error {
					if docID != "" {
						if err := c.OpenDocumentID(ctx, docID); err != nil {
							return err
						}
					}
					if kind == job.KindScanSingle {
						return c.SingleScan(ctx)
					}
					return c.MultiScan(ctx, count)
				})
				if err != nil {
					return err
				}
				doc, err := state(ctx, a, func(st *workflow.State) model.Document { return st.Doc })
				if err != nil {
					return err
				}
				if doc != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d pages\n", doc.ID(), doc.PageCount())
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case ev := <-indexed:
					if ev.Err != nil && !ev.Cancelled {
						return ev.Err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&docID, "doc", "", "append pages to this document")
	cmd.Flags().IntVar(&count, "count", 1, "pages to scan, 0 scans until the feeder is empty")
	cmd.Flags().StringVar(&device, "device", "", "scanner device, e.g. dir:/srv/feeder")
	return cmd
}

func newThumbnailsCmd() *cobra.Command {
	var (
		docID string
		out   string
	)
	cmd := &cobra.Command{
		Use:   "thumbnails",
		Short: "write page thumbnails of a document as PNG files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if _, err := a.openIndex(ctx); err != nil {
					return err
				}
				_, err := a.run(ctx, job.KindThumbnail, func(ctx context.Context, c *workflow.Coordinator) error {
					return c.OpenDocumentID(ctx, docID)
				})
				if err != nil {
					return err
				}
				pages, err := state(ctx, a, func(st *workflow.State) []workflow.PageSlot {
					return append([]workflow.PageSlot(nil), st.Pages...)
				})
				if err != nil {
					return err
				}
				if err := os.MkdirAll(out, 0o755); err != nil {
					return err
				}
				for _, p := range pages {
					if p.Thumbnail == nil {
						slog.WarnContext(ctx, "no thumbnail", "page", p.Number+1)
						continue
					}
					name := filepath.Join(out, fmt.Sprintf("page-%d.png", p.Number+1))
					if err := writePNG(name, p.Thumbnail); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&docID, "doc", "", "document id")
	cmd.Flags().StringVar(&out, "out", ".", "output directory")
	_ = cmd.MarkFlagRequired("doc")
	return cmd
}

func newRenderCmd() *cobra.Command {
	var (
		docID    string
		page     int
		out      string
		zoom     float64
		width    int
		allBoxes bool
		query    string
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "render a page with its highlighted words as PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if _, err := a.openIndex(ctx); err != nil {
					return err
				}
				_, err := a.run(ctx, job.KindRender, func(ctx context.Context, c *workflow.Coordinator) error {
					// each setter restarts the renderer, only the last run counts
					if err := c.Search(ctx, query); err != nil {
						return err
					}
					if err := c.SetZoom(ctx, zoom); err != nil {
						return err
					}
					if err := c.SetViewportWidth(ctx, width); err != nil {
						return err
					}
					if err := c.SetShowAllBoxes(ctx, allBoxes); err != nil {
						return err
					}
					if err := c.OpenDocumentID(ctx, docID); err != nil {
						return err
					}
					return c.OpenPageNumber(ctx, page)
				})
				if err != nil {
					return err
				}
				st, err := state(ctx, a, func(st *workflow.State) workflow.State { return *st })
				if err != nil {
					return err
				}
				if st.Image == nil {
					return fmt.Errorf("page %d of %s not rendered: %s", page, docID, st.Stock)
				}
				if out == "-" {
					return png.Encode(cmd.OutOrStdout(), st.Image)
				}
				return writePNG(out, st.Image)
			})
		},
	}
	cmd.Flags().StringVar(&docID, "doc", "", "document id")
	cmd.Flags().IntVar(&page, "page", 1, "page number, counted from 1")
	cmd.Flags().StringVar(&out, "out", "page.png", "output file, - for stdout")
	cmd.Flags().Float64Var(&zoom, "zoom", 0, "zoom factor, 0 fits the viewport width")
	cmd.Flags().IntVar(&width, "width", workflow.DefaultViewportWidth, "viewport width in pixels")
	cmd.Flags().BoolVar(&allBoxes, "boxes", false, "outline every OCR word")
	cmd.Flags().StringVar(&query, "query", "", "highlight words matching these keywords")
	_ = cmd.MarkFlagRequired("doc")
	return cmd
}

func newLabelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "label",
		Short: "list, toggle and rename labels",
	}

	var listDoc string
	list := &cobra.Command{
		Use:   "list",
		Short: "list all labels, * marks the ones of --doc",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if _, err := a.openIndex(ctx); err != nil {
					return err
				}
				var items []workflow.LabelItem
				err := a.do(ctx, func(ctx context.Context, c *workflow.Coordinator) error {
					if listDoc != "" {
						if err := c.OpenDocumentID(ctx, listDoc); err != nil {
							return err
						}
					}
					items = c.State().Labels
					return nil
				})
				if err != nil {
					return err
				}
				for _, it := range items {
					mark := " "
					if it.Checked {
						mark = "*"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", mark, it.Label.Color, it.Label.Name)
				}
				return nil
			})
		},
	}
	list.Flags().StringVar(&listDoc, "doc", "", "document id")

	var toggleDoc string
	toggle := &cobra.Command{
		Use:   "toggle NAME [#rrggbb]",
		Short: "attach a label to a document or detach it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if _, err := a.openIndex(ctx); err != nil {
					return err
				}
				return a.do(ctx, func(ctx context.Context, c *workflow.Coordinator) error {
					if err := c.OpenDocumentID(ctx, toggleDoc); err != nil {
						return err
					}
					label, known, err := resolveLabel(c.State(), args)
					if err != nil {
						return err
					}
					if !known {
						return c.CreateLabel(ctx, label)
					}
					return c.ToggleLabel(ctx, label)
				})
			})
		},
	}
	toggle.Flags().StringVar(&toggleDoc, "doc", "", "document id")
	_ = toggle.MarkFlagRequired("doc")

	rename := &cobra.Command{
		Use:   "rename OLD NEW [#rrggbb]",
		Short: "rename or recolor a label on every document",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if _, err := a.openIndex(ctx); err != nil {
					return err
				}
				_, err := a.run(ctx, job.KindLabelUpdate, func(ctx context.Context, c *workflow.Coordinator) error {
					old, known, err := resolveLabel(c.State(), args[:1])
					if err != nil {
						return err
					}
					if !known {
						return fmt.Errorf("unknown label %q", old.Name)
					}
					updated := model.Label{Name: args[1], Color: old.Color}
					if len(args) == 3 {
						updated.Color = args[2]
					}
					return c.EditLabel(ctx, old, updated)
				})
				return err
			})
		},
	}

	cmd.AddCommand(list, toggle, rename)
	return cmd
}

// resolveLabel finds the label named args[0]. A color in args[1] is
// required for a label not in use yet.
func resolveLabel(st *workflow.State, args []string) (model.Label, bool, error) {
	for _, it := range st.Labels {
		if it.Label.Name == args[0] {
			return it.Label, true, nil
		}
	}
	if len(args) < 2 {
		return model.Label{}, false, fmt.Errorf("new label %q needs a color", args[0])
	}
	return model.Label{Name: args[0], Color: args[1]}, false, nil
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "keep the index up to date, reindexing on start and on schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := startApp(ctx, config)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(ctx); err != nil {
					slog.ErrorContext(ctx, "shutdown", "error", err)
				}
			}()
			return serve(ctx, a)
		},
	}
}
