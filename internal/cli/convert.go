package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/reflow/pkg/pipeline"
)

// convertOpts holds the command-line flags for the convert command.
type convertOpts struct {
	pipeline.Options
	background int  // luminance treated as blank, applied only when set
	tui        bool // show the interactive progress view
}

// convertCommand creates the convert command.
func (c *CLI) convertCommand() *cobra.Command {
	opts := convertOpts{background: pipeline.DefaultBackground}

	cmd := &cobra.Command{
		Use:   "convert [dir]",
		Short: "Re-paginate a directory of page images",
		Long: `Convert reads the page images in a directory in name order, cuts them at
blank rows and writes pages of a fixed height as an image sequence or a PDF.

Without --output the result is written next to the input as <dir>_reflow
(or <dir>_reflow.pdf with --container pdf).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Input = args[0]
			c.config.applyTo(cmd, &opts.Options)
			if cmd.Flags().Changed("background") {
				opts.Background = &opts.background
			}
			return c.runConvert(cmd.Context(), &opts)
		},
	}

	addPageFlags(cmd, &opts.Options, &opts.background)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output directory or .pdf file")
	cmd.Flags().StringVar(&opts.Container, "container", "", "output container: images (default), pdf")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "page image format: png (default), jpeg")
	cmd.Flags().IntVar(&opts.Quality, "quality", pipeline.DefaultQuality, "JPEG quality (1-100)")
	cmd.Flags().IntVar(&opts.Levels, "levels", pipeline.DefaultLevels, "gray levels: 4, 16 or 256")
	cmd.Flags().IntVar(&opts.Rotate, "rotate", 0, "rotate output pages clockwise: 0, 90, 180 or 270")
	cmd.Flags().StringVar(&opts.Title, "title", "", "document title (default: input name)")
	cmd.Flags().StringVar(&opts.Author, "author", "", "document author")
	cmd.Flags().BoolVar(&opts.Passthrough, "passthrough", false, "copy source pages without re-paginating")
	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "disable the render cache")
	cmd.Flags().BoolVar(&opts.tui, "tui", false, "show an interactive progress view")
	registerCompletions(cmd)

	return cmd
}

// addPageFlags registers the flags shared by convert and inspect.
func addPageFlags(cmd *cobra.Command, opts *pipeline.Options, background *int) {
	cmd.Flags().StringVarP(&opts.Pages, "pages", "p", "", `pages to use, e.g. "1-3,7,10-" (default all)`)
	cmd.Flags().IntVar(&opts.Width, "width", pipeline.DefaultWidth, "render width in pixels")
	cmd.Flags().IntVar(&opts.Height, "height", pipeline.DefaultHeight, "output page height in pixels")
	cmd.Flags().IntVar(&opts.MaxFragmentHeight, "max-fragment-height", 0, "tallest piece cut from a source page (default: page height)")
	cmd.Flags().IntVar(background, "background", pipeline.DefaultBackground, "gray value treated as blank (0-255)")
}

// runConvert executes the conversion, reporting progress with a spinner or
// the interactive view.
func (c *CLI) runConvert(ctx context.Context, opts *convertOpts) error {
	logger := loggerFromContext(ctx)

	runner, err := c.newRunner(ctx, opts.NoCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var progress pipeline.Progress
	type outcome struct {
		res *pipeline.Result
		err error
	}
	done := make(chan outcome, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		res, err := runner.Execute(ctx, opts.Options, &progress)
		done <- outcome{res, err}
	}()

	var out outcome
	if opts.tui {
		if err := runProgressView(opts.Input, &progress, finished, cancel); err != nil {
			cancel()
			logger.Warn("progress view failed", "error", err)
		}
		out = <-done
	} else {
		spinner := newSpinner(ctx, "Converting "+opts.Input, &progress)
		spinner.Start()
		out = <-done
		spinner.Stop()
	}

	if out.err != nil {
		if out.res != nil && out.res.Stats.Canceled {
			printWarning("Canceled after %d pages", out.res.Stats.OutputPages)
			printFile(out.res.Output)
		}
		return out.err
	}

	printSuccess("Converted %s", opts.Input)
	printStats(out.res.Stats)
	printFile(out.res.Output)
	return nil
}

// printStats prints conversion statistics on a single line.
func printStats(s pipeline.Stats) {
	parts := []string{
		fmt.Sprintf("%d source pages", s.SourcePages),
		fmt.Sprintf("%d pages written", s.OutputPages),
	}
	if s.Fragments > 0 {
		parts = append(parts, fmt.Sprintf("%d fragments", s.Fragments))
	}
	if s.HardCuts > 0 {
		parts = append(parts, StyleWarning.Render(fmt.Sprintf("%d hard cuts", s.HardCuts)))
	}
	parts = append(parts, s.Duration.Round(time.Millisecond).String())
	printDetailParts(os.Stdout, parts)
}
