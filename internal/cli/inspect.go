package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/reflow/pkg/pipeline"
)

// inspectCommand creates the inspect command.
func (c *CLI) inspectCommand() *cobra.Command {
	var opts pipeline.Options
	var background int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect [dir]",
		Short: "Show how the pages of a directory would be cut",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Input = args[0]
			c.config.applyTo(cmd, &opts)
			if cmd.Flags().Changed("background") {
				opts.Background = &background
			}
			return c.runInspect(cmd.Context(), opts, asJSON)
		},
	}

	addPageFlags(cmd, &opts, &background)
	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "disable the render cache")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	registerCompletions(cmd)

	return cmd
}

func (c *CLI) runInspect(ctx context.Context, opts pipeline.Options, asJSON bool) error {
	runner, err := c.newRunner(ctx, opts.NoCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	prog := newProgress(loggerFromContext(ctx))
	spinner := newSpinner(ctx, fmt.Sprintf("Inspecting %s", opts.Input), nil)
	if !asJSON {
		spinner.Start()
	}
	report, err := runner.Inspect(ctx, opts)
	if !asJSON {
		spinner.Stop()
	}
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Inspected %d pages", len(report.Pages)))

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	writeReport(os.Stdout, report)
	return nil
}

// writeReport renders the per-page table and a summary line.
func writeReport(w io.Writer, report *pipeline.Report) {
	rows := make([][]string, 0, len(report.Pages))
	hardCuts := 0
	for _, p := range report.Pages {
		rows = append(rows, []string{
			strconv.Itoa(p.Number),
			fmt.Sprintf("%dx%d", p.Width, p.Height),
			strconv.Itoa(p.ContentHeight),
			strconv.Itoa(p.BlankBands),
			strconv.Itoa(p.Fragments),
			strconv.Itoa(p.HardCuts),
		})
		hardCuts += p.HardCuts
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Page", "Size", "Content", "Blank bands", "Fragments", "Hard cuts").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader.Padding(0, 1)
			}
			base := lipgloss.NewStyle().Padding(0, 1)
			if col == 5 && row >= 0 && row < len(report.Pages) && report.Pages[row].HardCuts > 0 {
				return base.Foreground(colorYellow)
			}
			return base.Foreground(colorWhite)
		})

	fmt.Fprintln(w, t.Render())
	printDetailParts(w, []string{
		fmt.Sprintf("%d source pages", len(report.Pages)),
		fmt.Sprintf("%d output pages", report.OutputPages),
		fmt.Sprintf("%d hard cuts", hardCuts),
	})
}
