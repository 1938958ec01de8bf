package cli

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/downline/pkg/pipeline"
	"github.com/matzehuels/downline/pkg/render/bubble/layout"
)

// layoutCommand creates the layout command for computing bubble positions.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		flags   vizFlags
		output  string
		owner   string
		asJSON  bool
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "layout [snapshot.json]",
		Short: "Compute the layout of a downline tree",
		Long: `Compute the layout of a downline tree.

The layout holds every bubble's position, radius, scale and opacity for the
given focus. It is written to <input>.layout.json (or -o) and can be drawn
later with 'visualize'. With --json the layout is printed to stdout instead,
otherwise a table of the placed bubbles is shown.

Results are cached locally for faster subsequent runs.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.options(cmd, &flags)
			if err != nil {
				return err
			}
			return c.runLayout(cmd, args, owner, opts, output, asJSON, noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.layout.json)")
	cmd.Flags().StringVar(&owner, "owner", "", "lay out the owner's tree from the configured store")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the layout as JSON to stdout")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	flags.registerLayout(cmd)

	return cmd
}

// runLayout loads the tree, computes the layout, and writes output.
func (c *CLI) runLayout(cmd *cobra.Command, args []string, owner string, opts pipeline.Options, output string, asJSON, noCache bool) error {
	ctx := cmd.Context()
	t, input, err := c.loadTree(ctx, args, owner)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Computing %s layout...", opts.VizType))
	spinner.Start()

	l, cacheHit, err := runner.ComputeLayoutWithCacheInfo(ctx, t, opts)
	if err != nil {
		spinner.StopWithError("Layout failed")
		return fmt.Errorf("compute layout: %w", err)
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if asJSON {
		data, err := pipeline.MarshalLayout(l)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}

	outputPath := output
	if outputPath == "" {
		outputPath = strings.TrimSuffix(input, filepath.Ext(input)) + ".layout.json"
	}
	if err := pipeline.WriteLayoutFile(l, outputPath); err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}

	printSuccess("Layout complete")
	printFile(outputPath)
	if l.Bubble != nil {
		printBubbleTable(l.Bubble)
	}
	printStats(t.Len(), cacheHit)
	printNewline()
	printNextStep("Render", "downline visualize "+outputPath)
	return nil
}

// printBubbleTable lists the placed bubbles in paint order.
func printBubbleTable(l *layout.Layout) {
	rows := make([][]string, 0, len(l.Bubbles))
	for _, b := range l.Bubbles {
		state := ""
		switch {
		case b.Focused:
			state = "focus"
		case b.Opacity < 1:
			state = "dimmed"
		}
		rows = append(rows, []string{
			b.ID,
			b.Name,
			b.Level.String(),
			strconv.FormatFloat(b.X, 'f', 1, 64),
			strconv.FormatFloat(b.Y, 'f', 1, 64),
			strconv.FormatFloat(b.Radius, 'f', 1, 64),
			state,
		})
	}
	printTable([]string{"ID", "Name", "Level", "X", "Y", "Radius", ""}, rows)
}
