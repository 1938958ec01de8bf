package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/downline/pkg/pipeline"
	"github.com/matzehuels/downline/pkg/tree"
)

// vizFlags holds the flags shared by render, layout and visualize. Values
// left unset on the command line fall back to the [render] config section.
type vizFlags struct {
	vizType     string
	focus       string
	formats     string
	title       string
	width       float64
	height      float64
	scale       float64
	legend      bool
	transitions bool
	detailed    bool
}

// registerLayout adds the flags that affect the computed layout.
func (f *vizFlags) registerLayout(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.vizType, "type", "t", pipeline.DefaultVizType, "visualization type: bubble, nodelink")
	cmd.Flags().StringVar(&f.focus, "focus", "", "member id to focus")
	cmd.Flags().Float64Var(&f.width, "width", pipeline.DefaultWidth, "frame width")
	cmd.Flags().Float64Var(&f.height, "height", pipeline.DefaultHeight, "frame height")
}

// registerRender adds the flags that only affect drawing.
func (f *vizFlags) registerRender(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.formats, "format", "f", "", "output format(s): svg (default), json, pdf, png (comma-separated)")
	cmd.Flags().StringVar(&f.title, "title", "", "diagram title")
	cmd.Flags().Float64Var(&f.scale, "scale", pipeline.DefaultScale, "PNG scale factor")
	cmd.Flags().BoolVar(&f.legend, "legend", false, "draw the level legend (bubble)")
	cmd.Flags().BoolVar(&f.transitions, "transitions", false, "animate focus changes with CSS transitions (bubble SVG)")
	cmd.Flags().BoolVar(&f.detailed, "detailed", false, "show capital and downline counts (nodelink)")
}

// options merges config defaults with the flags the user set explicitly.
func (c *CLI) options(cmd *cobra.Command, f *vizFlags) (pipeline.Options, error) {
	opts := c.renderDefaults()
	opts.Logger = c.Logger

	set := cmd.Flags().Changed
	if set("type") {
		opts.VizType = strings.ToLower(f.vizType)
	}
	if set("width") {
		opts.Width = f.width
	}
	if set("height") {
		opts.Height = f.height
	}
	if set("format") {
		opts.Formats = pipeline.ParseFormats(f.formats)
	}
	if set("scale") {
		opts.Scale = f.scale
	}
	if set("legend") {
		opts.Legend = f.legend
	}
	if set("transitions") {
		opts.Transitions = f.transitions
	}
	opts.Focus = strings.TrimSpace(f.focus)
	opts.Title = f.title
	opts.Detailed = f.detailed

	if err := opts.ValidateAndSetDefaults(); err != nil {
		return pipeline.Options{}, err
	}
	return opts, nil
}

// renderCommand creates the render command for generating visualizations.
func (c *CLI) renderCommand() *cobra.Command {
	var (
		flags   vizFlags
		output  string
		owner   string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "render [snapshot.json]",
		Short: "Render a downline tree to SVG, PNG, PDF or JSON",
		Long: `Render a downline tree to SVG, PNG, PDF or JSON.

The tree is read from a snapshot file ("-" for stdin), or, with --owner and
no file, from the configured store. Use --focus to emphasize one member the
way a click on its bubble does.

PNG and PDF output shell out to rsvg-convert (bubble) or Graphviz (nodelink).
Results are cached for faster subsequent runs.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.options(cmd, &flags)
			if err != nil {
				return err
			}
			return c.runRender(cmd.Context(), args, owner, opts, output, noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVar(&owner, "owner", "", "render the owner's tree from the configured store")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	flags.registerLayout(cmd)
	flags.registerRender(cmd)

	return cmd
}

// runRender loads the tree, runs the pipeline and writes the artifacts.
func (c *CLI) runRender(ctx context.Context, args []string, owner string, opts pipeline.Options, output string, noCache bool) error {
	t, input, err := c.loadTree(ctx, args, owner)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %s...", opts.VizType))
	spinner.Start()

	result, err := runner.Execute(ctx, t, opts)
	if err != nil {
		spinner.StopWithError("Render failed")
		return err
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	return writeArtifacts(artifactWriteParams{
		artifacts: result.Artifacts,
		formats:   opts.Formats,
		input:     input,
		output:    output,
		members:   result.Stats.MemberCount,
		cacheHit:  result.CacheInfo.LayoutHit && result.CacheInfo.RenderHit,
	})
}

// loadTree reads the snapshot named by args, or the owner's tree from the
// store. The returned name is used to derive output paths.
func (c *CLI) loadTree(ctx context.Context, args []string, owner string) (*tree.Tree, string, error) {
	if len(args) == 1 {
		t, err := pipeline.ReadSnapshotFile(args[0])
		if err != nil {
			return nil, "", fmt.Errorf("load snapshot %s: %w", args[0], err)
		}
		name := args[0]
		if name == "-" {
			name = "downline.json"
		}
		return t, name, nil
	}
	if owner == "" {
		return nil, "", fmt.Errorf("a snapshot file or --owner is required")
	}

	svc, st, err := c.newService(ctx)
	if err != nil {
		return nil, "", err
	}
	defer st.Close()

	t, err := svc.Snapshot(ctx, owner)
	if err != nil {
		return nil, "", err
	}
	return t, "downline-" + owner + ".json", nil
}

// =============================================================================
// Output
// =============================================================================

type artifactWriteParams struct {
	artifacts map[string][]byte
	formats   []string
	input     string
	output    string
	members   int
	cacheHit  bool
}

// writeArtifacts writes each artifact to its own file. With one format the
// output flag names the file ("-" for stdout); with several it is a base
// path that gets the format as extension.
func writeArtifacts(p artifactWriteParams) error {
	if len(p.formats) == 1 && p.output == "-" {
		_, err := os.Stdout.Write(p.artifacts[p.formats[0]])
		return err
	}

	var paths []string
	for _, format := range p.formats {
		data, ok := p.artifacts[format]
		if !ok {
			continue
		}
		path := basePath(p.output, p.input) + "." + format
		if len(p.formats) == 1 && p.output != "" {
			path = p.output
		} else if filepath.Clean(path) == filepath.Clean(p.input) {
			// Never overwrite the snapshot with JSON output.
			path = basePath(p.output, p.input) + ".render." + format
		}
		if err := writeFile(path, data); err != nil {
			return err
		}
		paths = append(paths, path)
	}

	printSuccess("Render complete")
	for _, path := range paths {
		printFile(path)
	}
	printStats(p.members, p.cacheHit)
	return nil
}

func writeFile(path string, data []byte) error {
	out, err := openOutput(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := out.Write(data); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return out.Close()
}

// basePath derives the base output path from the output and input file paths.
// If output is empty, it strips the extension from input.
// If output has a format extension (.svg, .pdf, etc.), it strips that extension.
func basePath(output, input string) string {
	if output == "" {
		return strings.TrimSuffix(input, filepath.Ext(input))
	}
	ext := filepath.Ext(output)
	if pipeline.ValidFormats[strings.TrimPrefix(ext, ".")] {
		return strings.TrimSuffix(output, ext)
	}
	return output
}

// nopCloser wraps an io.Writer with a no-op Close method.
type nopCloser struct{ io.Writer }

// Close implements io.Closer with a no-op.
func (nopCloser) Close() error { return nil }

// openOutput returns a WriteCloser for the given path.
// If path is empty or "-", it returns os.Stdout wrapped in nopCloser.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}
