package pipeline

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/matzehuels/downline/pkg/cache"
	derrors "github.com/matzehuels/downline/pkg/errors"
	"github.com/matzehuels/downline/pkg/observability"
	"github.com/matzehuels/downline/pkg/tree"
)

const snapshotJSON = `{
  "root": {"id": "me", "name": "Dana", "capital": 1000},
  "first_level": [
    {"id": "a", "name": "Alex", "capital": 250},
    {"id": "b", "name": "Blair", "capital": 120}
  ],
  "second_level": {
    "a": [{"id": "a1", "name": "Casey", "capital": 40}],
    "ghost": [{"id": "g1", "name": "Orphan", "capital": 1}]
  },
  "third_level": {
    "a1": [{"id": "a1x", "name": "Drew", "capital": 5}]
  }
}`

func sample(t *testing.T) *tree.Tree {
	t.Helper()
	tr, err := ReadSnapshot(strings.NewReader(snapshotJSON))
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	return tr
}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"svg", false},
		{"png", false},
		{"pdf", false},
		{"json", false},
		{"invalid", true},
		{"SVG", true}, // case-sensitive
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
		if err != nil && !derrors.Is(err, derrors.ErrCodeInvalidFormat) {
			t.Errorf("ValidateFormat(%q) code = %s, want INVALID_FORMAT", tt.format, derrors.GetCode(err))
		}
	}
}

func TestValidateFormats(t *testing.T) {
	if err := ValidateFormats([]string{"svg", "png"}); err != nil {
		t.Errorf("Valid formats should pass: %v", err)
	}

	if err := ValidateFormats([]string{"svg", "invalid"}); err == nil {
		t.Error("Invalid format should fail")
	}

	// Empty slice is valid
	if err := ValidateFormats(nil); err != nil {
		t.Errorf("Empty formats should pass: %v", err)
	}
}

func TestValidateVizType(t *testing.T) {
	tests := []struct {
		vizType string
		wantErr bool
	}{
		{"bubble", false},
		{"nodelink", false},
		{"tower", true},
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateVizType(tt.vizType)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateVizType(%q) error = %v, wantErr %v", tt.vizType, err, tt.wantErr)
		}
		if err != nil && !derrors.Is(err, derrors.ErrCodeInvalidVizType) {
			t.Errorf("ValidateVizType(%q) code = %s", tt.vizType, derrors.GetCode(err))
		}
	}
}

func TestParseFormats(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "svg"},
		{"svg", "svg"},
		{"svg, JSON", "svg,json"},
		{"png,,pdf,", "png,pdf"},
	}
	for _, tt := range tests {
		if got := strings.Join(ParseFormats(tt.in), ","); got != tt.want {
			t.Errorf("ParseFormats(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOptionsDefaults(t *testing.T) {
	var opts Options
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults: %v", err)
	}
	if opts.VizType != VizBubble {
		t.Errorf("VizType = %q, want bubble", opts.VizType)
	}
	if opts.Width != DefaultWidth || opts.Height != DefaultHeight {
		t.Errorf("frame = %vx%v", opts.Width, opts.Height)
	}
	if len(opts.Formats) != 1 || opts.Formats[0] != FormatSVG {
		t.Errorf("Formats = %v", opts.Formats)
	}
	if opts.Scale != DefaultScale {
		t.Errorf("Scale = %v", opts.Scale)
	}

	bad := Options{VizType: "tower"}
	if err := bad.ValidateAndSetDefaults(); err == nil {
		t.Error("unknown viz type should fail")
	}
}

func TestOptionsRejectBadFrame(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"negative width", Options{Width: -1}},
		{"NaN width", Options{Width: math.NaN()}},
		{"infinite height", Options{Height: math.Inf(1)}},
		{"huge width", Options{Width: MaxFrameSize + 1}},
		{"NaN scale", Options{Scale: math.NaN()}},
		{"negative scale", Options{Scale: -2}},
		{"huge scale", Options{Scale: 1e9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opts.ValidateAndSetDefaults(); !derrors.Is(err, derrors.ErrCodeInvalidInput) {
				t.Errorf("ValidateAndSetDefaults() = %v, want INVALID_INPUT", err)
			}
		})
	}

	ok := Options{Width: MaxFrameSize, Height: 1, Scale: MaxScale}
	if err := ok.ValidateAndSetDefaults(); err != nil {
		t.Errorf("limits should be accepted: %v", err)
	}
}

func TestArtifactKeyOptsScaleOnlyForPNG(t *testing.T) {
	opts := Options{Scale: 3}
	if k := opts.ArtifactKeyOpts(FormatSVG); k.Scale != 0 {
		t.Errorf("svg key carries scale %v", k.Scale)
	}
	if k := opts.ArtifactKeyOpts(FormatPNG); k.Scale != 3 {
		t.Errorf("png key scale = %v, want 3", k.Scale)
	}
}

func TestReadSnapshot(t *testing.T) {
	tr := sample(t)
	if tr.RootID() != "me" || tr.Len() != 5 {
		t.Errorf("root %q, len %d; want me, 5", tr.RootID(), tr.Len())
	}
	if _, ok := tr.SecondLevel["ghost"]; ok {
		t.Error("orphaned group should be dropped")
	}

	tests := []struct {
		name string
		in   string
		code derrors.Code
	}{
		{"not json", "{", derrors.ErrCodeInvalidInput},
		{"unknown field", `{"root":{"name":"x"},"fourth_level":{}}`, derrors.ErrCodeInvalidInput},
		{"duplicate id", `{"root":{"id":"me"},"first_level":[{"id":"a","name":"A"},{"id":"a","name":"B"}]}`, derrors.ErrCodeDuplicateID},
		{"eight first level", `{"root":{"id":"me"},"first_level":[` + eight() + `]}`, derrors.ErrCodeCapacityExceeded},
		{"missing id", `{"root":{"id":"me"},"first_level":[{"name":"A"}]}`, derrors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadSnapshot(strings.NewReader(tt.in))
			if !derrors.Is(err, tt.code) {
				t.Errorf("err = %v, want code %s", err, tt.code)
			}
		})
	}
}

func eight() string {
	parts := make([]string, 8)
	for i := range parts {
		parts[i] = `{"id":"m` + string(rune('0'+i)) + `","name":"M"}`
	}
	return strings.Join(parts, ",")
}

func TestGenerateLayout(t *testing.T) {
	tr := sample(t)

	l, err := GenerateLayout(tr, Options{VizType: VizBubble, Focus: "a"})
	if err != nil {
		t.Fatalf("GenerateLayout: %v", err)
	}
	if l.Bubble == nil || l.DOT != "" {
		t.Fatalf("bubble layout = %+v", l)
	}
	if l.Focus != "a" || len(l.Bubble.Bubbles) != 5 {
		t.Errorf("focus %q, %d bubbles", l.Focus, len(l.Bubble.Bubbles))
	}

	// Unknown focus falls back to the unfocused layout.
	l, err = GenerateLayout(tr, Options{VizType: VizBubble, Focus: "nobody"})
	if err != nil || l.Focus != "" {
		t.Errorf("unknown focus: focus %q, err %v", l.Focus, err)
	}

	nl, err := GenerateLayout(tr, Options{VizType: VizNodelink, Focus: "a1"})
	if err != nil {
		t.Fatalf("GenerateLayout nodelink: %v", err)
	}
	if !nl.IsNodelink() || nl.Bubble != nil || !strings.Contains(nl.DOT, "digraph") {
		t.Errorf("nodelink layout = %+v", nl)
	}

	if _, err := GenerateLayout(nil, Options{}); !derrors.Is(err, derrors.ErrCodeInvalidInput) {
		t.Errorf("nil tree: %v", err)
	}
}

func TestFocusLinker(t *testing.T) {
	link := FocusLinker("/tree.svg?focus=", "a")
	tests := []struct {
		clicked string
		want    string
	}{
		{"a", "/tree.svg?focus="},      // clicking the focus clears it
		{"b", "/tree.svg?focus=b"},     // clicking another member focuses it
		{"a 1", "/tree.svg?focus=a+1"}, // ids are query-escaped
		{"me", "/tree.svg?focus=me"},
	}
	for _, tt := range tests {
		if got := link(tt.clicked); got != tt.want {
			t.Errorf("link(%q) = %q, want %q", tt.clicked, got, tt.want)
		}
	}
}

func TestRenderFromLayout(t *testing.T) {
	ctx := context.Background()
	tr := sample(t)
	opts := Options{Focus: "a", Formats: []string{FormatSVG, FormatJSON}, LinkBase: "/tree.svg?focus=", Legend: true}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	l, err := GenerateLayout(tr, opts)
	if err != nil {
		t.Fatal(err)
	}

	out, err := RenderFromLayout(ctx, l, tr, opts)
	if err != nil {
		t.Fatalf("RenderFromLayout: %v", err)
	}
	svg := string(out[FormatSVG])
	if !strings.HasPrefix(svg, "<svg") {
		t.Errorf("svg output starts with %.20q", svg)
	}
	if !strings.Contains(svg, `href="/tree.svg?focus="`) || !strings.Contains(svg, `href="/tree.svg?focus=b"`) {
		t.Error("svg should link bubbles to their toggled focus")
	}

	var doc struct {
		Focus    string          `json:"focus"`
		Snapshot json.RawMessage `json:"snapshot"`
	}
	if err := json.Unmarshal(out[FormatJSON], &doc); err != nil {
		t.Fatalf("json output: %v", err)
	}
	if doc.Focus != "a" || len(doc.Snapshot) == 0 {
		t.Errorf("json focus %q, snapshot %d bytes", doc.Focus, len(doc.Snapshot))
	}

	if _, err := RenderFromLayout(ctx, Layout{VizType: VizBubble}, tr, opts); err == nil {
		t.Error("bubble layout without positions should fail")
	}
	if _, err := RenderFromLayout(ctx, Layout{VizType: VizNodelink}, tr, opts); err == nil {
		t.Error("nodelink layout without DOT should fail")
	}
}

func TestRenderNodelinkJSON(t *testing.T) {
	tr := sample(t)
	l, err := GenerateLayout(tr, Options{VizType: VizNodelink})
	if err != nil {
		t.Fatal(err)
	}
	out, err := RenderNodelink(context.Background(), l, Options{Formats: []string{FormatJSON}})
	if err != nil {
		t.Fatalf("RenderNodelink: %v", err)
	}
	var back Layout
	if err := json.Unmarshal(out[FormatJSON], &back); err != nil {
		t.Fatal(err)
	}
	if back.DOT != l.DOT || back.VizType != VizNodelink {
		t.Error("nodelink json should carry the DOT graph")
	}
}

type countingHooks struct {
	observability.NoopPipelineHooks
	observability.NoopCacheHooks
	layouts, renders, hits, misses int
}

func (h *countingHooks) OnLayoutStart(context.Context, string, int) { h.layouts++ }
func (h *countingHooks) OnRenderStart(context.Context, []string)    { h.renders++ }
func (h *countingHooks) OnCacheHit(context.Context, string)         { h.hits++ }
func (h *countingHooks) OnCacheMiss(context.Context, string)        { h.misses++ }

func TestRunnerCaches(t *testing.T) {
	defer observability.Reset()
	hooks := &countingHooks{}
	observability.SetPipelineHooks(hooks)
	observability.SetCacheHooks(hooks)

	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(fc, nil, nil)
	defer r.Close()

	tr := sample(t)
	opts := Options{Focus: "a1", Formats: []string{FormatSVG, FormatJSON}}

	first, err := r.Execute(ctx, tr, opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if first.CacheInfo.LayoutHit || first.CacheInfo.RenderHit {
		t.Errorf("first run should miss: %+v", first.CacheInfo)
	}
	if first.Stats.MemberCount != 5 || first.TreeHash == "" {
		t.Errorf("stats %+v, hash %q", first.Stats, first.TreeHash)
	}

	second, err := r.Execute(ctx, tr, opts)
	if err != nil {
		t.Fatalf("Execute again: %v", err)
	}
	if !second.CacheInfo.LayoutHit || !second.CacheInfo.RenderHit {
		t.Errorf("second run should hit: %+v", second.CacheInfo)
	}
	if string(second.Artifacts[FormatSVG]) != string(first.Artifacts[FormatSVG]) {
		t.Error("cached svg differs")
	}
	if hooks.layouts != 1 || hooks.renders != 1 {
		t.Errorf("layouts %d, renders %d; want 1 each", hooks.layouts, hooks.renders)
	}
	if hooks.hits != 2 || hooks.misses != 2 {
		t.Errorf("hits %d, misses %d; want 2 each", hooks.hits, hooks.misses)
	}

	// A different focus is a different layout.
	third, err := r.Execute(ctx, tr, Options{Focus: "b", Formats: []string{FormatSVG}})
	if err != nil {
		t.Fatal(err)
	}
	if third.CacheInfo.LayoutHit {
		t.Error("new focus should not hit the layout cache")
	}

	// A changed tree is a different layout.
	changed := tr.Clone()
	changed.FirstLevel[1].Capital = 999
	fourth, err := r.Execute(ctx, changed, opts)
	if err != nil {
		t.Fatal(err)
	}
	if fourth.CacheInfo.LayoutHit {
		t.Error("changed tree should not hit the layout cache")
	}
}

func TestRunnerScopedKeyer(t *testing.T) {
	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	base := NewRunner(fc, nil, nil)
	alice := base.WithKeyer(cache.NewScopedKeyer(nil, "owner:alice:"))
	bob := base.WithKeyer(cache.NewScopedKeyer(nil, "owner:bob:"))

	tr := sample(t)
	if _, err := alice.ComputeLayout(ctx, tr, Options{}); err != nil {
		t.Fatal(err)
	}
	_, hit, err := bob.ComputeLayoutWithCacheInfo(ctx, tr, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("scoped runners should not share cache entries")
	}
	if _, hit, _ := alice.ComputeLayoutWithCacheInfo(ctx, tr, Options{}); !hit {
		t.Error("same scope should hit")
	}
}

func TestRunnerErrors(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(nil, nil, nil)

	if _, err := r.Execute(ctx, nil, Options{}); !derrors.Is(err, derrors.ErrCodeInvalidInput) {
		t.Errorf("nil tree: %v", err)
	}
	if _, err := r.Execute(ctx, sample(t), Options{Formats: []string{"gif"}}); !derrors.Is(err, derrors.ErrCodeInvalidFormat) {
		t.Errorf("bad format: %v", err)
	}

	full := tree.New(tree.Member{ID: "me"})
	for i := 0; i < 8; i++ {
		full.FirstLevel = append(full.FirstLevel, tree.Member{ID: string(rune('a' + i)), Name: "x"})
	}
	if _, err := r.Execute(ctx, full, Options{}); !derrors.Is(err, derrors.ErrCodeCapacityExceeded) {
		t.Errorf("over capacity: %v", err)
	}
}

func TestTreeHashStable(t *testing.T) {
	a, b := sample(t), sample(t)
	if TreeHash(a) != TreeHash(b) {
		t.Error("equal snapshots should hash equal")
	}
	b.Root.Name = "Other"
	if TreeHash(a) == TreeHash(b) {
		t.Error("renamed root should change the hash")
	}
}
