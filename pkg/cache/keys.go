package cache

// Keyer generates cache keys.
type Keyer interface {
	// LayoutKey identifies a layout computed from a tree with the given
	// content hash.
	LayoutKey(treeHash string, opts LayoutKeyOpts) string

	// ArtifactKey identifies a rendered artifact of a layout with the given
	// content hash.
	ArtifactKey(layoutHash string, opts ArtifactKeyOpts) string
}

// LayoutKeyOpts holds the layout settings that change the result.
type LayoutKeyOpts struct {
	VizType string  `json:"viz_type"`
	Focus   string  `json:"focus,omitempty"`
	Width   float64 `json:"width,omitempty"`
	Height  float64 `json:"height,omitempty"`
}

// ArtifactKeyOpts holds the render settings that change the artifact.
type ArtifactKeyOpts struct {
	Format      string  `json:"format"`
	Legend      bool    `json:"legend,omitempty"`
	Detailed    bool    `json:"detailed,omitempty"`
	Transitions bool    `json:"transitions,omitempty"`
	Title       string  `json:"title,omitempty"`
	LinkBase    string  `json:"link_base,omitempty"`
	Scale       float64 `json:"scale,omitempty"`
}

// DefaultKeyer hashes key options into fixed-length keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// LayoutKey returns "layout:<hash>".
func (DefaultKeyer) LayoutKey(treeHash string, opts LayoutKeyOpts) string {
	return hashKey("layout", treeHash, opts)
}

// ArtifactKey returns "artifact:<hash>".
func (DefaultKeyer) ArtifactKey(layoutHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", layoutHash, opts)
}
