package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	derrors "github.com/matzehuels/downline/pkg/errors"
	"github.com/matzehuels/downline/pkg/tree"
)

// ReadSnapshot decodes a JSON tree snapshot. Orphaned groups and empty
// groups are dropped; a snapshot that still breaks the group-size or id
// rules is rejected.
func ReadSnapshot(r io.Reader) (*tree.Tree, error) {
	var t tree.Tree
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		return nil, derrors.Wrap(derrors.ErrCodeInvalidInput, err, "decode snapshot: %v", err)
	}
	if t.SecondLevel == nil {
		t.SecondLevel = make(map[string][]tree.Member)
	}
	if t.ThirdLevel == nil {
		t.ThirdLevel = make(map[string][]tree.Member)
	}

	t.Normalize()
	if err := t.Validate(); err != nil {
		return nil, layoutError(err)
	}
	return &t, nil
}

// ReadSnapshotFile reads a snapshot from path; "-" reads standard input.
func ReadSnapshotFile(path string) (*tree.Tree, error) {
	if path == "-" {
		return ReadSnapshot(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return ReadSnapshot(f)
}

// MarshalLayout serializes a Layout to pretty-printed JSON bytes.
func MarshalLayout(l Layout) ([]byte, error) {
	return json.MarshalIndent(l, "", "  ")
}

// UnmarshalLayout deserializes JSON bytes into a Layout and checks that the
// payload for its viz type is present.
func UnmarshalLayout(data []byte) (Layout, error) {
	var l Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return Layout{}, derrors.Wrap(derrors.ErrCodeInvalidInput, err, "unmarshal layout: %v", err)
	}
	if l.VizType == "" {
		l.VizType = VizBubble
	}
	if err := ValidateVizType(l.VizType); err != nil {
		return Layout{}, err
	}
	if !l.IsNodelink() && (l.Bubble == nil || len(l.Bubble.Bubbles) == 0) {
		return Layout{}, derrors.New(derrors.ErrCodeInvalidInput, "bubble layout must contain bubbles")
	}
	if l.IsNodelink() && l.DOT == "" {
		return Layout{}, derrors.New(derrors.ErrCodeInvalidInput, "nodelink layout must contain DOT string")
	}
	return l, nil
}

// WriteLayoutFile writes a Layout to a JSON file.
func WriteLayoutFile(l Layout, path string) error {
	data, err := MarshalLayout(l)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadLayoutFile reads a Layout from a JSON file.
func ReadLayoutFile(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("read %s: %w", path, err)
	}
	return UnmarshalLayout(data)
}
