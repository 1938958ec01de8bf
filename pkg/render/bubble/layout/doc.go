// Package layout computes the nested-bubble ("flower pattern") layout of a
// downline tree.
//
// # Overview
//
// [Build] is a pure function of a [tree.Tree] snapshot and the identifier of
// the focused member (or "" for none). It returns one [Bubble] per reachable
// member and one [Connector] per parent/child relation. It holds no state:
// the caller owns the focused id, feeds click events through [Toggle] and
// calls Build again.
//
//	l, err := layout.Build(t, focus)
//	...
//	focus = layout.Toggle(focus, clickedID)
//	l, err = layout.Build(t, focus)
//
// # Geometry
//
// The root sits on the diagram center. Each sibling group is spread evenly
// on a ring around its parent, sibling i of n at angle i·2π/n, at the
// group's anchor distance (220 for the first level, 100 for the second, 60
// for the third). Base radii shrink with depth: 100, 70, 20, 12.
//
// When a member is focused it is moved onto the center. Its ancestors up to
// the root are translated by the same offset, so the focused member's own
// ring slot resolves to the center. Its descendants are re-placed around
// it, and the direct children of a centered member use enlarged anchor
// distances (180 for the second level, 120 for the third). Every other
// member keeps exactly the position it has in the unfocused layout.
//
// # Emphasis
//
// The focused member is drawn at 1.3× its base radius, boosted a further
// 2.5× on the second level and 3.0× on the third. Its direct children on
// the second or third level are drawn at 2.5×. Text is shown for the
// focused member and its direct children only; without a focus, for the
// root and the first level.
//
// The focused member and all its descendants form the focused hierarchy:
// full opacity, z bucket 1, painted last. Everything else is dimmed to 0.7
// and painted first. Without a focus every bubble is opaque and bucket 0.
// [Layout.Bubbles] is already in paint order.
//
// # Failure semantics
//
// An unknown focus id lays out as if nothing were focused. Groups whose
// parent is missing are dropped. A reachable group with more than
// [tree.MaxGroupSize] members, or a duplicated id, is a precondition
// violation reported as [tree.ErrOverCapacity] or [tree.ErrDuplicateID].
//
// # Concurrency
//
// Build does not modify its input and may be called concurrently.
package layout
