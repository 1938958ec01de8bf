// Package tree provides the capacity-bounded downline tree that every other
// downline package reads.
//
// # Overview
//
// A downline tree has exactly one root (the account owner, displayed as
// "ME") and at most three levels below it. Every group of siblings holds at
// most [MaxGroupSize] members:
//
//	ME
//	├── first level      (≤ 7, ordered)
//	│   └── second level (≤ 7 per first-level parent)
//	│       └── third level (≤ 7 per second-level parent)
//
// A [Tree] is a plain snapshot value. It is produced by a store (see
// [FromRecords]) or decoded from JSON, handed to the layout engine, and
// thrown away after the next mutation. Nothing in this package mutates a
// tree except [Tree.Normalize].
//
// # Lookups
//
// The lookup methods never fail. A parent without children, or an id that
// is not in the tree, yields an empty slice or a false second result:
//
//	kids := t.ChildrenOf("f1")           // nil when f1 has no children
//	parent, ok := t.ParentOf("s3", tree.LevelSecond)
//	if t.HasCapacity("f1", tree.LevelSecond) { ... }
//
// Only members reachable from the root are visible. A second-level group
// keyed by an id that is not a first-level member is an orphan: lookups
// ignore it, [Tree.Normalize] removes it and [Tree.Validate] reports it.
//
// # Canonical form
//
// Grouping maps never carry an entry for a parent with zero children.
// [FromRecords] never produces one and [Tree.Normalize] prunes them from
// decoded input.
//
// # Concurrency
//
// A Tree is not safe for concurrent mutation. Concurrent reads of a tree
// that nobody mutates are safe.
package tree
