// Package downline is the mutation boundary of a downline tree.
//
// A [Service] wraps a [store.Store] and is the only place that changes a
// tree. It checks every invariant the layout engine relies on before the
// store is touched:
//
//   - a new member's parent exists on the level directly above it
//   - no group grows beyond seven members, on add and on reassign
//   - ids are unique within an owner's tree
//   - the root can be neither deleted nor moved
//
// Failed checks return coded errors from pkg/errors (CAPACITY_EXCEEDED,
// PARENT_NOT_FOUND, ...) and leave the store untouched. Successful
// mutations refetch the snapshot and return it in [Result], so callers
// always render the stored state rather than a locally patched copy.
//
//	svc := downline.New(store.NewMemoryStore())
//	svc.Initialize(ctx, owner, "Dana")
//	res, err := svc.Add(ctx, owner, downline.AddRequest{Name: "Alex", Level: tree.LevelFirst})
//	l, err := layout.Build(res.Tree, "")
package downline
