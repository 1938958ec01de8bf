// Package pkg provides the libraries behind downline.
//
// # Overview
//
// Downline keeps a referral tree of up to three levels below its owner and
// draws it as a "flower" of nested bubbles. Every member sponsors at most
// seven downlines. Clicking a bubble focuses it: the member moves to the
// center, its hierarchy grows and everything else dims. The pkg directory
// is organized into four areas:
//
//  1. [tree] and [downline] - the data model and the only place it changes
//  2. [render] - bubble layout and drawing, plus a Graphviz node-link view
//  3. [pipeline] - Orchestration (snapshot → layout → render) with caching
//  4. [store], [cache], [config] - Infrastructure shared by CLI and server
//
// # Architecture
//
// The typical data flow through downline:
//
//	Store records (SQLite, Postgres, Mongo, memory)
//	         ↓
//	    [tree] package (snapshot of root + three grouped levels)
//	         ↓
//	    [render/bubble/layout] package (positions, focus, emphasis)
//	         ↓
//	    [render/bubble/sink] package (SVG with click-to-focus links)
//	         ↓
//	    SVG/PDF/PNG/JSON output
//
// # Quick Start
//
//	import (
//	    "github.com/matzehuels/downline/pkg/downline"
//	    "github.com/matzehuels/downline/pkg/render/bubble/layout"
//	    "github.com/matzehuels/downline/pkg/render/bubble/sink"
//	    "github.com/matzehuels/downline/pkg/store"
//	    "github.com/matzehuels/downline/pkg/tree"
//	)
//
//	svc := downline.New(store.NewMemoryStore())
//	svc.Initialize(ctx, "alice", "Alice")
//	res, _ := svc.Add(ctx, "alice", downline.AddRequest{
//	    Name:    "Ann",
//	    Capital: 1500,
//	    Level:   tree.LevelFirst,
//	})
//
//	l, _ := layout.Build(res.Tree, res.Record.ID)
//	svg := sink.RenderSVG(l, sink.WithLinks(func(id string) string {
//	    return "/tree.svg?focus=" + layout.Toggle(l.FocusID, id)
//	}))
//
// # Main Packages
//
// [tree] - Snapshot types, flat store records and the structural rules
// (levels, group capacity, unique ids).
//
// [downline] - Service enforcing the rules on add, delete and reassign.
//
// [render/bubble/layout] - Pure geometry: anchor rings, focus translation,
// scale boosts, dimming and paint order.
//
// [render/bubble/sink] - SVG, JSON, PNG and PDF output of a bubble layout.
//
// [render/nodelink] - The same tree as a Graphviz DOT diagram.
//
// [pipeline] - Layout and render with cache lookups, used by CLI and server.
//
// [store] - Record persistence with SQLite, Postgres, Mongo and memory
// backends. [store/storetest] holds the shared conformance suite.
//
// [cache] - File, Redis and no-op caches for layouts and artifacts.
//
// [config] - TOML, .env and environment configuration.
//
// [errors] - Coded errors with user-facing messages.
//
// [observability] - Hooks for logging and metrics.
//
// # Testing
//
//	go test ./pkg/...                     # All tests
//	go test ./pkg/render/bubble/...       # Specific package
//	go test -run Example                  # Examples only
//	DOWNLINE_TEST_POSTGRES_DSN=... go test ./pkg/store/postgres
//
// [tree]: https://pkg.go.dev/github.com/matzehuels/downline/pkg/tree
// [downline]: https://pkg.go.dev/github.com/matzehuels/downline/pkg/downline
// [render]: https://pkg.go.dev/github.com/matzehuels/downline/pkg/render
// [render/bubble/layout]: https://pkg.go.dev/github.com/matzehuels/downline/pkg/render/bubble/layout
// [render/bubble/sink]: https://pkg.go.dev/github.com/matzehuels/downline/pkg/render/bubble/sink
// [render/nodelink]: https://pkg.go.dev/github.com/matzehuels/downline/pkg/render/nodelink
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/downline/pkg/pipeline
// [store]: https://pkg.go.dev/github.com/matzehuels/downline/pkg/store
// [store/storetest]: https://pkg.go.dev/github.com/matzehuels/downline/pkg/store/storetest
// [cache]: https://pkg.go.dev/github.com/matzehuels/downline/pkg/cache
// [config]: https://pkg.go.dev/github.com/matzehuels/downline/pkg/config
// [errors]: https://pkg.go.dev/github.com/matzehuels/downline/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/downline/pkg/observability
package pkg
