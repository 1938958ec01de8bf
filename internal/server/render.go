package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/downline/pkg/cache"
	derrors "github.com/matzehuels/downline/pkg/errors"
	"github.com/matzehuels/downline/pkg/pipeline"
)

var contentTypes = map[string]string{
	pipeline.FormatSVG:  "image/svg+xml",
	pipeline.FormatPNG:  "image/png",
	pipeline.FormatPDF:  "application/pdf",
	pipeline.FormatJSON: "application/json",
}

// runnerFor scopes cache keys to the owner so that two owners with equal
// trees never share an entry.
func (s *Server) runnerFor(owner string) *pipeline.Runner {
	return s.runner.WithKeyer(cache.NewScopedKeyer(nil, "owner:"+owner+":"))
}

// optionsFromQuery reads pipeline options from the query string, falling
// back to the server's render defaults.
func (s *Server) optionsFromQuery(r *http.Request) (pipeline.Options, error) {
	q := r.URL.Query()
	opts := pipeline.Options{
		VizType:     q.Get("type"),
		Focus:       q.Get("focus"),
		Width:       s.render.Width,
		Height:      s.render.Height,
		Legend:      s.render.Legend,
		Transitions: s.render.Transitions,
		Title:       q.Get("title"),
		Logger:      s.logger,
	}

	var err error
	parseFloat := func(key string, dst *float64) {
		if v := q.Get(key); v != "" && err == nil {
			if *dst, err = strconv.ParseFloat(v, 64); err != nil {
				err = derrors.New(derrors.ErrCodeInvalidInput, "%s must be a number", key)
			}
		}
	}
	parseBool := func(key string, dst *bool) {
		if v := q.Get(key); v != "" && err == nil {
			if *dst, err = strconv.ParseBool(v); err != nil {
				err = derrors.New(derrors.ErrCodeInvalidInput, "%s must be true or false", key)
			}
		}
	}
	parseFloat("width", &opts.Width)
	parseFloat("height", &opts.Height)
	parseFloat("scale", &opts.Scale)
	parseBool("legend", &opts.Legend)
	parseBool("transitions", &opts.Transitions)
	parseBool("detailed", &opts.Detailed)
	return opts, err
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())
	opts, err := s.optionsFromQuery(r)
	if err != nil {
		s.writeError(w, r, err, "Failed to compute layout")
		return
	}
	t, err := s.svc.Snapshot(r.Context(), owner)
	if err != nil {
		s.writeError(w, r, err, "Failed to compute layout")
		return
	}
	l, err := s.runnerFor(owner).ComputeLayout(r.Context(), t, opts)
	if err != nil {
		s.writeError(w, r, err, "Failed to compute layout")
		return
	}
	writeData(w, l)
}

// handleTree renders the owner's tree in the format named by the path.
// Bubbles in SVG output link back to this route with the focus a click
// selects, so the diagram can be explored without client-side code.
func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())
	format := strings.ToLower(chi.URLParam(r, "format"))
	if err := pipeline.ValidateFormat(format); err != nil {
		s.writeError(w, r, err, "Failed to render tree")
		return
	}

	opts, err := s.optionsFromQuery(r)
	if err != nil {
		s.writeError(w, r, err, "Failed to render tree")
		return
	}
	opts.Formats = []string{format}
	if format == pipeline.FormatSVG {
		opts.LinkBase = linkBase(r)
	}

	t, err := s.svc.Snapshot(r.Context(), owner)
	if err != nil {
		s.writeError(w, r, err, "Failed to render tree")
		return
	}
	res, err := s.runnerFor(owner).Execute(r.Context(), t, opts)
	if err != nil {
		s.writeError(w, r, err, "Failed to render tree")
		return
	}

	w.Header().Set("Content-Type", contentTypes[format])
	w.Header().Set("X-Layout-Cache", cacheStatus(res.CacheInfo.LayoutHit))
	w.Header().Set("X-Render-Cache", cacheStatus(res.CacheInfo.RenderHit))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Artifacts[format])
}

// linkBase returns the request URL with its focus parameter removed and a
// trailing "focus=" ready for the clicked id.
func linkBase(r *http.Request) string {
	q := r.URL.Query()
	q.Del("focus")
	base := r.URL.Path + "?"
	if enc := q.Encode(); enc != "" {
		base += enc + "&"
	}
	return base + "focus="
}

func cacheStatus(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
