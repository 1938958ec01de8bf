package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/downline/pkg/cache"
	"github.com/matzehuels/downline/pkg/config"
	"github.com/matzehuels/downline/pkg/downline"
	derrors "github.com/matzehuels/downline/pkg/errors"
	"github.com/matzehuels/downline/pkg/pipeline"
	"github.com/matzehuels/downline/pkg/store"
	"github.com/matzehuels/downline/pkg/tree"
)

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	logger := log.New(io.Discard)
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := downline.New(store.NewMemoryStore(),
		downline.WithLogger(logger),
		downline.WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
	)
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runner := pipeline.NewRunner(fc, nil, logger)
	return New(svc, runner, config.ServerConfig{}, WithLogger(logger)).Handler()
}

func do(t *testing.T, h http.Handler, method, target, owner, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if owner != "" {
		req.Header.Set("X-Owner-ID", owner)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return resp
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, status int) response {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, status, rec.Body.String())
	}
	return decode(t, rec)
}

func seed(t *testing.T, h http.Handler, owner string) {
	t.Helper()
	expect(t, do(t, h, http.MethodPost, "/api/initialize-user", owner, ""), http.StatusOK)
	expect(t, do(t, h, http.MethodPost, "/api/members", owner,
		`{"id":"a1","name":"Ann","startingCapital":500,"level":1}`), http.StatusOK)
	expect(t, do(t, h, http.MethodPost, "/api/members", owner,
		`{"id":"b1","name":"Ben","startingCapital":200,"level":2,"parentId":"a1"}`), http.StatusOK)
}

func TestRequireOwner(t *testing.T) {
	h := newTestServer(t)

	resp := expect(t, do(t, h, http.MethodGet, "/api/mlm-data", "", ""), http.StatusUnauthorized)
	if resp.Success || resp.Error != "Unauthorized. Please sign in." {
		t.Errorf("resp = %+v", resp)
	}
	if rec := do(t, h, http.MethodGet, "/tree.svg", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("/tree.svg without owner: %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Errorf("/healthz: %d", rec.Code)
	}
}

func TestInitializeUser(t *testing.T) {
	h := newTestServer(t)

	resp := expect(t, do(t, h, http.MethodPost, "/api/initialize-user", "alice", ""), http.StatusOK)
	var tr tree.Tree
	if err := json.Unmarshal(resp.Data, &tr); err != nil {
		t.Fatal(err)
	}
	if tr.Root.ID != downline.RootIDPrefix+"alice" || tr.Root.Name != downline.DefaultOwnerName {
		t.Errorf("root = %+v", tr.Root)
	}

	resp = expect(t, do(t, h, http.MethodPost, "/api/initialize-user", "alice", `{"displayName":"Alice"}`), http.StatusOK)
	if err := json.Unmarshal(resp.Data, &tr); err != nil {
		t.Fatal(err)
	}
	if tr.Root.Name != "Alice" {
		t.Errorf("root not renamed: %+v", tr.Root)
	}

	expect(t, do(t, h, http.MethodPost, "/api/initialize-user", "alice", `{"nickname":"x"}`), http.StatusBadRequest)
}

func TestMemberLifecycle(t *testing.T) {
	h := newTestServer(t)
	seed(t, h, "alice")

	resp := expect(t, do(t, h, http.MethodGet, "/api/mlm-data", "alice", ""), http.StatusOK)
	var tr tree.Tree
	if err := json.Unmarshal(resp.Data, &tr); err != nil {
		t.Fatal(err)
	}
	if len(tr.FirstLevel) != 1 || len(tr.SecondLevel["a1"]) != 1 {
		t.Fatalf("tree = %+v", tr)
	}

	resp = expect(t, do(t, h, http.MethodGet, "/api/available-parents?level=2", "alice", ""), http.StatusOK)
	var parents []tree.Member
	if err := json.Unmarshal(resp.Data, &parents); err != nil {
		t.Fatal(err)
	}
	if len(parents) != 1 || parents[0].ID != "a1" {
		t.Errorf("available parents = %+v", parents)
	}

	expect(t, do(t, h, http.MethodPost, "/api/members", "alice",
		`{"id":"a2","name":"Cid","startingCapital":0,"level":1}`), http.StatusOK)
	resp = expect(t, do(t, h, http.MethodPatch, "/api/members", "alice", `{"id":"b1","parentId":"a2"}`), http.StatusOK)
	var moved tree.Record
	if err := json.Unmarshal(resp.Data, &moved); err != nil {
		t.Fatal(err)
	}
	if moved.ParentID != "a2" {
		t.Errorf("moved = %+v", moved)
	}

	resp = expect(t, do(t, h, http.MethodDelete, "/api/members?id=a2", "alice", ""), http.StatusOK)
	var del deleteResponse
	if err := json.Unmarshal(resp.Data, &del); err != nil {
		t.Fatal(err)
	}
	if del.Removed != 2 {
		t.Errorf("removed = %d, want 2", del.Removed)
	}

	expect(t, do(t, h, http.MethodDelete, "/api/members?id=a2", "alice", ""), http.StatusNotFound)
	expect(t, do(t, h, http.MethodDelete, "/api/members?id=me-alice", "alice", ""), http.StatusBadRequest)
}

func TestAddMemberErrors(t *testing.T) {
	h := newTestServer(t)

	resp := expect(t, do(t, h, http.MethodPost, "/api/members", "nobody",
		`{"name":"Ann","startingCapital":1,"level":1}`), http.StatusBadRequest)
	if resp.Error != "ME member not found. Please refresh the page." {
		t.Errorf("no root: %q", resp.Error)
	}

	seed(t, h, "alice")
	tests := []struct {
		name   string
		body   string
		status int
		errMsg string
	}{
		{"missing capital", `{"name":"X","level":1}`, http.StatusBadRequest, "Missing required fields"},
		{"missing level", `{"name":"X","startingCapital":1}`, http.StatusBadRequest, "Missing required fields"},
		{"blank name", `{"name":" ","startingCapital":1,"level":1}`, http.StatusBadRequest, "Missing required fields"},
		{"unknown field", `{"name":"X","startingCapital":1,"level":1,"rank":3}`, http.StatusBadRequest, ""},
		{"bad level", `{"name":"X","startingCapital":1,"level":4,"parentId":"b1"}`, http.StatusBadRequest, ""},
		{"negative capital", `{"name":"X","startingCapital":-5,"level":1}`, http.StatusBadRequest, ""},
		{"unknown parent", `{"name":"X","startingCapital":1,"level":2,"parentId":"ghost"}`, http.StatusNotFound, ""},
		{"duplicate id", `{"id":"a1","name":"X","startingCapital":1,"level":1}`, http.StatusConflict, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := expect(t, do(t, h, http.MethodPost, "/api/members", "alice", tt.body), tt.status)
			if resp.Success || resp.Error == "" {
				t.Errorf("resp = %+v", resp)
			}
			if tt.errMsg != "" && resp.Error != tt.errMsg {
				t.Errorf("error = %q, want %q", resp.Error, tt.errMsg)
			}
		})
	}
}

func TestGroupCapacity(t *testing.T) {
	h := newTestServer(t)
	seed(t, h, "alice")

	// b1 already sits under a1.
	for i := 2; i <= tree.MaxGroupSize; i++ {
		body := fmt.Sprintf(`{"id":"b%d","name":"M%d","startingCapital":1,"level":2,"parentId":"a1"}`, i, i)
		expect(t, do(t, h, http.MethodPost, "/api/members", "alice", body), http.StatusOK)
	}
	expect(t, do(t, h, http.MethodPost, "/api/members", "alice",
		`{"id":"b9","name":"Late","startingCapital":1,"level":2,"parentId":"a1"}`), http.StatusConflict)
}

func TestReassignErrors(t *testing.T) {
	h := newTestServer(t)
	seed(t, h, "alice")

	resp := expect(t, do(t, h, http.MethodPatch, "/api/members", "alice", `{"id":"b1"}`), http.StatusBadRequest)
	if resp.Error != "Member ID and parent ID are required" {
		t.Errorf("error = %q", resp.Error)
	}
	expect(t, do(t, h, http.MethodPatch, "/api/members", "alice", `{"id":"ghost","parentId":"a1"}`), http.StatusNotFound)
	// Second-level members need a first-level parent.
	expect(t, do(t, h, http.MethodPatch, "/api/members", "alice", `{"id":"b1","parentId":"me-alice"}`), http.StatusBadRequest)

	resp = expect(t, do(t, h, http.MethodDelete, "/api/members", "alice", ""), http.StatusBadRequest)
	if resp.Error != "Member ID is required" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestCheckParent(t *testing.T) {
	h := newTestServer(t)
	seed(t, h, "alice")

	var hit checkParentResponse
	rec := do(t, h, http.MethodGet, "/api/check-parent?id=a1", "alice", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &hit); err != nil {
		t.Fatal(err)
	}
	if !hit.Success || !hit.Exists || hit.Parent == nil || hit.Parent.Name != "Ann" {
		t.Errorf("hit = %+v", hit)
	}

	var miss checkParentResponse
	rec = do(t, h, http.MethodGet, "/api/check-parent?id=ghost", "alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("miss status = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &miss); err != nil {
		t.Fatal(err)
	}
	if miss.Success || miss.Exists || miss.Error != "Parent not found" {
		t.Errorf("miss = %+v", miss)
	}

	// Owners are isolated from each other.
	rec = do(t, h, http.MethodGet, "/api/check-parent?id=a1", "bob", "")
	var other checkParentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &other); err != nil {
		t.Fatal(err)
	}
	if other.Exists {
		t.Error("bob can see alice's member")
	}

	resp := expect(t, do(t, h, http.MethodGet, "/api/check-parent", "alice", ""), http.StatusBadRequest)
	if resp.Error != "Parent ID is required" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestLayoutRoute(t *testing.T) {
	h := newTestServer(t)
	seed(t, h, "alice")

	resp := expect(t, do(t, h, http.MethodGet, "/api/layout?focus=a1", "alice", ""), http.StatusOK)
	var l pipeline.Layout
	if err := json.Unmarshal(resp.Data, &l); err != nil {
		t.Fatal(err)
	}
	if l.VizType != pipeline.VizBubble || l.Bubble == nil || l.Bubble.FocusID != "a1" {
		t.Fatalf("layout = %+v", l)
	}
	if len(l.Bubble.Bubbles) != 3 {
		t.Errorf("bubbles = %d, want 3", len(l.Bubble.Bubbles))
	}

	resp = expect(t, do(t, h, http.MethodGet, "/api/layout?type=nodelink", "alice", ""), http.StatusOK)
	if err := json.Unmarshal(resp.Data, &l); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(l.DOT, "digraph") {
		t.Errorf("DOT = %q", l.DOT)
	}

	for _, q := range []string{"width=wide", "width=NaN", "height=Inf", "width=-5", "width=1e7"} {
		rec := do(t, h, http.MethodGet, "/api/layout?"+q, "alice", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400; body %s", q, rec.Code, rec.Body.String())
		}
	}
	expect(t, do(t, h, http.MethodGet, "/api/layout?type=treemap", "alice", ""), http.StatusBadRequest)
}

func TestTreeRoute(t *testing.T) {
	h := newTestServer(t)
	seed(t, h, "alice")

	rec := do(t, h, http.MethodGet, "/tree.svg", "alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<svg") {
		t.Fatalf("not an svg: %.80s", body)
	}
	if !strings.Contains(body, `href="/tree.svg?focus=a1"`) {
		t.Error("bubble a1 should link to its focus")
	}
	if rec.Header().Get("X-Render-Cache") != "miss" {
		t.Errorf("first render cache = %q", rec.Header().Get("X-Render-Cache"))
	}

	rec = do(t, h, http.MethodGet, "/tree.svg", "alice", "")
	if rec.Header().Get("X-Layout-Cache") != "hit" || rec.Header().Get("X-Render-Cache") != "hit" {
		t.Errorf("second render cache = %q/%q",
			rec.Header().Get("X-Layout-Cache"), rec.Header().Get("X-Render-Cache"))
	}

	// Clicking the focused bubble again clears the focus.
	rec = do(t, h, http.MethodGet, "/tree.svg?legend=true&focus=a1", "alice", "")
	if !strings.Contains(rec.Body.String(), `href="/tree.svg?legend=true&amp;focus="`) {
		t.Error("focused bubble should link back to the unfocused view")
	}

	rec = do(t, h, http.MethodGet, "/tree.json", "alice", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("json: %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !json.Valid(rec.Body.Bytes()) {
		t.Error("json artifact is not valid JSON")
	}

	expect(t, do(t, h, http.MethodGet, "/tree.gif", "alice", ""), http.StatusBadRequest)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{derrors.New(derrors.ErrCodeInvalidName, "bad name"), http.StatusBadRequest},
		{derrors.New(derrors.ErrCodeMemberNotFound, "missing"), http.StatusNotFound},
		{derrors.New(derrors.ErrCodeCapacityExceeded, "full"), http.StatusConflict},
		{derrors.New(derrors.ErrCodeUnauthorized, "who"), http.StatusUnauthorized},
		{derrors.New(derrors.ErrCodeUnsupported, "no"), http.StatusNotImplemented},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestInternalErrorsAreHidden(t *testing.T) {
	var buf bytes.Buffer
	s := &Server{logger: log.New(&buf)}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/mlm-data", nil)
	s.writeError(rec, req, io.ErrUnexpectedEOF, "Failed to fetch MLM data")

	resp := expect(t, rec, http.StatusInternalServerError)
	if resp.Error != "Failed to fetch MLM data" {
		t.Errorf("error = %q", resp.Error)
	}
	if !strings.Contains(buf.String(), "unexpected EOF") {
		t.Errorf("cause not logged: %q", buf.String())
	}
}

func TestTreeRouteRejectsBadFrame(t *testing.T) {
	h := newTestServer(t)
	seed(t, h, "alice")

	for _, target := range []string{"/tree.svg?height=Inf", "/tree.png?scale=NaN", "/tree.png?scale=500", "/tree.pdf?width=99999"} {
		resp := expect(t, do(t, h, http.MethodGet, target, "alice", ""), http.StatusBadRequest)
		if resp.Error == "" {
			t.Errorf("%s: missing error message", target)
		}
	}
}

func TestWriteJSONUnencodableBody(t *testing.T) {
	rec := httptest.NewRecorder()
	writeData(rec, map[string]float64{"x": math.NaN()})

	resp := expect(t, rec, http.StatusInternalServerError)
	if resp.Success || resp.Error == "" {
		t.Errorf("response = %+v", resp)
	}
}
