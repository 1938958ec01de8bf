package downline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	derrors "github.com/matzehuels/downline/pkg/errors"
	"github.com/matzehuels/downline/pkg/observability"
	"github.com/matzehuels/downline/pkg/store"
	"github.com/matzehuels/downline/pkg/tree"
)

// DefaultOwnerName is the root name used when Initialize gets no display name.
const DefaultOwnerName = "User"

// RootIDPrefix prefixes the owner id to form the root member id.
const RootIDPrefix = "me-"

// Service is the mutation boundary over a record store.
//
// Every mutation validates its input, checks the tree invariants against a
// fresh snapshot, performs exactly one store operation and then refetches
// the snapshot it returns. Mutations are serialized per Service.
type Service struct {
	store  store.Store
	logger *log.Logger
	now    func() time.Time
	newID  func() string

	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default is [log.Default].
func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the UUID generator used when a request carries
// no id.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// New creates a Service on top of st.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		logger: log.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddRequest describes a member to add.
type AddRequest struct {
	// ID is optional; a UUID is generated when empty.
	ID      string
	Name    string
	Capital float64
	Level   tree.Level
	// ParentID may be empty for first-level members; the owner's root is
	// used then.
	ParentID string
}

// Result is returned by every mutation.
type Result struct {
	// Record is the added, moved or initialized record. For deletes it is
	// the removed record.
	Record tree.Record

	// Removed is the number of records a delete removed.
	Removed int

	// Tree is the snapshot refetched after the mutation.
	Tree *tree.Tree
}

// Snapshot loads the owner's tree.
func (s *Service) Snapshot(ctx context.Context, ownerID string) (*tree.Tree, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	recs, err := s.store.List(ctx, ownerID)
	if err != nil {
		return nil, derrors.Wrap(derrors.ErrCodeInternal, err, "failed to load members")
	}
	return tree.FromRecords(recs), nil
}

// Initialize creates the owner's root member as "me-{owner}" named
// displayName (or [DefaultOwnerName]). When the root already exists it is
// renamed if displayName is set and differs.
func (s *Service) Initialize(ctx context.Context, ownerID, displayName string) (res Result, err error) {
	defer func(start time.Time) { s.observe(ctx, "initialize", ownerID, RootIDPrefix+ownerID, start, err) }(time.Now())
	if err := requireOwner(ownerID); err != nil {
		return Result{}, err
	}
	displayName = strings.TrimSpace(displayName)
	if displayName != "" {
		if err := derrors.ValidateMemberName(displayName); err != nil {
			return Result{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.store.List(ctx, ownerID)
	if err != nil {
		return Result{}, derrors.Wrap(derrors.ErrCodeInternal, err, "failed to load members")
	}
	for _, r := range recs {
		if r.Level != tree.LevelRoot {
			continue
		}
		if displayName != "" && r.Name != displayName {
			if err := s.store.Rename(ctx, ownerID, r.ID, displayName); err != nil {
				return Result{}, derrors.Wrap(derrors.ErrCodeInternal, err, "failed to rename root member")
			}
			s.logger.Info("root renamed", "owner", ownerID, "from", r.Name, "to", displayName)
			r.Name = displayName
		}
		return s.refetch(ctx, ownerID, Result{Record: r})
	}

	if displayName == "" {
		displayName = DefaultOwnerName
	}
	root := tree.Record{
		ID:        RootIDPrefix + ownerID,
		OwnerID:   ownerID,
		Name:      displayName,
		Level:     tree.LevelRoot,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Insert(ctx, root); err != nil {
		return Result{}, mapStoreError(err, root.ID, "")
	}
	s.logger.Info("owner initialized", "owner", ownerID, "root", root.ID)
	return s.refetch(ctx, ownerID, Result{Record: root})
}

// Add inserts a member after checking its parent and the parent's group
// capacity.
func (s *Service) Add(ctx context.Context, ownerID string, req AddRequest) (res Result, err error) {
	defer func(start time.Time) { s.observe(ctx, "add", ownerID, req.ID, start, err) }(time.Now())
	if err := requireOwner(ownerID); err != nil {
		return Result{}, err
	}
	if err := validateAdd(&req); err != nil {
		return Result{}, err
	}
	if req.ID == "" {
		req.ID = s.newID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.Snapshot(ctx, ownerID)
	if err != nil {
		return Result{}, err
	}

	if req.Level == tree.LevelFirst && req.ParentID == "" {
		if t.Root.ID == "" {
			return Result{}, derrors.New(derrors.ErrCodeParentNotFound,
				"root member not found; initialize the owner first")
		}
		req.ParentID = t.Root.ID
	}
	if err := checkParent(t, req.ParentID, req.Level); err != nil {
		return Result{}, err
	}
	if _, taken := t.LevelOf(req.ID); taken {
		return Result{}, derrors.New(derrors.ErrCodeDuplicateID, "member %q already exists", req.ID)
	}
	if !t.HasCapacity(req.ParentID, req.Level) {
		return Result{}, derrors.New(derrors.ErrCodeCapacityExceeded,
			"parent %q already has %d downlines", req.ParentID, tree.MaxGroupSize)
	}

	rec := tree.Record{
		ID:        req.ID,
		OwnerID:   ownerID,
		Name:      req.Name,
		Capital:   req.Capital,
		Level:     req.Level,
		ParentID:  req.ParentID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		return Result{}, mapStoreError(err, rec.ID, rec.ParentID)
	}
	s.logger.Info("member added", "owner", ownerID, "id", rec.ID, "level", rec.Level, "parent", rec.ParentID)
	return s.refetch(ctx, ownerID, Result{Record: rec})
}

// Delete removes a member and its whole subtree. The root cannot be
// deleted.
func (s *Service) Delete(ctx context.Context, ownerID, id string) (res Result, err error) {
	defer func(start time.Time) { s.observe(ctx, "delete", ownerID, id, start, err) }(time.Now())
	if err := requireOwner(ownerID); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(id) == "" {
		return Result{}, derrors.New(derrors.ErrCodeInvalidInput, "member id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.store.Get(ctx, ownerID, id)
	if err != nil {
		return Result{}, mapStoreError(err, id, "")
	}
	if rec.Level == tree.LevelRoot {
		return Result{}, derrors.New(derrors.ErrCodeInvalidLevel, "the root member cannot be deleted")
	}

	n, err := s.store.Delete(ctx, ownerID, id)
	if err != nil {
		return Result{}, mapStoreError(err, id, "")
	}
	s.logger.Info("member deleted", "owner", ownerID, "id", id, "removed", n)
	return s.refetch(ctx, ownerID, Result{Record: rec, Removed: n})
}

// Reassign moves a member, together with its subtree, under a new parent on
// the level above. A full destination group rejects the move and leaves the
// tree untouched.
func (s *Service) Reassign(ctx context.Context, ownerID, id, newParentID string) (res Result, err error) {
	defer func(start time.Time) { s.observe(ctx, "reassign", ownerID, id, start, err) }(time.Now())
	if err := requireOwner(ownerID); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(id) == "" || strings.TrimSpace(newParentID) == "" {
		return Result{}, derrors.New(derrors.ErrCodeInvalidInput, "member id and parent id are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.Snapshot(ctx, ownerID)
	if err != nil {
		return Result{}, err
	}
	lvl, ok := t.LevelOf(id)
	if !ok {
		return Result{}, derrors.New(derrors.ErrCodeMemberNotFound, "member %q not found", id)
	}
	if lvl == tree.LevelRoot {
		return Result{}, derrors.New(derrors.ErrCodeInvalidLevel, "the root member cannot be reassigned")
	}
	if err := checkParent(t, newParentID, lvl); err != nil {
		return Result{}, err
	}

	m, _ := t.Find(id)
	rec := tree.Record{ID: id, OwnerID: ownerID, Name: m.Name, Capital: m.Capital, Level: lvl, ParentID: newParentID}
	if cur, _ := t.ParentOf(id, lvl); cur == newParentID {
		return s.refetch(ctx, ownerID, Result{Record: rec})
	}
	if !t.HasCapacity(newParentID, lvl) {
		return Result{}, derrors.New(derrors.ErrCodeCapacityExceeded,
			"parent %q already has %d downlines", newParentID, tree.MaxGroupSize)
	}

	if err := s.store.UpdateParent(ctx, ownerID, id, newParentID); err != nil {
		return Result{}, mapStoreError(err, id, newParentID)
	}
	s.logger.Info("member reassigned", "owner", ownerID, "id", id, "parent", newParentID)
	return s.refetch(ctx, ownerID, Result{Record: rec})
}

// CheckParent reports whether id exists for the owner and returns its
// record. A miss is not an error.
func (s *Service) CheckParent(ctx context.Context, ownerID, id string) (tree.Record, bool, error) {
	if err := requireOwner(ownerID); err != nil {
		return tree.Record{}, false, err
	}
	if strings.TrimSpace(id) == "" {
		return tree.Record{}, false, derrors.New(derrors.ErrCodeInvalidInput, "parent id is required")
	}
	rec, err := s.store.Get(ctx, ownerID, id)
	if errors.Is(err, store.ErrNotFound) {
		return tree.Record{}, false, nil
	}
	if err != nil {
		return tree.Record{}, false, derrors.Wrap(derrors.ErrCodeInternal, err, "failed to look up parent")
	}
	return rec, true, nil
}

// ChildrenCount returns the number of direct downlines of id.
func (s *Service) ChildrenCount(ctx context.Context, ownerID, id string) (int, error) {
	if err := requireOwner(ownerID); err != nil {
		return 0, err
	}
	n, err := s.store.CountChildren(ctx, ownerID, id)
	if err != nil {
		return 0, derrors.Wrap(derrors.ErrCodeInternal, err, "failed to count downlines")
	}
	return n, nil
}

// AvailableParents lists the members a member on level could be assigned
// to: first-level members for level 2, all second-level members for level
// 3, nothing otherwise.
func (s *Service) AvailableParents(ctx context.Context, ownerID string, level tree.Level) ([]tree.Member, error) {
	t, err := s.Snapshot(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return ParentsFor(t, level), nil
}

// ParentsFor lists the possible parents for a member on level in display
// order.
func ParentsFor(t *tree.Tree, level tree.Level) []tree.Member {
	switch level {
	case tree.LevelSecond:
		return t.AllFirstLevel()
	case tree.LevelThird:
		var out []tree.Member
		for _, f := range t.FirstLevel {
			out = append(out, t.SecondLevel[f.ID]...)
		}
		return out
	}
	return nil
}

func (s *Service) refetch(ctx context.Context, ownerID string, res Result) (Result, error) {
	t, err := s.Snapshot(ctx, ownerID)
	if err != nil {
		return Result{}, err
	}
	res.Tree = t
	return res, nil
}

func (s *Service) observe(ctx context.Context, op, ownerID, id string, start time.Time, err error) {
	observability.Mutation().OnMutation(ctx, op, ownerID, id, time.Since(start), err)
	if err != nil {
		s.logger.Debug("mutation rejected", "op", op, "owner", ownerID, "id", id, "err", err)
	}
}

func requireOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return derrors.New(derrors.ErrCodeUnauthorized, "owner id is required")
	}
	return nil
}

func validateAdd(req *AddRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.ID = strings.TrimSpace(req.ID)
	req.ParentID = strings.TrimSpace(req.ParentID)

	if err := derrors.ValidateMemberLevel(int(req.Level)); err != nil {
		return err
	}
	if err := derrors.ValidateMemberName(req.Name); err != nil {
		return err
	}
	if err := derrors.ValidateCapital(req.Capital); err != nil {
		return err
	}
	if req.ID != "" {
		if err := derrors.ValidateMemberID(req.ID); err != nil {
			return err
		}
	}
	if req.Level > tree.LevelFirst && req.ParentID == "" {
		return derrors.New(derrors.ErrCodeInvalidInput, "parent id is required for level %d", req.Level)
	}
	return nil
}

// checkParent verifies that parentID exists on the level directly above
// childLevel.
func checkParent(t *tree.Tree, parentID string, childLevel tree.Level) error {
	lvl, ok := t.LevelOf(parentID)
	if !ok {
		return derrors.New(derrors.ErrCodeParentNotFound, "parent %q does not exist", parentID)
	}
	if lvl != childLevel-1 {
		return derrors.New(derrors.ErrCodeInvalidLevel,
			"parent %q is on level %d; level %d members need a level %d parent",
			parentID, int(lvl), int(childLevel), int(childLevel-1))
	}
	return nil
}

func mapStoreError(err error, id, parentID string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return derrors.Wrap(derrors.ErrCodeMemberNotFound, err, "member %q not found", id)
	case errors.Is(err, store.ErrDuplicateID):
		return derrors.Wrap(derrors.ErrCodeDuplicateID, err, "member %q already exists", id)
	case errors.Is(err, store.ErrParentNotFound):
		return derrors.Wrap(derrors.ErrCodeParentNotFound, err, "parent %q does not exist", parentID)
	}
	return derrors.Wrap(derrors.ErrCodeInternal, err, "store operation failed")
}
