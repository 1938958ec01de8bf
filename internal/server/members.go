package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/matzehuels/downline/pkg/downline"
	derrors "github.com/matzehuels/downline/pkg/errors"
	"github.com/matzehuels/downline/pkg/tree"
)

type addMemberRequest struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	StartingCapital *float64 `json:"startingCapital"`
	Level           *int     `json:"level"`
	ParentID        string   `json:"parentId"`
}

type reassignRequest struct {
	ID       string `json:"id"`
	ParentID string `json:"parentId"`
}

type initializeRequest struct {
	DisplayName string `json:"displayName"`
}

type deleteResponse struct {
	ID      string `json:"id"`
	Removed int    `json:"removed"`
}

type checkParentResponse struct {
	Success bool         `json:"success"`
	Exists  bool         `json:"exists"`
	Parent  *tree.Record `json:"parent,omitempty"`
	Error   string       `json:"error,omitempty"`
}

func (s *Server) handleMLMData(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.Snapshot(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch MLM data")
		return
	}
	writeData(w, t)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err, "Failed to add member")
		return
	}
	if strings.TrimSpace(req.Name) == "" || req.StartingCapital == nil || req.Level == nil {
		writeJSON(w, http.StatusBadRequest, envelope{Error: "Missing required fields"})
		return
	}

	res, err := s.svc.Add(r.Context(), ownerFrom(r.Context()), downline.AddRequest{
		ID:       req.ID,
		Name:     req.Name,
		Capital:  *req.StartingCapital,
		Level:    tree.Level(*req.Level),
		ParentID: req.ParentID,
	})
	if err != nil {
		if tree.Level(*req.Level) == tree.LevelFirst && strings.TrimSpace(req.ParentID) == "" &&
			derrors.Is(err, derrors.ErrCodeParentNotFound) {
			writeJSON(w, http.StatusBadRequest, envelope{Error: "ME member not found. Please refresh the page."})
			return
		}
		s.writeError(w, r, err, "Failed to add member")
		return
	}
	writeData(w, res.Record)
}

func (s *Server) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, envelope{Error: "Member ID is required"})
		return
	}
	res, err := s.svc.Delete(r.Context(), ownerFrom(r.Context()), id)
	if err != nil {
		s.writeError(w, r, err, "Failed to delete member")
		return
	}
	writeData(w, deleteResponse{ID: id, Removed: res.Removed})
}

func (s *Server) handleReassignMember(w http.ResponseWriter, r *http.Request) {
	var req reassignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err, "Failed to update member")
		return
	}
	if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.ParentID) == "" {
		writeJSON(w, http.StatusBadRequest, envelope{Error: "Member ID and parent ID are required"})
		return
	}
	res, err := s.svc.Reassign(r.Context(), ownerFrom(r.Context()), req.ID, req.ParentID)
	if err != nil {
		s.writeError(w, r, err, "Failed to update member")
		return
	}
	writeData(w, res.Record)
}

// handleCheckParent answers a miss with 200 and exists=false so that
// clients can probe an id without treating the answer as a failure.
func (s *Server) handleCheckParent(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, envelope{Error: "Parent ID is required"})
		return
	}
	rec, ok, err := s.svc.CheckParent(r.Context(), ownerFrom(r.Context()), id)
	if err != nil {
		s.writeError(w, r, err, "Failed to check parent")
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, checkParentResponse{Error: "Parent not found"})
		return
	}
	writeJSON(w, http.StatusOK, checkParentResponse{Success: true, Exists: true, Parent: &rec})
}

func (s *Server) handleAvailableParents(w http.ResponseWriter, r *http.Request) {
	level, err := strconv.Atoi(r.URL.Query().Get("level"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Error: "level must be 1, 2 or 3"})
		return
	}
	if err := derrors.ValidateMemberLevel(level); err != nil {
		s.writeError(w, r, err, "Failed to list parents")
		return
	}
	parents, err := s.svc.AvailableParents(r.Context(), ownerFrom(r.Context()), tree.Level(level))
	if err != nil {
		s.writeError(w, r, err, "Failed to list parents")
		return
	}
	if parents == nil {
		parents = []tree.Member{}
	}
	writeData(w, parents)
}

func (s *Server) handleInitializeUser(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		s.writeError(w, r, err, "Failed to initialize user")
		return
	}
	res, err := s.svc.Initialize(r.Context(), ownerFrom(r.Context()), req.DisplayName)
	if err != nil {
		s.writeError(w, r, err, "Failed to initialize user")
		return
	}
	writeData(w, res.Tree)
}
