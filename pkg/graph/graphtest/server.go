// Package graphtest provides an in-memory graph store for tests. It speaks the
// same request protocol as the real store, verifies the JWS on every
// mutation and records which identity signed each write.
package graphtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doodlesbykumbi/membership-gateway/pkg/credential"
	"github.com/doodlesbykumbi/membership-gateway/pkg/graph"
	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
)

// Write records one accepted mutation.
type Write struct {
	Operation  string
	ResourceID string
	DID        string
}

type request struct {
	Query         string          `json:"query"`
	Variables     json.RawMessage `json:"variables"`
	OperationName string          `json:"operationName"`
}

type resourceKey struct {
	Type model.ResourceType
	ID   string
}

// Server is an in-memory graph store.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	resources   map[resourceKey]model.Resource
	identities  map[string]string
	userRoles   map[string]model.UserRole
	invitations map[string]model.Invitation
	writes      []Write
	failures    map[string][]graph.Error
	latency     time.Duration
}

// NewServer starts a Server. Close it when done.
func NewServer() *Server {
	s := &Server{
		resources:   map[resourceKey]model.Resource{},
		identities:  map[string]string{},
		userRoles:   map[string]model.UserRole{},
		invitations: map[string]model.Invitation{},
		failures:    map[string][]graph.Error{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Endpoint is the URL to give a graph.Client.
func (s *Server) Endpoint() string {
	return s.URL + "/graphql"
}

// AddResource stores a resource and the DID allowed to write on its behalf.
func (s *Server) AddResource(r model.Resource, did string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[resourceKey{r.Type, r.ID}] = r
	s.identities[r.ID] = did
}

func (s *Server) PutUserRole(ur model.UserRole) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ur.ID == "" {
		ur.ID = uuid.NewString()
	}
	ur.UserID = model.NormalizeID(ur.UserID)
	s.userRoles[ur.ID] = ur
}

func (s *Server) PutInvitation(inv model.Invitation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invitations[inv.ID] = inv
}

// UserRoles returns the roles held on a resource.
func (s *Server) UserRoles(resourceID string) []model.UserRole {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.UserRole
	for _, ur := range s.userRoles {
		if ur.ResourceID == resourceID {
			out = append(out, ur)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (s *Server) Invitation(id string) (model.Invitation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[id]
	return inv, ok
}

// Writes returns every accepted mutation in arrival order.
func (s *Server) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Write(nil), s.writes...)
}

// Reset drops every document, identity, recorded write and pending failure.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources = map[resourceKey]model.Resource{}
	s.identities = map[string]string{}
	s.userRoles = map[string]model.UserRole{}
	s.invitations = map[string]model.Invitation{}
	s.failures = map[string][]graph.Error{}
	s.writes = nil
	s.latency = 0
}

// FailNext makes the next request for op fail with errors.
func (s *Server) FailNext(op string, errors ...graph.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = errors
}

// SetLatency delays every mutation, widening race windows in tests.
func (s *Server) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req request
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	failure, failing := s.failures[req.OperationName]
	delete(s.failures, req.OperationName)
	latency := s.latency
	s.mu.Unlock()

	if failing {
		reply(w, nil, failure...)
		return
	}

	if !graph.IsMutation(req.OperationName) {
		data, gerr := s.query(req)
		reply(w, data, gerr...)
		return
	}

	claims, err := credential.VerifyRequest(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "), body)
	if err != nil {
		reply(w, nil, graph.Error{Message: err.Error(), Extensions: map[string]interface{}{"code": "UNAUTHENTICATED"}})
		return
	}
	if latency > 0 {
		time.Sleep(latency)
	}

	data, gerr := s.mutate(req, claims)
	reply(w, data, gerr...)
}

func reply(w http.ResponseWriter, data interface{}, errors ...graph.Error) {
	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{}
	if len(errors) > 0 {
		resp["errors"] = errors
	} else {
		resp["data"] = data
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func fail(code, format string, args ...interface{}) []graph.Error {
	return []graph.Error{{Message: fmt.Sprintf(format, args...), Extensions: map[string]interface{}{"code": code}}}
}

func (s *Server) query(req request) (interface{}, []graph.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.OperationName {
	case graph.OpGetResource:
		var v struct {
			Type model.ResourceType `json:"type"`
			ID   string             `json:"id"`
		}
		if err := json.Unmarshal(req.Variables, &v); err != nil {
			return nil, fail("BAD_REQUEST", "%v", err)
		}
		if r, ok := s.resources[resourceKey{v.Type, v.ID}]; ok {
			return map[string]interface{}{"resource": r}, nil
		}
		return map[string]interface{}{"resource": nil}, nil

	case graph.OpGetUserRole:
		var v struct {
			UserID       string             `json:"userId"`
			ResourceType model.ResourceType `json:"resourceType"`
			ResourceID   string             `json:"resourceId"`
		}
		if err := json.Unmarshal(req.Variables, &v); err != nil {
			return nil, fail("BAD_REQUEST", "%v", err)
		}
		if ur := s.findUserRole(v.UserID, v.ResourceType, v.ResourceID); ur != nil {
			return map[string]interface{}{"userRole": ur}, nil
		}
		return map[string]interface{}{"userRole": nil}, nil

	case graph.OpGetInvitation:
		var v struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(req.Variables, &v); err != nil {
			return nil, fail("BAD_REQUEST", "%v", err)
		}
		if inv, ok := s.invitations[v.ID]; ok {
			return map[string]interface{}{"invitation": inv}, nil
		}
		return map[string]interface{}{"invitation": nil}, nil

	case graph.OpListInvitations:
		var v struct {
			ParticipantID string                 `json:"participantId"`
			Role          string                 `json:"role"`
			Status        model.InvitationStatus `json:"status"`
			ResourceID    string                 `json:"resourceId"`
		}
		if err := json.Unmarshal(req.Variables, &v); err != nil {
			return nil, fail("BAD_REQUEST", "%v", err)
		}
		out := []model.Invitation{}
		for _, inv := range s.invitations {
			asInvitee := model.SameID(inv.InviteeID, v.ParticipantID)
			asInviter := model.SameID(inv.InviterID, v.ParticipantID)
			switch v.Role {
			case graph.AsInvitee:
				if !asInvitee {
					continue
				}
			case graph.AsInviter:
				if !asInviter {
					continue
				}
			default:
				if !asInvitee && !asInviter {
					continue
				}
			}
			if v.Status != "" && inv.Status != v.Status {
				continue
			}
			if v.ResourceID != "" && inv.ResourceID != v.ResourceID {
				continue
			}
			out = append(out, inv)
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].ID < out[j].ID
			}
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
		return map[string]interface{}{"invitations": out}, nil
	}

	return nil, fail("BAD_REQUEST", "unknown operation %q", req.OperationName)
}

func (s *Server) findUserRole(userID string, resourceType model.ResourceType, resourceID string) *model.UserRole {
	for _, ur := range s.userRoles {
		if model.SameID(ur.UserID, userID) && ur.ResourceType == resourceType && ur.ResourceID == resourceID {
			found := ur
			return &found
		}
	}
	return nil
}

// authorize checks the signer may write documents of resourceID.
func (s *Server) authorize(claims *credential.RequestClaims, resourceID string) []graph.Error {
	want, ok := s.identities[resourceID]
	if !ok {
		return fail("FORBIDDEN", "no identity registered for resource %s", resourceID)
	}
	if claims.Issuer != want || claims.Subject != resourceID {
		return fail("FORBIDDEN", "mutation for resource %s signed by %s", resourceID, claims.Issuer)
	}
	return nil
}

func (s *Server) record(op, resourceID string, claims *credential.RequestClaims) {
	s.writes = append(s.writes, Write{Operation: op, ResourceID: resourceID, DID: claims.Issuer})
}

func (s *Server) mutate(req request, claims *credential.RequestClaims) (interface{}, []graph.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.OperationName {
	case graph.OpCreateUserRole:
		var v struct {
			Input model.UserRole `json:"input"`
		}
		if err := json.Unmarshal(req.Variables, &v); err != nil {
			return nil, fail("BAD_REQUEST", "%v", err)
		}
		ur := v.Input
		if gerr := s.authorize(claims, ur.ResourceID); gerr != nil {
			return nil, gerr
		}
		if s.findUserRole(ur.UserID, ur.ResourceType, ur.ResourceID) != nil {
			return nil, fail(graph.CodeConflict, "user %s already holds a role on %s", ur.UserID, ur.ResourceID)
		}
		if ur.ID == "" {
			ur.ID = uuid.NewString()
		}
		ur.UserID = model.NormalizeID(ur.UserID)
		s.userRoles[ur.ID] = ur
		s.record(req.OperationName, ur.ResourceID, claims)
		return map[string]interface{}{"createUserRole": ur}, nil

	case graph.OpUpdateUserRole:
		var v struct {
			ID        string    `json:"id"`
			RoleID    string    `json:"roleId"`
			UpdatedAt time.Time `json:"updatedAt"`
		}
		if err := json.Unmarshal(req.Variables, &v); err != nil {
			return nil, fail("BAD_REQUEST", "%v", err)
		}
		ur, ok := s.userRoles[v.ID]
		if !ok {
			return nil, fail(graph.CodeNotFound, "user role %s not found", v.ID)
		}
		if gerr := s.authorize(claims, ur.ResourceID); gerr != nil {
			return nil, gerr
		}
		ur.RoleID = v.RoleID
		ur.UpdatedAt = v.UpdatedAt
		s.userRoles[ur.ID] = ur
		s.record(req.OperationName, ur.ResourceID, claims)
		return map[string]interface{}{"updateUserRole": ur}, nil

	case graph.OpDeleteUserRole:
		var v struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(req.Variables, &v); err != nil {
			return nil, fail("BAD_REQUEST", "%v", err)
		}
		ur, ok := s.userRoles[v.ID]
		if !ok {
			return nil, fail(graph.CodeNotFound, "user role %s not found", v.ID)
		}
		if gerr := s.authorize(claims, ur.ResourceID); gerr != nil {
			return nil, gerr
		}
		delete(s.userRoles, v.ID)
		s.record(req.OperationName, ur.ResourceID, claims)
		return map[string]interface{}{"deleteUserRole": map[string]string{"id": v.ID}}, nil

	case graph.OpCreateInvitation:
		var v struct {
			Input model.Invitation `json:"input"`
		}
		if err := json.Unmarshal(req.Variables, &v); err != nil {
			return nil, fail("BAD_REQUEST", "%v", err)
		}
		inv := v.Input
		if gerr := s.authorize(claims, inv.ResourceID); gerr != nil {
			return nil, gerr
		}
		if inv.ID == "" {
			inv.ID = uuid.NewString()
		}
		if _, exists := s.invitations[inv.ID]; exists {
			return nil, fail(graph.CodeConflict, "invitation %s already exists", inv.ID)
		}
		s.invitations[inv.ID] = inv
		s.record(req.OperationName, inv.ResourceID, claims)
		return map[string]interface{}{"createInvitation": inv}, nil

	case graph.OpUpdateInvitation:
		var v struct {
			ID    string                `json:"id"`
			Patch graph.InvitationPatch `json:"patch"`
		}
		if err := json.Unmarshal(req.Variables, &v); err != nil {
			return nil, fail("BAD_REQUEST", "%v", err)
		}
		inv, ok := s.invitations[v.ID]
		if !ok {
			return nil, fail(graph.CodeNotFound, "invitation %s not found", v.ID)
		}
		if gerr := s.authorize(claims, inv.ResourceID); gerr != nil {
			return nil, gerr
		}
		if v.Patch.Status != nil {
			inv.Status = *v.Patch.Status
		}
		if v.Patch.IsRead != nil {
			inv.IsRead = *v.Patch.IsRead
		}
		inv.UpdatedAt = v.Patch.UpdatedAt
		s.invitations[inv.ID] = inv
		s.record(req.OperationName, inv.ResourceID, claims)
		return map[string]interface{}{"updateInvitation": inv}, nil
	}

	return nil, fail("BAD_REQUEST", "unknown operation %q", req.OperationName)
}
