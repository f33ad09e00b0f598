package endpoints

import (
	"context"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/membership-gateway/pkg/membership"
	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server/respond"
)

type resourceRequest struct {
	ResourceType string `json:"resourceType" schema:"resourceType" validate:"required,oneof=space event"`
	ResourceID   string `json:"resourceId" schema:"resourceId" validate:"required"`
}

type assignRequest struct {
	resourceRequest
	UserID string `json:"userId" validate:"required"`
	RoleID string `json:"roleId" validate:"required"`
}

type removeRequest struct {
	resourceRequest
	UserID string `json:"userId" validate:"required"`
}

func (r resourceRequest) target() membership.Target {
	return membership.Target{ResourceType: model.ResourceType(r.ResourceType), ResourceID: r.ResourceID}
}

// RegisterMemberEndpoints registers the /member routes
func RegisterMemberEndpoints(s *server.Server) {
	members := s.Members
	logger := s.Logger

	memberRouter := s.Router.PathPrefix("/member").Subrouter()
	memberRouter.Use(s.SessionMiddleware.Middleware)

	memberRouter.HandleFunc("/add", handleAddMember(members, logger)).Methods("POST")
	memberRouter.HandleFunc("/remove", handleRemoveMember(members, logger)).Methods("POST")
	memberRouter.HandleFunc("/update", handleUpdateMember(members, logger)).Methods("POST")
	memberRouter.HandleFunc("/join", handleSelfService(members.Join, "joined", logger)).Methods("POST")
	memberRouter.HandleFunc("/follow", handleSelfService(members.Follow, "followed", logger)).Methods("POST")
	memberRouter.HandleFunc("/unfollow", handleUnfollow(members, logger)).Methods("POST")
	memberRouter.HandleFunc("/assignable-roles", handleAssignableRoles(members, logger)).Methods("GET")
}

func handleAddMember(members *membership.Service, logger log.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		operator, err := operatorID(r)
		if err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		var req assignRequest
		if err := decodeBody(r, &req); err != nil {
			respond.Error(w, r, logger, err)
			return
		}

		t := req.target()
		t.UserID, t.RoleID = req.UserID, req.RoleID
		ur, err := members.Add(r.Context(), operator, t)
		if err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		respond.Success(w, ur, "member added")
	}
}

func handleRemoveMember(members *membership.Service, logger log.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		operator, err := operatorID(r)
		if err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		var req removeRequest
		if err := decodeBody(r, &req); err != nil {
			respond.Error(w, r, logger, err)
			return
		}

		t := req.target()
		t.UserID = req.UserID
		if err := members.Remove(r.Context(), operator, t); err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		respond.Success(w, nil, "member removed")
	}
}

func handleUpdateMember(members *membership.Service, logger log.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		operator, err := operatorID(r)
		if err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		var req assignRequest
		if err := decodeBody(r, &req); err != nil {
			respond.Error(w, r, logger, err)
			return
		}

		t := req.target()
		t.UserID, t.RoleID = req.UserID, req.RoleID
		ur, err := members.Update(r.Context(), operator, t)
		if err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		respond.Success(w, ur, "member updated")
	}
}

type selfServiceFunc func(ctx context.Context, operatorID string, t membership.Target) (*model.UserRole, error)

func handleSelfService(fn selfServiceFunc, done string, logger log.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		operator, err := operatorID(r)
		if err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		var req resourceRequest
		if err := decodeBody(r, &req); err != nil {
			respond.Error(w, r, logger, err)
			return
		}

		ur, err := fn(r.Context(), operator, req.target())
		if err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		respond.Success(w, ur, done)
	}
}

func handleUnfollow(members *membership.Service, logger log.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		operator, err := operatorID(r)
		if err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		var req resourceRequest
		if err := decodeBody(r, &req); err != nil {
			respond.Error(w, r, logger, err)
			return
		}

		if err := members.Unfollow(r.Context(), operator, req.target()); err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		respond.Success(w, nil, "unfollowed")
	}
}

func handleAssignableRoles(members *membership.Service, logger log.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		operator, err := operatorID(r)
		if err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		var req resourceRequest
		if err := decodeQuery(r, &req); err != nil {
			respond.Error(w, r, logger, err)
			return
		}

		roles, err := members.AssignableRoles(r.Context(), operator, req.target())
		if err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		respond.Success(w, roles, "")
	}
}
