package endpoints

import (
	"context"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/membership-gateway/pkg/invitation"
	"github.com/doodlesbykumbi/membership-gateway/pkg/membership"
	"github.com/doodlesbykumbi/membership-gateway/pkg/model"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server"
	"github.com/doodlesbykumbi/membership-gateway/pkg/server/respond"
)

type createInvitationRequest struct {
	resourceRequest
	InviteeID string `json:"inviteeId" validate:"required"`
	RoleID    string `json:"roleId" validate:"required"`
	Message   string `json:"message" validate:"max=500"`
}

type invitationRequest struct {
	InvitationID string `json:"invitationId" validate:"required"`
}

type markReadRequest struct {
	InvitationIDs []string `json:"invitationIds" validate:"omitempty,dive,required"`
}

type listInvitationsRequest struct {
	Status     string `schema:"status" validate:"omitempty,oneof=pending accepted rejected cancelled invalid"`
	ResourceID string `schema:"resourceId"`
}

// RegisterInvitationEndpoints registers the /invitation routes
func RegisterInvitationEndpoints(s *server.Server) {
	invitations := s.Invitations
	members := s.Members
	logger := s.Logger

	invitationRouter := s.Router.PathPrefix("/invitation").Subrouter()
	invitationRouter.Use(s.SessionMiddleware.Middleware)

	invitationRouter.HandleFunc("/create", handleCreateInvitation(invitations, logger)).Methods("POST")
	invitationRouter.HandleFunc("/accept", handleAcceptInvitation(members, logger)).Methods("POST")
	invitationRouter.HandleFunc("/cancel", handleTransition(invitations.Cancel, "invitation cancelled", logger)).Methods("POST")
	invitationRouter.HandleFunc("/reject", handleTransition(invitations.Reject, "invitation rejected", logger)).Methods("POST")
	invitationRouter.HandleFunc("/read", handleTransition(invitations.MarkRead, "invitation marked as read", logger)).Methods("POST")
	invitationRouter.HandleFunc("/mark-read", handleMarkAllRead(invitations, logger)).Methods("POST")
	invitationRouter.HandleFunc("/list", handleListInvitations(invitations, logger)).Methods("GET")
	invitationRouter.HandleFunc("/pending", handlePendingInvitations(invitations, logger)).Methods("GET")
	invitationRouter.HandleFunc("/unread-count", handleUnreadCount(invitations, logger)).Methods("GET")
}

func handleCreateInvitation(invitations *invitation.Service, logger log.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		operator, err := operatorID(r)
		if err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		var req createInvitationRequest
		if err := decodeBody(r, &req); err != nil {
			respond.Error(w, r, logger, err)
			return
		}

		inv, err := invitations.Create(r.Context(), operator, invitation.CreateInput{
			InviteeID:    req.InviteeID,
			ResourceType: model.ResourceType(req.ResourceType),
			ResourceID:   req.ResourceID,
			RoleID:       req.RoleID,
			Message:      req.Message,
		})
		if err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		respond.Success(w, inv, "invitation created")
	}
}

func handleAcceptInvitation(members *membership.Service, logger log.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		operator, err := operatorID(r)
		if err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		var req invitationRequest
		if err := decodeBody(r, &req); err != nil {
			respond.Error(w, r, logger, err)
			return
		}

		accepted, err := members.AcceptInvitation(r.Context(), operator, req.InvitationID)
		if err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		respond.Success(w, accepted, "invitation accepted")
	}
}

type transitionFunc func(ctx context.Context, operatorID, id string) (*model.Invitation, error)

func handleTransition(fn transitionFunc, done string, logger log.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		operator, err := operatorID(r)
		if err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		var req invitationRequest
		if err := decodeBody(r, &req); err != nil {
			respond.Error(w, r, logger, err)
			return
		}

		inv, err := fn(r.Context(), operator, req.InvitationID)
		if err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		respond.Success(w, inv, done)
	}
}

func handleMarkAllRead(invitations *invitation.Service, logger log.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		operator, err := operatorID(r)
		if err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		var req markReadRequest
		if err := decodeBody(r, &req); err != nil {
			respond.Error(w, r, logger, err)
			return
		}

		n, err := invitations.MarkAllRead(r.Context(), operator, req.InvitationIDs)
		if err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		respond.Success(w, map[string]int{"updated": n}, "")
	}
}

func handleListInvitations(invitations *invitation.Service, logger log.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		operator, err := operatorID(r)
		if err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		var req listInvitationsRequest
		if err := decodeQuery(r, &req); err != nil {
			respond.Error(w, r, logger, err)
			return
		}

		views, err := invitations.List(r.Context(), operator, invitation.Filter{
			Status:     model.InvitationStatus(req.Status),
			ResourceID: req.ResourceID,
		})
		if err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		respond.Success(w, views, "")
	}
}

func handlePendingInvitations(invitations *invitation.Service, logger log.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		operator, err := operatorID(r)
		if err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		pending, err := invitations.Pending(r.Context(), operator)
		if err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		respond.Success(w, pending, "")
	}
}

func handleUnreadCount(invitations *invitation.Service, logger log.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		operator, err := operatorID(r)
		if err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		n, err := invitations.UnreadCount(r.Context(), operator)
		if err != nil {
			respond.Error(w, r, logger, err)
			return
		}
		respond.Success(w, map[string]int{"count": n}, "")
	}
}
