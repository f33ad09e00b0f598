package endpoints

import "github.com/doodlesbykumbi/membership-gateway/pkg/server"

// RegisterAll registers all API endpoints on the server
func RegisterAll(srv *server.Server) {
	RegisterStatusEndpoints(srv)
	RegisterMemberEndpoints(srv)
	RegisterInvitationEndpoints(srv)
}
