// Package server provides the HTTP server of the membership gateway.
//
// Routing uses gorilla/mux. Every request passes through panic recovery, the
// access log (written through logrus) and the Prometheus middleware.
// Endpoints are registered by the endpoints subpackage:
//
//	srv := server.NewServer(cfg, server.Options{...})
//	endpoints.RegisterAll(srv)
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// The /member and /invitation routes require a session token, validated by
// middleware.SessionAuthenticator. /healthz and /metrics are public.
package server
