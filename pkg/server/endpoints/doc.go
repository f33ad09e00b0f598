// Package endpoints registers the HTTP routes of the membership gateway.
//
// Every response uses the respond.Envelope shape. Request bodies are decoded
// into small DTOs validated with go-playground/validator; validation errors
// are reported per field in the envelope's details.
//
//	POST /member/{add,remove,update,join,follow,unfollow}
//	GET  /member/assignable-roles
//	POST /invitation/{create,accept,cancel,reject,read,mark-read}
//	GET  /invitation/{list,pending,unread-count}
//	GET  /healthz
//	GET  /metrics
package endpoints
