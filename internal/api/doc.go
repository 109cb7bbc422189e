// Package api provides the HTTP API and WebSocket event stream.
//
// Routes live under /api/v1:
//
//	GET  /health     component health and loop status
//	GET  /devices    sensors, relays and yeelights
//	POST /tasks      submit a relay task
//	GET  /counters   persisted toggle counters
//	GET  /ws         websocket event stream
//
// POST /tasks and GET /ws require an HS256 service token signed with
// api.auth.secret, sent as "Authorization: Bearer <token>" or ?token=.
// IssueServiceToken mints one.
//
// The server follows the same lifecycle as the other components:
//
//	srv, err := api.New(deps)
//	if err := srv.Start(ctx); err != nil { ... }
//	defer srv.Close()
package api
