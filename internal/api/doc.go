// Package api is the HTTP surface of Presence Core.
//
// It serves:
//   - the settings page (GET /) and its form (POST /device-settings), where
//     callers are identified by their network address
//   - JSON endpoints for health, the current summary and metrics under /api/v1
//   - a WebSocket feed that pushes every published summary
//   - the settings change history at /api/v1/history, when a History
//     repository is configured (sqlite backend)
//
// Unknown page routes and page handler panics redirect to the settings
// page. The /api/v1 routes answer errors in JSON.
//
// The server is the collaborator whose exit stops the presence loops:
// when its listener stops, it shuts the coordinator down.
//
//	srv, err := api.New(deps)
//	srv.Start(ctx)
//	defer srv.Close()
package api
