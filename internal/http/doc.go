// Package http provides HTTP handlers and middleware for the Mindfolk reminder API.
//
// The router exposes the following endpoints:
//   - POST /login: issues an access token. Body: {"email","password"}. Response:
//     {"token","expires_at","account"} with the token also surfaced via the
//     `X-Access-Token` header and an `access_token` cookie.
//   - POST /logout: revokes the token extracted from the Authorization header or
//     cookie. Returns 204 No Content and clears the cookie.
//   - GET /accounts, POST /accounts, GET /accounts/{id}: account management. Creation
//     and listing require the admin role.
//   - GET /sessions?account_id=&horizon=, POST /sessions, GET /sessions/{id}: the
//     session registry. Listings carry a countdown per session.
//   - PUT /sessions/{id}/status, PUT /sessions/{id}/schedule: complete, cancel or
//     reschedule a confirmed session.
//   - GET /sessions/{id}/countdown, POST /sessions/{id}/join: countdown presentation
//     and the join action, which answers with the session room path.
//   - POST /views, DELETE /views/{id}: mount and unmount a reminder view.
//   - GET /views/{id}/reminders, POST /views/{id}/dismissals, DELETE /views/{id}/dismissals:
//     current reminders and per-view dismissal state.
//   - GET /views/{id}/stream: websocket pushing `reminders` messages whenever the
//     visible reminders change. Clients send `dismiss`, `clear` and `join`; a join
//     is answered with `navigate`. See stream.go for the message shapes.
//   - GET /metrics, GET /healthz: Prometheus exposition and liveness.
//
// Errors use the envelope {"error_code","message","errors"}. Request/response DTOs
// live alongside their respective handlers.
package http
