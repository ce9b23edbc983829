// Package http provides HTTP handlers and middleware for the swap marketplace API.
//
// The router exposes the following endpoints:
//   - POST /api/auth/register, POST /api/auth/login: issue a session token.
//     Response: {"message","token","userId","email","expiresAt"}; the token is
//     also set as the `session_token` cookie and the `X-Session-Token` header.
//   - POST /api/auth/logout: revokes the current session. Returns 204.
//   - POST /api/create, PATCH /api/update/{eventId}, DELETE /api/delete/{eventId},
//     GET /api/getEvent/{userId}: event management exchanging `EventDTO`.
//   - GET /api/getAll/{userId}: SWAPPABLE events of every other user.
//   - POST /api/swapRequest/{userId}/{eventId}/{userEventId}: proposes giving up
//     userEventId in exchange for eventId.
//   - POST /api/responceToRequest/{swapId}: body {"isAccepted": bool}.
//   - GET /api/getSwap/{userId}: swaps involving the user with parties and events.
//   - GET /api/busy-times, GET /api/busy-times.ics: every blocked range as JSON
//     or as an iCalendar feed.
//   - GET /api/SSE/{contactAddress}: server-sent events (`ping`, `swapRequest`,
//     `swapResponse`) for the caller's own email address.
//
// Every route except registration and login requires a session token from the
// Authorization header, the session cookie or the `token` query parameter.
package http
