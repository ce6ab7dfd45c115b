// Package http exposes the squad scheduler to the chat platform bridge.
//
// The bridge identifies the caller with the X-Participant-ID header, the
// originating server with X-Group-ID and the platform's administrator
// capability with X-Group-Admin. Routes:
//   - POST /sessions/tonight: announce a session without a fixed time.
//   - GET /sessions/{id}, POST /sessions/{id}/responses: read the roster and
//     record an RSVP. Body: {"status":"joining|cant_make_it|maybe"}.
//   - POST /wizards, GET /wizards/{id}, DELETE /wizards/{id}: open, inspect
//     and cancel a scheduling prompt.
//   - POST /wizards/{id}/date|hour|minute: advance the prompt. Bodies:
//     {"date":"YYYY-MM-DD"}, {"hour":20}, {"minute":30}. The minute step
//     answers with the created session.
//   - GET|PUT|DELETE /timezone and GET /timezones?q=: participant timezone
//     registration and autocomplete.
//   - GET|PUT|DELETE /ping-role: the role mentioned in announcements.
//   - GET /healthz: store reachability.
//
// Instants are encoded as Unix seconds so the presentation layer can render
// them in each reader's local time.
package http
