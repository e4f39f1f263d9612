// Package webhook implements the inbound Smartlead endpoint and its
// processing pipeline.
//
// # Request Flow
//
//  1. HTTP POST arrives at the configured path (default /smartlead/webhook)
//  2. Body streamed through a size limit (400 if exceeded, default 512 KiB)
//  3. JSON decoded (400 if malformed), context extracted best-effort
//  4. Secret validated when configured (401 on mismatch, constant-time)
//  5. Event-type filter, with a reply-like heuristic for typeless payloads
//     (202 ignored when nothing matches)
//  6. Fingerprint checked against the dedup cache (200 duplicate on a hit)
//  7. 202 acknowledged, fingerprint recorded
//  8. Forward call detached: prompt rendered and posted to the agent hook;
//     its outcome is logged and published, never surfaced to the caller
//
// GET on the same path returns a static health descriptor; GET on
// {path}/events streams handled events as SSE.
//
// # Security Model
//
//   - Secret compared via crypto/subtle over fixed-length digests
//   - Generic 401 with no mismatch detail
//   - Body size limit enforced while streaming, before full buffering
//   - Request logging excludes payload content unless log_payloads is set
package webhook
