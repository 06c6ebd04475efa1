// Package link implements the per-connection peer behavior of the ring.
//
// Ownership boundary:
// - session context variants (server side of a peer, ad-hoc client)
// - connect instruction handling and the outbound ring link it opens
// - completion settlement when a peer's ring link ends
// - dial retry/backoff policy for ring links
package link
