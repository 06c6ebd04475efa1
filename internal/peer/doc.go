// Package peer holds the identity and lifecycle vocabulary shared by the ring
// orchestrator, links and observers.
//
// Ownership boundary:
// - loopback peer addresses (ring table keys)
// - peer lifecycle states and status snapshots
package peer
