// Package arq implements a reliable datagram channel over an unreliable
// packet transport using stop-and-wait ARQ.
//
// A Channel provides exactly-once, in-order delivery of opaque byte payloads
// to a single peer: one DATA segment is in flight at a time, carrying an
// alternating sequence bit, and the sender retransmits on a fixed timer until
// the matching ACK arrives or the retry budget is exhausted. Duplicate DATA
// segments are re-acknowledged without being delivered twice; corrupt
// segments are dropped silently, producing the same observable behavior as
// network loss.
//
// A Demux owns the shared packet socket and routes inbound segments to
// per-peer channels by exact source address. The package carries no auction
// semantics.
package arq
