// Package server runs the auctioneer process: it owns the shared datagram
// socket, demultiplexes peers into reliable channels, assigns roles through
// the registrar, drives the auction coordinator, and relays the item-detail
// payload from the seller to the winning buyer once the auction closes.
//
// Each connected peer gets one session goroutine that exclusively drives
// that peer's channel. Transient network faults are absorbed below the
// channel; an unresponsive peer is withdrawn from the auction rather than
// failing it, except for a seller that becomes unresponsive before an item
// was ever submitted, which is fatal to the run.
package server
