// Package auction contains the auction domain: the role registrar that
// assigns the seller and buyer roles to connecting peers, the coordinator
// state machine that collects bids and computes the winner and clearing
// price, and the wire message catalog exchanged over reliable channels.
package auction
