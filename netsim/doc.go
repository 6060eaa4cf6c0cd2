// Package netsim simulates unreliable datagram networks. Its fault-injecting
// packet connection drops, duplicates, corrupts and reorders writes below the
// reliable channel; it backs both the client CLI's loss-simulation flag and
// the protocol stack's tests.
package netsim
