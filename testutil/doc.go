// Package testutil provides test doubles for the aucnet protocol stack: an
// in-memory datagram pipe, small configuration fixtures, and shorthand for
// netsim's fault-injecting packet connection.
package testutil
