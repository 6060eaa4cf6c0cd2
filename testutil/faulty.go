package testutil

import (
	"net"

	"github.com/flashbots/aucnet/netsim"
)

// Faults aliases netsim.Faults so protocol tests configure fault profiles
// without importing netsim directly.
type Faults = netsim.Faults

// NewFaultyConn wraps conn with netsim's fault-injecting connection.
func NewFaultyConn(conn net.PacketConn, faults Faults, seed int64) *netsim.FaultyConn {
	return netsim.NewFaultyConn(conn, faults, seed)
}
