package auction

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func peerAddr(n int) net.Addr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 10000 + n}
}

func TestRegistrar_FirstPeerIsSeller(t *testing.T) {
	r := NewRegistrar(nil)

	seller, err := r.Register(peerAddr(1), nil)
	require.NoError(t, err)
	assert.Equal(t, RoleSeller, seller.Role)

	buyer, err := r.Register(peerAddr(2), nil)
	require.NoError(t, err)
	assert.Equal(t, RoleBuyer, buyer.Role)

	assert.Same(t, seller, r.Seller())
	assert.Equal(t, 2, r.PeerCount())
}

func TestRegistrar_SellerSlotSurvivesRemoval(t *testing.T) {
	r := NewRegistrar(nil)

	seller, err := r.Register(peerAddr(1), nil)
	require.NoError(t, err)
	r.Remove(seller.Addr)

	// The seller slot is single-assignment: a later peer does not inherit
	// the role after the seller withdrew.
	p, err := r.Register(peerAddr(2), nil)
	require.NoError(t, err)
	assert.Equal(t, RoleBuyer, p.Role)
	assert.Equal(t, 1, r.PeerCount())
}

func TestRegistrar_LookupAndBuyers(t *testing.T) {
	r := NewRegistrar(nil)

	_, err := r.Register(peerAddr(1), nil)
	require.NoError(t, err)
	for i := 2; i <= 4; i++ {
		_, err := r.Register(peerAddr(i), nil)
		require.NoError(t, err)
	}

	p, ok := r.Lookup(peerAddr(3).String())
	require.True(t, ok)
	assert.Equal(t, RoleBuyer, p.Role)

	_, ok = r.Lookup(peerAddr(9).String())
	assert.False(t, ok)

	assert.Len(t, r.Buyers(), 3)
}

func TestRegistrar_ClosedRejectsRegistration(t *testing.T) {
	r := NewRegistrar(nil)

	_, err := r.Register(peerAddr(1), nil)
	require.NoError(t, err)

	r.CloseRegistration()

	_, err = r.Register(peerAddr(2), nil)
	assert.ErrorIs(t, err, ErrAuctionClosed)
	assert.Equal(t, 1, r.PeerCount())
}
