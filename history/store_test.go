package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashbots/aucnet/auction"
)

func TestMemoryStore_NewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := s.SaveAuction(ctx, &Record{
			AuctionID:   fmt.Sprintf("auction-%d", i),
			ItemName:    "painting",
			AuctionType: auction.FirstPrice,
			Sold:        true,
			Winner:      "buyer-1",
			EndedAt:     time.Now(),
		})
		require.NoError(t, err)
	}

	records, err := s.RecentAuctions(ctx, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "auction-4", records[0].AuctionID)
	assert.Equal(t, "auction-2", records[2].AuctionID)

	all, err := s.RecentAuctions(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestMemoryStore_SavedRecordIsACopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rec := &Record{AuctionID: "auction-1", ItemName: "vase"}
	require.NoError(t, s.SaveAuction(ctx, rec))
	rec.ItemName = "mutated"

	records, err := s.RecentAuctions(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "vase", records[0].ItemName)
}

func TestMemoryStore_Empty(t *testing.T) {
	s := NewMemoryStore()

	records, err := s.RecentAuctions(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NoError(t, s.Close())
}
