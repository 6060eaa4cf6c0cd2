package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashbots/aucnet/auction"
	"github.com/flashbots/aucnet/history"
	"github.com/flashbots/aucnet/server"
	"github.com/flashbots/aucnet/testutil"
)

func testRouter(t *testing.T, store history.Store) (*server.Server, chi.Router) {
	t.Helper()
	srv, err := server.New(&server.Config{
		ListenAddr: "127.0.0.1:0",
		History:    store,
		Log:        testutil.DiscardLogger(),
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	NewAuctionHandler(srv, store, testutil.DiscardLogger()).RegisterRoutes(r)
	return srv, r
}

func get(r chi.Router, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestAuctionHandler_Status(t *testing.T) {
	srv, r := testRouter(t, nil)

	rec := get(r, "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var status server.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, srv.AuctionID(), status.AuctionID)
	assert.Equal(t, auction.StateAwaitingItem.String(), status.State)
	assert.Zero(t, status.Peers)
}

func TestAuctionHandler_ResultBeforeClose(t *testing.T) {
	_, r := testRouter(t, nil)

	rec := get(r, "/api/v1/result")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuctionHandler_History(t *testing.T) {
	store := history.NewMemoryStore()
	require.NoError(t, store.SaveAuction(context.Background(), &history.Record{
		AuctionID:     "run-1",
		ItemName:      "painting",
		AuctionType:   auction.SecondPrice,
		Sold:          true,
		Winner:        "buyer-2",
		ClearingPrice: 120,
		LiveBids:      3,
	}))

	_, r := testRouter(t, store)

	rec := get(r, "/api/v1/history")
	require.Equal(t, http.StatusOK, rec.Code)

	var records []*history.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "run-1", records[0].AuctionID)
	assert.Equal(t, uint64(120), records[0].ClearingPrice)
}

func TestAuctionHandler_HistoryLimitValidation(t *testing.T) {
	_, r := testRouter(t, history.NewMemoryStore())

	assert.Equal(t, http.StatusBadRequest, get(r, "/api/v1/history?limit=0").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/v1/history?limit=abc").Code)
	assert.Equal(t, http.StatusOK, get(r, "/api/v1/history?limit=5").Code)
}

func TestAuctionHandler_HistoryNotConfigured(t *testing.T) {
	_, r := testRouter(t, nil)

	rec := get(r, "/api/v1/history")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
