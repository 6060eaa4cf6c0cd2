// Package client implements auction participants. A client dials the
// auctioneer over a reliable datagram channel and is told its role: the
// first peer to contact the server becomes the seller, everyone after it a
// buyer. RunSeller announces the item and, once sold, streams the
// item-detail payload to the auctioneer for handoff; RunBuyer submits bids
// and, on winning, receives the payload.
package client
