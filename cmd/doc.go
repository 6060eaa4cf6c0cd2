// Package cmd provides the CLI commands for the auction network.
//
// # Commands
//
// auc-server: Runs the auctioneer. Binds the UDP auction socket, assigns
// roles to connecting peers, runs one auction to completion and exits.
//
//	go run ./cmd/auc-server --addr=:9090 --http-addr=:8080
//	go run ./cmd/auc-server --addr=:9090 --bidders=3 --pg-dsn="postgres://..."
//
// auc-client: Runs one auction participant. The server assigns the role;
// the first peer to register becomes the seller and every later peer a
// buyer, so the same binary serves both sides.
//
//	# Hoping to sell: supply the item.
//	go run ./cmd/auc-client --server=localhost:9090 --item=painting --reserve=50 --duration=30s
//
//	# Hoping to buy: supply a bid.
//	go run ./cmd/auc-client --server=localhost:9090 --bid=150
//
// # Loss Simulation
//
// The client can simulate an unreliable network to exercise the
// retransmission machinery:
//
//	go run ./cmd/auc-client --server=localhost:9090 --bid=150 --loss-rate=0.2
package cmd
