// Command auc-server runs the auctioneer.
//
// The auctioneer binds one UDP socket, assigns the seller role to the first
// peer that registers and the buyer role to every later peer, runs a single
// auction to completion and exits. The admin HTTP surface exposes status,
// result and history endpoints alongside the standard health checks.
//
// # Usage
//
//	go run ./cmd/auc-server --addr=:9090 --http-addr=:8080
//	go run ./cmd/auc-server --addr=:9090 --bidders=3 --pg-dsn="postgres://..."
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flashbots/aucnet/api/httpserver"
	"github.com/flashbots/aucnet/cmd/common"
	"github.com/flashbots/aucnet/server"
)

func main() {
	var (
		addr        = flag.String("addr", ":9090", "UDP auction listen address")
		httpAddr    = flag.String("http-addr", ":8080", "HTTP admin listen address (empty disables)")
		metricsAddr = flag.String("metrics-addr", "", "Prometheus metrics listen address (empty disables)")
		bidders     = flag.Int("bidders", 0, "Close bidding early once this many buyers have bid (0 waits for the timer)")
		timeout     = flag.Duration("retransmit-timeout", 0, "Retransmission timeout (0 uses the default)")
		maxRetries  = flag.Int("max-retries", 0, "Retransmissions before a peer is declared unresponsive (0 uses the default)")
		pgDSN       = flag.String("pg-dsn", "", "Postgres DSN for auction history (empty keeps history in memory)")
		pprof       = flag.Bool("pprof", false, "Enable pprof debugging endpoints")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	log, err := common.NewLogger(*logLevel)
	if err != nil {
		fmt.Printf("Logger error: %v\n", err)
		os.Exit(1)
	}

	store, err := common.NewHistoryStore(*pgDSN)
	if err != nil {
		fmt.Printf("History store error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	srv, err := server.New(&server.Config{
		ListenAddr:      *addr,
		ARQ:             common.ARQConfig(*timeout, *maxRetries),
		ExpectedBidders: *bidders,
		History:         store,
		Log:             log,
	})
	if err != nil {
		fmt.Printf("Create server error: %v\n", err)
		os.Exit(1)
	}
	log.Info("auctioneer listening", "addr", srv.Addr(), "auction_id", srv.AuctionID())

	if *httpAddr != "" {
		handler := httpserver.NewAuctionHandler(srv, store, log)
		httpSrv, err := httpserver.New(&httpserver.HTTPServerConfig{
			ListenAddr:               *httpAddr,
			MetricsAddr:              *metricsAddr,
			EnablePprof:              *pprof,
			Log:                      log,
			GracefulShutdownDuration: 10 * time.Second,
			ReadTimeout:              15 * time.Second,
			WriteTimeout:             15 * time.Second,
		}, handler)
		if err != nil {
			fmt.Printf("Create HTTP server error: %v\n", err)
			os.Exit(1)
		}
		httpSrv.RunInBackground()
		defer httpSrv.Shutdown()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down")
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		if errors.Is(err, server.ErrSellerUnresponsive) {
			fmt.Println("Seller became unresponsive before announcing an item")
			os.Exit(2)
		}
		fmt.Printf("Server error: %v\n", err)
		os.Exit(1)
	}

	if res := srv.Result(); res != nil && res.Sold {
		log.Info("auction finished", "item", res.Item.Name, "winner", res.Winner, "clearing_price", res.ClearingPrice)
	} else {
		log.Info("auction finished, item not sold")
	}
}
