// Command auc-client runs one auction participant.
//
// The auctioneer assigns the role: the first peer to register becomes the
// seller and every later peer a buyer, so the same binary serves both sides.
// Supply the item flags when hoping to sell and the bid flag when hoping to
// buy; the flags for the role the server does not assign are ignored.
//
// # Usage
//
//	go run ./cmd/auc-client --server=localhost:9090 --item=painting --reserve=50 --duration=30s
//	go run ./cmd/auc-client --server=localhost:9090 --bid=150
//
// # Loss Simulation
//
// --loss-rate drops the given fraction of outgoing datagrams to exercise
// the retransmission machinery end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/flashbots/aucnet/auction"
	"github.com/flashbots/aucnet/client"
	"github.com/flashbots/aucnet/cmd/common"
	"github.com/flashbots/aucnet/netsim"
)

func main() {
	var (
		serverAddr = flag.String("server", "localhost:9090", "Auctioneer UDP address")
		name       = flag.String("name", "", "Client name sent at registration")

		itemName    = flag.String("item", "", "Item name (seller role)")
		reserve     = flag.Uint64("reserve", 0, "Reserve price (seller role)")
		duration    = flag.Duration("duration", 30*time.Second, "Bidding window duration (seller role)")
		auctionType = flag.String("type", string(auction.FirstPrice), "Auction type: first-price or second-price (seller role)")
		bidders     = flag.Int("bidders", 0, "Close bidding early once this many buyers have bid (seller role, 0 waits for the timer)")
		payloadFile = flag.String("payload-file", "", "File with the item details transferred to the winner (seller role)")

		bid = flag.Uint64("bid", 0, "Bid amount (buyer role)")

		timeout    = flag.Duration("retransmit-timeout", 0, "Retransmission timeout (0 uses the default)")
		maxRetries = flag.Int("max-retries", 0, "Retransmissions before the server is declared unresponsive (0 uses the default)")
		lossRate   = flag.Float64("loss-rate", 0, "Fraction of outgoing datagrams to drop, for testing")
		logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	log, err := common.NewLogger(*logLevel)
	if err != nil {
		fmt.Printf("Logger error: %v\n", err)
		os.Exit(1)
	}

	var conn net.PacketConn
	if *lossRate > 0 {
		conn, err = net.ListenPacket("udp", ":0")
		if err != nil {
			fmt.Printf("Bind error: %v\n", err)
			os.Exit(1)
		}
		conn = netsim.NewFaultyConn(conn, netsim.Faults{DropRate: *lossRate}, time.Now().UnixNano())
	}

	c, err := client.Dial(&client.Config{
		ServerAddr: *serverAddr,
		Conn:       conn,
		ARQ:        common.ARQConfig(*timeout, *maxRetries),
		Log:        log,
	})
	if err != nil {
		fmt.Printf("Dial error: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	ctx := context.Background()

	role, err := c.Join(ctx, *name)
	if err != nil {
		fmt.Printf("Join error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Assigned role: %s (auction %s)\n", role, c.AuctionID())

	switch role {
	case auction.RoleSeller:
		runSeller(ctx, c, sellerArgs{
			name:        *itemName,
			reserve:     *reserve,
			duration:    *duration,
			auctionType: *auctionType,
			bidders:     *bidders,
			payloadFile: *payloadFile,
		})
	case auction.RoleBuyer:
		runBuyer(ctx, c, *bid)
	default:
		fmt.Printf("Unexpected role %q\n", role)
		os.Exit(1)
	}
}

type sellerArgs struct {
	name        string
	reserve     uint64
	duration    time.Duration
	auctionType string
	bidders     int
	payloadFile string
}

func runSeller(ctx context.Context, c *client.Client, args sellerArgs) {
	if args.name == "" {
		fmt.Println("Error: --item is required for the seller role")
		os.Exit(1)
	}

	payload := []byte(fmt.Sprintf("item %s, reserve %d", args.name, args.reserve))
	if args.payloadFile != "" {
		var err error
		payload, err = os.ReadFile(args.payloadFile)
		if err != nil {
			fmt.Printf("Payload file error: %v\n", err)
			os.Exit(1)
		}
	}

	item := &auction.Item{
		Name:            args.name,
		ReservePrice:    args.reserve,
		Type:            auction.Type(args.auctionType),
		BiddingDuration: args.duration,
		ExpectedBidders: args.bidders,
	}

	outcome, err := c.RunSeller(ctx, item, payload)
	if err != nil {
		fmt.Printf("Seller error: %v\n", err)
		os.Exit(1)
	}

	if outcome.Sold {
		fmt.Printf("Sold %q to %s for %d\n", args.name, outcome.Winner, outcome.ClearingPrice)
	} else {
		fmt.Printf("Item %q did not sell\n", args.name)
	}
}

func runBuyer(ctx context.Context, c *client.Client, bid uint64) {
	if bid == 0 {
		fmt.Println("Error: --bid is required for the buyer role")
		os.Exit(1)
	}

	outcome, err := c.RunBuyer(ctx, client.FixedBid(bid))
	if err != nil {
		fmt.Printf("Buyer error: %v\n", err)
		os.Exit(1)
	}

	if outcome.Won {
		fmt.Printf("Won %q for %d\n", outcome.ItemName, outcome.ClearingPrice)
		fmt.Printf("Item details: %s\n", outcome.Payload)
	} else {
		fmt.Println("Did not win")
	}
}
