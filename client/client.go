package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/flashbots/aucnet/arq"
	"github.com/flashbots/aucnet/auction"
	"github.com/flashbots/aucnet/handoff"
)

// ErrRejected indicates the server refused the registration, typically
// because the auction already closed.
var ErrRejected = errors.New("client: registration rejected")

// Config parameterizes a client.
type Config struct {
	// ServerAddr is the auctioneer's UDP address; ignored when Remote is set.
	ServerAddr string

	// Conn optionally supplies a pre-bound local socket, e.g. wrapped in a
	// fault-injecting connection for loss simulation.
	Conn net.PacketConn

	// Remote optionally overrides the resolved server address (required
	// with a non-UDP Conn).
	Remote net.Addr

	// ARQ tunes the reliable channel; nil uses arq.DefaultConfig.
	ARQ *arq.Config

	Log *slog.Logger
}

// Client is one auction participant.
type Client struct {
	log   *slog.Logger
	demux *arq.Demux
	ch    *arq.Channel

	role      auction.Role
	auctionID string
}

// Dial binds a local socket, establishes the channel to the server and
// starts the read loop. Close releases the socket.
func Dial(cfg *Config) (*Client, error) {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	remote := cfg.Remote
	if remote == nil {
		addr, err := net.ResolveUDPAddr("udp", cfg.ServerAddr)
		if err != nil {
			return nil, fmt.Errorf("resolving server address: %w", err)
		}
		remote = addr
	}

	conn := cfg.Conn
	if conn == nil {
		var err error
		conn, err = net.ListenPacket("udp", ":0")
		if err != nil {
			return nil, fmt.Errorf("binding local socket: %w", err)
		}
	}

	c := &Client{log: log}
	c.demux = arq.NewDemux(conn, cfg.ARQ, log, nil)
	c.ch = c.demux.Open(remote)

	go func() {
		if err := c.demux.Run(); err != nil {
			log.Error("client socket failed", "err", err)
		}
	}()

	return c, nil
}

// Close releases the client's socket and channel.
func (c *Client) Close() {
	c.demux.Close()
}

// Role returns the assigned role, valid after Join.
func (c *Client) Role() auction.Role { return c.role }

// AuctionID returns the server's auction run identifier, valid after Join.
func (c *Client) AuctionID() string { return c.auctionID }

// Join registers with the auctioneer and returns the assigned role.
func (c *Client) Join(ctx context.Context, name string) (auction.Role, error) {
	if err := auction.SendMessage(ctx, c.ch, auction.KindJoin, &auction.Join{ClientName: name}); err != nil {
		return auction.RoleUnassigned, fmt.Errorf("joining auction: %w", err)
	}

	env, err := auction.ReceiveEnvelope(ctx, c.ch)
	if err != nil {
		return auction.RoleUnassigned, fmt.Errorf("awaiting role: %w", err)
	}

	switch env.Kind {
	case auction.KindRoleAssigned:
		assigned, err := auction.DecodeBody[auction.RoleAssigned](env, auction.KindRoleAssigned)
		if err != nil {
			return auction.RoleUnassigned, err
		}
		c.role = assigned.Role
		c.auctionID = assigned.AuctionID
		c.log.Info("role assigned", "role", c.role, "auction_id", c.auctionID)
		return c.role, nil

	case auction.KindRejected:
		rej, err := auction.DecodeBody[auction.Rejection](env, auction.KindRejected)
		if err != nil {
			return auction.RoleUnassigned, err
		}
		return auction.RoleUnassigned, fmt.Errorf("%w: %s", ErrRejected, rej.Reason)

	default:
		return auction.RoleUnassigned, fmt.Errorf("unexpected message kind %q after join", env.Kind)
	}
}

// SellerOutcome is the seller's view of the finished auction.
type SellerOutcome struct {
	Sold          bool
	ClearingPrice uint64
	Winner        string
}

// RunSeller announces the item, waits out the auction, and if the item sold
// streams payload to the auctioneer for handoff to the winner.
func (c *Client) RunSeller(ctx context.Context, item *auction.Item, payload []byte) (*SellerOutcome, error) {
	if c.role != auction.RoleSeller {
		return nil, fmt.Errorf("role is %s, not %s", c.role, auction.RoleSeller)
	}

	ann := &auction.ItemAnnouncement{Item: *item}
	if err := auction.SendMessage(ctx, c.ch, auction.KindItemAnnouncement, ann); err != nil {
		return nil, fmt.Errorf("announcing item: %w", err)
	}

	env, err := auction.ReceiveEnvelope(ctx, c.ch)
	if err != nil {
		return nil, fmt.Errorf("awaiting item receipt: %w", err)
	}
	receipt, err := auction.DecodeBody[auction.ItemReceipt](env, auction.KindItemReceipt)
	if err != nil {
		return nil, err
	}
	if !receipt.Accepted {
		return nil, fmt.Errorf("item announcement refused: %s", receipt.Error)
	}
	c.log.Info("auction started", "item", item.Name, "type", item.Type)

	env, err = auction.ReceiveEnvelope(ctx, c.ch)
	if err != nil {
		return nil, fmt.Errorf("awaiting result: %w", err)
	}
	res, err := auction.DecodeBody[auction.ResultBroadcast](env, auction.KindResult)
	if err != nil {
		return nil, err
	}

	outcome := &SellerOutcome{Sold: res.Sold, ClearingPrice: res.ClearingPrice, Winner: res.Winner}
	if !res.Sold {
		c.log.Info("item not sold")
		return outcome, nil
	}

	c.log.Info("item sold, starting payload transfer",
		"clearing_price", res.ClearingPrice, "winner", res.Winner)
	if err := handoff.Send(ctx, c.ch, payload); err != nil {
		return outcome, fmt.Errorf("transferring item payload: %w", err)
	}
	return outcome, nil
}

// BidFunc supplies the buyer's next bid amount. It receives the response to
// the previous bid (nil on the first call) and returns ok=false to stop
// bidding and wait for the result.
type BidFunc func(prev *auction.BidResponse) (amount uint64, ok bool)

// FixedBid returns a strategy that places one bid and then waits.
func FixedBid(amount uint64) BidFunc {
	placed := false
	return func(*auction.BidResponse) (uint64, bool) {
		if placed {
			return 0, false
		}
		placed = true
		return amount, true
	}
}

// BuyerOutcome is the buyer's view of the finished auction.
type BuyerOutcome struct {
	Won           bool
	ItemName      string
	ClearingPrice uint64
	Payload       []byte
}

// RunBuyer submits bids according to strategy until the auction closes, then
// waits for the result. The winning buyer receives the item payload.
func (c *Client) RunBuyer(ctx context.Context, strategy BidFunc) (*BuyerOutcome, error) {
	if c.role != auction.RoleBuyer {
		return nil, fmt.Errorf("role is %s, not %s", c.role, auction.RoleBuyer)
	}

	var prev *auction.BidResponse
	bidding := true
	for bidding {
		amount, ok := strategy(prev)
		if !ok {
			break
		}

		if err := auction.SendMessage(ctx, c.ch, auction.KindBid, &auction.BidSubmission{Amount: amount}); err != nil {
			return nil, fmt.Errorf("submitting bid: %w", err)
		}

		env, err := auction.ReceiveEnvelope(ctx, c.ch)
		if err != nil {
			return nil, fmt.Errorf("awaiting bid response: %w", err)
		}

		switch env.Kind {
		case auction.KindBidResponse:
			resp, err := auction.DecodeBody[auction.BidResponse](env, auction.KindBidResponse)
			if err != nil {
				return nil, err
			}
			c.log.Info("bid answered", "amount", amount, "accepted", resp.Accepted, "reason", resp.Reason)
			if resp.Reason == auction.ReasonAuctionClosed {
				bidding = false
				break
			}
			prev = resp

		case auction.KindResult:
			// The window closed while we were bidding.
			return c.finishBuyer(ctx, env)

		default:
			return nil, fmt.Errorf("unexpected message kind %q during bidding", env.Kind)
		}
	}

	for {
		env, err := auction.ReceiveEnvelope(ctx, c.ch)
		if err != nil {
			return nil, fmt.Errorf("awaiting result: %w", err)
		}
		if env.Kind == auction.KindBidResponse {
			// Stray response to a bid that raced the close.
			continue
		}
		return c.finishBuyer(ctx, env)
	}
}

func (c *Client) finishBuyer(ctx context.Context, env *auction.Envelope) (*BuyerOutcome, error) {
	res, err := auction.DecodeBody[auction.ResultBroadcast](env, auction.KindResult)
	if err != nil {
		return nil, err
	}

	outcome := &BuyerOutcome{Won: res.Won, ItemName: res.ItemName, ClearingPrice: res.ClearingPrice}
	if !res.Won {
		c.log.Info("auction finished, did not win")
		return outcome, nil
	}

	c.log.Info("auction won, receiving item payload",
		"item", res.ItemName, "clearing_price", res.ClearingPrice)
	payload, err := handoff.Receive(ctx, c.ch)
	if err != nil {
		return outcome, fmt.Errorf("receiving item payload: %w", err)
	}
	outcome.Payload = payload
	return outcome, nil
}
