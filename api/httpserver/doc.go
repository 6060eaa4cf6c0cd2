// Package httpserver provides the auctioneer's HTTP admin surface.
//
// The package implements a base HTTP server with standard health endpoints,
// graceful shutdown capabilities, metrics, and flexible routing. The auction
// endpoints are registered on top of it through the RouteRegistrar interface.
//
// # Server Lifecycle
//
// The BaseServer implements a complete server lifecycle:
//
//  1. Initialization: Configure server with HTTP settings and route registrars
//  2. Startup: Run HTTP and metrics servers in background goroutines
//  3. Operation: Handle requests with proper logging and monitoring
//  4. Readiness Control: Support drain/undrain operations for load balancers
//  5. Graceful Shutdown: Wait for in-flight requests to complete
//
// # Health and Diagnostics
//
// All servers built with BaseServer automatically include:
//
//   - Liveness Check: Simple endpoint to verify server is running (/livez)
//   - Readiness Check: Endpoint indicating if server is ready to accept requests (/readyz)
//   - Drain Control: Endpoints to prepare for graceful shutdown (/drain, /undrain)
//   - Metrics: Optional Prometheus-compatible metrics endpoint
//   - Profiling: Optional pprof debugging endpoints when enabled
//
// # Auction Endpoints
//
// AuctionHandler exposes the running auction over the admin API:
//
//   - GET /api/v1/status: registrar and coordinator snapshot
//   - GET /api/v1/result: auction outcome once bidding closed
//   - GET /api/v1/history: recent finished auctions from the history store
package httpserver
