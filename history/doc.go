// Package history persists completed auction outcomes. The server records
// one row per auction run; persistence is optional and the server operates
// normally without a configured store.
package history
