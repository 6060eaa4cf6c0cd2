// Package handoff moves the item-detail payload from seller to winning
// buyer after an auction closes, chunked to fit the reliable channel's
// segment capacity. Stop-and-wait on the underlying channel guarantees that
// chunk i+1 is never sent before chunk i is acknowledged, so arrival order
// equals send order and reassembly is a straight append.
package handoff
