// Package service orchestrates the exchange engine with the persistence,
// cache, lock, event, and archive layers. Every side channel is optional:
// a nil store or cache simply drops that concern, so the engine runs the
// same whether it is wired to the full stack or standing alone in a test.
package service

import "github.com/gridironmarkets/gridiron/internal/domain"

// Event channels published via the domain.EventBus.
const (
	ChannelFills       = "events:fills"
	ChannelResolutions = "events:resolutions"
	ChannelMarkets     = "events:markets"
)

// FillEvent is published once per buy that produced fills.
type FillEvent struct {
	MarketID string        `json:"market_id"`
	Buyer    string        `json:"buyer"`
	Side     domain.Side   `json:"side"`
	Fills    []domain.Fill `json:"fills"`
}

// ResolutionEvent is published when a market resolves.
type ResolutionEvent struct {
	MarketID    string         `json:"market_id"`
	Outcome     domain.Outcome `json:"outcome"`
	ArchivePath string         `json:"archive_path,omitempty"`
}

// MarketEvent is published when a market is created.
type MarketEvent struct {
	Market domain.Market `json:"market"`
}
