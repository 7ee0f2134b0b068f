package model

import "time"

// TradeType is the direction of a swap as carried on the wire.
type TradeType int32

const (
	TradeTypeUnspecified TradeType = 0
	TradeTypeBuy         TradeType = 1
	TradeTypeSell        TradeType = 2
)

func (t TradeType) String() string {
	switch t {
	case TradeTypeBuy:
		return "BUY"
	case TradeTypeSell:
		return "SELL"
	case TradeTypeUnspecified:
		return "UNSPECIFIED"
	default:
		return "UNKNOWN"
	}
}

// PnlMetrics holds trailing-window profit and loss figures for the trader of an event.
type PnlMetrics struct {
	UnrealizedPnlUsd float64 `json:"unrealizedPnlUsd"`
	UnrealizedPnlPct float64 `json:"unrealizedPnlPct"`
	RealizedPnlUsd   float64 `json:"realizedPnlUsd"`
	RealizedPnlPct   float64 `json:"realizedPnlPct"`
}

// IsZero reports whether every field is exactly zero, which is
// indistinguishable from "not computed".
func (p PnlMetrics) IsZero() bool {
	return p.UnrealizedPnlUsd == 0 &&
		p.UnrealizedPnlPct == 0 &&
		p.RealizedPnlUsd == 0 &&
		p.RealizedPnlPct == 0
}

// TradeEvent is one decoded swap. TransactionID is the natural key.
//
// Long integers are carried as JSON strings so that browsers keep full
// precision; prices are decimal strings and never converted on the bridge.
type TradeEvent struct {
	Platform            string      `json:"platform"`
	PriceNative         string      `json:"priceNative"`
	QuoteAmount         float64     `json:"ethAmount"`
	Timestamp           int64       `json:"timestamp,string"`
	TokenAmount         float64     `json:"tokenAmount"`
	TransactionID       string      `json:"transactionId"`
	TradeType           TradeType   `json:"tradeType"`
	WalletAddress       string      `json:"walletAddress"`
	ProcessingTimeUs    uint64      `json:"processingTimeUs,string"`
	BlockNumber         uint64      `json:"blockNumber,string"`
	PriceUsd            string      `json:"priceUsd"`
	BaseMint            string      `json:"baseMint"`
	BaseMintSymbol      string      `json:"baseMintSymbol"`
	BaseMintName        string      `json:"baseMintName"`
	QuoteMint           string      `json:"quoteMint"`
	QuoteMintSymbol     string      `json:"quoteMintSymbol"`
	QuoteMintName       string      `json:"quoteMintName"`
	TotalNetworkFee     float64     `json:"totalNetworkFee"`
	PnlMint7d           *PnlMetrics `json:"pnlMint7d"`
	CurrentQuoteBalance float64     `json:"currentEthBalance"`
	CurrentTokenBalance float64     `json:"currentTokenBalance"`
	PoolAddress         string      `json:"poolAddress"`
	CurrentSupply       *float64    `json:"currentSupply,omitempty"`

	// ReceivedAt is stamped by the subscriber on receipt; never serialized.
	ReceivedAt time.Time `json:"-"`
}

// ControlMessage is the single frame a subscriber gets right after the handshake.
type ControlMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ControlTypeConnected marks the handshake confirmation frame.
const ControlTypeConnected = "connected"

// RunningStats is the subscriber-side aggregate over accepted events.
type RunningStats struct {
	TotalEvents       int     `json:"totalEvents"`
	BuyEvents         int     `json:"buyEvents"`
	SellEvents        int     `json:"sellEvents"`
	TotalVolume       float64 `json:"totalVolume"`
	AvgProcessingTime float64 `json:"avgProcessingTime"`
}

// BridgeStats holds per-feed counters of a running bridge.
type BridgeStats struct {
	Feed             string    `json:"feed"`
	ConsumerState    string    `json:"consumerState"`
	Subscribers      int       `json:"subscribers"`
	Consumed         uint64    `json:"consumed"`
	DecodeFailures   uint64    `json:"decodeFailures"`
	Broadcasts       uint64    `json:"broadcasts"`
	Deliveries       uint64    `json:"deliveries"`
	DeliveryFailures uint64    `json:"deliveryFailures"`
	LastUpdate       time.Time `json:"lastUpdate"`
}
