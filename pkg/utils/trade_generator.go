package utils

import (
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"

	"swapStreamApp/internal/domain/model"
)

var demoTokens = []struct {
	mint, symbol, name string
}{
	{"0x6982508145454ce325ddbe47a25d4ec3d2311933", "PEPE", "Pepe"},
	{"0x95ad61b0a150d79219dcf64e1e6cc01f0b64c4ce", "SHIB", "Shiba Inu"},
	{"0x514910771af9ca656af840dff83e8264ecf986ca", "LINK", "ChainLink Token"},
	{"0x1f9840a85d5af5bf1d1762f925bdaddc4201f984", "UNI", "Uniswap"},
	{"0xb131f4a55907b10d1f0a50d8ab8fa09ec342cd74", "MEME", "Memecoin"},
}

var demoPlatforms = []string{"uniswap-v2", "uniswap-v3", "sushiswap", "pancakeswap"}

// TradeGenerator produces plausible trade events for demos and load tests.
type TradeGenerator struct {
	quoteSymbol string
	block       uint64
}

// NewTradeGenerator creates a generator whose trades are quoted in quoteSymbol.
func NewTradeGenerator(quoteSymbol string) *TradeGenerator {
	return &TradeGenerator{
		quoteSymbol: quoteSymbol,
		block:       19_000_000,
	}
}

// GenerateTrades creates count random trade events in the current block.
func (g *TradeGenerator) GenerateTrades(count int) []*model.TradeEvent {
	g.block++
	now := time.Now().UnixMilli()

	trades := make([]*model.TradeEvent, count)
	for i := 0; i < count; i++ {
		token := demoTokens[rand.IntN(len(demoTokens))]
		tokenAmount := 10 + rand.Float64()*10_000
		priceUsd := 0.0001 + rand.Float64()*20
		quoteAmount := tokenAmount * priceUsd / 3000

		tradeType := model.TradeTypeBuy
		if rand.IntN(2) == 1 {
			tradeType = model.TradeTypeSell
		}

		ev := &model.TradeEvent{
			Platform:            demoPlatforms[i%len(demoPlatforms)],
			PriceNative:         strconv.FormatFloat(priceUsd/3000, 'f', 12, 64),
			QuoteAmount:         quoteAmount,
			Timestamp:           now,
			TokenAmount:         tokenAmount,
			TransactionID:       txHash(),
			TradeType:           tradeType,
			WalletAddress:       fmt.Sprintf("0x%040x", rand.Uint64()),
			ProcessingTimeUs:    uint64(50 + rand.IntN(950)),
			BlockNumber:         g.block,
			PriceUsd:            strconv.FormatFloat(priceUsd, 'f', 6, 64),
			BaseMint:            token.mint,
			BaseMintSymbol:      token.symbol,
			BaseMintName:        token.name,
			QuoteMint:           "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
			QuoteMintSymbol:     g.quoteSymbol,
			QuoteMintName:       "Wrapped " + g.quoteSymbol,
			TotalNetworkFee:     rand.Float64() / 100,
			CurrentQuoteBalance: rand.Float64() * 50,
			CurrentTokenBalance: rand.Float64() * 1_000_000,
			PoolAddress:         fmt.Sprintf("0x%040x", rand.Uint64()%1024),
		}
		if rand.IntN(3) == 0 {
			ev.PnlMint7d = &model.PnlMetrics{
				UnrealizedPnlUsd: rand.Float64()*2000 - 1000,
				UnrealizedPnlPct: rand.Float64()*200 - 100,
				RealizedPnlUsd:   rand.Float64()*2000 - 1000,
				RealizedPnlPct:   rand.Float64()*200 - 100,
			}
		}
		trades[i] = ev
	}
	return trades
}

// txHash builds a 32-byte hex hash from two random UUIDs.
func txHash() string {
	a, b := uuid.New(), uuid.New()
	return "0x" + hex.EncodeToString(a[:]) + hex.EncodeToString(b[:])
}
