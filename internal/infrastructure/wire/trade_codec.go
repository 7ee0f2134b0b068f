// Package wire decodes and encodes the binary trade event schema published on
// the swap topics. Field numbers are part of the wire contract:
//
//	message TradeEvent {
//	  string platform = 2;            string price_native = 3;
//	  double eth_amount = 4;          int64 timestamp = 5;
//	  double token_amount = 6;        string transaction_id = 7;
//	  TradeType trade_type = 8;       string wallet_address = 9;
//	  uint64 processing_time_us = 10; uint64 block_number = 11;
//	  string price_usd = 12;          string base_mint = 13;
//	  string base_mint_symbol = 14;   string base_mint_name = 15;
//	  string quote_mint = 16;         string quote_mint_symbol = 17;
//	  string quote_mint_name = 18;    double total_network_fee = 19;
//	  PnlMetrics pnl_mint_7d = 20;    double current_eth_balance = 21;
//	  double current_token_balance = 22;
//	  string pool_address = 23;       double current_supply = 24;
//	}
//	message PnlMetrics {
//	  double unrealized_pnl_usd = 1;  double unrealized_pnl_pct = 2;
//	  double realized_pnl_usd = 3;    double realized_pnl_pct = 4;
//	}
//	enum TradeType { UNSPECIFIED = 0; BUY = 1; SELL = 2; }
package wire

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"swapStreamApp/internal/domain/model"
)

const (
	fieldPlatform            protowire.Number = 2
	fieldPriceNative         protowire.Number = 3
	fieldQuoteAmount         protowire.Number = 4
	fieldTimestamp           protowire.Number = 5
	fieldTokenAmount         protowire.Number = 6
	fieldTransactionID       protowire.Number = 7
	fieldTradeType           protowire.Number = 8
	fieldWalletAddress       protowire.Number = 9
	fieldProcessingTimeUs    protowire.Number = 10
	fieldBlockNumber         protowire.Number = 11
	fieldPriceUsd            protowire.Number = 12
	fieldBaseMint            protowire.Number = 13
	fieldBaseMintSymbol      protowire.Number = 14
	fieldBaseMintName        protowire.Number = 15
	fieldQuoteMint           protowire.Number = 16
	fieldQuoteMintSymbol     protowire.Number = 17
	fieldQuoteMintName       protowire.Number = 18
	fieldTotalNetworkFee     protowire.Number = 19
	fieldPnlMint7d           protowire.Number = 20
	fieldCurrentQuoteBalance protowire.Number = 21
	fieldCurrentTokenBalance protowire.Number = 22
	fieldPoolAddress         protowire.Number = 23
	fieldCurrentSupply       protowire.Number = 24
)

const (
	fieldUnrealizedPnlUsd protowire.Number = 1
	fieldUnrealizedPnlPct protowire.Number = 2
	fieldRealizedPnlUsd   protowire.Number = 3
	fieldRealizedPnlPct   protowire.Number = 4
)

// ErrWireType is returned when a known field arrives with the wrong wire type.
var ErrWireType = errors.New("unexpected wire type")

// DecodeError reports a payload that cannot be parsed against the schema.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode trade event: %s: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode parses one TradeEvent payload. It performs no I/O and never panics on
// malformed input; every failure is a *DecodeError.
func Decode(payload []byte) (*model.TradeEvent, error) {
	ev := &model.TradeEvent{}
	var pnl model.PnlMetrics

	b := payload
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, &DecodeError{Field: "tag", Err: protowire.ParseError(n)}
		}
		b = b[n:]

		n, err := decodeTradeField(ev, &pnl, num, typ, b)
		if err != nil {
			return nil, err
		}
		b = b[n:]
	}

	if !pnl.IsZero() {
		ev.PnlMint7d = &pnl
	}
	return ev, nil
}

func decodeTradeField(ev *model.TradeEvent, pnl *model.PnlMetrics, num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case fieldPlatform:
		return consumeString(b, typ, "platform", &ev.Platform)
	case fieldPriceNative:
		return consumeString(b, typ, "price_native", &ev.PriceNative)
	case fieldQuoteAmount:
		return consumeDouble(b, typ, "eth_amount", &ev.QuoteAmount)
	case fieldTimestamp:
		var v uint64
		n, err := consumeVarint(b, typ, "timestamp", &v)
		ev.Timestamp = int64(v)
		return n, err
	case fieldTokenAmount:
		return consumeDouble(b, typ, "token_amount", &ev.TokenAmount)
	case fieldTransactionID:
		return consumeString(b, typ, "transaction_id", &ev.TransactionID)
	case fieldTradeType:
		var v uint64
		n, err := consumeVarint(b, typ, "trade_type", &v)
		ev.TradeType = model.TradeType(int32(v))
		return n, err
	case fieldWalletAddress:
		return consumeString(b, typ, "wallet_address", &ev.WalletAddress)
	case fieldProcessingTimeUs:
		return consumeVarint(b, typ, "processing_time_us", &ev.ProcessingTimeUs)
	case fieldBlockNumber:
		return consumeVarint(b, typ, "block_number", &ev.BlockNumber)
	case fieldPriceUsd:
		return consumeString(b, typ, "price_usd", &ev.PriceUsd)
	case fieldBaseMint:
		return consumeString(b, typ, "base_mint", &ev.BaseMint)
	case fieldBaseMintSymbol:
		return consumeString(b, typ, "base_mint_symbol", &ev.BaseMintSymbol)
	case fieldBaseMintName:
		return consumeString(b, typ, "base_mint_name", &ev.BaseMintName)
	case fieldQuoteMint:
		return consumeString(b, typ, "quote_mint", &ev.QuoteMint)
	case fieldQuoteMintSymbol:
		return consumeString(b, typ, "quote_mint_symbol", &ev.QuoteMintSymbol)
	case fieldQuoteMintName:
		return consumeString(b, typ, "quote_mint_name", &ev.QuoteMintName)
	case fieldTotalNetworkFee:
		return consumeDouble(b, typ, "total_network_fee", &ev.TotalNetworkFee)
	case fieldPnlMint7d:
		if typ != protowire.BytesType {
			return 0, &DecodeError{Field: "pnl_mint_7d", Err: ErrWireType}
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, &DecodeError{Field: "pnl_mint_7d", Err: protowire.ParseError(n)}
		}
		// Repeated occurrences of a message field merge.
		if err := decodePnl(v, pnl); err != nil {
			return 0, err
		}
		return n, nil
	case fieldCurrentQuoteBalance:
		return consumeDouble(b, typ, "current_eth_balance", &ev.CurrentQuoteBalance)
	case fieldCurrentTokenBalance:
		return consumeDouble(b, typ, "current_token_balance", &ev.CurrentTokenBalance)
	case fieldPoolAddress:
		return consumeString(b, typ, "pool_address", &ev.PoolAddress)
	case fieldCurrentSupply:
		var v float64
		n, err := consumeDouble(b, typ, "current_supply", &v)
		if err == nil {
			ev.CurrentSupply = &v
		}
		return n, err
	default:
		return skipField(b, num, typ)
	}
}

func decodePnl(b []byte, pnl *model.PnlMetrics) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return &DecodeError{Field: "pnl_mint_7d.tag", Err: protowire.ParseError(n)}
		}
		b = b[n:]

		var err error
		switch num {
		case fieldUnrealizedPnlUsd:
			n, err = consumeDouble(b, typ, "pnl_mint_7d.unrealized_pnl_usd", &pnl.UnrealizedPnlUsd)
		case fieldUnrealizedPnlPct:
			n, err = consumeDouble(b, typ, "pnl_mint_7d.unrealized_pnl_pct", &pnl.UnrealizedPnlPct)
		case fieldRealizedPnlUsd:
			n, err = consumeDouble(b, typ, "pnl_mint_7d.realized_pnl_usd", &pnl.RealizedPnlUsd)
		case fieldRealizedPnlPct:
			n, err = consumeDouble(b, typ, "pnl_mint_7d.realized_pnl_pct", &pnl.RealizedPnlPct)
		default:
			n, err = skipField(b, num, typ)
		}
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func consumeString(b []byte, typ protowire.Type, field string, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return 0, &DecodeError{Field: field, Err: ErrWireType}
	}
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, &DecodeError{Field: field, Err: protowire.ParseError(n)}
	}
	*dst = v
	return n, nil
}

func consumeDouble(b []byte, typ protowire.Type, field string, dst *float64) (int, error) {
	if typ != protowire.Fixed64Type {
		return 0, &DecodeError{Field: field, Err: ErrWireType}
	}
	v, n := protowire.ConsumeFixed64(b)
	if n < 0 {
		return 0, &DecodeError{Field: field, Err: protowire.ParseError(n)}
	}
	*dst = math.Float64frombits(v)
	return n, nil
}

func consumeVarint(b []byte, typ protowire.Type, field string, dst *uint64) (int, error) {
	if typ != protowire.VarintType {
		return 0, &DecodeError{Field: field, Err: ErrWireType}
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, &DecodeError{Field: field, Err: protowire.ParseError(n)}
	}
	*dst = v
	return n, nil
}

func skipField(b []byte, num protowire.Number, typ protowire.Type) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, &DecodeError{Field: fmt.Sprintf("unknown(%d)", num), Err: protowire.ParseError(n)}
	}
	return n, nil
}

// Encode serializes ev in the same schema. Zero scalars are omitted as proto3
// does; CurrentSupply is written whenever it is set.
func Encode(ev *model.TradeEvent) []byte {
	var b []byte
	b = appendString(b, fieldPlatform, ev.Platform)
	b = appendString(b, fieldPriceNative, ev.PriceNative)
	b = appendDouble(b, fieldQuoteAmount, ev.QuoteAmount)
	b = appendVarint(b, fieldTimestamp, uint64(ev.Timestamp))
	b = appendDouble(b, fieldTokenAmount, ev.TokenAmount)
	b = appendString(b, fieldTransactionID, ev.TransactionID)
	b = appendVarint(b, fieldTradeType, uint64(int64(ev.TradeType)))
	b = appendString(b, fieldWalletAddress, ev.WalletAddress)
	b = appendVarint(b, fieldProcessingTimeUs, ev.ProcessingTimeUs)
	b = appendVarint(b, fieldBlockNumber, ev.BlockNumber)
	b = appendString(b, fieldPriceUsd, ev.PriceUsd)
	b = appendString(b, fieldBaseMint, ev.BaseMint)
	b = appendString(b, fieldBaseMintSymbol, ev.BaseMintSymbol)
	b = appendString(b, fieldBaseMintName, ev.BaseMintName)
	b = appendString(b, fieldQuoteMint, ev.QuoteMint)
	b = appendString(b, fieldQuoteMintSymbol, ev.QuoteMintSymbol)
	b = appendString(b, fieldQuoteMintName, ev.QuoteMintName)
	b = appendDouble(b, fieldTotalNetworkFee, ev.TotalNetworkFee)
	if ev.PnlMint7d != nil {
		var pnl []byte
		pnl = appendDouble(pnl, fieldUnrealizedPnlUsd, ev.PnlMint7d.UnrealizedPnlUsd)
		pnl = appendDouble(pnl, fieldUnrealizedPnlPct, ev.PnlMint7d.UnrealizedPnlPct)
		pnl = appendDouble(pnl, fieldRealizedPnlUsd, ev.PnlMint7d.RealizedPnlUsd)
		pnl = appendDouble(pnl, fieldRealizedPnlPct, ev.PnlMint7d.RealizedPnlPct)
		b = protowire.AppendTag(b, fieldPnlMint7d, protowire.BytesType)
		b = protowire.AppendBytes(b, pnl)
	}
	b = appendDouble(b, fieldCurrentQuoteBalance, ev.CurrentQuoteBalance)
	b = appendDouble(b, fieldCurrentTokenBalance, ev.CurrentTokenBalance)
	b = appendString(b, fieldPoolAddress, ev.PoolAddress)
	if ev.CurrentSupply != nil {
		b = protowire.AppendTag(b, fieldCurrentSupply, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(*ev.CurrentSupply))
	}
	return b
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}
