package hyperliquid

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

const (
	MainnetAPIURL = "https://api.hyperliquid.xyz"
	TestnetAPIURL = "https://api.hyperliquid-testnet.xyz"
	MainnetWSURL  = "wss://api.hyperliquid.xyz/ws"
	TestnetWSURL  = "wss://api.hyperliquid-testnet.xyz/ws"

	// spot assets are addressed as 10000 + their index in spotMeta.universe
	spotAssetOffset = 10000

	TifGtc = "Gtc"
)

type SpotToken struct {
	Name        string `json:"name"`
	SzDecimals  int32  `json:"szDecimals"`
	WeiDecimals int32  `json:"weiDecimals"`
	Index       int    `json:"index"`
}

type SpotPair struct {
	Name        string `json:"name"`
	Tokens      [2]int `json:"tokens"`
	Index       int    `json:"index"`
	IsCanonical bool   `json:"isCanonical"`
}

type SpotMeta struct {
	Universe []SpotPair  `json:"universe"`
	Tokens   []SpotToken `json:"tokens"`
}

// Market is a resolved spot pair.
type Market struct {
	Symbol     string
	Base       string
	Quote      string
	Asset      uint32
	MidKey     string
	SzDecimals int32
}

// LotSize is the smallest size increment the venue accepts for the base
// token.
func (m Market) LotSize() decimal.Decimal {
	return decimal.New(1, -m.SzDecimals)
}

type SpotBalance struct {
	Coin  string `json:"coin"`
	Token int    `json:"token"`
	Hold  string `json:"hold"`
	Total string `json:"total"`
}

type spotClearinghouseState struct {
	Balances []SpotBalance `json:"balances"`
}

type infoRequest struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
}

type limitOrderType struct {
	Tif string `msgpack:"tif" json:"tif"`
}

type orderTypeWire struct {
	Limit *limitOrderType `msgpack:"limit,omitempty" json:"limit,omitempty"`
}

// Field order is part of the signed payload.
type orderWire struct {
	Asset      uint32        `msgpack:"a" json:"a"`
	IsBuy      bool          `msgpack:"b" json:"b"`
	LimitPx    string        `msgpack:"p" json:"p"`
	Size       string        `msgpack:"s" json:"s"`
	ReduceOnly bool          `msgpack:"r" json:"r"`
	OrderType  orderTypeWire `msgpack:"t" json:"t"`
}

type orderAction struct {
	Type     string      `msgpack:"type" json:"type"`
	Orders   []orderWire `msgpack:"orders" json:"orders"`
	Grouping string      `msgpack:"grouping" json:"grouping"`
}

type cancelWire struct {
	Asset   uint32 `msgpack:"a" json:"a"`
	OrderID uint64 `msgpack:"o" json:"o"`
}

type cancelAction struct {
	Type    string       `msgpack:"type" json:"type"`
	Cancels []cancelWire `msgpack:"cancels" json:"cancels"`
}

type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V byte   `json:"v"`
}

type exchangeRequest struct {
	Action       any       `json:"action"`
	Nonce        uint64    `json:"nonce"`
	Signature    Signature `json:"signature"`
	VaultAddress *string   `json:"vaultAddress"`
}

type exchangeResponse struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type exchangeResponseBody struct {
	Type string `json:"type"`
	Data *struct {
		Statuses []json.RawMessage `json:"statuses"`
	} `json:"data"`
}

type restingStatus struct {
	Oid uint64 `json:"oid"`
}

type filledStatus struct {
	Oid     uint64 `json:"oid"`
	TotalSz string `json:"totalSz"`
	AvgPx   string `json:"avgPx"`
}

type orderStatus struct {
	Resting *restingStatus `json:"resting"`
	Filled  *filledStatus  `json:"filled"`
	Error   *string        `json:"error"`
}

// OrderResult is the first status of an order placement.
type OrderResult struct {
	Oid    uint64
	Filled bool
	AvgPx  string
}

type wsSubscription struct {
	Type string `json:"type"`
}

type wsRequest struct {
	Method       string          `json:"method"`
	Subscription *wsSubscription `json:"subscription,omitempty"`
}

type wsMessage struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type allMidsData struct {
	Mids map[string]string `json:"mids"`
}
