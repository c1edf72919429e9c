// Package model holds the canonical data types shared across the pipeline.
package model

import "fmt"

// Direction is the side of a token transfer relative to the fee payer.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// TransferEvent is the canonical representation of an observed buy or sell
// of the target token. After the parser constructs it, only USDValue is
// set, once, when the event is priced; it is owned by whichever goroutine
// is processing it.
type TransferEvent struct {
	Wallet      string
	TokenMint   string
	RawAmount   uint64
	Decimals    int
	Signature   string
	Timestamp   int64
	Direction   Direction
	USDValue    *float64 // nil until priced; nil forever on oracle failure
}

// Amount returns the human-scaled token amount (RawAmount / 10^Decimals).
func (e TransferEvent) Amount() float64 {
	if e.Decimals <= 0 {
		return float64(e.RawAmount)
	}
	divisor := 1.0
	for i := 0; i < e.Decimals; i++ {
		divisor *= 10
	}
	return float64(e.RawAmount) / divisor
}

// DisplayWallet returns a truncated form suitable for chat/push messages.
func DisplayWallet(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return fmt.Sprintf("%s...%s", addr[:6], addr[len(addr)-4:])
}

// PriceQuote is a cached USD price for a token mint.
type PriceQuote struct {
	TokenMint string
	USDPrice  float64
	FetchedAt int64
}

// TrackedWallet is a curated wallet the bot command surface has registered.
type TrackedWallet struct {
	Address string `gorm:"primaryKey"`
	AddedBy string
	AddedAt int64
}

// PushSubscription is a user's registered push credential for one class.
type PushSubscription struct {
	UserID    string `gorm:"primaryKey;column:user_id"`
	Class     string `gorm:"primaryKey;column:class"` // "general" | "sequential_sells"
	PushKey   string
	CreatedAt int64
}

// ChatSubscriber is a user opted in to periodic chat summaries.
type ChatSubscriber struct {
	UserID    string `gorm:"primaryKey;column:user_id"`
	CreatedAt int64
}
