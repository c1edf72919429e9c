// Package parser implements the Event Parser (C4): maps a raw webhook
// payload to zero or more canonical TransferEvents.
package parser

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/onchainsignal/tracker/internal/model"
)

// RawTransfer is one element of a payload's tokenTransfers array.
type RawTransfer struct {
	FromUserAccount string      `json:"fromUserAccount"`
	ToUserAccount   string      `json:"toUserAccount"`
	Mint            string      `json:"mint"`
	TokenAmount     json.Number `json:"tokenAmount"`
	Decimals        *int        `json:"decimals,omitempty"`
}

// RawPayload is one webhook batch element as received from the provider.
type RawPayload struct {
	Signature      string          `json:"signature"`
	Timestamp      int64           `json:"timestamp"`
	FeePayer       string          `json:"feePayer"`
	TokenTransfers json.RawMessage `json:"tokenTransfers"`
}

// Validate reports whether the payload is well-formed: signature and
// timestamp present, and tokenTransfers (if present) is a JSON array.
func (p RawPayload) Validate() error {
	if p.Signature == "" {
		return fmt.Errorf("parser: missing signature")
	}
	if p.Timestamp == 0 {
		return fmt.Errorf("parser: missing timestamp")
	}
	if len(p.TokenTransfers) > 0 {
		trimmed := firstNonSpace(p.TokenTransfers)
		if trimmed != '[' {
			return fmt.Errorf("parser: tokenTransfers is not an array")
		}
	}
	return nil
}

func firstNonSpace(b []byte) byte {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return c
		}
	}
	return 0
}

// Parse maps one validated payload to zero or one TransferEvent, per the
// target token mint configured for this tracker.
func Parse(p RawPayload, targetMint string) (*model.TransferEvent, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var transfers []RawTransfer
	if len(p.TokenTransfers) > 0 {
		if err := json.Unmarshal(p.TokenTransfers, &transfers); err != nil {
			return nil, fmt.Errorf("parser: decode tokenTransfers: %w", err)
		}
	}

	var match *RawTransfer
	for i := range transfers {
		if transfers[i].Mint == targetMint {
			match = &transfers[i]
			break
		}
	}
	if match == nil {
		return nil, nil
	}

	var direction model.Direction
	var wallet string
	switch {
	case match.ToUserAccount == p.FeePayer:
		direction = model.DirectionBuy
		wallet = match.ToUserAccount
	case match.FromUserAccount == p.FeePayer:
		direction = model.DirectionSell
		wallet = match.FromUserAccount
	default:
		return nil, nil
	}

	decimals := 0
	if match.Decimals != nil {
		decimals = *match.Decimals
	}

	return &model.TransferEvent{
		Wallet:    wallet,
		TokenMint: match.Mint,
		RawAmount: rawTokenAmount(match.TokenAmount),
		Decimals:  decimals,
		Signature: p.Signature,
		Timestamp: p.Timestamp,
		Direction: direction,
	}, nil
}

// rawTokenAmount reads tokenAmount as the raw, unscaled integer amount
// carried on the wire; decimals (from the payload, or 0 by default) scale
// it separately via TransferEvent.Amount.
func rawTokenAmount(n json.Number) uint64 {
	if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
		return u
	}
	f, err := n.Float64()
	if err != nil || f < 0 {
		return 0
	}
	return uint64(f)
}
