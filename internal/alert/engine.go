// Package alert implements the Alert Engine (C5): the rule set R1-R4 that
// turns a priced TransferEvent into zero or more dispatched notifications.
package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/onchainsignal/tracker/internal/model"
)

// ErrTransientBackend marks an error from a window-store call (as opposed
// to a notification-dispatch call). Per the error taxonomy, a transient
// backend failure aborts the remainder of the event's rule evaluation; a
// dispatch failure only affects the rule that issued it.
var ErrTransientBackend = errors.New("alert: transient backend failure")

func backendErr(err error) error {
	return fmt.Errorf("%w: %v", ErrTransientBackend, err)
}

// WindowStore is the subset of the Window Store the engine depends on.
type WindowStore interface {
	AddAmountToWindow(ctx context.Context, mint string, dir model.Direction, usdAmount float64, ts int64, windowSeconds int64) (float64, error)
	IsInCooldown(ctx context.Context, key string) (bool, error)
	SetCooldown(ctx context.Context, key string, seconds int64) error
	IncrementSequentialSells(ctx context.Context, wallet string) (int64, error)
	ResetSequentialSells(ctx context.Context, wallet string) error
}

// Dispatcher is the subset of the Notification Dispatcher the engine
// depends on. Each method fans out to every subscriber on its own channel
// and returns only once all sends have been attempted.
type Dispatcher interface {
	DispatchChat(ctx context.Context, message string) error
	DispatchPushGeneral(ctx context.Context, message string) error
	DispatchPushSequentialSells(ctx context.Context, message string) error
}

// Thresholds holds the numeric configuration the rule set evaluates
// against. All comparisons use >=.
type Thresholds struct {
	ChatThresholdUSD       float64
	SingleThresholdUSD     float64
	CumulativeThresholdUSD float64
	WindowSeconds          int64
	FiveSellsEnabled       bool
	FiveSellsThresholdUSD  float64
}

// Decision is one rule's verdict for a single event, recorded for
// diagnostics.
type Decision struct {
	Rule      string
	Mint      string
	Wallet    string
	Fired     bool
	Reason    string
	Timestamp int64
}

const evaluationLogCapacity = 500

// Engine evaluates R1-R4 for each priced event and drives the dispatcher.
type Engine struct {
	thresholds Thresholds
	window     WindowStore
	dispatcher Dispatcher
	logger     zerolog.Logger

	mu  sync.Mutex
	log []Decision
}

// New constructs an Engine.
func New(thresholds Thresholds, window WindowStore, dispatcher Dispatcher, logger zerolog.Logger) *Engine {
	return &Engine{
		thresholds: thresholds,
		window:     window,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "alert_engine").Logger(),
	}
}

// Evaluate runs R1 through R4 for ev in order. A dispatch failure in one
// rule is logged and does not prevent the remaining rules from running. A
// transient backend failure (window store unreachable) aborts the rest of
// this event's evaluation instead, since the remaining rules depend on the
// same store and would only fail the same way.
func (e *Engine) Evaluate(ctx context.Context, ev model.TransferEvent) error {
	var errs []error

	if err := e.evaluateChatAnnounceLarge(ctx, ev); err != nil {
		if errors.Is(err, ErrTransientBackend) {
			return fmt.Errorf("alert: R1: %w", err)
		}
		errs = append(errs, fmt.Errorf("R1: %w", err))
	}
	if err := e.evaluatePushLargeSingle(ctx, ev); err != nil {
		if errors.Is(err, ErrTransientBackend) {
			return fmt.Errorf("alert: R2: %w", err)
		}
		errs = append(errs, fmt.Errorf("R2: %w", err))
	}
	if err := e.evaluatePushCumulative(ctx, ev); err != nil {
		if errors.Is(err, ErrTransientBackend) {
			return fmt.Errorf("alert: R3: %w", err)
		}
		errs = append(errs, fmt.Errorf("R3: %w", err))
	}
	if err := e.evaluateSequentialSells(ctx, ev); err != nil {
		if errors.Is(err, ErrTransientBackend) {
			return fmt.Errorf("alert: R4: %w", err)
		}
		errs = append(errs, fmt.Errorf("R4: %w", err))
	}

	if len(errs) == 0 {
		return nil
	}
	msg := errs[0].Error()
	for _, err := range errs[1:] {
		msg += "; " + err.Error()
	}
	return fmt.Errorf("alert: %s", msg)
}

// R1 — chat-announce-large: no cooldown.
func (e *Engine) evaluateChatAnnounceLarge(ctx context.Context, ev model.TransferEvent) error {
	if ev.USDValue == nil || *ev.USDValue < e.thresholds.ChatThresholdUSD {
		e.record(ev, "R1", false, "below chat threshold or unpriced")
		return nil
	}

	message := largeTransferMessage(ev)
	if err := e.dispatcher.DispatchChat(ctx, message); err != nil {
		e.record(ev, "R1", true, "dispatch failed")
		return err
	}
	e.record(ev, "R1", true, "dispatched")
	return nil
}

// R2 — push-large-single: no cooldown.
func (e *Engine) evaluatePushLargeSingle(ctx context.Context, ev model.TransferEvent) error {
	if ev.USDValue == nil || *ev.USDValue < e.thresholds.SingleThresholdUSD {
		e.record(ev, "R2", false, "below single threshold or unpriced")
		return nil
	}

	message := largeTransferMessage(ev)
	if err := e.dispatcher.DispatchPushGeneral(ctx, message); err != nil {
		e.record(ev, "R2", true, "dispatch failed")
		return err
	}
	e.record(ev, "R2", true, "dispatched")
	return nil
}

// R3 — push-cumulative: the window update always happens, independent of
// whether the cooldown suppresses the notification.
func (e *Engine) evaluatePushCumulative(ctx context.Context, ev model.TransferEvent) error {
	if ev.USDValue == nil {
		e.record(ev, "R3", false, "unpriced")
		return nil
	}

	cumulative, err := e.window.AddAmountToWindow(ctx, ev.TokenMint, ev.Direction, *ev.USDValue, ev.Timestamp, e.thresholds.WindowSeconds)
	if err != nil {
		e.record(ev, "R3", false, "window update failed")
		return backendErr(err)
	}

	if cumulative < e.thresholds.CumulativeThresholdUSD {
		e.record(ev, "R3", false, "below cumulative threshold")
		return nil
	}

	key := cumulativeCooldownKey(ev.TokenMint, ev.Direction)
	inCooldown, err := e.window.IsInCooldown(ctx, key)
	if err != nil {
		e.record(ev, "R3", false, "cooldown check failed")
		return backendErr(err)
	}
	if inCooldown {
		e.record(ev, "R3", false, "cooldown active")
		return nil
	}

	message := cumulativeMessage(ev, cumulative)
	if err := e.dispatcher.DispatchPushGeneral(ctx, message); err != nil {
		e.record(ev, "R3", true, "dispatch failed")
		return err
	}
	if err := e.window.SetCooldown(ctx, key, e.thresholds.WindowSeconds); err != nil {
		e.record(ev, "R3", true, "cooldown set failed")
		return backendErr(err)
	}
	e.record(ev, "R3", true, "dispatched")
	return nil
}

// R4 — sequential-sells, gated on the five-sells feature flag.
func (e *Engine) evaluateSequentialSells(ctx context.Context, ev model.TransferEvent) error {
	if !e.thresholds.FiveSellsEnabled {
		e.record(ev, "R4", false, "feature disabled")
		return nil
	}

	if ev.Direction == model.DirectionBuy {
		if err := e.window.ResetSequentialSells(ctx, ev.Wallet); err != nil {
			e.record(ev, "R4", false, "reset failed")
			return backendErr(err)
		}
		e.record(ev, "R4", false, "buy resets streak")
		return nil
	}

	if ev.USDValue == nil || *ev.USDValue < e.thresholds.FiveSellsThresholdUSD {
		e.record(ev, "R4", false, "below five-sells threshold or unpriced")
		return nil
	}

	count, err := e.window.IncrementSequentialSells(ctx, ev.Wallet)
	if err != nil {
		e.record(ev, "R4", false, "increment failed")
		return backendErr(err)
	}
	if count < 5 {
		e.record(ev, "R4", false, "streak below 5")
		return nil
	}

	message := sequentialSellsMessage(ev, count)
	if err := e.dispatcher.DispatchPushSequentialSells(ctx, message); err != nil {
		e.record(ev, "R4", true, "dispatch failed")
		return err
	}
	if err := e.window.ResetSequentialSells(ctx, ev.Wallet); err != nil {
		e.record(ev, "R4", true, "reset after fire failed")
		return backendErr(err)
	}
	e.record(ev, "R4", true, "dispatched")
	return nil
}

func (e *Engine) record(ev model.TransferEvent, rule string, fired bool, reason string) {
	d := Decision{
		Rule:      rule,
		Mint:      ev.TokenMint,
		Wallet:    ev.Wallet,
		Fired:     fired,
		Reason:    reason,
		Timestamp: time.Now().Unix(),
	}

	e.mu.Lock()
	e.log = append(e.log, d)
	if len(e.log) > evaluationLogCapacity {
		e.log = e.log[len(e.log)-evaluationLogCapacity:]
	}
	e.mu.Unlock()

	logEvt := e.logger.Debug()
	if fired {
		logEvt = e.logger.Info()
	}
	logEvt.Str("rule", rule).Str("mint", ev.TokenMint).Bool("fired", fired).Str("reason", reason).Msg("rule evaluated")
}

// EvaluationLog returns a snapshot of the most recent rule decisions.
func (e *Engine) EvaluationLog() []Decision {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Decision, len(e.log))
	copy(out, e.log)
	return out
}

func cumulativeCooldownKey(mint string, dir model.Direction) string {
	return fmt.Sprintf("%s:%s:cumulative", mint, dir)
}

func largeTransferMessage(ev model.TransferEvent) string {
	return fmt.Sprintf("%s of $%.2f on %s by %s", ev.Direction, valueOrZero(ev.USDValue), ev.TokenMint, model.DisplayWallet(ev.Wallet))
}

func cumulativeMessage(ev model.TransferEvent, cumulative float64) string {
	return fmt.Sprintf("cumulative %s volume on %s reached $%.2f", ev.Direction, ev.TokenMint, cumulative)
}

func sequentialSellsMessage(ev model.TransferEvent, count int64) string {
	return fmt.Sprintf("%s has made %d sequential sells on %s above threshold", model.DisplayWallet(ev.Wallet), count, ev.TokenMint)
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
