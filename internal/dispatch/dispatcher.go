// Package dispatch implements the Notification Dispatcher (C6): fans a
// rendered message out to the chat channel, chat DM subscribers, and push
// subscribers, one goroutine per recipient, fire-and-collect.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/onchainsignal/tracker/internal/model"
)

// SubscriberSource is the subset of the Subscription Registry the
// dispatcher reads at send time.
type SubscriberSource interface {
	ChatSubscribers() ([]string, error)
	SubscribersGeneral() ([]model.PushSubscription, error)
	SubscribersSequentialSells() ([]model.PushSubscription, error)
}

// Dispatcher implements alert.Dispatcher against real chat and push
// channel clients.
type Dispatcher struct {
	chat       *ChatClient
	push       *PushClient
	registry   SubscriberSource
	channelID  string
	logger     zerolog.Logger
}

// New builds a Dispatcher. channelID is the broadcast chat channel every
// chat message is additionally sent to, independent of per-user DMs.
func New(chat *ChatClient, push *PushClient, registry SubscriberSource, channelID string, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		chat:      chat,
		push:      push,
		registry:  registry,
		channelID: channelID,
		logger:    logger.With().Str("component", "dispatcher").Logger(),
	}
}

// DispatchChat sends message to the broadcast channel and, independently,
// as a direct message to every chat subscriber. Both paths run
// concurrently; a failure on one recipient does not prevent the others.
func (d *Dispatcher) DispatchChat(ctx context.Context, message string) error {
	subscribers, err := d.registry.ChatSubscribers()
	if err != nil {
		return fmt.Errorf("dispatch: load chat subscribers: %w", err)
	}

	recipients := make([]string, 0, len(subscribers)+1)
	if d.channelID != "" {
		recipients = append(recipients, d.channelID)
	}
	recipients = append(recipients, subscribers...)

	return d.fanOut(recipients, func(recipient string) error {
		return d.chat.SendMessage(ctx, recipient, message)
	})
}

// DispatchPushGeneral sends message to every general-class push
// subscriber.
func (d *Dispatcher) DispatchPushGeneral(ctx context.Context, message string) error {
	subs, err := d.registry.SubscribersGeneral()
	if err != nil {
		return fmt.Errorf("dispatch: load general push subscribers: %w", err)
	}
	return d.fanOutPush(ctx, subs, "Alert", message)
}

// DispatchPushSequentialSells sends message to every sequential-sells
// class push subscriber.
func (d *Dispatcher) DispatchPushSequentialSells(ctx context.Context, message string) error {
	subs, err := d.registry.SubscribersSequentialSells()
	if err != nil {
		return fmt.Errorf("dispatch: load sequential-sells push subscribers: %w", err)
	}
	return d.fanOutPush(ctx, subs, "Sequential Sells Alert", message)
}

func (d *Dispatcher) fanOutPush(ctx context.Context, subs []model.PushSubscription, title, message string) error {
	keys := make([]string, len(subs))
	for i, s := range subs {
		keys[i] = s.PushKey
	}
	return d.fanOut(keys, func(key string) error {
		return d.push.Send(ctx, key, title, message)
	})
}

// fanOut runs send once per recipient on its own goroutine, waits for all
// of them, and returns an error only if at least one send failed; that
// error reports the failure count and wraps the first failure collected.
// Individual failures never prevent the others from being attempted.
func (d *Dispatcher) fanOut(recipients []string, send func(recipient string) error) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var failures []error

	for _, r := range recipients {
		wg.Add(1)
		go func(recipient string) {
			defer wg.Done()
			if err := send(recipient); err != nil {
				d.logger.Warn().Err(err).Str("recipient", recipient).Msg("notification send failed")
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
			}
		}(r)
	}
	wg.Wait()

	if len(failures) == 0 {
		return nil
	}
	return fmt.Errorf("dispatch: %d of %d sends failed: %w", len(failures), len(recipients), failures[0])
}
