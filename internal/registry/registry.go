// Package registry implements the Subscription Registry (C3): a small
// embedded relational store holding tracked wallets and notification
// subscriptions. It is the single owner of this persisted state; C5/C6
// only ever see read snapshots.
package registry

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/onchainsignal/tracker/internal/model"
)

const (
	ClassGeneral          = "general"
	ClassSequentialSells  = "sequential_sells"
)

// Registry wraps a GORM handle over a WAL-mode SQLite file.
type Registry struct {
	db *gorm.DB
}

// Open opens (creating if necessary) the registry database at path and
// auto-migrates its schema. WAL mode satisfies "a single local file with
// write-ahead logging."
func Open(path string, logger zerolog.Logger) (*Registry, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("registry: open: %w", err)
	}

	if err := db.AutoMigrate(
		&model.TrackedWallet{},
		&model.PushSubscription{},
		&model.ChatSubscriber{},
	); err != nil {
		return nil, fmt.Errorf("registry: migrate: %w", err)
	}

	return &Registry{db: db}, nil
}

// IsWalletTracked reports whether addr is in the tracked set, case
// insensitively. If the tracked set is empty, the "open tracking fallback"
// policy applies: every wallet is considered tracked, and a warning is
// logged by the caller (the registry itself stays side-effect free here).
func (r *Registry) IsWalletTracked(addr string) (bool, error) {
	var count int64
	if err := r.db.Model(&model.TrackedWallet{}).Count(&count).Error; err != nil {
		return false, fmt.Errorf("registry: count wallets: %w", err)
	}
	if count == 0 {
		return true, nil
	}

	var match int64
	if err := r.db.Model(&model.TrackedWallet{}).
		Where("LOWER(address) = ?", strings.ToLower(addr)).
		Count(&match).Error; err != nil {
		return false, fmt.Errorf("registry: lookup wallet: %w", err)
	}
	return match > 0, nil
}

// AddWallet inserts addr into the tracked set. Duplicate insertion is a
// no-op; the boolean return reports whether a new row was created.
func (r *Registry) AddWallet(addr, addedBy string) (bool, error) {
	normalized := strings.ToLower(addr)
	var existing int64
	if err := r.db.Model(&model.TrackedWallet{}).
		Where("LOWER(address) = ?", normalized).Count(&existing).Error; err != nil {
		return false, fmt.Errorf("registry: add wallet lookup: %w", err)
	}
	if existing > 0 {
		return false, nil
	}

	w := model.TrackedWallet{Address: addr, AddedBy: addedBy, AddedAt: time.Now().Unix()}
	if err := r.db.Create(&w).Error; err != nil {
		return false, fmt.Errorf("registry: add wallet: %w", err)
	}
	return true, nil
}

// RemoveWallet removes addr from the tracked set.
func (r *Registry) RemoveWallet(addr string) error {
	if err := r.db.Where("LOWER(address) = ?", strings.ToLower(addr)).
		Delete(&model.TrackedWallet{}).Error; err != nil {
		return fmt.Errorf("registry: remove wallet: %w", err)
	}
	return nil
}

// ListWallets returns tracked wallets in insertion order.
func (r *Registry) ListWallets(skip, limit int) ([]model.TrackedWallet, error) {
	var wallets []model.TrackedWallet
	if err := r.db.Order("added_at asc").Offset(skip).Limit(limit).Find(&wallets).Error; err != nil {
		return nil, fmt.Errorf("registry: list wallets: %w", err)
	}
	return wallets, nil
}

// WalletCount returns the number of tracked wallets.
func (r *Registry) WalletCount() (int64, error) {
	var count int64
	if err := r.db.Model(&model.TrackedWallet{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("registry: wallet count: %w", err)
	}
	return count, nil
}

// AddPushSubscription registers userID's push key for the given class.
// A user may hold at most one subscription per class; re-subscribing
// overwrites the stored push key.
func (r *Registry) AddPushSubscription(userID, class, pushKey string) error {
	sub := model.PushSubscription{
		UserID:    userID,
		Class:     class,
		PushKey:   pushKey,
		CreatedAt: time.Now().Unix(),
	}
	if err := r.db.Save(&sub).Error; err != nil {
		return fmt.Errorf("registry: add push subscription: %w", err)
	}
	return nil
}

// RemovePushSubscription unsubscribes userID from the given class.
func (r *Registry) RemovePushSubscription(userID, class string) error {
	if err := r.db.Where("user_id = ? AND class = ?", userID, class).
		Delete(&model.PushSubscription{}).Error; err != nil {
		return fmt.Errorf("registry: remove push subscription: %w", err)
	}
	return nil
}

// SubscribersGeneral returns every push subscriber in the general class.
func (r *Registry) SubscribersGeneral() ([]model.PushSubscription, error) {
	return r.subscribersByClass(ClassGeneral)
}

// SubscribersSequentialSells returns every push subscriber in the
// sequential-sells class.
func (r *Registry) SubscribersSequentialSells() ([]model.PushSubscription, error) {
	return r.subscribersByClass(ClassSequentialSells)
}

func (r *Registry) subscribersByClass(class string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := r.db.Where("class = ?", class).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("registry: subscribers(%s): %w", class, err)
	}
	return subs, nil
}

// AddChatSubscriber opts userID in to periodic chat summaries.
func (r *Registry) AddChatSubscriber(userID string) error {
	sub := model.ChatSubscriber{UserID: userID, CreatedAt: time.Now().Unix()}
	if err := r.db.Save(&sub).Error; err != nil {
		return fmt.Errorf("registry: add chat subscriber: %w", err)
	}
	return nil
}

// RemoveChatSubscriber opts userID out of periodic chat summaries.
func (r *Registry) RemoveChatSubscriber(userID string) error {
	if err := r.db.Where("user_id = ?", userID).Delete(&model.ChatSubscriber{}).Error; err != nil {
		return fmt.Errorf("registry: remove chat subscriber: %w", err)
	}
	return nil
}

// ChatSubscribers returns the user ids opted in to periodic summaries.
func (r *Registry) ChatSubscribers() ([]string, error) {
	var subs []model.ChatSubscriber
	if err := r.db.Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("registry: chat subscribers: %w", err)
	}
	ids := make([]string, len(subs))
	for i, s := range subs {
		ids[i] = s.UserID
	}
	return ids, nil
}

// Close closes the underlying database connection.
func (r *Registry) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
