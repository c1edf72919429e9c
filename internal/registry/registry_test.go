package registry_test

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/onchainsignal/tracker/internal/registry"
)

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.db")
	r, err := registry.Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestIsWalletTrackedOpenFallbackWhenEmpty(t *testing.T) {
	r := newTestRegistry(t)

	tracked, err := r.IsWalletTracked("AnyWallet111")
	if err != nil {
		t.Fatalf("IsWalletTracked: %v", err)
	}
	if !tracked {
		t.Fatal("expected open-tracking fallback to report true when the set is empty")
	}
}

func TestAddWalletIsIdempotentAndCaseInsensitive(t *testing.T) {
	r := newTestRegistry(t)

	created, err := r.AddWallet("Wallet1ABC", "admin-1")
	if err != nil {
		t.Fatalf("AddWallet: %v", err)
	}
	if !created {
		t.Fatal("expected first insert to report created=true")
	}

	created, err = r.AddWallet("wallet1abc", "admin-2")
	if err != nil {
		t.Fatalf("AddWallet (duplicate): %v", err)
	}
	if created {
		t.Fatal("expected duplicate insert (case-insensitive) to report created=false")
	}

	count, err := r.WalletCount()
	if err != nil {
		t.Fatalf("WalletCount: %v", err)
	}
	if count != 1 {
		t.Fatalf("WalletCount = %d, want 1", count)
	}

	tracked, err := r.IsWalletTracked("WALLET1ABC")
	if err != nil {
		t.Fatalf("IsWalletTracked: %v", err)
	}
	if !tracked {
		t.Fatal("expected case-insensitive match against tracked set")
	}

	tracked, err = r.IsWalletTracked("SomeOtherWallet")
	if err != nil {
		t.Fatalf("IsWalletTracked (miss): %v", err)
	}
	if tracked {
		t.Fatal("expected untracked wallet to report false once the set is non-empty")
	}
}

func TestRemoveWallet(t *testing.T) {
	r := newTestRegistry(t)

	if _, err := r.AddWallet("Wallet2XYZ", "admin-1"); err != nil {
		t.Fatalf("AddWallet: %v", err)
	}
	if err := r.RemoveWallet("wallet2xyz"); err != nil {
		t.Fatalf("RemoveWallet: %v", err)
	}

	count, err := r.WalletCount()
	if err != nil {
		t.Fatalf("WalletCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("WalletCount after removal = %d, want 0", count)
	}
}

func TestPushSubscriptionsByClass(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.AddPushSubscription("user-1", registry.ClassGeneral, "push-key-1"); err != nil {
		t.Fatalf("AddPushSubscription: %v", err)
	}
	if err := r.AddPushSubscription("user-2", registry.ClassSequentialSells, "push-key-2"); err != nil {
		t.Fatalf("AddPushSubscription: %v", err)
	}

	general, err := r.SubscribersGeneral()
	if err != nil {
		t.Fatalf("SubscribersGeneral: %v", err)
	}
	if len(general) != 1 || general[0].UserID != "user-1" {
		t.Fatalf("SubscribersGeneral = %+v, want exactly user-1", general)
	}

	seq, err := r.SubscribersSequentialSells()
	if err != nil {
		t.Fatalf("SubscribersSequentialSells: %v", err)
	}
	if len(seq) != 1 || seq[0].UserID != "user-2" {
		t.Fatalf("SubscribersSequentialSells = %+v, want exactly user-2", seq)
	}

	if err := r.RemovePushSubscription("user-1", registry.ClassGeneral); err != nil {
		t.Fatalf("RemovePushSubscription: %v", err)
	}
	general, err = r.SubscribersGeneral()
	if err != nil {
		t.Fatalf("SubscribersGeneral (after removal): %v", err)
	}
	if len(general) != 0 {
		t.Fatalf("SubscribersGeneral after removal = %+v, want empty", general)
	}
}

func TestChatSubscribers(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.AddChatSubscriber("chat-user-1"); err != nil {
		t.Fatalf("AddChatSubscriber: %v", err)
	}
	if err := r.AddChatSubscriber("chat-user-2"); err != nil {
		t.Fatalf("AddChatSubscriber: %v", err)
	}

	ids, err := r.ChatSubscribers()
	if err != nil {
		t.Fatalf("ChatSubscribers: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("ChatSubscribers = %v, want 2 entries", ids)
	}

	if err := r.RemoveChatSubscriber("chat-user-1"); err != nil {
		t.Fatalf("RemoveChatSubscriber: %v", err)
	}
	ids, err = r.ChatSubscribers()
	if err != nil {
		t.Fatalf("ChatSubscribers (after removal): %v", err)
	}
	if len(ids) != 1 || ids[0] != "chat-user-2" {
		t.Fatalf("ChatSubscribers after removal = %v, want [chat-user-2]", ids)
	}
}
