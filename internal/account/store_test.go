package account

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/involvex/involvex-server/internal/apperror"
	"github.com/involvex/involvex-server/internal/auth"
	"github.com/involvex/involvex-server/internal/kvstore"
	"github.com/involvex/involvex-server/internal/model"
	"github.com/involvex/involvex-server/internal/notify"
)

// recordingNotifier captures events so tests can assert the capability flow.
type recordingNotifier struct {
	events []notify.Event
}

func (n *recordingNotifier) Supported() bool { return true }
func (n *recordingNotifier) Notify(_ context.Context, ev notify.Event) {
	n.events = append(n.events, ev)
}

// newTestStore returns a Store over an in-memory kv store with a fake clock
// that advances one second per call, so "later than" assertions are
// deterministic.
func newTestStore(t *testing.T) (*Store, *kvstore.Memory, *recordingNotifier) {
	t.Helper()
	kv := kvstore.NewMemory()
	notifier := &recordingNotifier{}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s := New(kv, notifier, logger)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return s, kv, notifier
}

func testRepo() model.SubscribedRepo {
	return model.SubscribedRepo{
		ID:              "1",
		Name:            "foo",
		FullName:        "a/foo",
		StargazersCount: 10,
		ForksCount:      2,
		HTMLURL:         "https://x",
		Owner:           model.RepoOwner{Login: "a", AvatarURL: "u"},
	}
}

func testPackage() model.SubscribedPackage {
	return model.SubscribedPackage{
		ID:      "pkg-1",
		Name:    "left-pad",
		Version: "1.3.0",
		NpmURL:  "https://www.npmjs.com/package/left-pad",
		Downloads: model.PackageDownloads{
			Weekly:  1000,
			Monthly: 4200,
		},
	}
}

// =========================================================================
// DEFAULT ACCOUNT
// =========================================================================

func TestGet_EmptyStorageCreatesDefault(t *testing.T) {
	s, kv, _ := newTestStore(t)

	acct, err := s.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if acct.ID == "" {
		t.Error("default account should have a generated ID")
	}
	if acct.Username != "Guest User" {
		t.Errorf("Username = %q, want %q", acct.Username, "Guest User")
	}
	if acct.IsLoggedIn {
		t.Error("default account should not be logged in")
	}
	if acct.LoginMethod != model.LoginAnonymous {
		t.Errorf("LoginMethod = %q, want %q", acct.LoginMethod, model.LoginAnonymous)
	}
	if len(acct.SubscribedRepos) != 0 || len(acct.SubscribedPackages) != 0 {
		t.Error("default account should have empty subscription lists")
	}
	if acct.Preferences != model.DefaultPreferences() {
		t.Errorf("Preferences = %+v, want defaults", acct.Preferences)
	}
	if acct.CreatedAt.IsZero() || acct.LastLoginAt.IsZero() {
		t.Error("default account timestamps should be set")
	}

	// The default must be persisted before returning, not just constructed.
	if kv.Len() != 1 {
		t.Errorf("store holds %d keys after first Get, want 1", kv.Len())
	}
}

func TestGet_IsStableAcrossCalls(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	first, err := s.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	second, err := s.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("account ID changed between reads: %q then %q", first.ID, second.ID)
	}
	if !first.CreatedAt.Equal(second.CreatedAt) {
		t.Error("CreatedAt must be immutable after creation")
	}
}

func TestGet_ReadFailurePropagates(t *testing.T) {
	s, kv, _ := newTestStore(t)
	kv.GetErr = errors.New("disk on fire")

	_, err := s.Get(context.Background())
	if err == nil {
		t.Fatal("Get() should propagate the read failure")
	}
	if !errors.Is(err, apperror.ErrStorage) {
		t.Errorf("error = %v, want ErrStorage kind", err)
	}
}

// =========================================================================
// UPDATE / LOGIN / LOGOUT
// =========================================================================

func TestUpdate_ShallowMergeAndLastLogin(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	before, err := s.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	name := "octocat"
	acct, err := s.Update(ctx, model.AccountPatch{Username: &name})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if acct.Username != "octocat" {
		t.Errorf("Username = %q, want %q", acct.Username, "octocat")
	}
	if acct.ID != before.ID {
		t.Error("Update must not reassign the account ID")
	}
	if !acct.CreatedAt.Equal(before.CreatedAt) {
		t.Error("Update must not touch CreatedAt")
	}
	if !acct.LastLoginAt.After(before.LastLoginAt) {
		t.Error("Update must refresh LastLoginAt")
	}
}

func TestLoginWithDiscord(t *testing.T) {
	s, _, _ := newTestStore(t)

	acct, err := s.LoginWithDiscord(context.Background(), &auth.DiscordUser{
		ID:       "9000",
		Username: "involvex",
		Email:    "hi@example.com",
		Avatar:   "https://cdn.discordapp.com/avatars/9000/abc.png",
	})
	if err != nil {
		t.Fatalf("LoginWithDiscord() error = %v", err)
	}

	if !acct.IsLoggedIn {
		t.Error("account should be logged in")
	}
	if acct.LoginMethod != model.LoginDiscord {
		t.Errorf("LoginMethod = %q, want discord", acct.LoginMethod)
	}
	if acct.DiscordID != "9000" || acct.Username != "involvex" {
		t.Errorf("profile not applied: %+v", acct)
	}
}

func TestLoginWithDiscord_InvalidProfile(t *testing.T) {
	s, _, _ := newTestStore(t)

	if _, err := s.LoginWithDiscord(context.Background(), nil); err == nil {
		t.Error("nil profile should be rejected")
	}
	if _, err := s.LoginWithDiscord(context.Background(), &auth.DiscordUser{}); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("empty Discord ID should fail validation, got %v", err)
	}
}

func TestLogout_ResetsState(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.LoginWithDiscord(ctx, &auth.DiscordUser{ID: "9000", Username: "involvex"}); err != nil {
		t.Fatalf("LoginWithDiscord() error = %v", err)
	}
	if _, err := s.SubscribeRepo(ctx, testRepo()); err != nil {
		t.Fatalf("SubscribeRepo() error = %v", err)
	}

	acct, err := s.Logout(ctx)
	if err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	if acct.IsLoggedIn {
		t.Error("logged out account should not be logged in")
	}
	if acct.LoginMethod != model.LoginAnonymous {
		t.Errorf("LoginMethod = %q, want anonymous", acct.LoginMethod)
	}

	repos, err := s.SubscribedRepos(ctx)
	if err != nil {
		t.Fatalf("SubscribedRepos() error = %v", err)
	}
	if len(repos) != 0 {
		t.Errorf("subscriptions survive logout: %d entries", len(repos))
	}
}

// =========================================================================
// REPO SUBSCRIPTIONS
// =========================================================================

func TestSubscribeRepo_UpsertKeepsOneEntry(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	first, err := s.SubscribeRepo(ctx, testRepo())
	if err != nil {
		t.Fatalf("SubscribeRepo() error = %v", err)
	}
	subscribedAt := first.SubscribedRepos[0].SubscribedAt

	// Same ID, updated star count — must update in place, not duplicate.
	updated := testRepo()
	updated.StargazersCount = 25
	acct, err := s.SubscribeRepo(ctx, updated)
	if err != nil {
		t.Fatalf("SubscribeRepo() second call error = %v", err)
	}

	if len(acct.SubscribedRepos) != 1 {
		t.Fatalf("got %d entries, want 1", len(acct.SubscribedRepos))
	}
	entry := acct.SubscribedRepos[0]
	if entry.StargazersCount != 25 {
		t.Errorf("StargazersCount = %d, want 25", entry.StargazersCount)
	}
	if !entry.SubscribedAt.Equal(subscribedAt) {
		t.Error("upsert must preserve SubscribedAt")
	}
	if !entry.LastUpdated.After(entry.SubscribedAt) {
		t.Errorf("LastUpdated (%v) should be later than SubscribedAt (%v)",
			entry.LastUpdated, entry.SubscribedAt)
	}
}

func TestSubscribeRepo_UniquenessByIDOrFullName(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	// Different ID but same fullName — still the same subscription.
	a := testRepo()
	b := testRepo()
	b.ID = "999"

	if _, err := s.SubscribeRepo(ctx, a); err != nil {
		t.Fatalf("SubscribeRepo(a) error = %v", err)
	}
	acct, err := s.SubscribeRepo(ctx, b)
	if err != nil {
		t.Fatalf("SubscribeRepo(b) error = %v", err)
	}
	if len(acct.SubscribedRepos) != 1 {
		t.Fatalf("got %d entries, want 1 (fullName match)", len(acct.SubscribedRepos))
	}

	// A genuinely different repo appends, preserving insertion order.
	c := model.SubscribedRepo{ID: "2", Name: "bar", FullName: "a/bar", HTMLURL: "https://y"}
	acct, err = s.SubscribeRepo(ctx, c)
	if err != nil {
		t.Fatalf("SubscribeRepo(c) error = %v", err)
	}
	if len(acct.SubscribedRepos) != 2 {
		t.Fatalf("got %d entries, want 2", len(acct.SubscribedRepos))
	}
	if acct.SubscribedRepos[0].FullName != "a/foo" || acct.SubscribedRepos[1].FullName != "a/bar" {
		t.Error("insertion order not preserved")
	}
}

func TestSubscribeRepo_Validation(t *testing.T) {
	s, _, _ := newTestStore(t)

	_, err := s.SubscribeRepo(context.Background(), model.SubscribedRepo{Name: "nameless"})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("repo without id and fullName should fail validation, got %v", err)
	}
}

func TestUnsubscribeRepo_Idempotent(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SubscribeRepo(ctx, testRepo()); err != nil {
		t.Fatalf("SubscribeRepo() error = %v", err)
	}

	acct, err := s.UnsubscribeRepo(ctx, "1")
	if err != nil {
		t.Fatalf("UnsubscribeRepo() error = %v", err)
	}
	if len(acct.SubscribedRepos) != 0 {
		t.Fatalf("got %d entries after unsubscribe, want 0", len(acct.SubscribedRepos))
	}

	// Second removal of the same key: same final state, no error.
	acct, err = s.UnsubscribeRepo(ctx, "1")
	if err != nil {
		t.Fatalf("second UnsubscribeRepo() error = %v", err)
	}
	if len(acct.SubscribedRepos) != 0 {
		t.Errorf("got %d entries, want 0", len(acct.SubscribedRepos))
	}
}

func TestRepoSubscriptionScenario(t *testing.T) {
	// Subscribe by ID, verify membership by ID, unsubscribe by fullName,
	// verify membership is gone.
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SubscribeRepo(ctx, testRepo()); err != nil {
		t.Fatalf("SubscribeRepo() error = %v", err)
	}

	subscribed, err := s.IsSubscribedRepo(ctx, "1")
	if err != nil {
		t.Fatalf("IsSubscribedRepo() error = %v", err)
	}
	if !subscribed {
		t.Fatal("IsSubscribedRepo(\"1\") = false, want true")
	}

	if _, err := s.UnsubscribeRepo(ctx, "a/foo"); err != nil {
		t.Fatalf("UnsubscribeRepo() error = %v", err)
	}

	subscribed, err = s.IsSubscribedRepo(ctx, "1")
	if err != nil {
		t.Fatalf("IsSubscribedRepo() error = %v", err)
	}
	if subscribed {
		t.Error("IsSubscribedRepo(\"1\") = true after unsubscribe by fullName")
	}
}

func TestSubscribeRepo_WriteFailurePropagates(t *testing.T) {
	s, kv, _ := newTestStore(t)
	ctx := context.Background()

	// Seed the account first, then make writes fail.
	if _, err := s.Get(ctx); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	kv.SetErr = errors.New("quota exceeded")

	_, err := s.SubscribeRepo(ctx, testRepo())
	if !errors.Is(err, apperror.ErrStorage) {
		t.Errorf("SubscribeRepo() error = %v, want ErrStorage kind", err)
	}
}

func TestSubscribeRepo_NotifiesOnNewSubscription(t *testing.T) {
	s, _, notifier := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SubscribeRepo(ctx, testRepo()); err != nil {
		t.Fatalf("SubscribeRepo() error = %v", err)
	}
	if len(notifier.events) != 1 || notifier.events[0].Kind != "repo_subscribed" {
		t.Fatalf("events = %+v, want one repo_subscribed", notifier.events)
	}

	// Upserting the same repo again is an update, not a new subscription.
	if _, err := s.SubscribeRepo(ctx, testRepo()); err != nil {
		t.Fatalf("SubscribeRepo() error = %v", err)
	}
	if len(notifier.events) != 1 {
		t.Errorf("upsert should not emit another notification, got %d events", len(notifier.events))
	}
}

func TestSubscribeRepo_NoNotificationWhenToggleOff(t *testing.T) {
	s, _, notifier := newTestStore(t)
	ctx := context.Background()

	prefs := model.DefaultPreferences().Notifications
	prefs.RepoUpdates = false
	if _, err := s.UpdatePreferences(ctx, model.PreferencesPatch{Notifications: &prefs}); err != nil {
		t.Fatalf("UpdatePreferences() error = %v", err)
	}

	if _, err := s.SubscribeRepo(ctx, testRepo()); err != nil {
		t.Fatalf("SubscribeRepo() error = %v", err)
	}
	if len(notifier.events) != 0 {
		t.Errorf("notifications disabled but got %+v", notifier.events)
	}
}

// =========================================================================
// PACKAGE SUBSCRIPTIONS
// =========================================================================

func TestSubscribePackage_UpsertAndMembership(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SubscribePackage(ctx, testPackage()); err != nil {
		t.Fatalf("SubscribePackage() error = %v", err)
	}

	// Same name, new version — updates in place.
	upd := testPackage()
	upd.Version = "1.3.1"
	acct, err := s.SubscribePackage(ctx, upd)
	if err != nil {
		t.Fatalf("SubscribePackage() second call error = %v", err)
	}
	if len(acct.SubscribedPackages) != 1 {
		t.Fatalf("got %d entries, want 1", len(acct.SubscribedPackages))
	}
	if acct.SubscribedPackages[0].Version != "1.3.1" {
		t.Errorf("Version = %q, want 1.3.1", acct.SubscribedPackages[0].Version)
	}

	// Membership by name as well as by ID.
	for _, key := range []string{"pkg-1", "left-pad"} {
		ok, err := s.IsSubscribedPackage(ctx, key)
		if err != nil {
			t.Fatalf("IsSubscribedPackage(%q) error = %v", key, err)
		}
		if !ok {
			t.Errorf("IsSubscribedPackage(%q) = false, want true", key)
		}
	}

	if _, err := s.UnsubscribePackage(ctx, "left-pad"); err != nil {
		t.Fatalf("UnsubscribePackage() error = %v", err)
	}
	ok, err := s.IsSubscribedPackage(ctx, "pkg-1")
	if err != nil {
		t.Fatalf("IsSubscribedPackage() error = %v", err)
	}
	if ok {
		t.Error("package still subscribed after unsubscribe by name")
	}
}

// =========================================================================
// PREFERENCES
// =========================================================================

func TestUpdatePreferences_MergesOneField(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	dark := model.ThemeDark
	acct, err := s.UpdatePreferences(ctx, model.PreferencesPatch{Theme: &dark})
	if err != nil {
		t.Fatalf("UpdatePreferences() error = %v", err)
	}

	defaults := model.DefaultPreferences()
	p := acct.Preferences
	if p.Theme != model.ThemeDark {
		t.Errorf("Theme = %q, want dark", p.Theme)
	}
	if p.Notifications != defaults.Notifications {
		t.Errorf("Notifications changed: %+v", p.Notifications)
	}
	if p.DefaultSort != defaults.DefaultSort {
		t.Errorf("DefaultSort changed: %q", p.DefaultSort)
	}
	if p.ExploreView != defaults.ExploreView || p.DiscoverView != defaults.DiscoverView {
		t.Error("view preferences changed")
	}
}

func TestUpdatePreferences_NotificationsReplacedWholesale(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	// A patch carrying Notifications replaces the whole nested object —
	// fields left zero in the patch become false.
	patch := model.NotificationPrefs{WeeklyDigest: true}
	acct, err := s.UpdatePreferences(ctx, model.PreferencesPatch{Notifications: &patch})
	if err != nil {
		t.Fatalf("UpdatePreferences() error = %v", err)
	}

	n := acct.Preferences.Notifications
	if !n.WeeklyDigest {
		t.Error("WeeklyDigest = false, want true")
	}
	if n.RepoUpdates || n.TrendingPackages {
		t.Error("nested object should be replaced wholesale, not merged")
	}
}

func TestUpdatePreferences_DoesNotTouchLastLogin(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	before, err := s.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	dark := model.ThemeDark
	acct, err := s.UpdatePreferences(ctx, model.PreferencesPatch{Theme: &dark})
	if err != nil {
		t.Fatalf("UpdatePreferences() error = %v", err)
	}
	if !acct.LastLoginAt.Equal(before.LastLoginAt) {
		t.Error("preference changes must not refresh LastLoginAt")
	}
}

// =========================================================================
// CLEAR ALL
// =========================================================================

func TestClearAll_RemovesLegacyKeys(t *testing.T) {
	s, kv, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	// Simulate blobs left behind by an early build.
	for _, k := range []string{legacyReposKey, legacyPackagesKey, legacyPreferencesKey} {
		if err := kv.Set(ctx, k, "[]"); err != nil {
			t.Fatalf("Set(%q) error = %v", k, err)
		}
	}

	if err := s.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll() error = %v", err)
	}
	if kv.Len() != 0 {
		t.Errorf("%d keys remain after ClearAll, want 0", kv.Len())
	}
}

func TestClearAll_FailurePropagates(t *testing.T) {
	s, kv, _ := newTestStore(t)
	kv.RemoveErr = errors.New("readonly filesystem")

	if err := s.ClearAll(context.Background()); !errors.Is(err, apperror.ErrStorage) {
		t.Errorf("ClearAll() error = %v, want ErrStorage kind", err)
	}
}

// =========================================================================
// PERSISTED FORMAT
// =========================================================================

func TestNormalize_RepairsOldBlob(t *testing.T) {
	s, kv, _ := newTestStore(t)
	ctx := context.Background()

	// A blob from an early build: no subscription arrays, half-empty prefs.
	old := `{"id":"legacy-1","username":"Guest User","isLoggedIn":false,` +
		`"preferences":{"notifications":{"repoUpdates":true}}}`
	if err := kv.Set(ctx, accountKey, old); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	acct, err := s.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if acct.ID != "legacy-1" {
		t.Errorf("ID = %q, want legacy-1", acct.ID)
	}
	if acct.SubscribedRepos == nil || acct.SubscribedPackages == nil {
		t.Error("nil subscription lists should be normalized to empty")
	}
	if acct.LoginMethod != model.LoginAnonymous {
		t.Errorf("LoginMethod = %q, want anonymous fallback", acct.LoginMethod)
	}
	p := acct.Preferences
	if p.Theme == "" || p.DefaultSort == "" || p.ExploreView == "" || p.DiscoverView == "" {
		t.Errorf("preferences not fully populated after normalize: %+v", p)
	}
}
