// Package account is the single source of truth for the local user profile
// and subscription sets.
//
// Every operation is a read-modify-write of one JSON blob in the key-value
// store. An in-process mutex serializes the sequences, so two subscribe
// calls fired in quick succession cannot clobber each other's write — the
// store itself enforces the single-writer assumption instead of trusting
// the caller to serialize.
//
// Every operation returns (value, error) uniformly. Storage read failures
// propagate as apperror.ErrStorage; the caller decides whether to degrade
// to a default or surface the failure. Absence of the record is not a
// failure — the default account is created lazily on first read.
package account

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/involvex/involvex-server/internal/apperror"
	"github.com/involvex/involvex-server/internal/auth"
	"github.com/involvex/involvex-server/internal/kvstore"
	"github.com/involvex/involvex-server/internal/model"
	"github.com/involvex/involvex-server/internal/notify"
)

// Storage keys. The account record is one blob under accountKey; the legacy
// keys were declared by early builds that planned to store the collections
// separately and never did. They are kept only so ClearAll removes any
// stale blobs those builds may have written.
const (
	accountKey           = "involvex_user_account"
	legacyReposKey       = "involvex_subscribed_repos"
	legacyPackagesKey    = "involvex_subscribed_packages"
	legacyPreferencesKey = "involvex_user_preferences"
)

const defaultUsername = "Guest User"

// Store owns the persisted UserAccount record.
type Store struct {
	kv       kvstore.Store
	notifier notify.Provider
	logger   *slog.Logger

	// mu serializes every read-modify-write sequence.
	mu sync.Mutex

	// now is swapped in tests to control timestamps.
	now func() time.Time
}

// New creates a Store. notifier may be notify.Disabled{} when the
// environment has no notification support.
func New(kv kvstore.Store, notifier notify.Provider, logger *slog.Logger) *Store {
	return &Store{
		kv:       kv,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// defaultAccount builds a fresh anonymous account: generated ID, empty
// subscription lists, fully populated default preferences.
func defaultAccount(now time.Time) *model.UserAccount {
	return &model.UserAccount{
		ID:                 xid.New().String(),
		Username:           defaultUsername,
		IsLoggedIn:         false,
		LoginMethod:        model.LoginAnonymous,
		SubscribedRepos:    []model.SubscribedRepo{},
		SubscribedPackages: []model.SubscribedPackage{},
		Preferences:        model.DefaultPreferences(),
		CreatedAt:          now,
		LastLoginAt:        now,
	}
}

// Get returns the current account, creating and persisting the default one
// if none exists yet. It never fails with "not found".
func (s *Store) Get(ctx context.Context) (*model.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(ctx)
}

// get is the unlocked read path. Callers must hold s.mu.
func (s *Store) get(ctx context.Context) (*model.UserAccount, error) {
	raw, ok, err := s.kv.Get(ctx, accountKey)
	if err != nil {
		return nil, apperror.Storage("reading account", err)
	}

	if !ok {
		acct := defaultAccount(s.now())
		if err := s.save(ctx, acct); err != nil {
			return nil, err
		}
		s.logger.Info("created default account", slog.String("id", acct.ID))
		return acct, nil
	}

	var acct model.UserAccount
	if err := json.Unmarshal([]byte(raw), &acct); err != nil {
		return nil, apperror.Storage("decoding account", err)
	}
	normalize(&acct)
	return &acct, nil
}

// normalize repairs blobs written by older builds: nil subscription lists
// become empty, and zero-valued preference fields fall back to defaults so
// the "preferences always fully populated" invariant holds on read.
func normalize(acct *model.UserAccount) {
	if acct.SubscribedRepos == nil {
		acct.SubscribedRepos = []model.SubscribedRepo{}
	}
	if acct.SubscribedPackages == nil {
		acct.SubscribedPackages = []model.SubscribedPackage{}
	}

	defaults := model.DefaultPreferences()
	p := &acct.Preferences
	if p.Theme == "" {
		p.Theme = defaults.Theme
	}
	if p.DefaultSort == "" {
		p.DefaultSort = defaults.DefaultSort
	}
	if p.ExploreView == "" {
		p.ExploreView = defaults.ExploreView
	}
	if p.DiscoverView == "" {
		p.DiscoverView = defaults.DiscoverView
	}
	if acct.LoginMethod == "" {
		acct.LoginMethod = model.LoginAnonymous
	}
}

// Save serializes and writes the full record. Write failures propagate.
func (s *Store) Save(ctx context.Context, acct *model.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, acct)
}

// save is the unlocked write path. Callers must hold s.mu.
func (s *Store) save(ctx context.Context, acct *model.UserAccount) error {
	data, err := json.Marshal(acct)
	if err != nil {
		return apperror.Storage("encoding account", err)
	}
	if err := s.kv.Set(ctx, accountKey, string(data)); err != nil {
		return apperror.Storage("writing account", err)
	}
	return nil
}

// Update shallow-merges patch over the current account, stamps LastLoginAt,
// saves and returns the merged record. Nested objects are not deep-merged —
// preferences have their own operation.
func (s *Store) Update(ctx context.Context, patch model.AccountPatch) (*model.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.get(ctx)
	if err != nil {
		return nil, err
	}

	if patch.Username != nil {
		acct.Username = *patch.Username
	}
	if patch.Email != nil {
		acct.Email = *patch.Email
	}
	if patch.Avatar != nil {
		acct.Avatar = *patch.Avatar
	}
	if patch.DiscordID != nil {
		acct.DiscordID = *patch.DiscordID
	}
	if patch.IsLoggedIn != nil {
		acct.IsLoggedIn = *patch.IsLoggedIn
	}
	if patch.LoginMethod != nil {
		acct.LoginMethod = *patch.LoginMethod
	}
	acct.LastLoginAt = s.now()

	if err := s.save(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// LoginWithDiscord records a Discord login on the local account: profile
// fields are copied over, the login state flips to discord.
func (s *Store) LoginWithDiscord(ctx context.Context, user *auth.DiscordUser) (*model.UserAccount, error) {
	if user == nil {
		return nil, fmt.Errorf("account: Discord user must not be nil")
	}
	if user.ID == "" {
		return nil, apperror.ValidationFailed("id", "Discord user ID is required")
	}

	loggedIn := true
	method := model.LoginDiscord
	acct, err := s.Update(ctx, model.AccountPatch{
		DiscordID:   &user.ID,
		Username:    &user.Username,
		Email:       &user.Email,
		Avatar:      &user.Avatar,
		IsLoggedIn:  &loggedIn,
		LoginMethod: &method,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in with Discord",
		slog.String("accountID", acct.ID),
		slog.String("username", acct.Username),
	)
	return acct, nil
}

// Logout overwrites the stored account with a brand-new default one.
// Subscriptions are not preserved — logging out resets the device state.
func (s *Store) Logout(ctx context.Context) (*model.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := defaultAccount(s.now())
	if err := s.save(ctx, acct); err != nil {
		return nil, err
	}

	s.logger.Info("account reset on logout", slog.String("id", acct.ID))
	return acct, nil
}

// SubscribeRepo upserts a repository subscription keyed on ID or FullName.
// An existing entry keeps its position and SubscribedAt; incoming fields
// overwrite the rest and LastUpdated is refreshed. A new entry is appended
// with SubscribedAt = LastUpdated = now.
func (s *Store) SubscribeRepo(ctx context.Context, repo model.SubscribedRepo) (*model.UserAccount, error) {
	if repo.ID == "" && repo.FullName == "" {
		return nil, apperror.ValidationFailed("id", "repo id or fullName is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.get(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	idx := findRepo(acct.SubscribedRepos, repo.ID, repo.FullName)
	if idx >= 0 {
		repo.SubscribedAt = acct.SubscribedRepos[idx].SubscribedAt
		repo.LastUpdated = now
		acct.SubscribedRepos[idx] = repo
	} else {
		repo.SubscribedAt = now
		repo.LastUpdated = now
		acct.SubscribedRepos = append(acct.SubscribedRepos, repo)
	}

	if err := s.save(ctx, acct); err != nil {
		return nil, err
	}

	s.logger.Info("repo subscription saved",
		slog.String("repo", repo.FullName),
		slog.Bool("new", idx < 0),
	)

	if idx < 0 && acct.Preferences.Notifications.RepoUpdates && s.notifier.Supported() {
		s.notifier.Notify(ctx, notify.Event{
			Kind:  "repo_subscribed",
			Title: "Subscribed to " + repo.FullName,
			Body:  fmt.Sprintf("You will be notified about updates to %s.", repo.FullName),
		})
	}

	return acct, nil
}

// UnsubscribeRepo removes every entry whose ID or FullName matches key.
// Removing a repo that is not subscribed is a no-op, not an error.
func (s *Store) UnsubscribeRepo(ctx context.Context, key string) (*model.UserAccount, error) {
	if key == "" {
		return nil, apperror.ValidationFailed("id", "repo id or fullName is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.get(ctx)
	if err != nil {
		return nil, err
	}

	kept := acct.SubscribedRepos[:0]
	for _, r := range acct.SubscribedRepos {
		if r.ID != key && r.FullName != key {
			kept = append(kept, r)
		}
	}
	acct.SubscribedRepos = kept

	if err := s.save(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// IsSubscribedRepo reports whether any subscription matches key by ID or
// FullName. Pure query — never mutates.
func (s *Store) IsSubscribedRepo(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.get(ctx)
	if err != nil {
		return false, err
	}
	return findRepo(acct.SubscribedRepos, key, key) >= 0, nil
}

// SubscribePackage upserts a package subscription keyed on ID or Name.
// Same contract as SubscribeRepo.
func (s *Store) SubscribePackage(ctx context.Context, pkg model.SubscribedPackage) (*model.UserAccount, error) {
	if pkg.ID == "" && pkg.Name == "" {
		return nil, apperror.ValidationFailed("id", "package id or name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.get(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	idx := findPackage(acct.SubscribedPackages, pkg.ID, pkg.Name)
	if idx >= 0 {
		pkg.SubscribedAt = acct.SubscribedPackages[idx].SubscribedAt
		pkg.LastUpdated = now
		acct.SubscribedPackages[idx] = pkg
	} else {
		pkg.SubscribedAt = now
		pkg.LastUpdated = now
		acct.SubscribedPackages = append(acct.SubscribedPackages, pkg)
	}

	if err := s.save(ctx, acct); err != nil {
		return nil, err
	}

	if idx < 0 && acct.Preferences.Notifications.TrendingPackages && s.notifier.Supported() {
		s.notifier.Notify(ctx, notify.Event{
			Kind:  "package_subscribed",
			Title: "Subscribed to " + pkg.Name,
			Body:  fmt.Sprintf("You will be notified when %s trends.", pkg.Name),
		})
	}

	return acct, nil
}

// UnsubscribePackage removes every entry whose ID or Name matches key.
// Idempotent.
func (s *Store) UnsubscribePackage(ctx context.Context, key string) (*model.UserAccount, error) {
	if key == "" {
		return nil, apperror.ValidationFailed("id", "package id or name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.get(ctx)
	if err != nil {
		return nil, err
	}

	kept := acct.SubscribedPackages[:0]
	for _, p := range acct.SubscribedPackages {
		if p.ID != key && p.Name != key {
			kept = append(kept, p)
		}
	}
	acct.SubscribedPackages = kept

	if err := s.save(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// IsSubscribedPackage reports whether any subscription matches key by ID or
// Name. Pure query.
func (s *Store) IsSubscribedPackage(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.get(ctx)
	if err != nil {
		return false, err
	}
	return findPackage(acct.SubscribedPackages, key, key) >= 0, nil
}

// UpdatePreferences merges patch into the existing preferences one level
// deep: scalar fields merge individually, Notifications is replaced
// wholesale when present. LastLoginAt is not touched — changing a display
// setting is not a login.
func (s *Store) UpdatePreferences(ctx context.Context, patch model.PreferencesPatch) (*model.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.get(ctx)
	if err != nil {
		return nil, err
	}

	p := &acct.Preferences
	if patch.Theme != nil {
		p.Theme = *patch.Theme
	}
	if patch.Notifications != nil {
		p.Notifications = *patch.Notifications
	}
	if patch.DefaultSort != nil {
		p.DefaultSort = *patch.DefaultSort
	}
	if patch.ExploreView != nil {
		p.ExploreView = *patch.ExploreView
	}
	if patch.DiscoverView != nil {
		p.DiscoverView = *patch.DiscoverView
	}

	if err := s.save(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// SubscribedRepos returns the current repo subscriptions in insertion order.
func (s *Store) SubscribedRepos(ctx context.Context) ([]model.SubscribedRepo, error) {
	acct, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return acct.SubscribedRepos, nil
}

// SubscribedPackages returns the current package subscriptions in insertion
// order.
func (s *Store) SubscribedPackages(ctx context.Context) ([]model.SubscribedPackage, error) {
	acct, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return acct.SubscribedPackages, nil
}

// ClearAll removes every persisted key for this domain, including the
// legacy keys older builds wrote. Failures propagate.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.kv.Remove(ctx,
		accountKey,
		legacyReposKey,
		legacyPackagesKey,
		legacyPreferencesKey,
	)
	if err != nil {
		return apperror.Storage("clearing account data", err)
	}

	s.logger.Info("all account data cleared")
	return nil
}

// findRepo returns the index of the first entry matching id or fullName on
// either field, or -1. The uniqueness invariant guarantees at most one match.
func findRepo(repos []model.SubscribedRepo, id, fullName string) int {
	for i, r := range repos {
		if (id != "" && r.ID == id) || (fullName != "" && r.FullName == fullName) {
			return i
		}
	}
	return -1
}

func findPackage(pkgs []model.SubscribedPackage, id, name string) int {
	for i, p := range pkgs {
		if (id != "" && p.ID == id) || (name != "" && p.Name == name) {
			return i
		}
	}
	return -1
}
