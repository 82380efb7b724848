// Package model defines the data structures used throughout the application.
package model

import "time"

// LoginMethod identifies how the local account was established.
type LoginMethod string

const (
	LoginDiscord   LoginMethod = "discord"
	LoginAnonymous LoginMethod = "anonymous"
)

// Theme is the UI colour scheme preference.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// SortOrder is the default ordering for repository listings.
type SortOrder string

const (
	SortStars   SortOrder = "stars"
	SortForks   SortOrder = "forks"
	SortName    SortOrder = "name"
	SortUpdated SortOrder = "updated"
)

// ViewMode is the layout preference for the explore/discover screens.
type ViewMode string

const (
	ViewGrid ViewMode = "grid"
	ViewList ViewMode = "list"
)

// UserAccount is the single persisted account record for this installation.
//
// Exactly one of these exists at any time. It is stored as one serialized
// JSON blob in the key-value store; the JSON field names below are the
// persisted wire format and must stay stable across releases.
//
// WHY ONE RECORD AND NOT TABLES?
// The client is single-user: there is never a second account to join
// against, so the subscription lists are embedded in the record rather than
// split across storage keys. Reads and writes are whole-record.
type UserAccount struct {
	ID                 string              `json:"id"`
	Username           string              `json:"username"`
	Email              string              `json:"email,omitempty"`
	Avatar             string              `json:"avatar,omitempty"`
	DiscordID          string              `json:"discordId,omitempty"`
	IsLoggedIn         bool                `json:"isLoggedIn"`
	LoginMethod        LoginMethod         `json:"loginMethod"`
	SubscribedRepos    []SubscribedRepo    `json:"subscribedRepos"`
	SubscribedPackages []SubscribedPackage `json:"subscribedPackages"`
	Preferences        UserPreferences     `json:"preferences"`
	CreatedAt          time.Time           `json:"createdAt"` // immutable after creation
	LastLoginAt        time.Time           `json:"lastLoginAt"`
}

// RepoOwner mirrors the owner object of the GitHub repository API.
type RepoOwner struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// SubscribedRepo is a GitHub repository the user subscribed to.
//
// Uniqueness within UserAccount.SubscribedRepos is by ID OR FullName — a
// match on either field counts as the same subscription. Insertion order is
// preserved and determines the default display order.
//
// The snake_case JSON names (stargazers_count, html_url, ...) are kept
// identical to the GitHub API response so the client can pass search results
// straight into a subscribe call.
type SubscribedRepo struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	FullName        string    `json:"fullName"`
	Description     string    `json:"description,omitempty"`
	Owner           RepoOwner `json:"owner"`
	HTMLURL         string    `json:"html_url"`
	StargazersCount int       `json:"stargazers_count"`
	ForksCount      int       `json:"forks_count"`
	Language        string    `json:"language,omitempty"`
	SubscribedAt    time.Time `json:"subscribedAt"` // set once, on first subscribe
	LastUpdated     time.Time `json:"lastUpdated"`  // refreshed on every upsert
}

// PackageDownloads holds npm download counters for a subscribed package.
type PackageDownloads struct {
	Weekly  int `json:"weekly"`
	Monthly int `json:"monthly"`
}

// SubscribedPackage is an npm package the user subscribed to.
// Uniqueness is by ID OR Name, same contract as SubscribedRepo.
type SubscribedPackage struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Version      string           `json:"version"`
	Description  string           `json:"description,omitempty"`
	Author       string           `json:"author,omitempty"`
	Homepage     string           `json:"homepage,omitempty"`
	Repository   string           `json:"repository,omitempty"`
	NpmURL       string           `json:"npm_url"`
	Downloads    PackageDownloads `json:"downloads"`
	SubscribedAt time.Time        `json:"subscribedAt"`
	LastUpdated  time.Time        `json:"lastUpdated"`
}

// NotificationPrefs are the per-category notification toggles.
type NotificationPrefs struct {
	RepoUpdates      bool `json:"repoUpdates"`
	TrendingPackages bool `json:"trendingPackages"`
	WeeklyDigest     bool `json:"weeklyDigest"`
}

// UserPreferences holds display and notification settings.
// The account store guarantees this is always fully populated — a partial
// update merges field-by-field, it never replaces the whole object.
type UserPreferences struct {
	Theme         Theme             `json:"theme"`
	Notifications NotificationPrefs `json:"notifications"`
	DefaultSort   SortOrder         `json:"defaultSort"`
	ExploreView   ViewMode          `json:"exploreView"`
	DiscoverView  ViewMode          `json:"discoverView"`
}

// DefaultPreferences returns the preferences a fresh account starts with.
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		Theme: ThemeSystem,
		Notifications: NotificationPrefs{
			RepoUpdates:      true,
			TrendingPackages: true,
			WeeklyDigest:     false,
		},
		DefaultSort:  SortStars,
		ExploreView:  ViewList,
		DiscoverView: ViewGrid,
	}
}

// AccountPatch is a partial profile update applied by the account store.
//
// WHY POINTER FIELDS?
// A shallow merge needs to distinguish "field absent from the patch" from
// "field explicitly set to its zero value" (e.g. clearing the email).
// nil means "leave unchanged"; a non-nil pointer overwrites.
type AccountPatch struct {
	Username    *string      `json:"username,omitempty"`
	Email       *string      `json:"email,omitempty"`
	Avatar      *string      `json:"avatar,omitempty"`
	DiscordID   *string      `json:"discordId,omitempty"`
	IsLoggedIn  *bool        `json:"isLoggedIn,omitempty"`
	LoginMethod *LoginMethod `json:"loginMethod,omitempty"`
}

// PreferencesPatch is a partial preferences update. The merge is one level
// deep: Notifications, when present, replaces the whole nested object rather
// than merging its individual booleans.
type PreferencesPatch struct {
	Theme         *Theme             `json:"theme,omitempty"`
	Notifications *NotificationPrefs `json:"notifications,omitempty"`
	DefaultSort   *SortOrder         `json:"defaultSort,omitempty"`
	ExploreView   *ViewMode          `json:"exploreView,omitempty"`
	DiscoverView  *ViewMode          `json:"discoverView,omitempty"`
}
