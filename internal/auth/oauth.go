package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// discordEndpoint holds Discord's OAuth 2.0 endpoints. golang.org/x/oauth2
// ships presets for GitHub, Google etc. but not Discord, so we define it.
var discordEndpoint = oauth2.Endpoint{
	AuthURL:  "https://discord.com/oauth2/authorize",
	TokenURL: "https://discord.com/api/oauth2/token",
}

const discordUserURL = "https://discord.com/api/users/@me"

// DiscordUser is the portion of Discord's /users/@me response we care about.
// Discord returns a much larger object — we only unmarshal the fields we need.
//
// Avatar in the raw response is a hash, not a URL; Exchange resolves it to
// the CDN URL the client can render directly.
type DiscordUser struct {
	ID       string `json:"id"`       // Discord's snowflake user ID — stable, never changes
	Username string `json:"username"` // Discord username, e.g. "involvex"
	Email    string `json:"email"`    // May be empty if the email scope was denied
	Avatar   string `json:"avatar"`   // Avatar hash in the API response, CDN URL after Exchange
}

// DiscordProvider wraps golang.org/x/oauth2 for the Discord Authorization
// Code flow:
//
//  1. Redirect the user to Discord's authorization endpoint with our
//     ClientID and scopes.
//  2. The user approves; Discord redirects back with a short-lived code.
//  3. Exchange the code for an access token (server-to-server, using the
//     ClientSecret — the token never reaches the browser).
//  4. Call /users/@me with the token to fetch the profile.
type DiscordProvider struct {
	config  *oauth2.Config
	userURL string // overridable in tests
}

// NewDiscordProvider creates a DiscordProvider with the given credentials.
//
// Register an application at https://discord.com/developers/applications to
// obtain the client ID and secret. callbackURL must exactly match one of the
// redirect URIs configured there.
//
// Scopes: "identify" grants the user ID/username/avatar, "email" the
// verified email address.
func NewDiscordProvider(clientID, clientSecret, callbackURL string) *DiscordProvider {
	return &DiscordProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"identify", "email"},
			Endpoint:     discordEndpoint,
		},
		userURL: discordUserURL,
	}
}

// AuthURL returns the URL to redirect the user to for authorization.
// state is a random value stored in a cookie before the redirect; the
// callback handler verifies it to block CSRF-initiated flows.
func (p *DiscordProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the OAuth flow: trades the authorization code for a
// Discord user profile, with the avatar hash resolved to its CDN URL.
func (p *DiscordProvider) Exchange(ctx context.Context, code string) (*DiscordUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// Client returns an *http.Client that attaches the Bearer token to
	// every request.
	client := p.config.Client(ctx, oauthToken)

	resp, err := client.Get(p.userURL)
	if err != nil {
		return nil, fmt.Errorf("auth: calling Discord /users/@me: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Discord /users/@me returned status %d", resp.StatusCode)
	}

	var user DiscordUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("auth: decoding Discord /users/@me response: %w", err)
	}

	if user.ID == "" {
		return nil, fmt.Errorf("auth: Discord returned an invalid user (empty ID)")
	}

	user.Avatar = AvatarURL(user.ID, user.Avatar)

	return &user, nil
}

// AvatarURL builds the CDN URL for a user's avatar hash. Returns "" when the
// user has no custom avatar (hash is empty).
func AvatarURL(userID, hash string) string {
	if hash == "" {
		return ""
	}
	return fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", userID, hash)
}
