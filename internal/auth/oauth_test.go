package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

func TestAuthURL(t *testing.T) {
	p := NewDiscordProvider("client-id", "client-secret", "http://localhost:8080/auth/discord/callback")

	raw := p.AuthURL("state-xyz")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("AuthURL() returned unparseable URL: %v", err)
	}

	if u.Host != "discord.com" {
		t.Errorf("host = %q, want discord.com", u.Host)
	}
	q := u.Query()
	if q.Get("client_id") != "client-id" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("state") != "state-xyz" {
		t.Errorf("state = %q", q.Get("state"))
	}
	if scope := q.Get("scope"); !strings.Contains(scope, "identify") || !strings.Contains(scope, "email") {
		t.Errorf("scope = %q, want identify and email", scope)
	}
}

func TestAvatarURL(t *testing.T) {
	got := AvatarURL("123456", "abcdef")
	want := "https://cdn.discordapp.com/avatars/123456/abcdef.png"
	if got != want {
		t.Errorf("AvatarURL() = %q, want %q", got, want)
	}

	if got := AvatarURL("123456", ""); got != "" {
		t.Errorf("AvatarURL() with empty hash = %q, want empty", got)
	}
}

// TestExchange runs the full code-for-profile exchange against a fake
// Discord: one endpoint issues the token, the other serves /users/@me.
func TestExchange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"fake-token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/api/users/@me", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer fake-token" {
			t.Errorf("Authorization header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"42","username":"tester","email":"t@example.com","avatar":"hash123"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewDiscordProvider("client-id", "client-secret", "http://localhost/callback")
	p.config.Endpoint = oauth2.Endpoint{
		AuthURL:  srv.URL + "/oauth2/authorize",
		TokenURL: srv.URL + "/api/oauth2/token",
	}
	p.userURL = srv.URL + "/api/users/@me"

	user, err := p.Exchange(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}

	if user.ID != "42" {
		t.Errorf("ID = %q, want %q", user.ID, "42")
	}
	if user.Username != "tester" {
		t.Errorf("Username = %q, want %q", user.Username, "tester")
	}
	if want := "https://cdn.discordapp.com/avatars/42/hash123.png"; user.Avatar != want {
		t.Errorf("Avatar = %q, want %q", user.Avatar, want)
	}
}

func TestExchange_InvalidUser(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"fake-token","token_type":"Bearer"}`))
	})
	mux.HandleFunc("/api/users/@me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`)) // no ID
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewDiscordProvider("client-id", "client-secret", "http://localhost/callback")
	p.config.Endpoint = oauth2.Endpoint{TokenURL: srv.URL + "/api/oauth2/token"}
	p.userURL = srv.URL + "/api/users/@me"

	if _, err := p.Exchange(context.Background(), "auth-code"); err == nil {
		t.Error("Exchange() should reject a profile without an ID")
	}
}
