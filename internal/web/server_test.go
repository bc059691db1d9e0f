package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bronxbot/internal/config"
	"bronxbot/internal/store"
)

func TestSessionRoundTrip(t *testing.T) {
	s := NewSessions("test-secret", time.Hour)
	signed, err := s.Issue(Session{UserID: "u1", Username: "tester", AccessToken: "tok"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	sess, err := s.Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sess.UserID != "u1" || sess.Username != "tester" || sess.AccessToken != "tok" {
		t.Fatalf("session = %+v", sess)
	}
	if _, err := s.Verify(signed + "x"); err == nil {
		t.Fatalf("tampered token verified")
	}
	if _, err := NewSessions("other-secret", time.Hour).Verify(signed); err == nil {
		t.Fatalf("token verified with wrong secret")
	}
}

func newTestServer(t *testing.T) (*Server, *store.Memory, string) {
	t.Helper()
	// fake Discord API that says the user manages guild g1
	fake := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/@me/guilds":
			_ = json.NewEncoder(w).Encode([]DiscordGuild{
				{ID: "g1", Name: "Test Guild", Owner: true, Permissions: "0"},
				{ID: "g2", Name: "Other Guild", Owner: false, Permissions: "0"},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(fake.Close)

	oauth := NewDiscordClient("id", "secret", "http://localhost/callback")
	oauth.baseURL = fake.URL
	sessions := NewSessions("test-secret", time.Hour)
	st := store.NewMemory()
	srv := New(config.WebConfig{SessionTTL: time.Hour}, nil, oauth, sessions, st)

	signed, err := sessions.Issue(Session{UserID: "u1", Username: "tester", AccessToken: "tok"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return srv, st, signed
}

func doRequest(t *testing.T, srv *Server, method, path, cookie, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: cookie})
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSettingsRequireSession(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/servers/g1/settings", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestSettingsForbiddenForUnmanagedGuild(t *testing.T) {
	srv, _, cookie := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/servers/g2/settings", cookie, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestSettingsUpdate(t *testing.T) {
	srv, st, cookie := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/servers/g1/settings", cookie,
		`{"prefixes":["!","?"],"welcome":{"enabled":true,"channel_id":"c1","message":"hi"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}

	gs, err := st.GuildSettings(context.Background(), "g1")
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if len(gs.Prefixes) != 2 || gs.Prefixes[0] != "!" {
		t.Fatalf("prefixes = %v", gs.Prefixes)
	}
	if !gs.Welcome.Enabled || gs.Welcome.ChannelID != "c1" {
		t.Fatalf("welcome = %+v", gs.Welcome)
	}

	rec = doRequest(t, srv, http.MethodGet, "/servers/g1/settings", cookie, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"g1"`) {
		t.Fatalf("get status = %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	srv, _, cookie := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/servers/g1/settings", cookie, `{"bogus":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
