package orange

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cdrwatch-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

const loginForm = `<html><body>
<form method="POST" action="/login">
	<input type="hidden" name="_token" value="csrf-123">
	<input type="email" name="email">
	<input type="password" name="password">
</form>
</body></html>`

// fakePortal mimics the carrier portal: a login form with a CSRF token,
// a credential check, and a CDR listing behind the session cookie.
type fakePortal struct {
	email    string
	password string
	listing  func(w http.ResponseWriter, r *http.Request)

	loginAttempts int
}

func (p *fakePortal) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, loginForm)
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		p.loginAttempts++
		if r.FormValue("_token") != "csrf-123" ||
			r.FormValue("email") != p.email ||
			r.FormValue("password") != p.password {
			fmt.Fprint(w, loginForm)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok"})
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})
	mux.HandleFunc("GET /dashboard", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/logout">Logout</a></body></html>`)
	})
	mux.HandleFunc("GET /CDR/mycdrs", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session")
		if err != nil || cookie.Value != "ok" {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		p.listing(w, r)
	})
	return mux
}

func setupPortal(t *testing.T, portal *fakePortal) *Client {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/orange")
	t.Cleanup(cleanup)

	server := httptest.NewServer(portal.handler())
	t.Cleanup(server.Close)

	client, err := NewClient(ClientOptions{BaseUrl: server.URL})
	require.NoError(t, err)
	return client
}

func TestLogin(t *testing.T) {
	portal := &fakePortal{email: "alice@example.com", password: "hunter2"}
	client := setupPortal(t, portal)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	err := client.Login(ctx, "alice@example.com", "hunter2")
	require.NoError(t, err)
	require.Equal(t, 1, portal.loginAttempts)
}

func TestLoginBadCredentials(t *testing.T) {
	portal := &fakePortal{email: "alice@example.com", password: "hunter2"}
	client := setupPortal(t, portal)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	err := client.Login(ctx, "alice@example.com", "wrong")
	require.ErrorIs(t, err, ErrLoginFailed)
}

func TestLoginMissingToken(t *testing.T) {
	// a portal without a CSRF token on the form should still be attempted
	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><form method="POST" action="/login"></form></html>`)
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>Dashboard</body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(ClientOptions{BaseUrl: server.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	err = client.Login(ctx, "alice@example.com", "hunter2")
	require.NoError(t, err)
}
