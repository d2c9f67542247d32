// Package identity reads the signed-in cashier from headers set by the
// authenticating proxy in front of the terminal.
package identity

import (
	"net/http"
	"strings"
)

// User is the cashier signed in at the terminal.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

type Provider interface {
	CurrentUser(r *http.Request) (User, bool)
	SignOut(w http.ResponseWriter, r *http.Request)
}

type Config struct {
	UserHeader  string
	EmailHeader string
	// SignOutURL is where the proxy ends its session.
	SignOutURL string
	// Cookies are expired on sign-out in addition to the redirect.
	Cookies []string
}

// HeaderProvider trusts identity headers injected by the proxy.
type HeaderProvider struct {
	cfg Config
}

func NewHeaderProvider(cfg Config) *HeaderProvider {
	if cfg.UserHeader == "" {
		cfg.UserHeader = "X-Forwarded-User"
	}
	if cfg.SignOutURL == "" {
		cfg.SignOutURL = "/"
	}
	return &HeaderProvider{cfg: cfg}
}

func (p *HeaderProvider) CurrentUser(r *http.Request) (User, bool) {
	id := strings.TrimSpace(r.Header.Get(p.cfg.UserHeader))
	if id == "" {
		return User{}, false
	}
	u := User{ID: id}
	if p.cfg.EmailHeader != "" {
		u.Email = strings.TrimSpace(r.Header.Get(p.cfg.EmailHeader))
	}
	return u, true
}

func (p *HeaderProvider) SignOut(w http.ResponseWriter, r *http.Request) {
	for _, name := range p.cfg.Cookies {
		http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	}
	http.Redirect(w, r, p.cfg.SignOutURL, http.StatusSeeOther)
}

// StaticProvider always reports the same user. It backs local development
// where no proxy is running.
type StaticProvider struct {
	User User
}

func (p StaticProvider) CurrentUser(*http.Request) (User, bool) {
	return p.User, p.User.ID != ""
}

func (p StaticProvider) SignOut(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
