package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderProviderCurrentUser(t *testing.T) {
	p := NewHeaderProvider(Config{UserHeader: "X-Forwarded-User", EmailHeader: "X-Forwarded-Email"})

	r := httptest.NewRequest(http.MethodGet, "/pos", nil)
	_, ok := p.CurrentUser(r)
	assert.False(t, ok)

	r.Header.Set("X-Forwarded-User", "  barista-7 ")
	r.Header.Set("X-Forwarded-Email", "b7@coffeerealm.test")
	u, ok := p.CurrentUser(r)
	require.True(t, ok)
	assert.Equal(t, User{ID: "barista-7", Email: "b7@coffeerealm.test"}, u)
}

func TestHeaderProviderSignOut(t *testing.T) {
	p := NewHeaderProvider(Config{SignOutURL: "/oauth2/sign_out", Cookies: []string{"_oauth2_proxy"}})

	w := httptest.NewRecorder()
	p.SignOut(w, httptest.NewRequest(http.MethodPost, "/api/v1/session/sign-out", nil))

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/oauth2/sign_out", w.Header().Get("Location"))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "_oauth2_proxy", cookies[0].Name)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestStaticProvider(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := StaticProvider{}.CurrentUser(r)
	assert.False(t, ok)

	u, ok := StaticProvider{User: User{ID: "dev"}}.CurrentUser(r)
	require.True(t, ok)
	assert.Equal(t, "dev", u.ID)
}
