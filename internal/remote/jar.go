package remote

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
)

// SessionJar is a cookie jar that can be wiped on logout.
type SessionJar struct {
	mu    sync.RWMutex
	inner *cookiejar.Jar
}

// NewSessionJar returns an empty jar.
func NewSessionJar() *SessionJar {
	return &SessionJar{inner: newCookieJar()}
}

func newCookieJar() *cookiejar.Jar {
	// cookiejar.New only fails on a bad PublicSuffixList, and we pass none.
	jar, _ := cookiejar.New(nil)
	return jar
}

func (j *SessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	j.inner.SetCookies(u, cookies)
}

func (j *SessionJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.inner.Cookies(u)
}

// Clear drops every stored cookie.
func (j *SessionJar) Clear() {
	j.mu.Lock()
	j.inner = newCookieJar()
	j.mu.Unlock()
}
