package httpx

import (
	"net/http"
	"strings"
	"time"
)

// Doer is the minimal HTTP client interface used across packages.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// UserAgent identifies refcheck to bibliographic APIs.
const UserAgent = "refcheck/1.0 (+https://github.com/refcheck/refcheck)"

// DefaultTimeout bounds a single outbound request.
const DefaultTimeout = 30 * time.Second

// NewClient returns an http.Client with DefaultTimeout.
func NewClient() *http.Client { return &http.Client{Timeout: DefaultTimeout} }

// SetUA sets the User-Agent header on the request. A non-empty contact email is
// appended as a mailto so CrossRef routes the request to its polite pool.
func SetUA(req *http.Request, contact string) {
	if req == nil {
		return
	}
	ua := UserAgent
	if c := strings.TrimSpace(contact); c != "" {
		ua = strings.TrimSuffix(ua, ")") + "; mailto:" + c + ")"
	}
	req.Header.Set("User-Agent", ua)
}
