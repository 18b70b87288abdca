package auth

import "net/url"

// CookieSettings contains cookie security settings derived from the base URL.
type CookieSettings struct {
	Secure bool
	Domain string
}

// DeriveCookieSettings picks Secure from the base URL scheme. An explicit
// domain is used as-is; otherwise the cookie is host-only.
//   - http://localhost:8000 → Secure: false
//   - https://t2sql.example.com → Secure: true
func DeriveCookieSettings(baseURL, cookieDomain string) CookieSettings {
	return CookieSettings{Secure: isHTTPS(baseURL), Domain: cookieDomain}
}

// isHTTPS treats empty or unparseable URLs as HTTPS.
func isHTTPS(baseURL string) bool {
	if baseURL == "" {
		return true
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return true
	}
	return parsed.Scheme != "http"
}
