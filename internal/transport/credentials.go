package transport

import (
	"encoding/base64"
	"net/http"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Credential applies an Authorization header to an outgoing request.
// Implementations must never reveal the secret through String() — logged
// transport state must stay safe to paste into a bug report (§5 "No
// global state").
type Credential interface {
	Apply(req *http.Request)
	String() string
}

// BasicCredential is RFC 7617 Basic auth.
type BasicCredential struct {
	Username string
	Password string
}

func (c BasicCredential) Apply(req *http.Request) {
	req.SetBasicAuth(c.Username, c.Password)
}

func (c BasicCredential) String() string {
	return "BasicCredential{Username: " + c.Username + ", Password: [redacted]}"
}

// BearerCredential is OAuth2-style bearer token auth. Expiry is peeked
// (not verified — no signature check, no key fetch) from the token's exp
// claim when it parses as a JWT, purely so a caller can proactively
// refresh before the server rejects it; the underlying CalDAV server
// remains the sole authority on whether the token is actually valid.
type BearerCredential struct {
	Token string
}

func (c BearerCredential) Apply(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.Token)
}

func (c BearerCredential) String() string {
	return "BearerCredential{Token: [redacted]}"
}

// ExpiresAt returns the JWT's exp claim, if the token parses as a JWT at
// all (opaque bearer tokens return ok=false, not an error).
func (c BearerCredential) ExpiresAt() (unixSeconds int64, ok bool) {
	tok, err := jwt.Parse([]byte(c.Token), jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return 0, false
	}
	exp, ok := tok.Expiration(), true
	if exp.IsZero() {
		return 0, false
	}
	return exp.Unix(), ok
}

// NTLMCredential carries domain-qualified Windows credentials. The actual
// handshake is performed by wrapping the transport's RoundTripper in
// ntlmssp.Negotiator (see roundtripper.go); this type only holds the
// identity used to construct that wrapper.
type NTLMCredential struct {
	Domain   string
	Username string
	Password string
}

func (c NTLMCredential) Apply(req *http.Request) {
	// NTLM's actual challenge/response handshake happens at the
	// RoundTripper level (see WrapNTLM); there is no static header to set
	// here beyond ensuring Basic-style prompts don't fire.
	req.Header.Del("Authorization")
}

func (c NTLMCredential) String() string {
	return "NTLMCredential{Domain: " + c.Domain + ", Username: " + c.Username + ", Password: [redacted]}"
}

// BasicAuthHeader builds a raw `Basic <base64>` value, used by callers
// that need the header value itself (e.g. POST to a schedule-outbox where
// the Originator's own credential must be threaded through explicitly).
func BasicAuthHeader(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}
