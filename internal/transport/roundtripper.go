package transport

import (
	"net/http"

	"github.com/Azure/go-ntlmssp"
)

// WrapNTLM wraps base in an NTLM-negotiating RoundTripper carrying the
// given identity, for servers (chiefly on-prem Exchange/IIS-fronted CalDAV
// deployments) that speak NTLM instead of Basic or Bearer.
func WrapNTLM(base http.RoundTripper, cred NTLMCredential) http.RoundTripper {
	domainUser := cred.Username
	if cred.Domain != "" {
		domainUser = cred.Domain + "\\" + cred.Username
	}
	return ntlmssp.Negotiator{
		RoundTripper: &staticBasicInjector{
			base:     base,
			username: domainUser,
			password: cred.Password,
		},
	}
}

// staticBasicInjector sets the Basic credential ntlmssp.Negotiator expects
// to find before it rewrites the handshake into NTLM messages.
type staticBasicInjector struct {
	base     http.RoundTripper
	username string
	password string
}

func (t *staticBasicInjector) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	return t.base.RoundTrip(req)
}
