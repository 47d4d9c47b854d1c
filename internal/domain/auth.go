package domain

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"time"
)

// Credentials stores the TestRail username and API key.
type Credentials struct {
	Username string
	APIKey   string
}

// CredentialsFromConfig extracts credentials from a validated configuration.
func CredentialsFromConfig(config *Config) *Credentials {
	return &Credentials{
		Username: config.TestRail.Username,
		APIKey:   config.TestRail.APIKey,
	}
}

// Validate reports missing credential fields.
func (c *Credentials) Validate() error {
	if c == nil {
		return fmt.Errorf("credentials cannot be nil")
	}
	if c.Username == "" {
		return fmt.Errorf("username is required for basic authentication")
	}
	if c.APIKey == "" {
		return fmt.Errorf("api key is required for basic authentication")
	}
	return nil
}

// BasicAuthHeader returns the Authorization header value for the credentials.
func BasicAuthHeader(username, apiKey string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+apiKey))
}

// NewAuthenticatedClient returns an HTTP client that adds basic authentication
// to every request. A zero timeout disables the client timeout.
func NewAuthenticatedClient(creds *Credentials, timeout time.Duration) (*http.Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	return &http.Client{
		Transport: &authenticatedTransport{
			base:        http.DefaultTransport,
			credentials: creds,
		},
		Timeout: timeout,
	}, nil
}

// authenticatedTransport is an http.RoundTripper that adds authentication headers.
type authenticatedTransport struct {
	base        http.RoundTripper
	credentials *Credentials
}

// RoundTrip implements http.RoundTripper by adding the basic auth header.
func (t *authenticatedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original
	clonedReq := req.Clone(req.Context())
	clonedReq.Header.Set("Authorization", BasicAuthHeader(t.credentials.Username, t.credentials.APIKey))

	return t.base.RoundTrip(clonedReq)
}
