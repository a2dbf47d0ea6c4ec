package http

import "net/http"

// AuthConfig decorates outgoing requests with credentials.
type AuthConfig interface {
	Apply(req *http.Request)
}

type NoAuth struct{}

func (NoAuth) Apply(*http.Request) {}

// BearerToken sets "Authorization: Bearer <token>"; an empty token is a no-op.
type BearerToken struct {
	Token string
}

func (a BearerToken) Apply(req *http.Request) {
	if a.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.Token)
	}
}

// PlatformKey sends a hosted-platform key as the "apikey" header and as a
// bearer token. The REST layer of the platform reads both.
type PlatformKey struct {
	Key string
}

func (a PlatformKey) Apply(req *http.Request) {
	if a.Key == "" {
		return
	}
	req.Header.Set("apikey", a.Key)
	BearerToken{Token: a.Key}.Apply(req)
}
