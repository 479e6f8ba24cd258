package client

import (
	"net/http"
)

// Transport is an http.RoundTripper that attaches the cached access token
// as a bearer credential and, on an expired-access rejection, performs one
// coordinated refresh and resends the request. A request is never retried
// more than once.
type Transport struct {
	// Base is the underlying round tripper, http.DefaultTransport when nil.
	Base http.RoundTripper

	coord *Coordinator
}

// NewTransport creates a Transport over the given coordinator.
func NewTransport(base http.RoundTripper, coord *Coordinator) *Transport {
	return &Transport{Base: base, coord: coord}
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	attempt := req.Clone(req.Context())
	if tok, ok := t.coord.AccessToken(); ok {
		attempt.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := t.base().RoundTrip(attempt)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	// A body without GetBody cannot be replayed; surface the 401 as-is.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	tok, refreshErr := t.coord.Token(req.Context())
	if refreshErr != nil {
		resp.Body.Close()
		return nil, refreshErr
	}

	resp.Body.Close()
	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, bodyErr := req.GetBody()
		if bodyErr != nil {
			return nil, bodyErr
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+tok)
	return t.base().RoundTrip(retry)
}
