// Package ice fetches ephemeral NAT-traversal (TURN/STUN) credentials from
// a configured HTTP credential provider for the WebRTC peer-connection
// adapter, falling back to a static server list when the provider is
// unreachable or unconfigured.
package ice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/voxdial/scheduler/internal/httpc"
	"github.com/voxdial/scheduler/internal/log"
	"github.com/voxdial/scheduler/pkg/protocol"
)

// Server mirrors protocol.ICEServer; kept distinct so this package has no
// hard dependency on the wire envelope shape.
type Server = protocol.ICEServer

// CredentialProvider fetches a fresh set of ICE servers from an external
// NAT-traversal service. Implementations should return an empty, non-error
// result when the service is unavailable so callers fall back cleanly.
type CredentialProvider interface {
	FetchICEServers(ctx context.Context) ([]Server, error)
}

// TwilioNTS fetches ephemeral TURN credentials from Twilio's Network
// Traversal Service, generalized here to any HTTP endpoint that returns the
// same {ice_servers: [...]} shape with HTTP Basic auth.
type TwilioNTS struct {
	AccountSID string
	AuthToken  string
	BaseURL    string // defaults to https://api.twilio.com
}

// NewTwilioNTS builds a TwilioNTS provider. Returns nil if accountSID or
// authToken is empty — callers should use their static fallback server list
// directly rather than invoking an unconfigured provider.
func NewTwilioNTS(accountSID, authToken string) *TwilioNTS {
	if accountSID == "" || authToken == "" {
		return nil
	}
	return &TwilioNTS{AccountSID: accountSID, AuthToken: authToken, BaseURL: "https://api.twilio.com"}
}

type twilioTokenResponse struct {
	ICEServers []Server `json:"ice_servers"`
	TTL        string   `json:"ttl"`
}

// FetchICEServers implements CredentialProvider. It returns an empty slice
// (never an error) on any failure, logging once, so the caller can fall
// back to its configured static server set without special-casing errors.
func (t *TwilioNTS) FetchICEServers(ctx context.Context) ([]Server, error) {
	url := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Tokens.json", t.BaseURL, t.AccountSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, nil
	}
	req.SetBasicAuth(t.AccountSID, t.AuthToken)

	resp, err := httpc.Do(req)
	if err != nil {
		log.Warn("ice: twilio nts request failed", "error", err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		log.Warn("ice: twilio nts returned non-201 status", "status", resp.StatusCode)
		return nil, nil
	}

	var body twilioTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Warn("ice: twilio nts response decode failed", "error", err)
		return nil, nil
	}

	log.Info("ice: fetched turn credentials", "count", len(body.ICEServers), "ttl", body.TTL)
	return body.ICEServers, nil
}

// Resolve fetches ICE servers from provider (if non-nil) and falls back to
// fallback when the provider is nil or returns an empty list.
func Resolve(ctx context.Context, provider CredentialProvider, fallback []Server) []Server {
	if provider == nil {
		return fallback
	}
	servers, err := provider.FetchICEServers(ctx)
	if err != nil || len(servers) == 0 {
		return fallback
	}
	return servers
}
