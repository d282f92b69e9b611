package ice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTwilioNTSRejectsEmptyCredentials(t *testing.T) {
	assert.Nil(t, NewTwilioNTS("", ""))
	assert.Nil(t, NewTwilioNTS("sid", ""))
}

func TestFetchICEServersSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ice_servers":[{"urls":["stun:example.com:3478"]}],"ttl":"86400"}`))
	}))
	defer srv.Close()

	provider := NewTwilioNTS("AC123", "token")
	require.NotNil(t, provider)
	provider.BaseURL = srv.URL

	servers, err := provider.FetchICEServers(context.Background())
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "stun:example.com:3478", servers[0].URLs[0])
}

func TestFetchICEServersFallsBackOnNon201(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	provider := NewTwilioNTS("AC123", "token")
	provider.BaseURL = srv.URL

	servers, err := provider.FetchICEServers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, servers)
}

func TestResolveFallsBackWhenProviderNil(t *testing.T) {
	fallback := []Server{{URLs: []string{"stun:fallback:3478"}}}
	got := Resolve(context.Background(), nil, fallback)
	assert.Equal(t, fallback, got)
}

func TestResolveFallsBackWhenProviderReturnsEmpty(t *testing.T) {
	fallback := []Server{{URLs: []string{"stun:fallback:3478"}}}
	empty := &fakeProvider{}
	got := Resolve(context.Background(), empty, fallback)
	assert.Equal(t, fallback, got)
}

type fakeProvider struct{}

func (fakeProvider) FetchICEServers(ctx context.Context) ([]Server, error) { return nil, nil }
