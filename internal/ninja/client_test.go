package ninja

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alpharequest/requestmanager/internal/config"
)

type memTokenCache struct {
	token       string
	puts        int
	invalidated int
}

var _ TokenCache = (*memTokenCache)(nil)

func (c *memTokenCache) Get(context.Context) (string, error) { return c.token, nil }

func (c *memTokenCache) Put(_ context.Context, token string, _ int) error {
	c.token = token
	c.puts++
	return nil
}

func (c *memTokenCache) Invalidate(context.Context) {
	c.token = ""
	c.invalidated++
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *memTokenCache) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cache := &memTokenCache{}
	client := NewClient(config.NinjaConfig{
		BaseURL:      server.URL,
		ClientID:     "client",
		ClientSecret: "secret",
	}, cache, zap.NewNop())
	return client, cache
}

func TestGetTicketFetchesTokenFirst(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 3600})
	})
	mux.HandleFunc("/api/v2/ticketing/ticket/42", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"id":42,"status":{"statusId":5000},"attributeValues":[{"attributeId":202,"value":"passt so"}]}`)
	})

	client, cache := newTestClient(t, mux)
	ticket, err := client.GetTicket(context.Background(), 42)
	require.NoError(t, err)

	assert.True(t, ticket.IsClosed())
	assert.Equal(t, "passt so", ticket.CommentAttribute())
	assert.Equal(t, 1, cache.puts)
}

func TestGetTicketReusesCachedToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/oauth/token", func(w http.ResponseWriter, _ *http.Request) {
		t.Error("token endpoint must not be called when a token is cached")
	})
	mux.HandleFunc("/api/v2/ticketing/ticket/7", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer cached", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"id":7,"status":{"statusId":2000}}`)
	})

	client, cache := newTestClient(t, mux)
	cache.token = "cached"

	ticket, err := client.GetTicket(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, ticket.IsClosed())
}

func TestUnauthorizedInvalidatesToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/ticketing/ticket/9", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	client, cache := newTestClient(t, mux)
	cache.token = "revoked"

	_, err := client.GetTicket(context.Background(), 9)
	require.Error(t, err)
	assert.Equal(t, 1, cache.invalidated)
	assert.Empty(t, cache.token)
}

func TestGetApprovalOutcome(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		outcome Outcome
	}{
		{
			name:    "approved",
			body:    `[{"createTime":10,"changeDiff":{"attributeValues":[{"attributeId":201,"new":"Erledigt"}]}}]`,
			outcome: OutcomeApproved,
		},
		{
			name:    "rejected",
			body:    `[{"createTime":10,"changeDiff":{"attributeValues":[{"attributeId":201,"new":"Abgelehnt"}]}}]`,
			outcome: OutcomeRejected,
		},
		{
			name: "latest entry wins",
			body: `[
				{"createTime":10,"changeDiff":{"attributeValues":[{"attributeId":201,"new":"Erledigt"}]}},
				{"createTime":20,"changeDiff":{"attributeValues":[{"attributeId":201,"new":"Abgelehnt"}]}}
			]`,
			outcome: OutcomeRejected,
		},
		{
			name:    "object-encoded attribute id",
			body:    `[{"createTime":10,"changeDiff":{"attributeValues":[{"attributeId":{"id":201},"new":"Erledigt"}]}}]`,
			outcome: OutcomeApproved,
		},
		{
			name:    "no approval attribute",
			body:    `[{"createTime":10,"changeDiff":{"attributeValues":[{"attributeId":202,"new":"nur ein Kommentar"}]}}]`,
			outcome: OutcomeUnknown,
		},
		{
			name:    "empty log",
			body:    `[]`,
			outcome: OutcomeUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/api/v2/ticketing/ticket/5/log-entry", func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, tc.body)
			})
			client, cache := newTestClient(t, mux)
			cache.token = "tok"

			outcome, err := client.GetApprovalOutcome(context.Background(), 5)
			require.NoError(t, err)
			assert.Equal(t, tc.outcome, outcome)
		})
	}
}

func TestAttributeIDUnmarshal(t *testing.T) {
	var attr AttributeValue
	require.NoError(t, json.Unmarshal([]byte(`{"attributeId":201,"value":"x"}`), &attr))
	assert.Equal(t, int64(201), attr.AttributeID.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"attributeId":{"id":202},"value":"y"}`), &attr))
	assert.Equal(t, int64(202), attr.AttributeID.ID)
}
