package tautulli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatarr/curatarr/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(config.TautulliConfig{URL: server.URL, APIKey: "key"}, nil, zerolog.Nop())
}

func TestClient_GetHistory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/api/v2", r.URL.Path)
		assert.Equal(t, "get_history", q.Get("cmd"))
		assert.Equal(t, "key", q.Get("apikey"))
		assert.Equal(t, "42", q.Get("parent_rating_key"))
		_, _ = w.Write([]byte(`{"response":{"result":"success","message":null,"data":{
			"recordsFiltered":2,"data":[
			{"user_id":1,"friendly_name":"alice","rating_key":100,"parent_rating_key":42,"media_type":"episode",
			 "started":1700000000,"stopped":1700003600,"percent_complete":98,"watched_status":1},
			{"user_id":2,"friendly_name":"bob","rating_key":101,"parent_rating_key":42,"media_type":"episode",
			 "started":1700100000,"stopped":1700100600,"percent_complete":20,"watched_status":0.5}]}}}`))
	})

	entries, err := c.GetHistory(context.Background(), ScopeParent, "42")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "alice", entries[0].User)
	assert.Equal(t, "100", entries[0].RatingKey)
	assert.True(t, entries[0].Watched)
	assert.False(t, entries[1].Watched)
	assert.Equal(t, int64(1700003600), entries[0].Stopped.Unix())
}

func TestClient_ErrorEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":{"result":"error","message":"Invalid apikey","data":{}}}`))
	})

	_, err := c.GetUsers(context.Background())
	require.ErrorIs(t, err, ErrAPIError)
	assert.Contains(t, err.Error(), "Invalid apikey")
}

func TestClient_GetUsers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":{"result":"success","data":[
			{"user_id":1,"username":"alice","friendly_name":"Alice"},
			{"user_id":2,"username":"bob","friendly_name":"Bob"}]}}`))
	})

	users, err := c.GetUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Bob", users[1].FriendlyName)
}

func TestClient_GetMetadataEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":{"result":"success","data":{}}}`))
	})

	md, err := c.GetMetadata(context.Background(), "1")
	require.NoError(t, err)
	assert.Nil(t, md)
}

func TestClient_NotConfigured(t *testing.T) {
	c := NewClient(config.TautulliConfig{}, nil, zerolog.Nop())
	_, err := c.GetHistory(context.Background(), ScopeItem, "1")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
