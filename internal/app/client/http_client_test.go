package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	gosync "sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradekeeper/internal/app/client/config"
)

func newTestHTTPClient(t *testing.T, handler http.Handler) *httpClient {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	cl, err := NewHTTPClient(&config.Config{
		ServerAddress: strings.TrimPrefix(ts.URL, "http://"),
	}, discardLogger())
	require.NoError(t, err)

	return cl
}

func TestHTTPClient_AuthorizationHeader(t *testing.T) {
	var gotAuth string
	cl := newTestHTTPClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"status":"Ok","data":{}}`))
	}))

	cl.SetToken("tok-123")
	_, err := cl.GetSyncStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestHTTPClient_ConcurrentTokenAccess(t *testing.T) {
	cl := newTestHTTPClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"Ok","data":{}}`))
	}))

	// Вход пользователя может переустановить токен, пока фоновая
	// синхронизация ходит в сеть
	var wg gosync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			cl.SetToken("tok-next")
		}()
		go func() {
			defer wg.Done()
			_, err := cl.GetSyncStatus(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, "tok-next", cl.Token())
}
