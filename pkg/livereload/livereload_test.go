package livereload_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/trellis/pkg/livereload"
)

func TestServer_Reload(t *testing.T) {
	t.Parallel()

	s := livereload.New(nil)
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + livereload.Path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return s.Clients() == 1 }, time.Second, 5*time.Millisecond)

	s.Reload()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"reload"}`, string(msg))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return s.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestServer_RejectsPlainHTTP(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	livereload.New(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, livereload.Path, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScript(t *testing.T) {
	t.Parallel()

	script := livereload.Script(livereload.DefaultPort)
	assert.True(t, strings.HasPrefix(script, "<script>"))
	assert.Contains(t, script, `":8282/socket"`)
	assert.Contains(t, script, "location.reload()")
}
