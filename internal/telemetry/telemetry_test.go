package telemetry

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-status-backend/internal/tracker"
)

type recordingRecorder struct {
	mu  sync.Mutex
	got []string
}

func (r *recordingRecorder) Record(ctx context.Context, raw string) (tracker.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, raw)
	return tracker.Result{}, nil
}

func (r *recordingRecorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func TestIngestor_PreservesOrder(t *testing.T) {
	rec := &recordingRecorder{}
	ing := NewIngestor(rec, 16, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ing.Run(ctx) }()

	sent := []string{"slot1:ocupada", "slot2:ocupada", "slot1:livre"}
	for _, raw := range sent {
		require.True(t, ing.Submit(context.Background(), raw))
	}

	assert.Eventually(t, func() bool { return len(rec.messages()) == len(sent) }, time.Second, 10*time.Millisecond)
	assert.Equal(t, sent, rec.messages())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ingestor did not stop")
	}
}

func TestIngestor_SubmitDropsWhenFull(t *testing.T) {
	ing := NewIngestor(&recordingRecorder{}, 1, nil, nil)

	assert.True(t, ing.Submit(context.Background(), "slot1:ocupada"))
	assert.False(t, ing.Submit(context.Background(), "slot1:livre"))
}

func TestHandler_ServeWS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := &recordingRecorder{}
	ing := NewIngestor(rec, 16, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ing.Run(ctx)

	router := gin.New()
	router.GET("/ws/telemetry", NewHandler(ing, nil, nil).ServeWS)
	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/telemetry"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("vaga1:ocupada")))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x01}))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("vaga1:livre")))

	assert.Eventually(t, func() bool { return len(rec.messages()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"vaga1:ocupada", "vaga1:livre"}, rec.messages())
}

func TestHandler_RejectsForeignOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws/telemetry", NewHandler(NewIngestor(&recordingRecorder{}, 1, nil, nil), []string{"https://parking.example"}, nil).ServeWS)
	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/telemetry"
	header := map[string][]string{"Origin": {"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)
}
