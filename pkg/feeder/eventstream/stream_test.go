package eventstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBlock(t *testing.T) {
	tests := []struct {
		name    string
		msg     string
		want    uint64
		wantErr error
		anyErr  bool
	}{
		{
			name: "block",
			msg:  `{"type":"block","block":{"height":7,"hash":"0xab","time":"2024-01-01T00:00:00Z"}}`,
			want: 7,
		},
		{
			name:    "price event is skipped",
			msg:     `{"type":"new_price","price":420000}`,
			wantErr: ErrNotBlockMessage,
		},
		{
			name:   "missing height",
			msg:    `{"type":"block","block":{"hash":"0xab"}}`,
			anyErr: true,
		},
		{
			name:   "malformed",
			msg:    `{"type":`,
			anyErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := ParseBlock([]byte(tt.msg))
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, b.Height)
			}
		})
	}
}

func TestFeedURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8080/ws", FeedURL("http://localhost:8080"))
	assert.Equal(t, "wss://node.example/ws", FeedURL("https://node.example/"))
	assert.Equal(t, "ws://node:1/ws", FeedURL("ws://node:1/ws"))
}

func TestNewStreamRequiresEndpoint(t *testing.T) {
	_, err := NewStream(nil, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNoNodeEndpoint)
}

// feedServer accepts one subscriber and writes the given messages after the
// subscribe request.
func feedServer(t *testing.T, messages ...string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub map[string]interface{}
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribed","topics":["blocks"]}`))
		for _, m := range messages {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(m))
		}
		// keep the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestStream_DeliversBlocksInOrder(t *testing.T) {
	srv := feedServer(t,
		`{"type":"block","block":{"height":1,"hash":"0x01"}}`,
		`{"type":"new_price","price":1}`,
		`{"type":"block","block":{"height":2,"hash":"0x02"}}`,
		`{"type":"block","block":{"height":2,"hash":"0x02"}}`,
		`{"type":"block","block":{"height":3,"hash":"0x03"}}`,
	)
	defer srv.Close()

	s, err := NewStream([]string{srv.URL}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))
	defer s.Close()

	var heights []uint64
	timeout := time.After(5 * time.Second)
	for len(heights) < 3 {
		select {
		case b := <-s.NewBlocks():
			heights = append(heights, b.Height)
		case <-timeout:
			t.Fatalf("timed out, got %v", heights)
		}
	}
	assert.Equal(t, []uint64{1, 2, 3}, heights)
}

func TestStream_ForwardsRegressedHeights(t *testing.T) {
	srv := feedServer(t,
		`{"type":"block","block":{"height":8,"hash":"0x08"}}`,
		`{"type":"block","block":{"height":9,"hash":"0x09"}}`,
		`{"type":"block","block":{"height":1,"hash":"0xa1"}}`,
		`{"type":"block","block":{"height":1,"hash":"0xa1"}}`,
		`{"type":"block","block":{"height":2,"hash":"0xa2"}}`,
	)
	defer srv.Close()

	s, err := NewStream([]string{srv.URL}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))
	defer s.Close()

	var heights []uint64
	timeout := time.After(5 * time.Second)
	for len(heights) < 4 {
		select {
		case b := <-s.NewBlocks():
			heights = append(heights, b.Height)
		case <-timeout:
			t.Fatalf("timed out, got %v", heights)
		}
	}
	assert.Equal(t, []uint64{8, 9, 1, 2}, heights)
}

func TestStream_ParseFailureSwitchesEndpoint(t *testing.T) {
	s, err := NewStream([]string{"http://a:1", "http://b:2"}, zerolog.Nop())
	require.NoError(t, err)

	s.last = 7
	s.handleParseFailure()
	assert.Equal(t, "ws://b:2/ws", s.websocket.URL())
	assert.Zero(t, s.last, "heights restart on another node")

	for i := 0; i < maxConsecutiveFailures; i++ {
		s.handleConnectionFailure()
	}
	assert.Equal(t, "ws://a:1/ws", s.websocket.URL())
}
