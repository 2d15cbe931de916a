package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrathCole/ocw-bridge/pkg/feeder/tx"
	"github.com/StrathCole/ocw-bridge/pkg/ledger"
	"github.com/StrathCole/ocw-bridge/pkg/logging"
)

func readMessage(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestWebSocket_StreamsBlocksAndPrices(t *testing.T) {
	n := newTestNode(t)
	ws := NewWebSocketServer(10000, logging.NewNoopLogger())
	s := NewServer(Config{}, n.chain, n.module, logging.NewNoopLogger())
	s.SetWebSocketServer(ws)

	srv := newHTTPTestServer(t, s)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "subscribe", Topics: []string{TopicBlocks, TopicPrices}}))
	var ack SubscribedMessage
	readMessage(t, conn, &ack)
	assert.Equal(t, "subscribed", ack.Type)
	assert.Equal(t, []string{TopicBlocks, TopicPrices}, ack.Topics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	blocks, unsubscribe := n.chain.Subscribe(4)
	defer unsubscribe()
	go func() { _ = ws.Run(ctx, blocks) }()

	call, err := tx.SignPrice(n.signer, 420000)
	require.NoError(t, err)
	_, err = n.chain.SubmitTransaction(ctx, ledger.NewUnsignedTransaction(call))
	require.NoError(t, err)
	_, err = n.chain.ProduceBlock(ctx)
	require.NoError(t, err)

	var block struct {
		Type  string `json:"type"`
		Block struct {
			Height uint64 `json:"height"`
		} `json:"block"`
	}
	readMessage(t, conn, &block)
	assert.Equal(t, "block", block.Type)
	assert.Equal(t, uint64(1), block.Block.Height)

	var price NewPriceMessage
	readMessage(t, conn, &price)
	assert.Equal(t, "new_price", price.Type)
	assert.Equal(t, uint64(420000), price.Price)
	assert.Equal(t, "42", price.Decimal)
	require.NotNil(t, price.Origin)
	assert.True(t, n.signer.Public().Equal(*price.Origin))
}

func TestWebSocket_TopicFilter(t *testing.T) {
	n := newTestNode(t)
	ws := NewWebSocketServer(10000, logging.NewNoopLogger())
	s := NewServer(Config{}, n.chain, n.module, logging.NewNoopLogger())
	s.SetWebSocketServer(ws)

	srv := newHTTPTestServer(t, s)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "subscribe", Topics: []string{TopicPrices}}))
	var ack SubscribedMessage
	readMessage(t, conn, &ack)
	assert.Equal(t, []string{TopicPrices}, ack.Topics)

	// a block without events produces nothing on the prices topic
	ws.Broadcast(ledger.Block{Height: 1})

	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "ping"}))
	var pong map[string]string
	readMessage(t, conn, &pong)
	assert.Equal(t, "pong", pong["type"])
	assert.Equal(t, 1, ws.ClientCount())
}
