package eventstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/StrathCole/ocw-bridge/pkg/metrics"
)

const (
	// maxConsecutiveFailures is the number of consecutive failures before switching node endpoint.
	maxConsecutiveFailures = 3
	// watchdogInterval is how often the stream checks for a stale feed.
	watchdogInterval = 10 * time.Second
	// staleAfter is how long without messages before a failure is counted.
	staleAfter = 45 * time.Second
)

// Stream implements EventStream over a node's websocket block feed.
type Stream struct {
	logger    zerolog.Logger
	websocket *Websocket
	blocks    chan NewBlock
	closeCh   chan struct{}
	closeOnce sync.Once
	last      uint64

	// Failover support
	endpoints           []string
	current             int
	consecutiveFailures int
	failoverMu          sync.Mutex
}

var _ EventStream = (*Stream)(nil)

// NewStream creates a block stream over the given node base URLs. HTTP URLs
// are mapped to their websocket feed.
func NewStream(nodeURLs []string, logger zerolog.Logger) (*Stream, error) {
	if len(nodeURLs) == 0 {
		return nil, fmt.Errorf("%w", ErrNoNodeEndpoint)
	}

	endpoints := make([]string, len(nodeURLs))
	for i, u := range nodeURLs {
		endpoints[i] = FeedURL(u)
	}

	subscribeMsg := map[string]interface{}{
		"type":   "subscribe",
		"topics": []string{"blocks"},
	}

	stream := &Stream{
		logger:    logger.With().Str("component", "eventstream").Logger(),
		websocket: NewWebsocket(endpoints[0], subscribeMsg, logger),
		blocks:    make(chan NewBlock, 10),
		closeCh:   make(chan struct{}),
		endpoints: endpoints,
	}

	if len(endpoints) > 1 {
		stream.logger.Info().
			Int("endpoints", len(endpoints)).
			Str("primary", endpoints[0]).
			Msg("event stream initialized with failover support")
	}

	return stream, nil
}

// FeedURL maps a node base URL to its websocket feed URL.
func FeedURL(base string) string {
	u := strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	if !strings.HasSuffix(u, "/ws") {
		u += "/ws"
	}
	return u
}

// Start begins the event stream loop.
func (s *Stream) Start(ctx context.Context) error {
	s.logger.Info().Msg("starting event stream")

	if err := s.websocket.Start(ctx); err != nil {
		return fmt.Errorf("failed to start websocket: %w", err)
	}

	go s.blockLoop(ctx)
	return nil
}

// blockLoop forwards block announcements and watches for a stale feed.
func (s *Stream) blockLoop(ctx context.Context) {
	lastMessageTime := time.Now()
	watchdogTicker := time.NewTicker(watchdogInterval)
	defer watchdogTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("block loop stopped")
			return
		case <-s.closeCh:
			s.logger.Info().Msg("block loop closed")
			return
		case <-watchdogTicker.C:
			if time.Since(lastMessageTime) > staleAfter {
				s.logger.Warn().
					Dur("since_last_message", time.Since(lastMessageTime)).
					Msg("no messages received recently, connection may be stale")
				s.handleConnectionFailure()
				lastMessageTime = time.Now()
			}
		case msg := <-s.websocket.Messages():
			lastMessageTime = time.Now()

			block, err := ParseBlock(msg)
			if err != nil {
				if errors.Is(err, ErrNotBlockMessage) {
					continue
				}
				s.logger.Error().Err(err).Msg("failed to parse block message, triggering failover")
				s.handleParseFailure()
				continue
			}

			s.failoverMu.Lock()
			s.consecutiveFailures = 0
			s.failoverMu.Unlock()

			if block.Height == s.last {
				continue
			}
			if block.Height < s.last {
				s.logger.Warn().
					Uint64("height", block.Height).
					Uint64("last_height", s.last).
					Msg("block height regressed, node restarted or replaced")
			}
			s.last = block.Height

			select {
			case s.blocks <- block:
			case <-ctx.Done():
				return
			case <-s.closeCh:
				return
			}
		}
	}
}

// ParseBlock decodes a "block" message from the node feed. Messages of any
// other type return ErrNotBlockMessage.
func ParseBlock(msg []byte) (NewBlock, error) {
	var event struct {
		Type  string `json:"type"`
		Block *struct {
			Height uint64    `json:"height"`
			Hash   string    `json:"hash"`
			Time   time.Time `json:"time"`
		} `json:"block"`
	}

	if err := json.Unmarshal(msg, &event); err != nil {
		return NewBlock{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if event.Type != "block" {
		return NewBlock{}, ErrNotBlockMessage
	}
	if event.Block == nil || event.Block.Height == 0 {
		return NewBlock{}, fmt.Errorf("block message without height")
	}

	return NewBlock{
		Height: event.Block.Height,
		Hash:   event.Block.Hash,
		Time:   event.Block.Time,
	}, nil
}

// NewBlocks returns the block channel.
func (s *Stream) NewBlocks() <-chan NewBlock {
	return s.blocks
}

// Close shuts down the event stream.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.logger.Info().Msg("closing event stream")
		close(s.closeCh)
		s.websocket.Close()
	})
}

// handleConnectionFailure tracks failures and switches endpoint if needed.
func (s *Stream) handleConnectionFailure() {
	s.failoverMu.Lock()
	defer s.failoverMu.Unlock()

	s.consecutiveFailures++

	s.logger.Warn().
		Int("consecutive_failures", s.consecutiveFailures).
		Int("max_failures", maxConsecutiveFailures).
		Msg("connection failure detected")

	if s.consecutiveFailures >= maxConsecutiveFailures && len(s.endpoints) > 1 {
		s.switchToNextEndpointLocked()
	}
}

// handleParseFailure switches endpoint immediately.
func (s *Stream) handleParseFailure() {
	s.failoverMu.Lock()
	defer s.failoverMu.Unlock()

	if len(s.endpoints) <= 1 {
		s.logger.Error().Msg("parse failure detected but no alternative node endpoints available")
		return
	}

	s.switchToNextEndpointLocked()
}

// switchToNextEndpointLocked must be called with failoverMu held, from the
// block loop goroutine, which owns last.
func (s *Stream) switchToNextEndpointLocked() {
	oldURL := s.endpoints[s.current]
	s.current = (s.current + 1) % len(s.endpoints)
	newURL := s.endpoints[s.current]

	s.logger.Warn().
		Str("old_endpoint", oldURL).
		Str("new_endpoint", newURL).
		Msg("switching to next node endpoint")

	metrics.RecordNodeFailover()
	s.websocket.UpdateURL(newURL)
	s.consecutiveFailures = 0
	// nodes run independent ledgers, so heights restart on the new one
	s.last = 0
}
