package node

import (
	"encoding/json"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// BlockSubscriberConfig configures WebSocket subscriber behavior.
type BlockSubscriberConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the backoff between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
}

// DefaultBlockSubscriberConfig returns default subscriber configuration.
func DefaultBlockSubscriberConfig() BlockSubscriberConfig {
	return BlockSubscriberConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       90 * time.Second,
	}
}

// BlockEvent is one new-block notification from the node.
type BlockEvent struct {
	Height    int64 `json:"height"`
	Timestamp int64 `json:"timestamp"`
}

// BlockSubscriber follows the node's block-head WebSocket feed. The
// service layer uses it to drop time-sensitive cache entries (network
// stats) the moment a new block lands, instead of waiting out the TTL.
type BlockSubscriber struct {
	endpoint string
	config   BlockSubscriberConfig
	logger   *log.Logger

	events chan BlockEvent
	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewBlockSubscriber connects to the endpoint and starts the read loop.
// Events are delivered on Events; slow consumers drop notifications
// rather than stalling the feed.
func NewBlockSubscriber(endpoint string, config *BlockSubscriberConfig, logger *log.Logger) *BlockSubscriber {
	cfg := DefaultBlockSubscriberConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	s := &BlockSubscriber{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		events:   make(chan BlockEvent, 16),
		done:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run()

	return s
}

// Events returns the channel of block notifications.
func (s *BlockSubscriber) Events() <-chan BlockEvent {
	return s.events
}

// run connects and reads until Close, reconnecting with exponential
// backoff on any failure.
func (s *BlockSubscriber) run() {
	defer s.wg.Done()
	defer close(s.events)

	delay := s.config.ReconnectDelay

	for {
		select {
		case <-s.done:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(s.endpoint, nil)
		if err != nil {
			s.logger.Printf("block feed: dial %s failed: %v, retrying in %v", s.endpoint, err, delay)
			select {
			case <-s.done:
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > s.config.MaxReconnectDelay {
				delay = s.config.MaxReconnectDelay
			}
			continue
		}

		delay = s.config.ReconnectDelay
		s.readLoop(conn)
		conn.Close()
	}
}

// readLoop reads block events until an error or shutdown.
func (s *BlockSubscriber) readLoop(conn *websocket.Conn) {
	// Close unblocks the pending ReadMessage.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-s.done:
			conn.Close()
		case <-stop:
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout)); err != nil {
			return
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() {
				s.logger.Printf("block feed: read failed: %v, reconnecting", err)
			}
			return
		}

		var event BlockEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			s.logger.Printf("block feed: malformed event: %v", err)
			continue
		}

		select {
		case s.events <- event:
		default:
			// Consumer is behind; cache invalidation is best-effort.
		}
	}
}

// Close stops the subscriber and waits for the read loop to exit.
func (s *BlockSubscriber) Close() {
	if s.closed.Swap(true) {
		return
	}
	close(s.done)
	s.wg.Wait()
}
