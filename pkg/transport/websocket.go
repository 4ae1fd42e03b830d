package transport

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openwidget/chat/pkg/protocol"
)

const (
	outgoingBuffer = 100
	incomingBuffer = 100
	writeTimeout   = 10 * time.Second
	handshakeWait  = 10 * time.Second
)

// Conn is a websocket connection to the chat gateway. It turns the socket
// lifecycle into synthetic protocol events (CONNECTING, OPEN, CLOSE) on the
// same incoming channel as real gateway frames, so the consumer runs one
// loop. Reconnects happen automatically with exponential backoff until
// DisableAutoReconnect is called.
type Conn struct {
	mu           sync.RWMutex
	ws           *websocket.Conn
	url          string
	connected    bool
	reconnecting bool

	autoReconnect     bool
	reconnectDelay    time.Duration
	maxReconnectDelay time.Duration

	incoming chan *protocol.Frame
	outgoing chan string
	errors   chan error

	shutdown chan struct{}
	closed   bool
	wg       sync.WaitGroup

	logger *log.Logger
}

// New creates an unconnected Conn.
func New() *Conn {
	return &Conn{
		autoReconnect:     true,
		reconnectDelay:    time.Second,
		maxReconnectDelay: 30 * time.Second,
		incoming:          make(chan *protocol.Frame, incomingBuffer),
		outgoing:          make(chan string, outgoingBuffer),
		errors:            make(chan error, 10),
		shutdown:          make(chan struct{}),
	}
}

// SetLogger sets a logger for connection events.
func (c *Conn) SetLogger(logger *log.Logger) {
	c.logger = logger
}

func (c *Conn) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

// Incoming returns the channel carrying gateway frames and synthetic
// lifecycle events.
func (c *Conn) Incoming() <-chan *protocol.Frame {
	return c.incoming
}

// Errors returns the channel for connection errors.
func (c *Conn) Errors() <-chan error {
	return c.errors
}

// IsConnected reports whether the socket is currently up.
func (c *Conn) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// DisableAutoReconnect stops any further reconnect attempts. The current
// connection stays up until it drops on its own.
func (c *Conn) DisableAutoReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoReconnect = false
}

// Connect dials the gateway. Dialing happens on a background goroutine; the
// outcome arrives as a synthetic OPEN or CLOSE event.
func (c *Conn) Connect(url string) {
	c.mu.Lock()
	c.url = url
	if c.connected {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	go func() {
		if err := c.dial(); err != nil {
			c.logf("connect to %s failed: %v", url, err)
			c.handleDisconnect(err)
		}
	}()
}

func (c *Conn) dial() error {
	c.mu.RLock()
	url := c.url
	c.mu.RUnlock()

	c.emitSynthetic(protocol.EventConnecting, nil)

	dialer := websocket.Dialer{HandshakeTimeout: handshakeWait}
	ws, _, err := dialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ws.Close()
		return nil
	}
	c.ws = ws
	c.connected = true
	c.mu.Unlock()

	c.logf("connected to %s", url)
	c.emitSynthetic(protocol.EventOpen, nil)

	c.wg.Add(2)
	go c.readLoop(ws)
	go c.writeLoop(ws)
	return nil
}

// Send formats and queues one outbound frame.
func (c *Conn) Send(name protocol.EventName, payload interface{}) error {
	line, err := protocol.FormatFrame(name, payload)
	if err != nil {
		return fmt.Errorf("format %s: %w", name, err)
	}
	select {
	case c.outgoing <- line:
		return nil
	case <-c.shutdown:
		return fmt.Errorf("connection closed")
	default:
		return fmt.Errorf("outgoing queue full")
	}
}

// Close shuts the connection down permanently.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.autoReconnect = false
	c.connected = false
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	close(c.shutdown)
	if ws != nil {
		ws.Close()
	}
	// incoming and errors stay open; reconnect and dial goroutines may
	// still be emitting. Consumers stop on their own loop's shutdown.
	c.wg.Wait()
}

func (c *Conn) readLoop(ws *websocket.Conn) {
	defer c.wg.Done()
	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			select {
			case <-c.shutdown:
			default:
				c.logf("read error: %v", err)
				c.handleDisconnect(err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		frame, err := protocol.ParseFrame(string(data))
		if err != nil {
			c.logf("dropping malformed frame: %v", err)
			continue
		}
		select {
		case c.incoming <- frame:
		case <-c.shutdown:
			return
		}
	}
}

func (c *Conn) writeLoop(ws *websocket.Conn) {
	defer c.wg.Done()
	for {
		select {
		case line := <-c.outgoing:
			ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				c.logf("write error: %v", err)
				select {
				case c.errors <- fmt.Errorf("write: %w", err):
				default:
				}
				c.handleDisconnect(err)
				return
			}
		case <-c.shutdown:
			return
		}
	}
}

// handleDisconnect tears down the socket, reports the loss as a synthetic
// CLOSE carrying the retry hint, and kicks off the reconnect loop.
func (c *Conn) handleDisconnect(cause error) {
	c.mu.Lock()
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
	c.connected = false
	retry := c.autoReconnect && !c.closed
	delay := c.reconnectDelay
	c.mu.Unlock()

	select {
	case c.errors <- cause:
	default:
	}

	var retryMilli int64
	if retry {
		retryMilli = delay.Milliseconds()
	}
	c.emitSynthetic(protocol.EventClose, &protocol.Close{RetryMilli: retryMilli})

	if retry {
		go c.reconnectLoop()
	}
}

// reconnectLoop retries the dial with exponential backoff until it
// succeeds, the connection closes, or auto-reconnect gets disabled.
func (c *Conn) reconnectLoop() {
	c.mu.Lock()
	if c.reconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	delay := c.reconnectDelay
	attempt := 1
	for {
		select {
		case <-c.shutdown:
			return
		case <-time.After(delay):
			c.mu.RLock()
			enabled := c.autoReconnect && !c.closed
			c.mu.RUnlock()
			if !enabled {
				return
			}

			c.logf("reconnect attempt %d", attempt)
			if err := c.dial(); err != nil {
				delay *= 2
				if delay > c.maxReconnectDelay {
					delay = c.maxReconnectDelay
				}
				attempt++
				continue
			}
			return
		}
	}
}

// emitSynthetic injects a lifecycle event into the incoming stream.
func (c *Conn) emitSynthetic(name protocol.EventName, payload interface{}) {
	line, err := protocol.FormatFrame(name, payload)
	if err != nil {
		return
	}
	frame, err := protocol.ParseFrame(line)
	if err != nil {
		return
	}
	select {
	case c.incoming <- frame:
	default:
		c.logf("incoming queue full, dropping %s", name)
	}
}
