package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var errConnClosed = errors.New("connection closed by client")

// conn is one physical WebSocket connection. The client replaces it on
// every reconnect; listeners live on the client.
type conn struct {
	ws      *websocket.Conn
	logger  *slog.Logger
	config  Config
	onFrame func(Frame)

	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	err       error
	wg        sync.WaitGroup
}

func newConn(ws *websocket.Conn, config Config, logger *slog.Logger, onFrame func(Frame)) *conn {
	return &conn{
		ws:      ws,
		logger:  logger,
		config:  config,
		onFrame: onFrame,
		done:    make(chan struct{}),
	}
}

// start launches the reader and keepalive goroutines.
func (c *conn) start() {
	if c.config.PingInterval > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(c.readTimeout()))
		c.ws.SetPongHandler(func(string) error {
			return c.ws.SetReadDeadline(time.Now().Add(c.readTimeout()))
		})

		c.wg.Add(1)
		go c.pingLoop()
	}

	c.wg.Add(1)
	go c.readLoop()
}

func (c *conn) readTimeout() time.Duration {
	return c.config.PingInterval + c.config.PongTimeout
}

func (c *conn) readLoop() {
	defer c.wg.Done()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.fail(fmt.Errorf("read: %w", err))
			return
		}

		if c.config.PingInterval > 0 {
			_ = c.ws.SetReadDeadline(time.Now().Add(c.readTimeout()))
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Warn("dropping malformed frame", "error", err)
			recordFrameDropped("malformed")
			continue
		}

		recordFrameReceived(frame.Type)
		c.onFrame(frame)
	}
}

func (c *conn) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.config.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.fail(fmt.Errorf("ping: %w", err))
				return
			}
		}
	}
}

func (c *conn) write(frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}

	if c.config.WriteTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		c.fail(fmt.Errorf("write: %w", err))
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// fail tears the connection down once, remembering the first cause.
func (c *conn) fail(err error) {
	c.closeOnce.Do(func() {
		c.err = err
		close(c.done)
		_ = c.ws.Close()
	})
}

// close sends a normal closure frame and releases the socket. It waits
// for the reader to exit, so no frame is dispatched after it returns.
func (c *conn) close() {
	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, deadline)
	c.fail(errConnClosed)
	c.wg.Wait()
}

// cause returns why the connection ended. Only valid after done is closed.
func (c *conn) cause() error {
	<-c.done
	return c.err
}
