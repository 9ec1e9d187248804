package conn

import (
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const closeTimeout = time.Second

// Websocket connection wrapper to exchange batch envelopes
type Conn struct {
	ID        string
	c         net.Conn
	In        chan []byte
	Exit      chan interface{}
	closeOnce sync.Once
	writeLock sync.Mutex
	log       *zap.Logger
}

func NewConn(c net.Conn, log *zap.Logger) *Conn {
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.NewString()
	conn := Conn{
		ID:   id,
		c:    c,
		In:   make(chan []byte),
		Exit: make(chan interface{}),
		log:  log.With(zap.String("conn_id", id)),
	}
	conn.GoRead()
	return &conn
}

// Sends ping message to the connection
func (c *Conn) Ping() {
	if !c.isRunning() {
		return
	}
	if err := c.write(ws.OpPing, nil); err != nil {
		c.log.Debug("ping failed", zap.Error(err))
		c.Close()
	}
}

// Closes connection. In is left open for readers racing with Exit.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.Exit)
		c.writeLock.Lock()
		c.c.SetWriteDeadline(time.Now().Add(closeTimeout))
		wsutil.WriteServerMessage(c.c, ws.OpClose, nil)
		c.writeLock.Unlock()
		c.c.Close()
		c.log.Debug("connection closed")
	})
}

// gorutine for reading messages from connection
func (c *Conn) GoRead() {
	go func() {
		for {
			msg, _, err := wsutil.ReadClientData(c.c)
			if err != nil {
				c.Close()
				return
			}
			select {
			case c.In <- msg:
			case <-c.Exit:
				return
			}
		}
	}()
}

// writes data to the connection
func (c *Conn) Send(msg []byte) error {
	if !c.isRunning() {
		return errors.New("cant send data to connection: connection is not running anymore")
	}
	err := c.write(ws.OpText, msg)
	if err != nil {
		c.Close()
	}
	return err
}

// Encodes and sends an Envelope.
func (c *Conn) SendEnvelope(e Envelope) error {
	data, err := EncodeEnvelope(e)
	if err != nil {
		return err
	}
	return c.Send(data)
}

func (c *Conn) write(op ws.OpCode, msg []byte) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	return wsutil.WriteServerMessage(c.c, op, msg)
}

// Checks if connection is still running by reading from conn.Exit chanel.
// When connection is closed Exit chanel will be closed and will return false.
func (c *Conn) isRunning() bool {
	select {
	case _, running := <-c.Exit:
		return running
	default:
	}
	return true
}
