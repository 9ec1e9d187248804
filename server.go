package obatch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gobwas/ws"
	"github.com/kroksys/obatch/batch"
	"github.com/kroksys/obatch/config"
	"github.com/kroksys/obatch/conn"
	"github.com/kroksys/obatch/registry"
	"github.com/kroksys/pool"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultPingPeriod = time.Second * 30
)

// Server answers OData batch requests over HTTP and websockets. Processors
// are registered on the embedded registry.
type Server struct {
	*registry.Registry
	Parser *batch.Parser

	log        *zap.Logger
	conns      *pool.Pool[*conn.Conn]
	pingPeriod time.Duration
}

// Result is an encoded batch response.
type Result struct {
	ContentType string
	Body        []byte
}

// Creates new server with initialised registry
func NewServer(cfg config.Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	pingPeriod := cfg.PingPeriod
	if pingPeriod <= 0 {
		pingPeriod = defaultPingPeriod
	}
	return &Server{
		Registry:   registry.NewRegistry(log.Named("registry")),
		Parser:     batch.NewParser(cfg.BaseURI, cfg.ServiceResolutionURI, cfg.Strict),
		log:        log,
		conns:      pool.NewPool[*conn.Conn](),
		pingPeriod: pingPeriod,
	}
}

// Process parses a batch body, executes it and encodes the multipart response.
// Only violations of the batch envelope are returned as errors; failures of
// single body parts are reported inside the response.
func (s *Server) Process(ctx context.Context, contentType string, body io.Reader) (*Result, error) {
	outcomes, err := s.Parser.ParseEach(body, contentType)
	if err != nil {
		s.log.Info("batch rejected", batchErrorFields(err)...)
		return nil, err
	}
	parts := s.Registry.Execute(ctx, outcomes)
	boundary := batch.NewBoundary("batch")
	var b bytes.Buffer
	if err := batch.WriteResponse(&b, boundary, parts); err != nil {
		return nil, err
	}
	s.log.Debug("batch processed",
		zap.String("batch_id", boundary),
		zap.Int("parts", len(parts)))
	return &Result{
		ContentType: batch.MultipartContentType(boundary),
		Body:        b.Bytes(),
	}, nil
}

// Http handler for POST $batch requests.
func (s *Server) BatchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeResponse(w, registry.ErrorResponse(registry.NewStatusError(http.StatusMethodNotAllowed, "batch requests must use POST")))
		return
	}
	res, err := s.Process(r.Context(), r.Header.Get("Content-Type"), r.Body)
	if err != nil {
		writeResponse(w, registry.ErrorResponse(err))
		return
	}
	w.Header().Set("Content-Type", res.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(res.Body)
}

// Go gin handler for POST $batch requests.
func (s *Server) BatchHandlerGin(g *gin.Context) {
	res, err := s.Process(g.Request.Context(), g.GetHeader("Content-Type"), g.Request.Body)
	if err != nil {
		resp := registry.ErrorResponse(err)
		ct, _ := resp.Header.Get(batch.HeaderContentType)
		g.Data(resp.StatusCode, ct, resp.Body)
		return
	}
	g.Data(http.StatusOK, res.ContentType, res.Body)
}

// Go gin handler upgrading the request to a websocket Conn.
func (s *Server) WebsocketHandlerGin(g *gin.Context) {
	cn, _, _, err := ws.UpgradeHTTP(g.Request, g.Writer)
	if err != nil {
		s.log.Warn("upgrade error", zap.Error(err))
		return
	}
	defer cn.Close()
	s.defaultConnHandler(conn.NewConn(cn, s.log), g.Request.Context())
}

// Http server handler to upgrade net.Conn to websocket Conn and
// forwards connection handling to the connection gorutines.
func (s *Server) WebsocketHandler(w http.ResponseWriter, r *http.Request) {
	cn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.log.Warn("upgrade error", zap.Error(err))
		return
	}
	defer cn.Close()
	s.defaultConnHandler(conn.NewConn(cn, s.log), r.Context())
}

// Closes every open websocket connection.
func (s *Server) Close() {
	s.conns.Each(func(c *conn.Conn) {
		c.Close()
	})
}

// Main handler for websocket Conn. It does ping, reading, writing and
// answering every incoming envelope with the encoded batch response.
func (s *Server) defaultConnHandler(c *conn.Conn, ctx context.Context) {
	id := s.conns.Put(c)
	defer s.conns.Delete(id)
	defer c.Close()
	s.log.Debug("connection opened", zap.String("conn_id", c.ID))
	pinger := time.NewTicker(s.pingPeriod)
	defer pinger.Stop()
	for {
		select {
		case <-pinger.C:
			c.Ping()
		case <-c.Exit:
			return
		case msg := <-c.In:
			go s.handleFrame(ctx, c, msg)
		}
	}
}

func (s *Server) handleFrame(ctx context.Context, c *conn.Conn, msg []byte) {
	in, err := conn.DecodeEnvelope(msg)
	if err != nil {
		s.reply(c, conn.Envelope{}, registry.ErrorResponse(registry.NewStatusError(http.StatusBadRequest, err.Error())))
		return
	}
	res, err := s.Process(ctx, in.ContentType, strings.NewReader(in.Body))
	if err != nil {
		s.reply(c, in, registry.ErrorResponse(err))
		return
	}
	out := conn.Envelope{
		ID:          in.ID,
		Status:      http.StatusOK,
		ContentType: res.ContentType,
		Body:        string(res.Body),
	}
	if err := c.SendEnvelope(out); err != nil {
		s.log.Debug("sending batch response", zap.String("conn_id", c.ID), zap.Error(err))
	}
}

func (s *Server) reply(c *conn.Conn, in conn.Envelope, resp *batch.Response) {
	ct, _ := resp.Header.Get(batch.HeaderContentType)
	out := conn.Envelope{
		ID:          in.ID,
		Status:      resp.StatusCode,
		ContentType: ct,
		Body:        string(resp.Body),
	}
	if err := c.SendEnvelope(out); err != nil {
		s.log.Debug("sending error response", zap.String("conn_id", c.ID), zap.Error(err))
	}
}

func writeResponse(w http.ResponseWriter, resp *batch.Response) {
	for _, f := range resp.Header.Fields() {
		w.Header().Set(f.Name, f.Value())
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}

func batchErrorFields(err error) []zap.Field {
	fields := []zap.Field{zap.Error(err)}
	var e *batch.Error
	if errors.As(err, &e) {
		fields = append(fields,
			zap.Int("line", e.Line),
			zap.String("code", batch.ErrorCodeString(e.Code)))
	}
	return fields
}
