package webterm

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsMaxPayloadBytes = 1 << 16
	wsWriteWait       = 10 * time.Second
	wsPongWait        = 45 * time.Second
	wsPingInterval    = 20 * time.Second
)

// frame is the wire format exchanged over /ws in both directions.
type frame struct {
	Type    string          `json:"type"`
	Data    string          `json:"data,omitempty"`
	Cols    int             `json:"cols,omitempty"`
	Rows    int             `json:"rows,omitempty"`
	Fonts   json.RawMessage `json:"fonts,omitempty"`
	Message string          `json:"message,omitempty"`
	Event   string          `json:"event,omitempty"`
	Clear   bool            `json:"clear,omitempty"`
}

// ClientCapabilities records a connected browser's rendering
// capabilities, used to decide whether glyph substitution is needed.
type ClientCapabilities struct {
	Fonts json.RawMessage
}

// DebugHandler receives client_debug messages for logging.
type DebugHandler func(message string)

// CapabilitiesHandler is informed of a client's reported capabilities.
type CapabilitiesHandler func(caps ClientCapabilities)

// OutputFilter substitutes characters the connected client cannot
// render before a chunk is sent.
type OutputFilter func(chunk []byte) []byte

// Server is an HTTP server that serves the web terminal's static
// bundle and a single-client /ws endpoint bound to a MirroredTerminal.
type Server struct {
	mu       sync.Mutex
	bridge   *MirroredTerminal
	listener map[string]net.Listener
	logger   *slog.Logger
	upgrader websocket.Upgrader

	connected atomic.Bool

	staticHandler http.Handler
	onDebug       DebugHandler
	onCaps        CapabilitiesHandler
	outputFilter  OutputFilter
}

// NewServer creates a Server that mirrors bridge to at most one
// connected client. staticHandler serves the terminal's static bundle
// at any path other than /ws.
func NewServer(bridge *MirroredTerminal, staticHandler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		bridge:        bridge,
		listener:      make(map[string]net.Listener),
		logger:        logger.With("component", "webterm"),
		staticHandler: staticHandler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// SetDebugHandler installs the callback client_debug messages are
// forwarded to.
func (s *Server) SetDebugHandler(h DebugHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDebug = h
}

// SetCapabilitiesHandler installs the callback invoked when a client
// reports its rendering capabilities.
func (s *Server) SetCapabilitiesHandler(h CapabilitiesHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCaps = h
}

// SetOutputFilter installs a filter applied to every outbound chunk.
func (s *Server) SetOutputFilter(f OutputFilter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputFilter = f
}

func (s *Server) mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	if s.staticHandler != nil {
		mux.Handle("/", s.staticHandler)
	}
	return mux
}

// ApplyBindings diffs addresses against the currently live listener
// set: listeners for addresses no longer present are closed, and newly
// added addresses attempt to bind, with any bind error reported per
// address. Closing a listener does not close a client connection that
// was already accepted on it.
func (s *Server) ApplyBindings(addresses []string) map[string]error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[string]struct{}, len(addresses))
	for _, addr := range addresses {
		wanted[addr] = struct{}{}
	}

	for addr, ln := range s.listener {
		if _, ok := wanted[addr]; !ok {
			ln.Close()
			delete(s.listener, addr)
		}
	}

	errs := make(map[string]error)
	handler := s.mux()
	for _, addr := range addresses {
		if _, ok := s.listener[addr]; ok {
			continue
		}
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			errs[addr] = err
			continue
		}
		s.listener[addr] = ln
		go func() {
			_ = http.Serve(ln, handler)
		}()
	}

	return errs
}

// LiveAddresses returns the addresses currently being served.
func (s *Server) LiveAddresses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	addrs := make([]string, 0, len(s.listener))
	for addr := range s.listener {
		addrs = append(addrs, addr)
	}
	return addrs
}

// Stop closes every listener, clears the bridge's size override and
// requests a full redraw. It does not close a connected client's
// WebSocket, and that client's subscriber stays attached to the bridge.
func (s *Server) Stop() {
	s.mu.Lock()
	for addr, ln := range s.listener {
		ln.Close()
		delete(s.listener, addr)
	}
	s.mu.Unlock()

	s.bridge.ClearSize()
	s.bridge.RequestFullRender(false)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.connected.CompareAndSwap(false, true) {
		http.Error(w, "webterm: a client is already connected", http.StatusConflict)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.connected.Store(false)
		return
	}

	sub, err := s.bridge.Attach()
	if err != nil {
		s.writeStatus(conn, "error", err.Error())
		conn.Close()
		s.connected.Store(false)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	sess := &clientSession{
		server: s,
		conn:   conn,
		sub:    sub,
		ctx:    ctx,
		cancel: cancel,
	}
	sess.run()
}

type clientSession struct {
	server *Server
	conn   *websocket.Conn
	sub    *Subscriber
	ctx    context.Context
	cancel context.CancelFunc
}

func (c *clientSession) run() {
	defer c.close()
	c.writeStatus("connected")

	go c.outputLoop()
	go c.renderLoop()
	c.readLoop()
}

func (c *clientSession) close() {
	c.cancel()
	c.server.bridge.Detach(c.sub)
	c.server.connected.Store(false)
	_ = c.conn.Close()
}

func (c *clientSession) readLoop() {
	c.conn.SetReadLimit(wsMaxPayloadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}

		switch f.Type {
		case "input":
			c.server.bridge.InjectInput([]byte(f.Data))
		case "resize":
			c.server.bridge.SetSize(f.Cols, f.Rows)
			c.server.bridge.RequestFullRender(true)
		case "client_capabilities":
			c.server.mu.Lock()
			handler := c.server.onCaps
			c.server.mu.Unlock()
			if handler != nil {
				handler(ClientCapabilities{Fonts: f.Fonts})
			}
		case "client_debug":
			c.server.mu.Lock()
			handler := c.server.onDebug
			c.server.mu.Unlock()
			if handler != nil {
				handler(f.Message)
			}
		}
	}
}

func (c *clientSession) outputLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case chunk, ok := <-c.sub.Output:
			if !ok {
				return
			}
			c.server.mu.Lock()
			filter := c.server.outputFilter
			c.server.mu.Unlock()
			if filter != nil {
				chunk = filter(chunk)
			}
			c.writeFrame(frame{Type: "output", Data: string(chunk)})
		}
	}
}

func (c *clientSession) renderLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case clear, ok := <-c.sub.FullRenders:
			if !ok {
				return
			}
			c.writeFrame(frame{Type: "status", Event: "full_render", Clear: clear})
		}
	}
}

func (c *clientSession) writeStatus(event string) {
	c.writeFrame(frame{Type: "status", Event: event})
}

func (c *clientSession) writeFrame(f frame) {
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	_ = c.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Server) writeStatus(conn *websocket.Conn, event, message string) {
	data, err := json.Marshal(frame{Type: "status", Event: event, Message: message})
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	_ = conn.WriteMessage(websocket.TextMessage, data)
}
