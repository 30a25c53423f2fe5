package bridgehttp

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Godeaux/Godot-AI-Bridge/logger"
)

// Server is the non-blocking HTTP/1.1 acceptor spec.md §4.1 describes.
// Tick must be called once per engine frame; it never waits on a request,
// only up to a millisecond per accept and per connection read.
type Server struct {
	mu       sync.Mutex
	listener *net.TCPListener
	routes   map[string]HandlerFunc
	conns    map[*conn]struct{}
	timeout  time.Duration
	log      *logger.Logger
}

// NewServer binds to host:port and returns a Server ready for Register
// calls and Tick-driven scheduling.
func NewServer(host string, port int, timeout time.Duration, log *logger.Logger) (*Server, error) {
	addr, err := net.ResolveTCPAddr("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("bridgehttp: resolve address: %w", err)
	}
	ln, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bridgehttp: listen: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Server{
		listener: ln,
		routes:   map[string]HandlerFunc{},
		conns:    map[*conn]struct{}{},
		timeout:  timeout,
		log:      log,
	}, nil
}

// Register installs handler for "METHOD /path". Registering the same key
// twice replaces the earlier handler.
func (s *Server) Register(method, path string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[routeKey(method, path)] = handler
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Close stops accepting new connections and closes every live one.
func (s *Server) Close() error {
	err := s.listener.Close()
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		s.closeConn(c)
	}
	return err
}

// Tick is one scheduling pass (spec.md §4.1's scheduling model): accept
// pending connections, poll every live connection, and dispatch any
// connection whose request just finished parsing.
func (s *Server) Tick() {
	s.acceptPending()
	s.pollConnections()
}

func (s *Server) acceptPending() {
	// A deadline already in the past makes Accept fail without looking at
	// the queue, so allow a one-millisecond window.
	s.listener.SetDeadline(time.Now().Add(time.Millisecond))
	for {
		raw, err := s.listener.AcceptTCP()
		if err != nil {
			return
		}
		raw.SetNoDelay(true)
		c := &conn{raw: raw, createdAt: time.Now()}
		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.mu.Unlock()
	}
}

func (s *Server) pollConnections() {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if c.state == stateDispatched || c.state == stateClosed {
			continue
		}
		if time.Since(c.createdAt) > s.timeout {
			s.closeConn(c)
			continue
		}
		if err := c.readAvailable(); err != nil {
			s.closeConn(c)
			continue
		}
		if c.state == stateBuffering {
			c.tryParseHeaders()
		}
		if c.state == stateHeadersParsed {
			c.tryParseBody()
		}
		if c.state == stateBodyComplete {
			s.dispatch(c)
		}
	}
}

func (s *Server) dispatch(c *conn) {
	c.state = stateDispatched

	if c.malformed {
		message := "malformed request"
		if c.malformedJSON {
			message = "Invalid JSON in request body"
		}
		s.writeJSON(c, http.StatusBadRequest, map[string]any{"error": message})
		return
	}

	s.mu.Lock()
	handler, ok := s.routes[routeKey(c.method, c.path)]
	s.mu.Unlock()
	if !ok {
		s.writeJSON(c, http.StatusNotFound, map[string]any{
			"error":  "route not found",
			"path":   c.path,
			"method": c.method,
		})
		return
	}

	req := Request{
		Method:  c.method,
		Path:    c.path,
		Query:   c.query,
		Headers: c.headers,
		Body:    c.body,
		JSON:    c.jsonBody,
	}

	// The handler may suspend on an enginehost.Clock channel; running it
	// on its own goroutine lets it do that without stalling Tick, which
	// must keep polling every other connection every frame.
	go func() {
		result, panicked := s.invoke(handler, req)
		if panicked {
			s.writeJSON(c, http.StatusInternalServerError, result)
			return
		}
		s.writeResult(c, result)
	}()
}

// invoke calls handler, converting a panic into the Internal error body
// spec.md §7's propagation policy requires — the one failure mode that
// does surface as a non-200 status.
func (s *Server) invoke(handler HandlerFunc, req Request) (result any, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			if s.log != nil {
				s.log.Error("route handler panicked", "method", req.Method, "path", req.Path, "recover", r)
			}
			result = map[string]any{"error": fmt.Sprintf("Internal: %v", r)}
			panicked = true
		}
	}()
	return handler(req), false
}

func (s *Server) writeResult(c *conn, result any) {
	switch v := result.(type) {
	case nil:
		s.writeJSON(c, http.StatusOK, map[string]any{"ok": true})
	case string:
		s.writeRaw(c, http.StatusOK, "text/plain; charset=utf-8", []byte(v))
	case []byte:
		s.writeRaw(c, http.StatusOK, "application/octet-stream", v)
	default:
		s.writeJSON(c, http.StatusOK, v)
	}
}

func (s *Server) writeJSON(c *conn, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		body = []byte(`{"error":"failed to encode response"}`)
		status = http.StatusInternalServerError
	}
	s.writeRaw(c, status, "application/json", body)
}

func (s *Server) writeRaw(c *conn, status int, contentType string, body []byte) {
	header := fmt.Sprintf(
		"HTTP/1.1 %d %s\r\nContent-Type: %s\r\nContent-Length: %d\r\nAccess-Control-Allow-Origin: *\r\nConnection: close\r\n\r\n",
		status, http.StatusText(status), contentType, len(body),
	)
	c.raw.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := c.raw.Write([]byte(header)); err == nil {
		c.raw.Write(body)
	}
	s.closeConn(c)
}

func (s *Server) closeConn(c *conn) {
	c.raw.Close()
	c.state = stateClosed
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func routeKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}
