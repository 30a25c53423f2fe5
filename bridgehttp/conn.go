package bridgehttp

import (
	"bytes"
	"encoding/json"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// connState mirrors spec.md §3's Connection lifecycle: accepted ->
// buffering -> header-parsed -> body-complete -> dispatched -> closed.
// Writing the response closes the connection, so there is no separate
// response-written state.
type connState int

const (
	stateBuffering connState = iota
	stateHeadersParsed
	stateBodyComplete
	stateDispatched
	stateClosed
)

type conn struct {
	raw       *net.TCPConn
	createdAt time.Time
	state     connState

	buf []byte

	method        string
	path          string
	query         map[string]string
	headers       map[string]string
	contentLength int
	bodyStart     int
	body          []byte
	jsonBody      any
	malformed     bool
	malformedJSON bool
}

// readAvailable performs one short read: whatever bytes are already
// waiting on the socket are appended to buf; if none arrive within a
// millisecond it returns rather than blocking the poll loop.
func (c *conn) readAvailable() error {
	c.raw.SetReadDeadline(time.Now().Add(time.Millisecond))
	tmp := make([]byte, 4096)
	for {
		n, err := c.raw.Read(tmp)
		if n > 0 {
			c.buf = append(c.buf, tmp[:n]...)
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil
			}
			// EOF or a half-closed peer: parse whatever was received.
			return nil
		}
		if n < len(tmp) {
			return nil
		}
	}
}

// tryParseHeaders looks for the byte-indexed \r\n\r\n boundary (spec.md
// §3's UTF-8-byte-indexed requirement) and, once found, parses the
// request line, query string, and headers.
func (c *conn) tryParseHeaders() {
	idx := bytes.Index(c.buf, []byte("\r\n\r\n"))
	if idx < 0 {
		return
	}

	lines := strings.Split(string(c.buf[:idx]), "\r\n")
	requestLine := strings.Fields(lines[0])
	if len(requestLine) < 2 {
		c.malformed = true
		c.bodyStart = idx + 4
		c.state = stateBodyComplete
		return
	}

	c.method = strings.ToUpper(requestLine[0])
	c.path, c.query = splitPathQuery(requestLine[1])

	c.headers = map[string]string{}
	for _, line := range lines[1:] {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		c.headers[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	if cl, ok := c.headers["content-length"]; ok {
		if n, err := strconv.Atoi(cl); err == nil && n >= 0 {
			c.contentLength = n
		}
	}

	c.bodyStart = idx + 4
	c.state = stateHeadersParsed
}

// tryParseBody waits for contentLength bytes past bodyStart, then, for a
// application/json content-type, parses the body eagerly so a malformed
// POST body is caught before dispatch (spec.md §4.1's 400 rule).
func (c *conn) tryParseBody() {
	have := len(c.buf) - c.bodyStart
	if have < c.contentLength {
		return
	}
	c.body = c.buf[c.bodyStart : c.bodyStart+c.contentLength]

	if len(c.body) > 0 && strings.Contains(c.headers["content-type"], "application/json") {
		var parsed any
		if err := json.Unmarshal(c.body, &parsed); err != nil {
			c.malformed = true
			c.malformedJSON = true
		} else {
			c.jsonBody = parsed
		}
	}
	c.state = stateBodyComplete
}

// splitPathQuery splits a request-target into its path and a
// percent-decoded query map.
func splitPathQuery(target string) (string, map[string]string) {
	u, err := url.ParseRequestURI(target)
	if err != nil {
		return target, map[string]string{}
	}
	query := map[string]string{}
	for k, values := range u.Query() {
		if len(values) > 0 {
			query[k] = values[0]
		}
	}
	return u.Path, query
}
