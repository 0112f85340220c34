package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"contractforge/internal/domain/entity"
)

const (
	frameLog    = "log"
	frameResult = "result"
	frameError  = "error"

	streamWriteWait = 10 * time.Second
)

type streamFrame struct {
	Type    string `json:"type"`
	Line    string `json:"line,omitempty"`
	Success bool   `json:"success,omitempty"`
	*entity.CompileResult
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// streamConn serialises frame writes; compiler output arrives on the
// toolchain's output goroutine.
type streamConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *streamConn) send(frame streamFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return c.conn.WriteJSON(frame)
}

func (c *streamConn) close(code int, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, text)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
	_ = c.conn.Close()
}

// GET /api/compile-contract/stream
//
// The client sends one compile request as JSON; compiler output is relayed
// as log frames followed by a single result or error frame.
func (h *ContractHandler) handleCompileStream(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	conn := &streamConn{conn: ws}

	var req entity.CompileRequest
	if err := ws.ReadJSON(&req); err != nil {
		_ = conn.send(streamFrame{Type: frameError, Error: errBadBody, Details: err.Error()})
		conn.close(websocket.CloseUnsupportedData, errBadBody)
		return
	}

	// A client that goes away cancels the compile.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	onLine := func(line string) {
		if err := conn.send(streamFrame{Type: frameLog, Line: line}); err != nil {
			cancel()
		}
	}

	result, err := h.compile.Compile(ctx, req, onLine)
	if err != nil {
		_, summary, details := compileFailure(err)
		_ = conn.send(streamFrame{Type: frameError, Error: summary, Details: details})
		conn.close(websocket.CloseNormalClosure, "")
		return
	}

	_ = conn.send(streamFrame{Type: frameResult, Success: true, CompileResult: result})
	conn.close(websocket.CloseNormalClosure, "")
}
