package dev

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/pageforge/internal/errors"
	"github.com/vango-dev/pageforge/pkg/engine"
)

const (
	writeWait = time.Second

	// sendBuffer is the number of messages queued per browser. A browser
	// that falls this far behind is disconnected and reconnects.
	sendBuffer = 16
)

// ReloadMessageType is the kind of a reload message.
type ReloadMessageType string

const (
	ReloadTypeFull  ReloadMessageType = "reload"
	ReloadTypeCSS   ReloadMessageType = "css"
	ReloadTypeError ReloadMessageType = "error"
	ReloadTypeClear ReloadMessageType = "clear"
)

// ReloadMessage is one JSON frame on the reload socket.
type ReloadMessage struct {
	Type ReloadMessageType `json:"type"`

	// File is the stylesheet name for css messages and the changed path
	// for reload messages.
	File string `json:"file,omitempty"`

	// Error fields are set on error messages.
	Error    string   `json:"error,omitempty"`
	Code     string   `json:"code,omitempty"`
	Location string   `json:"location,omitempty"`
	Fragment string   `json:"fragment,omitempty"`
	Chain    []string `json:"chain,omitempty"`
}

type reloadClient struct {
	conn *websocket.Conn
	send chan []byte
}

// write drains the client's queue. gorilla connections allow one writer,
// so each client has its own.
func (c *reloadClient) write() {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.conn.Close()
			return
		}
	}
}

// ReloadServer pushes reload and error messages to connected browsers.
type ReloadServer struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[*reloadClient]struct{}
}

// NewReloadServer creates a reload server with no clients.
func NewReloadServer(logger *slog.Logger) *ReloadServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReloadServer{
		logger:  logger.With("component", "reload"),
		clients: make(map[*reloadClient]struct{}),
		upgrader: websocket.Upgrader{
			// The dev server is local; pages may be opened under any host name.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// HandleWebSocket upgrades the request and keeps the client registered
// until its connection closes.
func (r *ReloadServer) HandleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Debug("upgrade failed", "error", err)
		return
	}
	c := &reloadClient{conn: conn, send: make(chan []byte, sendBuffer)}
	r.mu.Lock()
	r.clients[c] = struct{}{}
	r.mu.Unlock()
	r.logger.Debug("client connected", "remote", req.RemoteAddr)

	go c.write()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	r.remove(c)
}

func (r *ReloadServer) remove(c *reloadClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[c]; !ok {
		return
	}
	delete(r.clients, c)
	close(c.send)
	c.conn.Close()
}

// NotifyReload asks every browser to reload the page.
func (r *ReloadServer) NotifyReload() {
	r.broadcast(ReloadMessage{Type: ReloadTypeFull})
}

// NotifyCSS asks every browser to refetch its stylesheets.
func (r *ReloadServer) NotifyCSS(file string) {
	r.broadcast(ReloadMessage{Type: ReloadTypeCSS, File: file})
}

// NotifyError shows err in the browser overlay.
func (r *ReloadServer) NotifyError(err *errors.Error) {
	msg := ReloadMessage{
		Type:     ReloadTypeError,
		Error:    err.FormatCompact(),
		Code:     err.Code,
		Fragment: err.Fragment,
		Chain:    err.Chain,
	}
	if err.Detail != "" {
		msg.Error += "\n" + err.Detail
	}
	if err.Location != nil {
		msg.Location = err.Location.String()
	}
	r.broadcast(msg)
}

// ClearError removes the browser overlay.
func (r *ReloadServer) ClearError() {
	r.broadcast(ReloadMessage{Type: ReloadTypeClear})
}

// HandleInvalidation maps a handled change to a browser message. Register
// it with engine.OnInvalidate.
func (r *ReloadServer) HandleInvalidation(inv engine.Invalidation) {
	switch {
	case inv.Err != nil:
		r.NotifyError(errors.Classify(inv.Err))
	case filepath.Ext(inv.Path) == ".css":
		r.NotifyCSS(filepath.Base(inv.Path))
	default:
		r.broadcast(ReloadMessage{Type: ReloadTypeFull, File: inv.Path})
	}
}

// broadcast queues msg for every client without blocking on any of them.
func (r *ReloadServer) broadcast(msg ReloadMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("encode reload message", "error", err)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.clients {
		select {
		case c.send <- data:
		default:
			// The read loop sees the closed connection and removes c.
			c.conn.Close()
		}
	}
	r.logger.Debug("broadcast", "type", msg.Type, "clients", len(r.clients))
}

// ClientCount returns the number of connected browsers.
func (r *ReloadServer) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Close disconnects every browser.
func (r *ReloadServer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.clients {
		delete(r.clients, c)
		close(c.send)
		c.conn.Close()
	}
}

// DevClientScript is injected before </body> of served pages. It reconnects
// with backoff and renders error messages as an overlay.
const DevClientScript = `
<script>
(function () {
  var delay = 500;
  var OVERLAY = 'pageforge-error-overlay';

  function clearOverlay() {
    var el = document.getElementById(OVERLAY);
    if (el) el.remove();
  }

  function line(text, css) {
    var el = document.createElement('div');
    el.textContent = text;
    if (css) el.style.cssText = css;
    return el;
  }

  function showOverlay(msg) {
    clearOverlay();
    var box = document.createElement('div');
    box.id = OVERLAY;
    box.style.cssText = 'position:fixed;inset:0;z-index:2147483647;overflow:auto;padding:24px;' +
      'background:rgba(20,20,20,.95);color:#eee;font:14px/1.5 monospace;white-space:pre-wrap;';
    box.appendChild(line((msg.code || 'Error') + (msg.location ? '  ' + msg.location : ''), 'color:#ff6b6b;font-weight:bold;'));
    if (msg.fragment) box.appendChild(line('near: ' + msg.fragment, 'color:#f0c674;'));
    (msg.chain || []).forEach(function (p, i) {
      box.appendChild(line((i ? '  -> ' : '  ') + p, 'color:#8abeb7;'));
    });
    box.appendChild(line(msg.error, 'margin-top:12px;'));
    document.body.appendChild(box);
  }

  function reloadCSS() {
    document.querySelectorAll('link[rel="stylesheet"]').forEach(function (link) {
      var url = new URL(link.href);
      url.searchParams.set('_pf', Date.now());
      link.href = url.toString();
    });
  }

  function connect() {
    var proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
    var ws = new WebSocket(proto + '//' + location.host + '/__pageforge/reload');
    ws.onopen = function () { delay = 500; };
    ws.onmessage = function (ev) {
      var msg;
      try { msg = JSON.parse(ev.data); } catch (e) { return; }
      if (msg.type === 'reload') location.reload();
      else if (msg.type === 'css') reloadCSS();
      else if (msg.type === 'error') showOverlay(msg);
      else if (msg.type === 'clear') clearOverlay();
    };
    ws.onclose = function () {
      setTimeout(connect, delay);
      delay = Math.min(delay * 2, 10000);
    };
  }

  if (document.readyState === 'loading') document.addEventListener('DOMContentLoaded', connect);
  else connect();
})();
</script>
`
