package broadcast

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sitescout/discovery/internal/logging"
)

// pingInterval keeps the connection alive through idle proxies, mirroring
// the teacher's handshake-timeout-bounded dialer in internal/websocket.
const pingInterval = 30 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Transport serves a project's progress events over a WebSocket, upgrading
// each incoming HTTP connection and streaming Events from the Broadcaster
// until the client disconnects.
type Transport struct {
	broadcaster *Broadcaster
	log         *logging.Logger
}

// NewTransport creates a Transport bound to broadcaster. log may be nil.
func NewTransport(broadcaster *Broadcaster, log *logging.Logger) *Transport {
	if log == nil {
		log = logging.Nop()
	}
	return &Transport{broadcaster: broadcaster, log: log}
}

// ServeProject upgrades the request to a WebSocket and streams projectID's
// progress events until the connection closes. It first replays the
// current snapshot (if any) so a client connecting mid-crawl isn't left
// blank until the next update.
func (t *Transport) ServeProject(w http.ResponseWriter, r *http.Request, projectID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.log.Warnf("broadcast: upgrade failed for project %s: %v", projectID, err)
		return
	}
	defer conn.Close()

	events, cancel := t.broadcaster.Subscribe(projectID)
	defer cancel()

	if snap, ok := t.broadcaster.Snapshot(projectID); ok {
		_ = writeEvent(conn, toEvent(snap, time.Now()))
	}

	readerClosed := make(chan struct{})
	go t.drainReads(conn, readerClosed)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readerClosed:
			return
		}
	}
}

// drainReads discards any client-sent frames (this is a push-only
// channel) and signals closed when the peer disconnects.
func (t *Transport) drainReads(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
