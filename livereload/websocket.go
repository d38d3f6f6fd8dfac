package livereload

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// serve runs a websocket listener until the browser goes away.
func (server *Server) serve(conn *websocket.Conn) {
	listener := newWebsocketListener(server.hub, conn)
	listener.Dispatch(Message{Type: "hello"})
	server.hub.Register(listener)
	go listener.writer()
	listener.reader()
}

type websocketListener struct {
	hub  *Hub
	conn *websocket.Conn
	in   chan Message
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

func newWebsocketListener(hub *Hub, conn *websocket.Conn) *websocketListener {
	return &websocketListener{
		hub:  hub,
		conn: conn,
		in:   make(chan Message, 2),
		done: make(chan struct{}),
	}
}

// reader discards whatever the browser sends and handles control frames.
func (listen *websocketListener) reader() {
	listen.conn.SetReadLimit(512)
	_ = listen.conn.SetReadDeadline(time.Now().Add(pongWait))
	listen.conn.SetPongHandler(func(string) error {
		return listen.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := listen.conn.ReadMessage(); err != nil {
			break
		}
	}
	listen.Close()
}

func (listen *websocketListener) writer() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer listen.conn.Close()
	defer listen.Close()

	for {
		select {
		case m := <-listen.in:
			_ = listen.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := listen.conn.WriteJSON(m); err != nil {
				return
			}
		case <-ticker.C:
			_ = listen.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := listen.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-listen.done:
			_ = listen.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"),
				time.Now().Add(time.Second))
			return
		}
	}
}

// Dispatch queues message for the writer. A listener that cannot keep up is
// closed instead of blocking the hub.
func (listen *websocketListener) Dispatch(message Message) {
	listen.mu.Lock()
	defer listen.mu.Unlock()

	if listen.closed {
		return
	}

	select {
	case listen.in <- message:
	default:
		listen.internalClose()
	}
}

func (listen *websocketListener) Close() {
	listen.mu.Lock()
	defer listen.mu.Unlock()

	listen.internalClose()
}

func (listen *websocketListener) internalClose() {
	if listen.closed {
		return
	}

	listen.closed = true
	close(listen.done)
	listen.hub.Unregister(listen)
}
