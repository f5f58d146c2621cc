package socket

import "golang.org/x/net/websocket"

// WebSocketHandler serves the framed byte stream over binary websocket messages.
// Frames may span websocket messages; the stream is reassembled the same way as TCP.
// Each connection is passed to handler with the request context.
func WebSocketHandler(handler Handler) websocket.Handler {
	return func(ws *websocket.Conn) {
		ws.PayloadType = websocket.BinaryFrame
		handler.Handle(ws.Request().Context(), ws)
	}
}
