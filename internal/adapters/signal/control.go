package signal

import (
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// pongWait is how long a silent peer is tolerated; pings go out every PingPeriod.
func (ctl *SignalWSController) pongWait() time.Duration {
	return ctl.opts.PingPeriod * 10 / 9
}

func (ctl *SignalWSController) keepalive(conn *websocket.Conn) error {
	conn.SetReadLimit(ctl.opts.ReadLimit)
	wait := ctl.pongWait()
	if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return err
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wait))
	})
	return nil
}

func ping(conn *websocket.Conn) error {
	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}
