package main

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func EchoHandler(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Print("upgrade:", err)
		return
	}
	defer c.Close()
	for {
		mt, message, err := c.ReadMessage()
		if err != nil {
			log.Println("read:", err)
			break
		}
		log.Printf("recv: %s", message)
		err = c.WriteMessage(mt, message)
		if err != nil {
			log.Println("write:", err)
			break
		}
	}
}

// WebRTCSignalHandler relays SDP/ICE between a dashboard and the conductor.
// Inbound messages are offers or candidates; everything the conductor emits
// (answer, trickled candidates) flows back over the same socket.
func WebRTCSignalHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Print("upgrade:", err)
		return
	}
	defer conn.Close()

	msgs := make(chan string, 1)

	go func(conn *websocket.Conn, msgs chan string) {
		for {
			msg := <-msgs
			conn.WriteMessage(websocket.TextMessage, []byte(msg))
		}
	}(conn, msgs)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			log.Println("read:", err)
			break
		}

		if _, err := ENV.Conductor.ReceiveOffer(string(msg), msgs); err != nil {
			log.Println("signal:", err)
		}
	}
}
