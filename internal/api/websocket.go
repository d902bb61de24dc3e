package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"exchange-core/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// websocket streams strategy signals, recorded intents and connector mode
// changes to the UI.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	signals, unsubSignals := s.Bus.Subscribe(events.EventSignal, 100)
	defer unsubSignals()
	intents, unsubIntents := s.Bus.Subscribe(events.EventIntentCreated, 100)
	defer unsubIntents()
	modes, unsubModes := s.Bus.Subscribe(events.EventConnectorMode, 100)
	defer unsubModes()

	type frame struct {
		Topic   events.Event `json:"topic"`
		Payload any          `json:"payload"`
	}

	for {
		var f frame
		select {
		case msg, ok := <-signals:
			if !ok {
				return
			}
			f = frame{Topic: events.EventSignal, Payload: msg}
		case msg, ok := <-intents:
			if !ok {
				return
			}
			f = frame{Topic: events.EventIntentCreated, Payload: msg}
		case msg, ok := <-modes:
			if !ok {
				return
			}
			f = frame{Topic: events.EventConnectorMode, Payload: msg}
		}
		if err := conn.WriteJSON(f); err != nil {
			log.Printf("ws write error: %v", err)
			return
		}
	}
}
