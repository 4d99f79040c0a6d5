package stream

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes exposes a WebSocket feed of accepted fixes. Use
// /ws/* to follow every device.
func RegisterRoutes(r fiber.Router, hub *Hub) {
	r.Get("/ws/:deviceID", websocket.New(func(c *websocket.Conn) {
		client := hub.Register(c.Params("deviceID"))
		defer hub.Unregister(client)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case msg, ok := <-client.Send:
				if !ok {
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}))
}
