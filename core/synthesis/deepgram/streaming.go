package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
)

type websocketMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// SynthesizeStream synthesizes one utterance over a websocket, handing audio
// frames to onAudio as they arrive. The connection is dedicated to this
// utterance and closed once Deepgram confirms the flush.
func (c *Client) SynthesizeStream(ctx context.Context, text string, onAudio func([]byte) error) error {
	ctx, span := tracer.Start(ctx, "stream synthesized speech")
	defer span.End()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx,
		(&url.URL{
			Scheme:   "wss",
			Host:     speakHost,
			Path:     speakPath,
			RawQuery: c.queryValues().Encode(),
		}).String(),
		http.Header{"Authorization": {"token " + c.apiKey}})
	if err != nil {
		return fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(websocketMessage{Type: "Speak", Text: text}); err != nil {
		return fmt.Errorf("failed to send text to deepgram through websocket: %w", err)
	}
	if err := conn.WriteJSON(websocketMessage{Type: "Flush"}); err != nil {
		return fmt.Errorf("failed to flush deepgram buffer through websocket: %w", err)
	}

	// Reads are interrupted through the context by closing the connection.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("websocket read error: %w", err)
		}

		switch msgType {
		case websocket.BinaryMessage:
			if len(msg) == 0 {
				continue
			}
			if err := onAudio(msg); err != nil {
				return err
			}
		case websocket.TextMessage:
			var parsedMsg struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				continue
			}
			if parsedMsg.Type == "Flushed" {
				_ = conn.WriteJSON(websocketMessage{Type: "Close"})
				return nil
			}
		}
	}
}
