// Package webhook receives inbound gateway events, extracts a JSON body
// regardless of how the gateway framed it, and routes each event to its
// normalizer. Unrecognized events are acknowledged and ignored so the
// gateway never retries them.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Sink consumes normalized events: persistence, a queue, per-type
// handlers. The default sink only logs.
type Sink interface {
	Handle(ctx context.Context, e Event) error
}

type logSink struct{}

func (logSink) Handle(_ context.Context, e Event) error {
	log.Printf("[webhook] evento %s recebido", e.Kind())
	return nil
}

type Server struct {
	apiKey      string
	normalizers map[string]Normalizer
	sink        Sink
}

// NewServer wires the webhook listener. apiKey, when non-empty, must
// match the gateway's "apikey" header on every POST.
func NewServer(apiKey string, sink Sink) *Server {
	if sink == nil {
		sink = logSink{}
	}
	return &Server{
		apiKey:      apiKey,
		normalizers: Normalizers(),
		sink:        sink,
	}
}

// Router builds the gin engine with the webhook routes mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/webhook/ping", s.ping)
	r.POST("/webhook", s.receive)
	r.POST("/webhook/*tail", s.receive)

	return r
}

func (s *Server) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "msg": "webhook alive"})
}

func (s *Server) receive(c *gin.Context) {
	if s.apiKey != "" && c.GetHeader("apikey") != s.apiKey {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "unauthorized"})
		return
	}

	body := extractBody(c)
	event := eventName(body, c.Param("tail"))

	normalize, known := s.normalizers[event]
	if !known {
		c.JSON(http.StatusOK, gin.H{"ok": true, "ignored_event": event})
		return
	}

	events := normalize(body)
	for _, e := range events {
		if err := s.sink.Handle(c.Request.Context(), e); err != nil {
			log.Printf("[webhook] processar %s: %v", e.Kind(), err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"event":    event,
		"received": len(asList(body["data"])),
		"emitted":  len(events),
	})
}

// extractBody pulls a JSON object out of the request whatever the
// content type: plain JSON, a form with an embedded "payload" field, or
// a raw body as last resort.
func extractBody(c *gin.Context) map[string]any {
	ctype := c.GetHeader("Content-Type")

	switch {
	case strings.Contains(ctype, "application/json"), strings.Contains(ctype, "text/json"):
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			return map[string]any{}
		}
		return body

	case strings.Contains(ctype, "multipart/form-data"),
		strings.Contains(ctype, "application/x-www-form-urlencoded"):
		if payload := c.PostForm("payload"); payload != "" {
			var body map[string]any
			if err := json.Unmarshal([]byte(payload), &body); err == nil {
				return body
			}
		}
		body := map[string]any{}
		for k, vs := range c.Request.PostForm {
			if len(vs) > 0 {
				body[k] = vs[0]
			}
		}
		return body

	default:
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return map[string]any{}
		}
		var body map[string]any
		if err := json.Unmarshal(raw, &body); err != nil {
			return map[string]any{"raw": string(raw)}
		}
		return body
	}
}

// eventName prefers the body's own event field, then the path tail with
// dashes mapped to dots ("messages-upsert" => "messages.upsert").
func eventName(body map[string]any, tail string) string {
	if evt, ok := body["event"].(string); ok && evt != "" {
		return evt
	}

	segs := make([]string, 0, 2)
	for _, seg := range strings.Split(tail, "/") {
		if seg != "" {
			segs = append(segs, seg)
		}
	}
	if len(segs) == 0 {
		return "unknown"
	}
	return strings.ReplaceAll(strings.Join(segs, "/"), "-", ".")
}
