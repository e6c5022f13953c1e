// Package webhook recebe as mensagens do gateway de WhatsApp. O HTTP 200
// volta na hora; todo o processamento acontece em background.
package webhook

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// Processor runs one full conversation turn for an inbound message.
type Processor interface {
	ProcessMessage(ctx context.Context, userID, text string)
}

// Handler binds the webhook route to the message processor.
type Handler struct {
	processor Processor
}

func NewHandler(processor Processor) *Handler {
	return &Handler{processor: processor}
}

// Register mounts the webhook route on the echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/webhook", h.HandleInbound)
	e.GET("/health", h.Health)
}

// HandleInbound accepts a form-encoded message (Body + From) and returns
// 200 with an empty body immediately. The reply is delivered asynchronously
// by the messaging client.
func (h *Handler) HandleInbound(c echo.Context) error {
	body := strings.TrimSpace(c.FormValue("Body"))
	from := strings.TrimSpace(c.FormValue("From"))

	if from == "" {
		log.Warn().Msg("⚠️ Webhook without From, ignoring")
		return c.NoContent(http.StatusOK)
	}
	if body == "" {
		log.Debug().Str("from", from).Msg("Webhook without text body, ignoring")
		return c.NoContent(http.StatusOK)
	}

	log.Info().Str("from", from).Int("len", len(body)).Msg("📥 Message received")

	// processa em background para o gateway não esperar a conversa
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("from", from).
					Str("stack", string(debug.Stack())).Msg("❌ Panic in message processing goroutine")
			}
		}()
		h.processor.ProcessMessage(context.Background(), from, body)
	}()

	return c.NoContent(http.StatusOK)
}

// Health is the liveness probe.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
