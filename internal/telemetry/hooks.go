package telemetry

import (
	"time"

	"github.com/rs/zerolog"
)

// Hooks implements server lifecycle callbacks for basic telemetry and logging.
// It is intentionally minimal; metrics backends can be added later under this package.
type Hooks struct {
	logger zerolog.Logger
}

// NewHooks constructs a Hooks instance with the provided logger.
func NewHooks(logger zerolog.Logger) *Hooks {
	return &Hooks{logger: logger}
}

// OnServerStart is called when the server begins accepting connections.
func (h *Hooks) OnServerStart() {
	h.logger.Info().Msg("deck server starting")
}

// OnServerStop is called during server shutdown.
func (h *Hooks) OnServerStop() {
	h.logger.Info().Msg("deck server stopping")
}

// OnSessionStart records the start of a client session.
func (h *Hooks) OnSessionStart(sessionID string) {
	h.logger.Info().Str("session_id", sessionID).Msg("session started")
}

// OnSessionEnd records the end of a client session.
func (h *Hooks) OnSessionEnd(sessionID string) {
	h.logger.Info().Str("session_id", sessionID).Msg("session ended")
}

// OnToolCall logs one served tool invocation and its outcome.
func (h *Hooks) OnToolCall(toolName string, isError bool) {
	if isError {
		h.logger.Warn().Str("tool", toolName).Msg("tool call returned error result")
		return
	}
	h.logger.Info().Str("tool", toolName).Msg("tool call completed")
}

// OnRenderPass logs one completed composition pass with its diagnostic count.
func (h *Hooks) OnRenderPass(passID string, slides, diagnostics int, duration time.Duration) {
	h.logger.Info().
		Str("pass_id", passID).
		Int("slides", slides).
		Int("diagnostics", diagnostics).
		Dur("duration", duration).
		Msg("render pass completed")
}
