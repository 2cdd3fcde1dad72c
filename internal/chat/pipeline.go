// Package chat implements the trauma-informed support chat pipeline:
// local language/emotion classification, conversation context, a call to
// the generative backend, and a deterministic canned fallback when the
// backend is unavailable. Degraded service beats a hard failure for a
// support-seeking user.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/msaada/backend/internal/database"
	"github.com/msaada/backend/internal/langdetect"
	"github.com/msaada/backend/internal/monitoring"
	"github.com/msaada/backend/internal/respond"
)

// Generator produces a free-text reply for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// CatalogReader supplies service-catalog context for the system prompt.
type CatalogReader interface {
	ListServices(ctx context.Context, category string, limit int) ([]database.Service, error)
}

// Reply is the pipeline output for one message.
type Reply struct {
	Reply     string                      `json:"reply"`
	Intent    string                      `json:"intent"`
	Urgency   string                      `json:"urgency"`
	Emotion   langdetect.EmotionalContext `json:"emotion"`
	Detection langdetect.DetectionResult  `json:"detection"`
	Fallback  bool                        `json:"fallback"`
}

// Fallback classification tuple used when the generative backend fails.
const (
	fallbackIntent  = "general_help"
	fallbackUrgency = "medium"
)

// Pipeline wires the detector, composer, session cache, catalog, and
// generative backend into one message-processing flow.
type Pipeline struct {
	detector *langdetect.Detector
	gen      Generator
	cache    SessionCache
	catalog  CatalogReader
	timeout  time.Duration
}

// NewPipeline builds a pipeline. catalog may be nil (no service context).
func NewPipeline(detector *langdetect.Detector, gen Generator, cache SessionCache, catalog CatalogReader, timeout time.Duration) *Pipeline {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Pipeline{
		detector: detector,
		gen:      gen,
		cache:    cache,
		catalog:  catalog,
		timeout:  timeout,
	}
}

// Process classifies and answers one user message. Classification errors
// (empty input) propagate; generative-backend failures degrade to the
// canned composer reply with the neutral default classification tuple.
func (p *Pipeline) Process(ctx context.Context, sessionID, message string) (*Reply, error) {
	detection, err := p.detector.Detect(message)
	if err != nil {
		return nil, err
	}
	emotion := p.detector.ClassifyEmotion(message, detection.Language)

	history, err := p.cache.History(ctx, sessionID)
	if err != nil {
		// Lost context degrades the reply, it does not fail the request.
		slog.Warn("session history unavailable", "session_id", sessionID, "error", err)
		history = nil
	}

	prompt := p.buildPrompt(ctx, detection, emotion, history, message)

	genCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	text, genErr := p.gen.Generate(genCtx, prompt)
	reply := &Reply{
		Emotion:   emotion,
		Detection: detection,
	}
	if genErr != nil {
		slog.Warn("generative backend failed, using canned fallback", "error", genErr)
		monitoring.ChatFallbacks.Inc()
		reply.Reply = respond.Compose(respond.TypeGeneralHelp, detection.Language, emotion.Intensity)
		reply.Intent = fallbackIntent
		reply.Urgency = fallbackUrgency
		reply.Emotion = langdetect.EmotionalContext{
			State:           langdetect.StateNeutral,
			Intensity:       langdetect.IntensityMedium,
			CulturalMarkers: []string{},
		}
		reply.Fallback = true
	} else {
		reply.Reply = text
		reply.Intent = intentFor(emotion)
		reply.Urgency = urgencyFor(emotion)
	}

	if err := p.cache.Append(ctx, sessionID,
		Turn{Role: "user", Content: message},
		Turn{Role: "assistant", Content: reply.Reply},
	); err != nil {
		slog.Warn("failed to append session history", "session_id", sessionID, "error", err)
	}

	return reply, nil
}

// buildPrompt assembles the trauma-informed system prompt, the service
// catalog snippet, and the recent conversation.
func (p *Pipeline) buildPrompt(ctx context.Context, detection langdetect.DetectionResult, emotion langdetect.EmotionalContext, history []Turn, message string) string {
	var b strings.Builder

	b.WriteString("You are Msaada, a warm, trauma-informed support assistant for vulnerable people in Kenya. ")
	b.WriteString("Never judge, never lecture, never promise what the platform cannot deliver. ")
	b.WriteString("Keep replies short, concrete, and kind. Offer next steps, not platitudes.\n")
	fmt.Fprintf(&b, "The user is writing in %s", detection.Language)
	if detection.HasCodeSwitching {
		b.WriteString(" with code-switching; mirror their language mix naturally")
	}
	b.WriteString(".\n")
	fmt.Fprintf(&b, "Emotional read: %s (intensity %s).\n", emotion.State, emotion.Intensity)
	if emotion.State == langdetect.StateUrgent {
		b.WriteString("Treat this as urgent: lead with the fastest concrete help available.\n")
	}

	if p.catalog != nil {
		services, err := p.catalog.ListServices(ctx, "", 10)
		if err != nil {
			slog.Warn("service catalog unavailable for prompt", "error", err)
		} else if len(services) > 0 {
			b.WriteString("Services you can refer to:\n")
			for _, s := range services {
				fmt.Fprintf(&b, "- %s (%s)", s.Name, s.Category)
				if s.Region != "" {
					fmt.Fprintf(&b, " — %s", s.Region)
				}
				b.WriteString("\n")
			}
		}
	}

	if len(history) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, t := range history {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
		}
	}

	b.WriteString("user: ")
	b.WriteString(message)
	return b.String()
}

func intentFor(emotion langdetect.EmotionalContext) string {
	switch emotion.State {
	case langdetect.StateUrgent:
		return "escalation"
	case langdetect.StateGrateful:
		return "goodbye"
	default:
		return "general_help"
	}
}

func urgencyFor(emotion langdetect.EmotionalContext) string {
	switch {
	case emotion.State == langdetect.StateUrgent:
		return "high"
	case emotion.Intensity == langdetect.IntensityHigh:
		return "high"
	case emotion.State == langdetect.StateDistressed:
		return "medium"
	default:
		return "low"
	}
}
