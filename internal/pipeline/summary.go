// Package pipeline implements SummaryPipeline and MindMapPipeline: the two
// LLM-derived artifacts produced from a session's transcript corpus (§4.5,
// §4.6).
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/voicecore/assistant/internal/bus"
	"github.com/voicecore/assistant/internal/observe"
	"github.com/voicecore/assistant/internal/settings"
	"github.com/voicecore/assistant/pkg/provider/llm"
	"github.com/voicecore/assistant/pkg/store"
)

// transcriptMarker is the literal marker substituted with the concatenated
// transcript text in a prompt template (§4.5 step 3).
const transcriptMarker = "{transcript}"

// composePrompt substitutes transcriptText for transcriptMarker in
// template, or appends it on a new line if the marker is absent.
func composePrompt(template, transcriptText string) string {
	if strings.Contains(template, transcriptMarker) {
		return strings.ReplaceAll(template, transcriptMarker, transcriptText)
	}
	return template + "\n" + transcriptText
}

// concatTranscripts joins transcript texts with single-space separators
// (§4.5 step 2), in the ascending creation-time order ListTranscripts
// already guarantees.
func concatTranscripts(transcripts []store.Transcript) string {
	parts := make([]string, len(transcripts))
	for i, t := range transcripts {
		parts[i] = t.Text
	}
	return strings.Join(parts, " ")
}

// Summary runs the SummaryPipeline for one session: load transcripts,
// compose the prompt, invoke the LLM, persist an Analysis, publish on the
// bus. Callers must guarantee release via a ProcessingStateManager's
// try_start/stop pairing (§4.3); Summary itself has no concurrency gate.
func Summary(ctx context.Context, st store.Store, invoker llm.Invoker, b *bus.Bus, sessionID string, eff settings.Effective) error {
	transcripts, err := st.ListTranscripts(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("pipeline: summary: list transcripts: %w", err)
	}
	if len(transcripts) == 0 {
		return nil // NoContent (§7): silent skip, no event.
	}

	prompt := composePrompt(eff.SummaryPrompt, concatTranscripts(transcripts))

	sctx, span := observe.StartSpan(ctx, "pipeline.summary")
	defer span.End()

	metrics := observe.DefaultMetrics()
	start := time.Now()
	resp, err := invoker.Invoke(sctx, llm.Request{Model: eff.SummaryModel, Prompt: prompt})
	elapsed := time.Since(start)
	metrics.LLMDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("pipeline", "summary")))
	if err != nil {
		metrics.RecordProviderError(ctx, "llm", "summary")
		observe.Logger(sctx).Error("pipeline: summary invoke failed", "session_id", sessionID, "error", err)
		b.Publish(sessionID, bus.Event{
			Type:  bus.EventError,
			Error: &bus.ErrorEvent{SessionID: sessionID, Kind: "LLMFailure", Message: err.Error()},
		})
		return fmt.Errorf("pipeline: summary: invoke llm: %w", err)
	}
	metrics.RecordProviderRequest(ctx, "llm", "summary", "ok")

	a, err := st.AppendAnalysis(ctx, store.Analysis{
		SessionID:      sessionID,
		Prompt:         prompt,
		Response:       resp.Text,
		Model:          eff.SummaryModel,
		ProcessingTime: elapsed,
		CreatedAt:      time.Now(),
	})
	if err != nil {
		return fmt.Errorf("pipeline: summary: persist analysis: %w", err)
	}

	b.Publish(sessionID, bus.Event{
		Type: bus.EventSessionAnalysis,
		Analysis: &bus.SessionAnalysis{
			SessionID:      sessionID,
			AnalysisID:     a.ID,
			ProcessingTime: elapsed,
			Analysis:       a.Response,
		},
	})
	return nil
}
