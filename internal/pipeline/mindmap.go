package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/voicecore/assistant/internal/bus"
	"github.com/voicecore/assistant/internal/observe"
	"github.com/voicecore/assistant/internal/pipeline/labelmatch"
	"github.com/voicecore/assistant/internal/settings"
	"github.com/voicecore/assistant/pkg/provider/llm"
	"github.com/voicecore/assistant/pkg/store"
)

// MindMap runs the MindMapPipeline for one session: load transcripts,
// compose the prompt, invoke the LLM, extract/validate/repair the JSON
// response, deduplicate near-identical labels, persist, publish (§4.6).
func MindMap(ctx context.Context, st store.Store, invoker llm.Invoker, b *bus.Bus, sessionID string, eff settings.Effective) error {
	transcripts, err := st.ListTranscripts(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("pipeline: mind_map: list transcripts: %w", err)
	}
	if len(transcripts) == 0 {
		return nil
	}

	prompt := composePrompt(eff.MindMapPrompt, concatTranscripts(transcripts))

	sctx, span := observe.StartSpan(ctx, "pipeline.mind_map")
	defer span.End()

	metrics := observe.DefaultMetrics()
	start := time.Now()
	resp, err := invoker.Invoke(sctx, llm.Request{Model: eff.MindMapModel, Prompt: prompt})
	metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("pipeline", "mind_map")))
	if err != nil {
		metrics.RecordProviderError(ctx, "llm", "mind_map")
		observe.Logger(sctx).Error("pipeline: mind_map invoke failed", "session_id", sessionID, "error", err)
		b.Publish(sessionID, bus.Event{
			Type:  bus.EventError,
			Error: &bus.ErrorEvent{SessionID: sessionID, Kind: "LLMFailure", Message: err.Error()},
		})
		return fmt.Errorf("pipeline: mind_map: invoke llm: %w", err)
	}
	metrics.RecordProviderRequest(ctx, "llm", "mind_map", "ok")

	doc, err := parseAndValidateMindMap(resp.Text)
	if err != nil {
		// One repair attempt (§4.6 step 5, §9 "spec fixes the retry budget
		// at exactly one").
		repairResp, repairErr := invoker.Invoke(ctx, llm.Request{
			Model:  eff.MindMapModel,
			Prompt: repairPrompt(resp.Text),
		})
		if repairErr != nil {
			b.Publish(sessionID, bus.Event{
				Type:  bus.EventError,
				Error: &bus.ErrorEvent{SessionID: sessionID, Kind: "LLMFailure", Message: repairErr.Error()},
			})
			return fmt.Errorf("pipeline: mind_map: repair invoke: %w", repairErr)
		}

		doc, err = parseAndValidateMindMap(repairResp.Text)
		if err != nil {
			b.Publish(sessionID, bus.Event{
				Type: bus.EventError,
				Error: &bus.ErrorEvent{
					SessionID: sessionID, Kind: "InvalidMindMap",
					Message: err.Error(), Raw: repairResp.Text,
				},
			})
			return fmt.Errorf("pipeline: mind_map: repair failed: %w", err)
		}
	}

	nodes, edges := labelmatch.Dedup(doc.Nodes, doc.Edges, labelmatch.DefaultSimilarityThreshold)

	m, err := st.AppendMindMap(ctx, store.MindMap{
		SessionID: sessionID,
		Nodes:     nodes,
		Edges:     edges,
		Model:     eff.MindMapModel,
	})
	if err != nil {
		return fmt.Errorf("pipeline: mind_map: persist: %w", err)
	}

	b.Publish(sessionID, bus.Event{
		Type: bus.EventMindMapResult,
		MindMap: &bus.MindMapResult{
			SessionID: sessionID,
			MindMapID: m.ID,
			NodeCount: len(m.Nodes),
			EdgeCount: len(m.Edges),
		},
	})
	return nil
}
