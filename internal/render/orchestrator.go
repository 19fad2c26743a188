// Package render turns a floor plan into images. The isometric render runs
// a generate, evaluate and retry loop around the deterministic projection;
// room renders are a single checked generation.
package render

import (
	"context"
	"errors"
	"fmt"

	"floorplan-render-backend/internal/common"
	"floorplan-render-backend/internal/imagen"
	"floorplan-render-backend/internal/metrics"
	"floorplan-render-backend/internal/models"
	"floorplan-render-backend/internal/projection"
	"floorplan-render-backend/internal/vision"

	"go.uber.org/zap"
)

// Generator produces a styled image from a source image and prompt.
type Generator interface {
	Available() bool
	Edit(ctx context.Context, req imagen.EditRequest) (*imagen.Result, error)
}

// Evaluator scores a generated image against its source.
type Evaluator interface {
	Available() bool
	Evaluate(ctx context.Context, source, generated []byte, kind models.RenderType) (*vision.Verdict, error)
}

// Recorder receives per-attempt metrics.
type Recorder interface {
	RecordRenderAttempt(renderType, outcome string)
	ObserveFaithfulness(renderType string, score int)
}

// Source tells where an outcome's image came from.
type Source string

const (
	SourceGenerated  Source = "generated"
	SourceProjection Source = "projection"
	SourceFallback   Source = "fallback"
)

// Outcome is a finished render. Score and Reason describe the accepted
// candidate, or the best one seen when the render fell back.
type Outcome struct {
	Image    []byte
	Source   Source
	Attempts int
	Score    int
	Reason   string
	Prompt   string
}

type Orchestrator struct {
	gen      Generator
	eval     Evaluator
	policy   Policy
	logger   *zap.Logger
	recorder Recorder
}

func New(gen Generator, eval Evaluator, policy Policy, logger *zap.Logger, recorder Recorder) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Orchestrator{
		gen:      gen,
		eval:     eval,
		policy:   policy,
		logger:   logger.With(zap.String("component", "render")),
		recorder: recorder,
	}
}

func (o *Orchestrator) Policy() Policy {
	return o.policy
}

// Available reports whether generated renders are possible at all.
func (o *Orchestrator) Available() bool {
	return o.gen != nil && o.gen.Available() && o.eval != nil && o.eval.Available()
}

type scored struct {
	verdict vision.Verdict
	prompt  string
}

// RenderIsometric renders the plan as a styled isometric image. Without a
// configured generator the projection itself is the result.
func (o *Orchestrator) RenderIsometric(ctx context.Context, plan []byte, style string) (*Outcome, error) {
	src, err := projection.Decode(plan)
	if err != nil {
		return nil, err
	}
	proj := projection.Project(src)
	projPNG, err := projection.EncodePNG(proj)
	if err != nil {
		return nil, fmt.Errorf("failed to encode projection: %w", err)
	}

	if !o.Available() {
		o.logger.Info("generator unavailable, returning projection")
		return &Outcome{Image: projPNG, Source: SourceProjection}, nil
	}

	kind := string(models.RenderTypeIsometric)
	var (
		best       *scored
		lastErr    error
		lastPrompt string
		attempts   int
	)

	for attempt := 1; attempt <= o.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		attempts = attempt
		prompt := IsometricPrompt(style, attempt)
		lastPrompt = prompt
		log := o.logger.With(zap.Int("attempt", attempt), zap.Int("max_attempts", o.policy.MaxAttempts))

		candidate, verdict, err := o.attempt(ctx, projPNG, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !common.IsServiceError(err) {
				return nil, err
			}
			o.recorder.RecordRenderAttempt(kind, metrics.AttemptError)
			log.Warn("attempt failed", zap.Error(err))
			lastErr = err
			continue
		}
		o.recorder.ObserveFaithfulness(kind, verdict.Score)

		if o.policy.Accepts(*verdict) {
			image := candidate
			if o.policy.Composite {
				b := proj.Bounds()
				image, err = projection.Fit(candidate, b.Dx(), b.Dy())
				if err != nil {
					o.recorder.RecordRenderAttempt(kind, metrics.AttemptError)
					log.Warn("accepted candidate could not be composited", zap.Error(err))
					lastErr = err
					continue
				}
			}
			o.recorder.RecordRenderAttempt(kind, metrics.AttemptAccepted)
			log.Info("candidate accepted", zap.Int("score", verdict.Score))
			return &Outcome{
				Image:    image,
				Source:   SourceGenerated,
				Attempts: attempt,
				Score:    verdict.Score,
				Reason:   verdict.Reason,
				Prompt:   prompt,
			}, nil
		}

		o.recorder.RecordRenderAttempt(kind, metrics.AttemptRejected)
		log.Info("candidate rejected",
			zap.Int("score", verdict.Score),
			zap.Bool("faithful", verdict.IsFaithful),
			zap.Int("source_rooms", verdict.SourceRooms),
			zap.Int("generated_rooms", verdict.GeneratedRooms),
			zap.String("reason", verdict.Reason),
		)
		if best == nil || verdict.Score > best.verdict.Score {
			best = &scored{verdict: *verdict, prompt: prompt}
		}
	}

	if o.policy.Fallback == FallbackStrict {
		if best == nil {
			return nil, lastErr
		}
		return nil, &common.LayoutMismatchError{Score: best.verdict.Score, Reason: best.verdict.Reason}
	}

	out := &Outcome{Image: projPNG, Source: SourceFallback, Attempts: attempts, Prompt: lastPrompt}
	if best != nil {
		out.Score = best.verdict.Score
		out.Reason = best.verdict.Reason
		out.Prompt = best.prompt
	} else if lastErr != nil {
		out.Reason = lastErr.Error()
	}
	o.logger.Info("attempts exhausted, returning projection", zap.Int("best_score", out.Score))
	return out, nil
}

func (o *Orchestrator) attempt(ctx context.Context, projPNG []byte, prompt string) ([]byte, *vision.Verdict, error) {
	res, err := o.gen.Edit(ctx, imagen.EditRequest{Image: projPNG, Prompt: prompt})
	if err != nil {
		return nil, nil, fmt.Errorf("generate: %w", err)
	}
	verdict, err := o.eval.Evaluate(ctx, projPNG, res.Image, models.RenderTypeIsometric)
	if err != nil {
		return nil, nil, fmt.Errorf("evaluate: %w", err)
	}
	return res.Image, verdict, nil
}

// RenderRoom renders one room of the plan from the original upload.
func (o *Orchestrator) RenderRoom(ctx context.Context, plan []byte, room, style string) (*Outcome, error) {
	if !o.Available() {
		return nil, &common.ConfigurationError{Setting: "OPENAI_API_KEY"}
	}
	if _, err := projection.Decode(plan); err != nil {
		return nil, err
	}

	kind := string(models.RenderTypeRoomWise)
	log := o.logger.With(zap.String("room", room))
	prompt := RoomPrompt(room, style)

	res, err := o.gen.Edit(ctx, imagen.EditRequest{Image: plan, Prompt: prompt})
	if err != nil {
		o.recorder.RecordRenderAttempt(kind, metrics.AttemptError)
		return nil, fmt.Errorf("generate %s: %w", room, err)
	}

	verdict, err := o.eval.Evaluate(ctx, plan, res.Image, models.RenderTypeRoomWise)
	if err != nil {
		o.recorder.RecordRenderAttempt(kind, metrics.AttemptError)
		return nil, fmt.Errorf("evaluate %s: %w", room, err)
	}
	o.recorder.ObserveFaithfulness(kind, verdict.Score)

	if verdict.Score < RoomThreshold {
		o.recorder.RecordRenderAttempt(kind, metrics.AttemptRejected)
		log.Info("room render rejected", zap.Int("score", verdict.Score), zap.String("reason", verdict.Reason))
		return nil, &common.LayoutMismatchError{Score: verdict.Score, Reason: verdict.Reason}
	}

	o.recorder.RecordRenderAttempt(kind, metrics.AttemptAccepted)
	log.Info("room render accepted", zap.Int("score", verdict.Score))
	return &Outcome{
		Image:    res.Image,
		Source:   SourceGenerated,
		Attempts: 1,
		Score:    verdict.Score,
		Reason:   verdict.Reason,
		Prompt:   prompt,
	}, nil
}

// Message is the short error text stored on a failed render.
func Message(err error) string {
	var mismatch *common.LayoutMismatchError
	var cfg *common.ConfigurationError
	var decode *common.DecodeError
	switch {
	case errors.As(err, &mismatch):
		return mismatch.Error()
	case errors.As(err, &cfg):
		return "image generation is not configured"
	case errors.As(err, &decode):
		return "the uploaded floor plan could not be decoded"
	case common.IsTimeout(err):
		return "image service timed out"
	default:
		return err.Error()
	}
}

type nopRecorder struct{}

func (nopRecorder) RecordRenderAttempt(string, string) {}
func (nopRecorder) ObserveFaithfulness(string, int) {}
