package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/skillsenselab/interview-analyzer/acoustic"
	"github.com/skillsenselab/interview-analyzer/diarization"
	pipeerrors "github.com/skillsenselab/interview-analyzer/errors"
	"github.com/skillsenselab/interview-analyzer/logger"
	"github.com/skillsenselab/interview-analyzer/progress"
	"github.com/skillsenselab/interview-analyzer/resilience"
	"github.com/skillsenselab/interview-analyzer/semantic"
	"github.com/skillsenselab/interview-analyzer/session"
	"github.com/skillsenselab/interview-analyzer/transcription"
)

// stageOutputs carries the fan-out results into the fan-in phase.
type stageOutputs struct {
	segments []transcription.Segment
	turns    []diarization.Turn
	windows  map[string]acoustic.FeatureWindow
}

// fanOut runs transcription, diarization, and feature extraction. The
// feature stage waits for diarization's outcome (turns or the implicit
// single speaker) because the extractor aggregates per speaker label.
// Transcription and feature-extraction failures are fatal; diarization
// failure degrades to one implicit speaker.
func (o *Orchestrator) fanOut(ctx context.Context, sess *session.Session, audio []byte, log *logger.Logger) (*stageOutputs, *pipeerrors.PipelineError) {
	fctx, cancelAll := context.WithCancel(ctx)
	defer cancelAll()

	out := &stageOutputs{}
	turnsCh := make(chan []diarization.Turn, 1)

	var wg sync.WaitGroup
	var transcriptionErr, featureErr *pipeerrors.PipelineError
	wg.Add(3)

	go func() {
		defer wg.Done()
		cctx, cancel := context.WithTimeout(fctx, o.cfg.TranscriptionTimeout)
		defer cancel()
		cctx, span := o.tracer.Start(cctx, "stage.transcription")
		defer span.End()

		resp, err := o.transcriber.Transcribe(cctx, transcription.Request{
			AudioBytes: audio,
			Language:   o.cfg.Language,
		})
		if err != nil {
			span.RecordError(err)
			transcriptionErr = o.recordFatal(sess, log, StageTranscription, cctx, err)
			cancelAll()
			return
		}
		out.segments = resp.Segments
		o.stageDone(sess.ID, StageTranscription)
	}()

	go func() {
		defer wg.Done()
		cctx, cancel := context.WithTimeout(fctx, o.cfg.DiarizationTimeout)
		defer cancel()
		cctx, span := o.tracer.Start(cctx, "stage.diarization")
		defer span.End()

		resp, err := o.diarizer.Diarize(cctx, diarization.Request{
			AudioBytes:  audio,
			NumSpeakers: o.cfg.NumSpeakers,
		})
		if err != nil {
			span.RecordError(err)
			code, msg := stageErrorOf(cctx, StageDiarization, err)
			sess.RecordError(StageDiarization, code, msg)
			log.Warn("diarization failed, continuing with single implicit speaker",
				logger.Fields(logger.FieldStage, StageDiarization, logger.FieldError, err.Error()))
			o.publisher.Publish(progress.Event{
				SessionID: sess.ID, Kind: progress.KindStageFailed,
				Stage: StageDiarization, Message: msg, At: o.clock().UTC(),
			})
			implicit := []diarization.Turn{{
				Speaker: ImplicitSpeaker,
				Start:   0,
				End:     o.audioSeconds(len(audio)),
			}}
			out.turns = implicit
			turnsCh <- implicit
			return
		}
		out.turns = resp.Turns
		turnsCh <- resp.Turns
		o.stageDone(sess.ID, StageDiarization)
	}()

	go func() {
		defer wg.Done()
		var turns []diarization.Turn
		select {
		case turns = <-turnsCh:
		case <-fctx.Done():
			return
		}

		cctx, cancel := context.WithTimeout(fctx, o.cfg.FeatureTimeout)
		defer cancel()
		cctx, span := o.tracer.Start(cctx, "stage.features")
		defer span.End()

		resp, err := resilience.ExecuteWithResult(cctx, o.pool, func() (*acoustic.Response, error) {
			return o.extractor.ExtractFeatures(cctx, acoustic.Request{
				AudioBytes:   audio,
				SpeakerTurns: turns,
			})
		})
		if err != nil {
			span.RecordError(err)
			featureErr = o.recordFatal(sess, log, StageFeatures, cctx, err)
			cancelAll()
			return
		}
		out.windows = resp.Windows
		o.stageDone(sess.ID, StageFeatures)
	}()

	wg.Wait()

	if transcriptionErr != nil {
		return nil, transcriptionErr
	}
	if featureErr != nil {
		return nil, featureErr
	}
	return out, nil
}

// recordFatal records a fatal stage failure on the session and returns the
// error that fails it.
func (o *Orchestrator) recordFatal(sess *session.Session, log *logger.Logger, stage string, ctx context.Context, err error) *pipeerrors.PipelineError {
	code, msg := stageErrorOf(ctx, stage, err)
	sess.RecordError(stage, code, msg)
	log.Error("fatal stage failure", logger.Fields(
		logger.FieldStage, stage, logger.FieldError, err.Error(),
	))
	o.publisher.Publish(progress.Event{
		SessionID: sess.ID, Kind: progress.KindStageFailed,
		Stage: stage, Message: msg, At: o.clock().UTC(),
	})
	return pipeerrors.FatalPipeline(stage, err)
}

// stageErrorOf distinguishes timeouts from plain collaborator failures.
func stageErrorOf(ctx context.Context, stage string, err error) (pipeerrors.ErrorCode, string) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return pipeerrors.ErrCodeStageTimeout, stage + " exceeded its deadline"
	}
	return pipeerrors.ErrCodeStageFailure, err.Error()
}

func (o *Orchestrator) stageDone(sessionID, stage string) {
	o.publisher.Publish(progress.Event{
		SessionID: sessionID,
		Kind:      progress.KindStageCompleted,
		Stage:     stage,
		At:        o.clock().UTC(),
	})
}

// audioSeconds estimates the audio duration from its PCM s16le byte length.
func (o *Orchestrator) audioSeconds(n int) float64 {
	return float64(n) / float64(o.cfg.SampleRate*2)
}

// recomputeSpeechRates replaces the extractor's speech-rate estimate with
// the rate derived from the attributed transcript, per speaker.
func (o *Orchestrator) recomputeSpeechRates(segments []transcription.Segment, windows map[string]acoustic.FeatureWindow) map[string]acoustic.FeatureWindow {
	text := make(map[string]*strings.Builder)
	talk := make(map[string]float64)
	for _, s := range segments {
		if _, ok := text[s.Speaker]; !ok {
			text[s.Speaker] = &strings.Builder{}
		}
		if text[s.Speaker].Len() > 0 {
			text[s.Speaker].WriteByte(' ')
		}
		text[s.Speaker].WriteString(s.Text)
		talk[s.Speaker] += s.Duration()
	}

	out := make(map[string]acoustic.FeatureWindow, len(windows))
	for label, w := range windows {
		if b, ok := text[label]; ok && talk[label] > 0 {
			w.SpeechRate = acoustic.SpeechRateFor(b.String(), talk[label])
		}
		out[label] = w
	}
	return out
}

// analyzeSemantic runs every analysis type concurrently over the full
// attributed transcript. Fresh fallback results are recorded as stage
// failures; they never fail the session.
func (o *Orchestrator) analyzeSemantic(ctx context.Context, sess *session.Session, segments []transcription.Segment, log *logger.Logger) ([]semantic.Result, error) {
	ctx, span := o.tracer.Start(ctx, "stage.semantic")
	defer span.End()

	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, s.Text)
	}
	fullText := strings.Join(parts, " ")

	types := semantic.AllTypes()
	results := make([]semantic.Result, len(types))
	errs := make([]error, len(types))

	var wg sync.WaitGroup
	for i, typ := range types {
		wg.Add(1)
		go func(i int, typ semantic.AnalysisType) {
			defer wg.Done()
			results[i], errs[i] = o.semantic.Analyze(ctx, typ, fullText)
		}(i, typ)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, err
		}
		if results[i].UsedFallback && !results[i].FromCache {
			sess.RecordError(StageSemantic, pipeerrors.ErrCodeStageFailure,
				string(types[i])+" analysis degraded to rule-based fallback")
		}
	}

	return results, nil
}
