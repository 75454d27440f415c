// Package orchestrator sequences the analysis pipeline for one session:
// fan-out of the transcription, diarization, and feature-extraction
// collaborators, speaker assignment, emotion scoring, semantic analysis,
// and report assembly, under the partial-failure policy that decides which
// stage failures degrade the report and which fail the session.
package orchestrator

import (
	"context"
	"os"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/skillsenselab/interview-analyzer/acoustic"
	"github.com/skillsenselab/interview-analyzer/diarization"
	pipeerrors "github.com/skillsenselab/interview-analyzer/errors"
	"github.com/skillsenselab/interview-analyzer/ingest"
	"github.com/skillsenselab/interview-analyzer/logger"
	"github.com/skillsenselab/interview-analyzer/progress"
	"github.com/skillsenselab/interview-analyzer/report"
	"github.com/skillsenselab/interview-analyzer/resilience"
	"github.com/skillsenselab/interview-analyzer/semantic"
	"github.com/skillsenselab/interview-analyzer/session"
	"github.com/skillsenselab/interview-analyzer/transcript"
	"github.com/skillsenselab/interview-analyzer/transcription"
)

// Stage identifiers used in error records, spans, and progress events.
const (
	StageTranscription = "transcription"
	StageDiarization   = "diarization"
	StageFeatures      = "features"
	StageSemantic      = "semantic"
)

// ImplicitSpeaker is the label assigned to all speech when diarization is
// unavailable and the session continues with a single speaker.
const ImplicitSpeaker = "SPEAKER_00"

// Config configures the pipeline orchestrator.
type Config struct {
	// TranscriptionTimeout bounds one transcription call.
	TranscriptionTimeout time.Duration `yaml:"transcription_timeout" mapstructure:"transcription_timeout"`
	// DiarizationTimeout bounds one diarization call.
	DiarizationTimeout time.Duration `yaml:"diarization_timeout" mapstructure:"diarization_timeout"`
	// FeatureTimeout bounds one feature-extraction call.
	FeatureTimeout time.Duration `yaml:"feature_timeout" mapstructure:"feature_timeout"`
	// Workers bounds concurrent CPU-bound feature extraction across
	// sessions. Defaults to the core count.
	Workers int `yaml:"workers" mapstructure:"workers"`
	// NumSpeakers is the expected-speaker hint passed to diarization.
	NumSpeakers int `yaml:"num_speakers" mapstructure:"num_speakers"`
	// Language is passed to the transcription collaborator.
	Language string `yaml:"language" mapstructure:"language"`
	// AssignTolerance is the speaker-assignment nearest-neighbor tolerance
	// in seconds.
	AssignTolerance float64 `yaml:"assign_tolerance" mapstructure:"assign_tolerance"`
	// SampleRate describes the audio for duration estimates (PCM s16le).
	SampleRate int `yaml:"sample_rate" mapstructure:"sample_rate"`
	// Ingest configures the streaming buffer.
	Ingest ingest.Config `yaml:"ingest" mapstructure:"ingest"`
}

// ApplyDefaults applies default values to the orchestrator configuration.
func (c *Config) ApplyDefaults() {
	if c.TranscriptionTimeout == 0 {
		c.TranscriptionTimeout = 5 * time.Minute
	}
	if c.DiarizationTimeout == 0 {
		c.DiarizationTimeout = 5 * time.Minute
	}
	if c.FeatureTimeout == 0 {
		c.FeatureTimeout = 2 * time.Minute
	}
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.NumSpeakers == 0 {
		c.NumSpeakers = 2
	}
	if c.AssignTolerance == 0 {
		c.AssignTolerance = transcript.DefaultTolerance
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	c.Ingest.ApplyDefaults()
}

// Orchestrator runs the analysis pipeline. One instance serves many
// sessions; per-session state lives on the stack of Process.
type Orchestrator struct {
	cfg         Config
	transcriber transcription.Provider
	diarizer    diarization.Provider
	extractor   acoustic.Provider
	semantic    *semantic.Client
	publisher   progress.Publisher
	pool        *resilience.Bulkhead
	tracer      trace.Tracer
	log         *logger.Logger
	clock       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the time source used for report timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// New creates an orchestrator over the given collaborators.
func New(
	cfg Config,
	transcriber transcription.Provider,
	diarizer diarization.Provider,
	extractor acoustic.Provider,
	semanticClient *semantic.Client,
	publisher progress.Publisher,
	log *logger.Logger,
	opts ...Option,
) *Orchestrator {
	cfg.ApplyDefaults()
	if publisher == nil {
		publisher = progress.NopPublisher{}
	}
	o := &Orchestrator{
		cfg:         cfg,
		transcriber: transcriber,
		diarizer:    diarizer,
		extractor:   extractor,
		semantic:    semanticClient,
		publisher:   publisher,
		pool:        resilience.NewBulkhead("features", cfg.Workers),
		tracer:      otel.Tracer("interview-analyzer/orchestrator"),
		log:         log.WithComponent("orchestrator"),
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process runs the full pipeline for a batch session, reading audio from
// the session's audio path.
func (o *Orchestrator) Process(ctx context.Context, sess *session.Session) (*report.Report, error) {
	audio, err := os.ReadFile(sess.AudioPath)
	if err != nil {
		_ = sess.Fail("audio unreadable: " + err.Error())
		return nil, pipeerrors.InvalidInput("cannot read audio: " + err.Error())
	}
	return o.ProcessAudio(ctx, sess, audio)
}

// ProcessAudio runs the full pipeline over in-memory audio. On a fatal
// stage failure or cancellation the session transitions to Failed and an
// error is returned; otherwise the session completes, possibly with a
// degraded report.
func (o *Orchestrator) ProcessAudio(ctx context.Context, sess *session.Session, audio []byte) (*report.Report, error) {
	return o.run(ctx, sess, audio, nil)
}

// run is the shared pipeline body. degraded carries intervals dropped
// during streaming ingest, nil for batch sessions.
func (o *Orchestrator) run(ctx context.Context, sess *session.Session, audio []byte, degraded []ingest.Interval) (*report.Report, error) {
	log := o.log.WithSession(sess.ID)

	if err := sess.Transition(session.StatusProcessing); err != nil {
		return nil, pipeerrors.InvalidInput(err.Error())
	}

	ctx, span := o.tracer.Start(ctx, "pipeline.process")
	defer span.End()

	stages, stageErr := o.fanOut(ctx, sess, audio, log)
	if ctx.Err() != nil {
		return nil, o.cancelSession(sess, log)
	}
	if stageErr != nil {
		return nil, o.failSession(sess, log, stageErr)
	}

	// Fan-in: speaker assignment, role mapping, emotion scores.
	segments := transcript.Assign(stages.segments, stages.turns,
		transcript.WithTolerance(o.cfg.AssignTolerance))
	roles := transcript.MapRoles(segments)

	features := o.recomputeSpeechRates(segments, stages.windows)
	scores := make(map[string]acoustic.ScoreSet, len(features))
	for label, w := range features {
		scores[label] = acoustic.Score(w)
	}

	semanticResults, err := o.analyzeSemantic(ctx, sess, segments, log)
	if err != nil {
		// Only cancellation escapes the semantic stage.
		return nil, o.cancelSession(sess, log)
	}

	if err := sess.Transition(session.StatusCompleted); err != nil {
		return nil, pipeerrors.InvalidInput(err.Error())
	}

	rep := report.Assemble(report.AssembleInput{
		Session:     sess,
		Segments:    segments,
		Features:    features,
		Scores:      scores,
		Roles:       roles,
		Semantic:    semanticResults,
		Degraded:    degraded,
		GeneratedAt: o.clock().UTC(),
	})

	o.publisher.Publish(progress.Event{
		SessionID: sess.ID,
		Kind:      progress.KindSessionCompleted,
		At:        o.clock().UTC(),
	})
	log.Info("session completed", logger.Fields(
		"segments", len(rep.Segments),
		"speakers", len(rep.Speakers),
		"degraded", rep.Degraded(),
	))
	return rep, nil
}

func (o *Orchestrator) failSession(sess *session.Session, log *logger.Logger, cause *pipeerrors.PipelineError) error {
	_ = sess.Fail(cause.Message)
	o.publisher.Publish(progress.Event{
		SessionID: sess.ID,
		Kind:      progress.KindSessionCompleted,
		Message:   cause.Message,
		At:        o.clock().UTC(),
	})
	log.Error("session failed", logger.Fields(logger.FieldError, cause.Error()))
	return cause
}

func (o *Orchestrator) cancelSession(sess *session.Session, log *logger.Logger) error {
	cause := pipeerrors.Cancelled("pipeline")
	sess.RecordError("pipeline", cause.Code, cause.Message)
	_ = sess.Fail("cancelled")
	log.Warn("session cancelled")
	return cause
}
