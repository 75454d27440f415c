package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/skillsenselab/interview-analyzer/acoustic"
	"github.com/skillsenselab/interview-analyzer/cache"
	"github.com/skillsenselab/interview-analyzer/diarization"
	pipeerrors "github.com/skillsenselab/interview-analyzer/errors"
	"github.com/skillsenselab/interview-analyzer/logger"
	"github.com/skillsenselab/interview-analyzer/report"
	"github.com/skillsenselab/interview-analyzer/semantic"
	"github.com/skillsenselab/interview-analyzer/session"
	"github.com/skillsenselab/interview-analyzer/transcript"
	"github.com/skillsenselab/interview-analyzer/transcription"
)

// tenSecondsAudio is 10s of PCM s16le mono at 16kHz.
func tenSecondsAudio() []byte { return make([]byte, 320000) }

type fakeTranscriber struct {
	err   error
	block bool
}

func (f *fakeTranscriber) Name() string                     { return "fake-stt" }
func (f *fakeTranscriber) IsAvailable(context.Context) bool { return true }
func (f *fakeTranscriber) Transcribe(ctx context.Context, _ transcription.Request) (*transcription.Response, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &transcription.Response{
		Text: "tell me about yourself I led a team project",
		Segments: []transcription.Segment{
			{Start: 0, End: 4, Text: "tell me about yourself"},
			{Start: 4.5, End: 9.5, Text: "I led a team project"},
		},
		Duration: 10,
	}, nil
}

type fakeDiarizer struct {
	err error
}

func (f *fakeDiarizer) Name() string                     { return "fake-diar" }
func (f *fakeDiarizer) IsAvailable(context.Context) bool { return true }
func (f *fakeDiarizer) Diarize(_ context.Context, _ diarization.Request) (*diarization.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &diarization.Response{
		Turns: []diarization.Turn{
			{Speaker: "SPEAKER_00", Start: 0, End: 4.2},
			{Speaker: "SPEAKER_01", Start: 4.2, End: 10},
		},
		NumSpeakers: 2,
	}, nil
}

type fakeExtractor struct {
	err error
}

func (f *fakeExtractor) Name() string                     { return "fake-dsp" }
func (f *fakeExtractor) IsAvailable(context.Context) bool { return true }
func (f *fakeExtractor) ExtractFeatures(_ context.Context, req acoustic.Request) (*acoustic.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	windows := make(map[string]acoustic.FeatureWindow)
	for _, turn := range req.SpeakerTurns {
		w := windows[turn.Speaker]
		w.PitchMeanHz = 180
		w.PitchStdHz = 20
		w.Jitter = 0.002
		w.PitchDetected = true
		w.DurationSec += turn.End - turn.Start
		windows[turn.Speaker] = w
	}
	return &acoustic.Response{Windows: windows}, nil
}

// fakeSemanticProvider returns a valid payload per analysis type.
type fakeSemanticProvider struct {
	err error
}

func (f *fakeSemanticProvider) Name() string                     { return "fake-llm" }
func (f *fakeSemanticProvider) IsAvailable(context.Context) bool { return true }
func (f *fakeSemanticProvider) Analyze(_ context.Context, typ semantic.AnalysisType, _ string) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	switch typ {
	case semantic.TypeKeywords:
		return json.RawMessage(`{"keywords":["experience","team","project","leadership","growth"]}`), nil
	case semantic.TypePoliteness:
		return json.RawMessage(`{"score":4,"issues":[],"suggestions":[]}`), nil
	default:
		return json.RawMessage(`{"confidence":0.8,"calmness":0.7,"positivity":0.6,"summary":"solid answer"}`), nil
	}
}

type pipeline struct {
	orch        *Orchestrator
	transcriber *fakeTranscriber
	diarizer    *fakeDiarizer
	extractor   *fakeExtractor
	semProvider *fakeSemanticProvider
}

func newTestPipeline(t *testing.T) *pipeline {
	t.Helper()
	p := &pipeline{
		transcriber: &fakeTranscriber{},
		diarizer:    &fakeDiarizer{},
		extractor:   &fakeExtractor{},
		semProvider: &fakeSemanticProvider{},
	}
	client := semantic.NewClient(p.semProvider,
		cache.NewKeyed(cache.NewMemoryStore(), logger.Nop()),
		semantic.ClientConfig{InitialBackoff: time.Millisecond},
		logger.Nop())
	p.orch = New(Config{}, p.transcriber, p.diarizer, p.extractor, client, nil, logger.Nop(),
		WithClock(func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) }))
	return p
}

func TestProcessHappyPath(t *testing.T) {
	p := newTestPipeline(t)
	sess := session.New("audio.wav", session.ModeBatch)

	rep, err := p.orch.ProcessAudio(context.Background(), sess, tenSecondsAudio())
	if err != nil {
		t.Fatalf("ProcessAudio: %v", err)
	}
	if sess.CurrentStatus() != session.StatusCompleted {
		t.Errorf("status = %s", sess.CurrentStatus())
	}
	if len(rep.Segments) != 2 {
		t.Fatalf("segments = %d", len(rep.Segments))
	}
	if rep.Segments[0].Speaker != "SPEAKER_00" || rep.Segments[1].Speaker != "SPEAKER_01" {
		t.Errorf("speaker labels = %q, %q", rep.Segments[0].Speaker, rep.Segments[1].Speaker)
	}
	if len(rep.Speakers) != 2 {
		t.Fatalf("speakers = %d", len(rep.Speakers))
	}
	// The candidate talks longest (5s vs 4s).
	for _, sp := range rep.Speakers {
		want := transcript.RoleInterviewer
		if sp.Label == "SPEAKER_01" {
			want = transcript.RoleCandidate
		}
		if sp.Role != want {
			t.Errorf("speaker %s role = %q, want %q", sp.Label, sp.Role, want)
		}
	}
	if len(rep.Semantic) != 3 {
		t.Fatalf("semantic results = %d", len(rep.Semantic))
	}
	for _, res := range rep.Semantic {
		if res.UsedFallback {
			t.Errorf("%s used fallback with a healthy provider", res.Type)
		}
	}
	if rep.Degraded() {
		t.Error("clean run produced a degraded report")
	}
}

func TestProcessDiarizationFailureCompletesWithImplicitSpeaker(t *testing.T) {
	p := newTestPipeline(t)
	p.diarizer.err = errors.New("diarization engine offline")
	sess := session.New("audio.wav", session.ModeBatch)

	rep, err := p.orch.ProcessAudio(context.Background(), sess, tenSecondsAudio())
	if err != nil {
		t.Fatalf("diarization failure must not fail the session: %v", err)
	}
	if sess.CurrentStatus() != session.StatusCompleted {
		t.Fatalf("status = %s, want completed", sess.CurrentStatus())
	}

	if len(rep.Speakers) != 1 || rep.Speakers[0].Label != ImplicitSpeaker {
		t.Errorf("speakers = %+v, want single %s", rep.Speakers, ImplicitSpeaker)
	}
	for _, s := range rep.Segments {
		if s.Speaker != ImplicitSpeaker {
			t.Errorf("segment speaker = %q", s.Speaker)
		}
	}

	var recorded bool
	for _, e := range sess.ErrorList() {
		if e.Stage == StageDiarization && e.Code == pipeerrors.ErrCodeStageFailure {
			recorded = true
		}
	}
	if !recorded {
		t.Error("diarization failure not recorded in the session error list")
	}
}

func TestProcessTranscriptionFailureIsFatal(t *testing.T) {
	p := newTestPipeline(t)
	p.transcriber.err = errors.New("stt engine offline")
	sess := session.New("audio.wav", session.ModeBatch)

	_, err := p.orch.ProcessAudio(context.Background(), sess, tenSecondsAudio())
	if err == nil {
		t.Fatal("transcription failure must fail the session")
	}
	if !pipeerrors.IsFatal(err) {
		t.Errorf("error not fatal: %v", err)
	}
	if sess.CurrentStatus() != session.StatusFailed {
		t.Errorf("status = %s, want failed", sess.CurrentStatus())
	}
}

func TestProcessFeatureFailureIsFatal(t *testing.T) {
	p := newTestPipeline(t)
	p.extractor.err = errors.New("dsp crashed")
	sess := session.New("audio.wav", session.ModeBatch)

	_, err := p.orch.ProcessAudio(context.Background(), sess, tenSecondsAudio())
	if err == nil {
		t.Fatal("feature-extraction failure must fail the session")
	}
	if sess.CurrentStatus() != session.StatusFailed {
		t.Errorf("status = %s, want failed", sess.CurrentStatus())
	}

	var recorded bool
	for _, e := range sess.ErrorList() {
		if e.Stage == StageFeatures {
			recorded = true
		}
	}
	if !recorded {
		t.Error("feature failure not recorded")
	}
}

func TestProcessSemanticExhaustionStillCompletes(t *testing.T) {
	p := newTestPipeline(t)
	p.semProvider.err = errors.New("llm unavailable")
	sess := session.New("audio.wav", session.ModeBatch)

	rep, err := p.orch.ProcessAudio(context.Background(), sess, tenSecondsAudio())
	if err != nil {
		t.Fatalf("semantic exhaustion must not fail the session: %v", err)
	}
	if sess.CurrentStatus() != session.StatusCompleted {
		t.Fatalf("status = %s, want completed", sess.CurrentStatus())
	}
	for _, res := range rep.Semantic {
		if !res.UsedFallback {
			t.Errorf("%s did not fall back", res.Type)
		}
	}
	if !rep.Degraded() {
		t.Error("fallback-built report not marked degraded")
	}
}

func TestProcessCancellation(t *testing.T) {
	p := newTestPipeline(t)
	p.transcriber.block = true
	sess := session.New("audio.wav", session.ModeBatch)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := p.orch.ProcessAudio(ctx, sess, tenSecondsAudio())
	if err == nil {
		t.Fatal("cancelled session returned no error")
	}
	if code := pipeerrors.CodeOf(err); code != pipeerrors.ErrCodeCancelled {
		t.Errorf("error code = %s, want %s", code, pipeerrors.ErrCodeCancelled)
	}
	if sess.CurrentStatus() != session.StatusFailed {
		t.Errorf("status = %s, want failed", sess.CurrentStatus())
	}
	if sess.FailReason != "cancelled" {
		t.Errorf("fail reason = %q", sess.FailReason)
	}
}

func TestProcessIdempotentReports(t *testing.T) {
	runOnce := func() *report.Report {
		p := newTestPipeline(t)
		sess := session.New("audio.wav", session.ModeBatch)
		rep, err := p.orch.ProcessAudio(context.Background(), sess, tenSecondsAudio())
		if err != nil {
			t.Fatalf("ProcessAudio: %v", err)
		}
		return rep
	}

	a := runOnce()
	b := runOnce()

	// Session IDs are freshly generated; everything else must match.
	a.SessionID, b.SessionID = "", ""
	aj, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	bj, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(aj) != string(bj) {
		t.Errorf("reports differ:\n%s\n%s", aj, bj)
	}
}

func TestProcessStream(t *testing.T) {
	p := newTestPipeline(t)
	sess := session.New("", session.ModeStreaming)

	chunks := make(chan []byte)
	go func() {
		defer close(chunks)
		// 6.2 seconds in 0.5s chunks plus a remainder.
		for sent := 0; sent < 198400; {
			n := 16000
			if 198400-sent < n {
				n = 198400 - sent
			}
			chunks <- make([]byte, n)
			sent += n
		}
	}()

	rep, err := p.orch.ProcessStream(context.Background(), sess, chunks)
	if err != nil {
		t.Fatalf("ProcessStream: %v", err)
	}
	if sess.CurrentStatus() != session.StatusCompleted {
		t.Errorf("status = %s", sess.CurrentStatus())
	}
	if len(rep.Segments) == 0 {
		t.Error("streaming session produced no segments")
	}
	if len(rep.DegradedIntervals) != 0 {
		t.Errorf("unexpected degraded intervals: %v", rep.DegradedIntervals)
	}
}

func TestProcessStreamRequiresStreamingMode(t *testing.T) {
	p := newTestPipeline(t)
	sess := session.New("audio.wav", session.ModeBatch)
	if _, err := p.orch.ProcessStream(context.Background(), sess, nil); err == nil {
		t.Fatal("batch session accepted by ProcessStream")
	}
}
