package orchestrator

import (
	"context"

	pipeerrors "github.com/skillsenselab/interview-analyzer/errors"
	"github.com/skillsenselab/interview-analyzer/ingest"
	"github.com/skillsenselab/interview-analyzer/report"
	"github.com/skillsenselab/interview-analyzer/session"
)

// ProcessStream drives the streaming ingest buffer from a live chunk
// source, publishing partial transcript updates as windows flush, then
// runs the full pipeline over the accumulated audio once the source
// closes. Intervals dropped under backpressure carry into the final
// report as degraded.
func (o *Orchestrator) ProcessStream(ctx context.Context, sess *session.Session, chunks <-chan []byte) (*report.Report, error) {
	log := o.log.WithSession(sess.ID)

	if sess.Mode != session.ModeStreaming {
		return nil, pipeerrors.InvalidInput("ProcessStream requires a streaming-mode session")
	}
	if err := sess.Transition(session.StatusRecording); err != nil {
		return nil, pipeerrors.InvalidInput(err.Error())
	}

	buf := ingest.NewBuffer(sess.ID, o.transcriber, o.publisher, o.cfg.Ingest, o.log)

	var audio []byte
recording:
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				break recording
			}
			audio = append(audio, chunk...)
			if err := buf.Push(chunk); err != nil {
				return nil, err
			}
			if _, err := buf.FlushIfDue(ctx); err != nil {
				return nil, err
			}
		case <-ctx.Done():
			return nil, o.cancelSession(sess, log)
		}
	}

	if _, err := buf.Finalize(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, o.cancelSession(sess, log)
		}
		return nil, err
	}

	return o.run(ctx, sess, audio, buf.DegradedIntervals())
}
