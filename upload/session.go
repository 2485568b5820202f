package upload

import (
	"context"
	"sync"

	"github.com/placereel/placereel/domain"
)

// State of an upload session.
type State int

const (
	// StateIdle means the session exists but no transfer has started.
	StateIdle State = iota
	// StateUploading means chunks are in flight.
	StateUploading
	// StatePaused means the transfer was suspended and can resume.
	StatePaused
	// StateSucceeded means all bytes landed. Err may still carry a
	// PartialUploadError when the metadata-attach step failed.
	StateSucceeded
	// StateFailed means the retry schedule was exhausted. Resume is still
	// possible; it re-queries the server offset before continuing.
	StateFailed
	// StateCancelled means the session was discarded.
	StateCancelled
)

// Session is one resumable transfer of a recorded artifact.
type Session struct {
	up          *Uploader
	fingerprint string
	artifact    domain.Artifact
	meta        domain.UploadMetadata
	progressFn  func(percent float64)

	mu        sync.Mutex
	state     State
	uploadURL string
	videoID   string
	offset    int64
	percent   float64
	err       error
	cancelRun context.CancelFunc
	runDone   chan struct{}
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure reason after StateFailed, or the
// PartialUploadError of a succeeded-but-unattached upload.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Progress returns the percentage of bytes uploaded. It is monotonically
// non-decreasing within an unpaused session and resets only on Cancel.
func (s *Session) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.percent
}

// VideoID returns the backend id of the uploaded record once the final
// chunk has been acknowledged.
func (s *Session) VideoID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoID
}

// Wait blocks until the in-flight transfer goroutine exits, whether by
// completion, failure, pause or cancel.
func (s *Session) Wait() {
	s.mu.Lock()
	done := s.runDone
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Pause suspends the transfer, preserving resumability. The in-flight
// chunk request is aborted.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUploading {
		return
	}
	s.state = StatePaused
	if s.cancelRun != nil {
		s.cancelRun()
	}
}

// Resume continues a paused or failed session. The server is re-queried
// for the bytes it already holds before any further chunk is sent.
func (s *Session) Resume(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePaused && s.state != StateFailed {
		return
	}
	s.err = nil
	s.begin(ctx)
}

// Cancel aborts the transfer and discards the session, including its
// persisted resume record. Progress resets to zero.
func (s *Session) Cancel(ctx context.Context) {
	s.mu.Lock()
	if s.state == StateSucceeded || s.state == StateCancelled {
		s.mu.Unlock()
		return
	}
	s.state = StateCancelled
	s.offset = 0
	s.percent = 0
	if s.cancelRun != nil {
		s.cancelRun()
	}
	s.mu.Unlock()

	if err := s.up.store.Delete(ctx, s.fingerprint); err != nil {
		s.up.logger.Warn("delete resume record failed", "fingerprint", s.fingerprint, "error", err)
	}
}

// begin transitions to StateUploading and spawns the transfer goroutine.
// Caller must hold s.mu.
func (s *Session) begin(ctx context.Context) {
	s.state = StateUploading
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRun = cancel
	done := make(chan struct{})
	s.runDone = done
	go func() {
		defer close(done)
		defer cancel()
		s.up.run(runCtx, s)
	}()
}

// reportProgress updates the percentage, keeping it non-decreasing.
func (s *Session) reportProgress() {
	s.mu.Lock()
	pct := float64(0)
	if s.artifact.Size > 0 {
		pct = float64(s.offset) / float64(s.artifact.Size) * 100
	}
	if pct < s.percent {
		pct = s.percent
	}
	s.percent = pct
	fn := s.progressFn
	s.mu.Unlock()

	if fn != nil {
		fn(pct)
	}
}
