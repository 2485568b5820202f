// Package upload drives the resumable chunked transfer of recorded video:
// fixed-size chunks, an escalating per-chunk retry schedule, pause/resume
// against the server's recorded offset, and the follow-up request that
// attaches location metadata to the uploaded record.
package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/placereel/placereel/domain"
)

// ResumeStore persists enough state to pick an interrupted transfer back
// up across process restarts. localstate.Store satisfies it.
type ResumeStore interface {
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context, fingerprint string) (*Record, error)
	Delete(ctx context.Context, fingerprint string) error
}

// Record is the persisted resume state for one fingerprinted artifact.
type Record struct {
	Fingerprint string
	UploadURL   string
	Offset      int64
}

// MetadataAttacher performs the follow-up request associating location
// metadata with the uploaded record. backend.Client satisfies it.
type MetadataAttacher interface {
	AttachVideoLocation(ctx context.Context, videoID string, meta domain.UploadMetadata) error
}

// Options configure the uploader.
type Options struct {
	// Endpoint is the URL that creates upload sessions.
	Endpoint string
	// ChunkSize is the fixed chunk size in bytes.
	ChunkSize int64
	// RetryDelays is the escalating per-chunk schedule; its length is the
	// number of attempts for each chunk.
	RetryDelays []time.Duration
}

// Uploader creates and drives upload sessions.
type Uploader struct {
	opts       Options
	httpClient *http.Client
	tokens     domain.TokenSource
	online     domain.Connectivity
	store      ResumeStore
	attach     MetadataAttacher
	logger     *slog.Logger
}

// NewUploader creates an uploader. online may be nil to skip the
// reachability pre-check.
func NewUploader(opts Options, tokens domain.TokenSource, online domain.Connectivity, store ResumeStore, attach MetadataAttacher, logger *slog.Logger) *Uploader {
	return &Uploader{
		opts:       opts,
		httpClient: &http.Client{},
		tokens:     tokens,
		online:     online,
		store:      store,
		attach:     attach,
		logger:     logger,
	}
}

// Fingerprint identifies an artifact deterministically so an interrupted
// transfer of the same file can be found again.
func Fingerprint(a domain.Artifact) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("placereel-upload:%s:%d", a.Path, a.Size))).String()
}

// Start validates the metadata and begins a new session. It fails fast
// with ErrNoConnectivity when the device is offline and with a
// ValidationError when required metadata is missing or malformed; neither
// case issues a network call.
func (u *Uploader) Start(ctx context.Context, artifact domain.Artifact, meta domain.UploadMetadata, progress func(percent float64)) (*Session, error) {
	if u.online != nil && !u.online.Online() {
		return nil, domain.ErrNoConnectivity
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		up:          u,
		fingerprint: Fingerprint(artifact),
		artifact:    artifact,
		meta:        meta,
		progressFn:  progress,
	}
	s.mu.Lock()
	s.begin(ctx)
	s.mu.Unlock()
	return s, nil
}

// run performs the transfer until completion, pause, cancel or retry
// exhaustion.
func (u *Uploader) run(ctx context.Context, s *Session) {
	s.mu.Lock()
	uploadURL := s.uploadURL
	s.mu.Unlock()

	if uploadURL == "" {
		// a previous process run may have left a resumable transfer
		if rec, err := u.store.Load(ctx, s.fingerprint); err != nil {
			u.logger.Warn("resume lookup failed", "fingerprint", s.fingerprint, "error", err)
		} else if rec != nil {
			uploadURL = rec.UploadURL
		}
	}

	if uploadURL == "" {
		created, err := u.createSession(ctx, s)
		if err != nil {
			u.finish(ctx, s, err)
			return
		}
		uploadURL = created
		s.mu.Lock()
		s.uploadURL = uploadURL
		s.offset = 0
		s.mu.Unlock()
		u.saveRecord(ctx, s, 0)
	} else {
		// the server's offset is the source of truth, not whatever the
		// local record or a failed run left behind
		offset, err := u.probeOffset(ctx, uploadURL)
		if err != nil {
			u.finish(ctx, s, fmt.Errorf("query uploaded ranges: %w", err))
			return
		}
		s.mu.Lock()
		s.uploadURL = uploadURL
		s.offset = offset
		s.mu.Unlock()
	}

	file, err := os.Open(s.artifact.Path)
	if err != nil {
		u.finish(ctx, s, fmt.Errorf("open artifact: %w", err))
		return
	}
	defer file.Close()

	buf := make([]byte, u.opts.ChunkSize)
	for {
		s.mu.Lock()
		offset := s.offset
		s.mu.Unlock()
		if offset >= s.artifact.Size {
			break
		}

		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			u.finish(ctx, s, fmt.Errorf("seek artifact: %w", err))
			return
		}
		size := s.artifact.Size - offset
		if size > u.opts.ChunkSize {
			size = u.opts.ChunkSize
		}
		if _, err := io.ReadFull(file, buf[:size]); err != nil {
			u.finish(ctx, s, fmt.Errorf("read artifact: %w", err))
			return
		}

		newOffset, body, err := u.sendChunkWithRetry(ctx, s, offset, buf[:size])
		if err != nil {
			u.finish(ctx, s, err)
			return
		}

		s.mu.Lock()
		s.offset = newOffset
		s.mu.Unlock()
		u.saveRecord(ctx, s, newOffset)
		s.reportProgress()

		if newOffset >= s.artifact.Size && len(body) > 0 {
			var final struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(body, &final); err == nil && final.ID != "" {
				s.mu.Lock()
				s.videoID = final.ID
				s.mu.Unlock()
			}
		}
	}

	u.complete(ctx, s)
}

// sendChunkWithRetry sends one chunk, retrying over the configured delay
// schedule. Between attempts the server offset is re-queried so a
// partially received chunk is not re-sent from a stale position.
func (u *Uploader) sendChunkWithRetry(ctx context.Context, s *Session, offset int64, chunk []byte) (int64, []byte, error) {
	var lastErr error
	for attempt, delay := range u.opts.RetryDelays {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}

		newOffset, body, err := u.sendChunk(ctx, s, offset, chunk)
		if err == nil {
			return newOffset, body, nil
		}
		if errors.Is(err, context.Canceled) {
			return 0, nil, err
		}
		lastErr = err
		u.logger.Warn("chunk upload failed",
			"fingerprint", s.fingerprint,
			"offset", offset,
			"attempt", attempt+1,
			"error", err,
		)

		s.mu.Lock()
		uploadURL := s.uploadURL
		s.mu.Unlock()
		if probed, perr := u.probeOffset(ctx, uploadURL); perr == nil && probed != offset {
			// the server kept part of the chunk; hand the new position
			// back to the main loop for a re-read
			return probed, nil, nil
		}
	}
	return 0, nil, fmt.Errorf("chunk at offset %d exhausted %d attempts: %w", offset, len(u.opts.RetryDelays), lastErr)
}

func (u *Uploader) sendChunk(ctx context.Context, s *Session, offset int64, chunk []byte) (int64, []byte, error) {
	s.mu.Lock()
	uploadURL := s.uploadURL
	s.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, uploadURL, bytes.NewReader(chunk))
	if err != nil {
		return 0, nil, fmt.Errorf("create chunk request: %w", err)
	}
	if err := u.authorize(ctx, req); err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/offset+octet-stream")
	req.Header.Set("Upload-Offset", strconv.FormatInt(offset, 10))

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("send chunk: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read chunk response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, nil, &domain.RequestError{Status: resp.StatusCode, Body: string(body)}
	}

	newOffset := offset + int64(len(chunk))
	if h := resp.Header.Get("Upload-Offset"); h != "" {
		parsed, perr := strconv.ParseInt(h, 10, 64)
		if perr != nil {
			return 0, nil, fmt.Errorf("parse Upload-Offset %q: %w", h, perr)
		}
		newOffset = parsed
	}
	return newOffset, body, nil
}

// probeOffset asks the server how many bytes it already holds.
func (u *Uploader) probeOffset(ctx context.Context, uploadURL string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, uploadURL, nil)
	if err != nil {
		return 0, fmt.Errorf("create probe request: %w", err)
	}
	if err := u.authorize(ctx, req); err != nil {
		return 0, err
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("probe offset: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, &domain.RequestError{Status: resp.StatusCode, Body: ""}
	}
	h := resp.Header.Get("Upload-Offset")
	if h == "" {
		return 0, fmt.Errorf("probe response missing Upload-Offset")
	}
	offset, err := strconv.ParseInt(h, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse Upload-Offset %q: %w", h, err)
	}
	return offset, nil
}

// createSession registers the transfer with the backend and returns the
// upload URL for its chunks.
func (u *Uploader) createSession(ctx context.Context, s *Session) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.opts.Endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create session request: %w", err)
	}
	if err := u.authorize(ctx, req); err != nil {
		return "", err
	}
	req.Header.Set("Upload-Length", strconv.FormatInt(s.artifact.Size, 10))
	req.Header.Set("Upload-Metadata", encodeMetadata(s.meta.Pairs()))

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create upload session: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read session response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &domain.RequestError{Status: resp.StatusCode, Body: string(body)}
	}

	loc, err := resp.Location()
	if err != nil {
		return "", fmt.Errorf("session response missing Location: %w", err)
	}
	return loc.String(), nil
}

func (u *Uploader) authorize(ctx context.Context, req *http.Request) error {
	token, err := u.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("fetch token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// complete runs the metadata-attach step and settles the terminal state.
func (u *Uploader) complete(ctx context.Context, s *Session) {
	s.mu.Lock()
	videoID := s.videoID
	meta := s.meta
	s.mu.Unlock()

	var attachErr error
	if videoID == "" {
		attachErr = fmt.Errorf("upload finished without a video id")
	} else if err := u.attach.AttachVideoLocation(ctx, videoID, meta); err != nil {
		attachErr = err
	}

	if err := u.store.Delete(ctx, s.fingerprint); err != nil {
		u.logger.Warn("delete resume record failed", "fingerprint", s.fingerprint, "error", err)
	}

	s.mu.Lock()
	if s.state == StateCancelled {
		s.mu.Unlock()
		return
	}
	s.state = StateSucceeded
	if attachErr != nil {
		// the bytes landed but the record has no location metadata; the
		// user must not be told the post fully succeeded
		s.err = &domain.PartialUploadError{Err: attachErr}
	}
	s.mu.Unlock()
	s.reportProgress()

	if attachErr != nil {
		u.logger.Warn("upload succeeded without metadata", "video_id", videoID, "error", attachErr)
	} else {
		u.logger.Info("upload complete", "video_id", videoID)
	}
}

// finish settles a run that did not complete: cancellation and pause keep
// their states, everything else becomes StateFailed with the reason set.
func (u *Uploader) finish(ctx context.Context, s *Session, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state == StateCancelled:
	case s.state == StatePaused, errors.Is(err, context.Canceled):
		// aborted in flight; the session stays resumable
		if s.state == StateUploading {
			s.state = StatePaused
		}
	default:
		s.state = StateFailed
		s.err = err
		u.logger.Error("upload failed", "fingerprint", s.fingerprint, "error", err)
	}
}

func (u *Uploader) saveRecord(ctx context.Context, s *Session, offset int64) {
	s.mu.Lock()
	rec := Record{Fingerprint: s.fingerprint, UploadURL: s.uploadURL, Offset: offset}
	s.mu.Unlock()
	if err := u.store.Save(ctx, rec); err != nil {
		u.logger.Warn("save resume record failed", "fingerprint", s.fingerprint, "error", err)
	}
}

// encodeMetadata renders pairs in the wire format of the resumable upload
// protocol: comma-separated "key base64(value)" entries, keys sorted for a
// stable header.
func encodeMetadata(pairs map[string]string) string {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]string, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, k+" "+base64.StdEncoding.EncodeToString([]byte(pairs[k])))
	}
	return strings.Join(entries, ",")
}
