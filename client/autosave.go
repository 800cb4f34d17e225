package client

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/cts/core/review"
)

// DefaultAutosaveDelay is how long an SME form must stay unchanged before its draft is saved.
const DefaultAutosaveDelay = 300 * time.Millisecond

// ErrAutosaverClosed is returned by Flush once the Autosaver is closed.
var ErrAutosaverClosed = errors.New("autosaver closed")

// DraftStore keeps SME review drafts by application subject.
type DraftStore interface {
	SaveDraft(ctx context.Context, d review.Draft) error
	// LoadDraft returns an error matching IsDraftNotFound when no draft exists.
	LoadDraft(ctx context.Context, subjectID int) (review.Draft, error)
	DeleteDraft(ctx context.Context, subjectID int) error
}

var errDraftNotFound = errors.New("draft not found")

func IsDraftNotFound(err error) bool {
	return errors.Cause(err) == errDraftNotFound || IsStatus(err, http.StatusNotFound)
}

// ServerDraftStore keeps drafts on the API.
type ServerDraftStore struct {
	c *Client
}

var _ DraftStore = (*ServerDraftStore)(nil)

func NewServerDraftStore(c *Client) *ServerDraftStore {
	return &ServerDraftStore{c: c}
}

func (s *ServerDraftStore) SaveDraft(ctx context.Context, d review.Draft) error {
	_, err := s.c.SaveDraft(ctx, d.ApplicationSubjectID, d)
	return err
}

func (s *ServerDraftStore) LoadDraft(ctx context.Context, subjectID int) (review.Draft, error) {
	return s.c.GetDraft(ctx, subjectID)
}

func (s *ServerDraftStore) DeleteDraft(ctx context.Context, subjectID int) error {
	err := s.c.DeleteDraft(ctx, subjectID)
	if IsDraftNotFound(err) {
		return nil
	}
	return err
}

// FileDraftStore keeps drafts as JSON files of a local directory.
type FileDraftStore struct {
	dir string
}

var _ DraftStore = (*FileDraftStore)(nil)

func NewFileDraftStore(dir string) *FileDraftStore {
	return &FileDraftStore{dir: dir}
}

func (s *FileDraftStore) path(subjectID int) string {
	return filepath.Join(s.dir, review.DraftKey(subjectID)+".json")
}

func (s *FileDraftStore) SaveDraft(_ context.Context, d review.Draft) error {
	if d.IsEmpty() {
		return s.DeleteDraft(context.Background(), d.ApplicationSubjectID)
	}
	if d.SavedAt.IsZero() {
		d.SavedAt = time.Now().UTC()
	}
	data, err := json.Marshal(d)
	if err != nil {
		return errors.Wrap(err, "encoding draft")
	}
	return writeFileAtomic(s.path(d.ApplicationSubjectID), data)
}

func (s *FileDraftStore) LoadDraft(_ context.Context, subjectID int) (review.Draft, error) {
	data, err := os.ReadFile(s.path(subjectID))
	if os.IsNotExist(err) {
		return review.Draft{}, errDraftNotFound
	}
	if err != nil {
		return review.Draft{}, errors.Wrap(err, "reading draft")
	}
	var d review.Draft
	if err = json.Unmarshal(data, &d); err != nil {
		return review.Draft{}, errors.Wrap(err, "decoding draft")
	}
	return d, nil
}

func (s *FileDraftStore) DeleteDraft(_ context.Context, subjectID int) error {
	if err := os.Remove(s.path(subjectID)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing draft")
	}
	return nil
}

type AutosaverOption func(*Autosaver)

func WithAutosaveDelay(d time.Duration) AutosaverOption {
	return func(a *Autosaver) { a.delay = d }
}

// WithSaveErrorHandler receives the errors of background saves.
func WithSaveErrorHandler(fn func(review.Draft, error)) AutosaverOption {
	return func(a *Autosaver) { a.onError = fn }
}

// Autosaver saves the latest draft of an SME form once it stopped changing.
type Autosaver struct {
	store   DraftStore
	delay   time.Duration
	onError func(review.Draft, error)

	saveMu sync.Mutex // serializes writes, in update order

	mu      sync.Mutex
	timer   *time.Timer
	pending *review.Draft
	closed  bool
	wg      sync.WaitGroup
}

func NewAutosaver(store DraftStore, opts ...AutosaverOption) *Autosaver {
	a := &Autosaver{
		store:   store,
		delay:   DefaultAutosaveDelay,
		onError: func(review.Draft, error) {},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Update records the form content and restarts the debounce timer.
// Updates after Close are dropped.
func (a *Autosaver) Update(d review.Draft) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.pending = &d
	a.stopTimerLocked()
	a.wg.Add(1)
	a.timer = time.AfterFunc(a.delay, a.fire)
}

// Flush saves the pending draft now.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrAutosaverClosed
	}
	a.stopTimerLocked()
	a.mu.Unlock()

	return a.save(ctx)
}

// Close saves the pending draft and waits for background saves to end.
func (a *Autosaver) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.stopTimerLocked()
	a.mu.Unlock()

	err := a.save(ctx)
	a.wg.Wait()
	return err
}

// stopTimerLocked cancels a scheduled save that has not started yet.
func (a *Autosaver) stopTimerLocked() {
	if a.timer != nil && a.timer.Stop() {
		a.wg.Done()
	}
	a.timer = nil
}

func (a *Autosaver) fire() {
	defer a.wg.Done()
	_ = a.save(context.Background()) // reported to onError
}

func (a *Autosaver) save(ctx context.Context) error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.Lock()
	d := a.pending
	a.pending = nil
	a.mu.Unlock()
	if d == nil {
		return nil
	}

	if err := a.store.SaveDraft(ctx, *d); err != nil {
		a.mu.Lock()
		if a.pending == nil {
			a.pending = d
		}
		a.mu.Unlock()
		a.onError(*d, err)
		return errors.Wrap(err, "saving draft")
	}
	return nil
}
