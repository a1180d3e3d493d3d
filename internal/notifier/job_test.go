package notifier

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcellovf/teste-lista-filmes/internal/data"
	"github.com/marcellovf/teste-lista-filmes/internal/jsonlog"
)

var now = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

// memoryStore mimics the SQL selection: released and not yet notified.
type memoryStore struct {
	mu        sync.Mutex
	movies    map[int64]*data.MovieRelease
	selectErr error
	markErr   map[int64]error
	selected  map[int64]int
	marked    map[int64]int
}

func newMemoryStore(movies ...*data.MovieRelease) *memoryStore {
	s := &memoryStore{
		movies:   make(map[int64]*data.MovieRelease),
		markErr:  make(map[int64]error),
		selected: make(map[int64]int),
		marked:   make(map[int64]int),
	}
	for _, m := range movies {
		s.movies[m.ID] = m
	}
	return s
}

func (s *memoryStore) GetDue(_ context.Context, at time.Time) ([]*data.MovieRelease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selectErr != nil {
		return nil, s.selectErr
	}

	var due []*data.MovieRelease
	for _, m := range s.movies {
		if !m.ReleaseDate.After(at) && !m.Notified {
			s.selected[m.ID]++
			cp := *m
			due = append(due, &cp)
		}
	}
	return due, nil
}

func (s *memoryStore) MarkNotified(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.markErr[id]; err != nil {
		return err
	}
	s.movies[id].Notified = true
	s.marked[id]++
	return nil
}

func (s *memoryStore) notified(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.movies[id].Notified
}

type sentMail struct {
	recipient string
	template  string
	title     string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMail
	fail func(recipient string) error
}

func (s *recordingSender) Send(recipient, templateFile string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail != nil {
		if err := s.fail(recipient); err != nil {
			return err
		}
	}

	fields := payload.(map[string]any)
	s.sent = append(s.sent, sentMail{recipient: recipient, template: templateFile, title: fields["Title"].(string)})
	return nil
}

func (s *recordingSender) sentTo(recipient string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, m := range s.sent {
		if m.recipient == recipient {
			n++
		}
	}
	return n
}

func email(s string) *string { return &s }

func newTestJob(store ReleaseStore, sender Sender) (*Job, *bytes.Buffer) {
	var buf bytes.Buffer
	job := NewJob(store, sender, jsonlog.NewLogger(&buf, jsonlog.LevelInfo))
	job.now = func() time.Time { return now }
	return job, &buf
}

func TestJobSendsReleasedMovie(t *testing.T) {
	store := newMemoryStore(&data.MovieRelease{
		ID: 1, Title: "Movie A", ReleaseDate: now.AddDate(0, 0, -1), SubmitterEmail: email("a@x.com"),
	})
	sender := &recordingSender{}
	job, _ := newTestJob(store, sender)

	res := job.Run(context.Background())

	assert.Equal(t, Result{Selected: 1, Sent: 1}, res)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, sentMail{recipient: "a@x.com", template: ReleaseTemplate, title: "Movie A"}, sender.sent[0])
	assert.True(t, store.notified(1))
}

func TestJobIgnoresUnreleasedMovie(t *testing.T) {
	store := newMemoryStore(&data.MovieRelease{
		ID: 2, Title: "Movie B", ReleaseDate: now.AddDate(0, 0, 1), SubmitterEmail: email("b@x.com"),
	})
	sender := &recordingSender{}
	job, buf := newTestJob(store, sender)

	res := job.Run(context.Background())

	assert.Equal(t, Result{}, res)
	assert.Empty(t, sender.sent)
	assert.False(t, store.notified(2))
	assert.Contains(t, buf.String(), "no pending releases")
}

func TestJobSkipsMovieWithoutSubmitterEmail(t *testing.T) {
	store := newMemoryStore(&data.MovieRelease{
		ID: 3, Title: "Movie C", ReleaseDate: now.AddDate(0, 0, -1),
	})
	sender := &recordingSender{}
	job, buf := newTestJob(store, sender)

	for tick := 0; tick < 3; tick++ {
		res := job.Run(context.Background())
		assert.Equal(t, Result{Selected: 1, Skipped: 1}, res)
	}

	assert.Empty(t, sender.sent)
	assert.False(t, store.notified(3))
	assert.Equal(t, 3, store.selected[3], "stuck movie is selected on every tick")
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), "movie has no submitter e-mail")
}

func TestJobRetriesFailedSendOnNextTick(t *testing.T) {
	store := newMemoryStore(&data.MovieRelease{
		ID: 4, Title: "Movie D", ReleaseDate: now.AddDate(0, 0, -1), SubmitterEmail: email("d@x.com"),
	})
	failing := true
	sender := &recordingSender{fail: func(string) error {
		if failing {
			return errors.New("smtp: 421 service not available")
		}
		return nil
	}}
	job, _ := newTestJob(store, sender)

	res := job.Run(context.Background())
	assert.Equal(t, Result{Selected: 1, Failed: 1}, res)
	assert.False(t, store.notified(4))

	failing = false
	res = job.Run(context.Background())
	assert.Equal(t, Result{Selected: 1, Sent: 1}, res)
	assert.True(t, store.notified(4))

	res = job.Run(context.Background())
	assert.Equal(t, Result{}, res, "notified movie is never selected again")

	assert.Equal(t, 1, sender.sentTo("d@x.com"))
	assert.Equal(t, 1, store.marked[4])
}

func TestJobIsolatesFailures(t *testing.T) {
	released := now.AddDate(0, 0, -2)
	store := newMemoryStore(
		&data.MovieRelease{ID: 10, Title: "Broken mailbox", ReleaseDate: released, SubmitterEmail: email("bad@x.com")},
		&data.MovieRelease{ID: 11, Title: "Update fails", ReleaseDate: released, SubmitterEmail: email("flaky@x.com")},
		&data.MovieRelease{ID: 12, Title: "Fine", ReleaseDate: released, SubmitterEmail: email("ok@x.com")},
		&data.MovieRelease{ID: 13, Title: "Orphan", ReleaseDate: released},
	)
	store.markErr[11] = errors.New("connection reset")
	sender := &recordingSender{fail: func(recipient string) error {
		if recipient == "bad@x.com" {
			return errors.New("550 mailbox unavailable")
		}
		return nil
	}}
	job, _ := newTestJob(store, sender)

	res := job.Run(context.Background())

	assert.Equal(t, Result{Selected: 4, Sent: 1, Skipped: 1, Failed: 2}, res)
	assert.False(t, store.notified(10))
	assert.False(t, store.notified(11), "flag stays false when the update fails")
	assert.True(t, store.notified(12))
	assert.False(t, store.notified(13))

	// The e-mail went out but the flag write failed, so the next tick repeats it.
	store.markErr[11] = nil
	res = job.Run(context.Background())
	assert.Equal(t, 2, sender.sentTo("flaky@x.com"))
	assert.True(t, store.notified(11))
	assert.Equal(t, Result{Selected: 3, Sent: 1, Skipped: 1, Failed: 1}, res)
}

func TestJobSelectionFailureEndsTick(t *testing.T) {
	store := newMemoryStore()
	store.selectErr = errors.New("database is down")
	sender := &recordingSender{}
	job, buf := newTestJob(store, sender)

	res := job.Run(context.Background())

	assert.Equal(t, Result{}, res)
	assert.Empty(t, sender.sent)
	assert.Contains(t, buf.String(), "select due releases: database is down")
}

func TestJobRecoversFromSenderPanic(t *testing.T) {
	store := newMemoryStore(
		&data.MovieRelease{ID: 20, Title: "Panics", ReleaseDate: now, SubmitterEmail: email("panic@x.com")},
	)
	sender := &recordingSender{fail: func(string) error { panic("nil dialer") }}
	job, buf := newTestJob(store, sender)

	var res Result
	assert.NotPanics(t, func() { res = job.Run(context.Background()) })
	assert.Equal(t, Result{Selected: 1, Failed: 1}, res)
	assert.False(t, store.notified(20))
	assert.Contains(t, buf.String(), "notify release panic: nil dialer")
}

func TestJobStopsWhenContextCancelled(t *testing.T) {
	store := newMemoryStore(
		&data.MovieRelease{ID: 30, Title: "Later", ReleaseDate: now, SubmitterEmail: email("later@x.com")},
	)
	sender := &recordingSender{}
	job, _ := newTestJob(store, sender)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := job.Run(ctx)

	assert.Equal(t, Result{Selected: 1}, res)
	assert.Empty(t, sender.sent)
	assert.False(t, store.notified(30))
}
