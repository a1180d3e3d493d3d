// Package notifier e-mails submitters when a movie they added is released.
//
// A Job performs one tick: it selects every released movie whose notified
// flag is still false, sends one e-mail per movie to the submitter and sets
// the flag once the send succeeded. The send and the flag update are not
// atomic, so a crash between them repeats the e-mail on the next tick
// (at-least-once delivery). Failed sends stay unnotified and are retried on
// every later tick without backoff. Movies without a submitter address are
// skipped on every tick and never marked.
package notifier

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/marcellovf/teste-lista-filmes/internal/data"
	"github.com/marcellovf/teste-lista-filmes/internal/jsonlog"
)

// ReleaseTemplate is the mailer template used for release e-mails.
const ReleaseTemplate = "movie_released.tmpl"

// ReleaseStore is the part of the movie store the job reads and writes.
type ReleaseStore interface {
	GetDue(ctx context.Context, now time.Time) ([]*data.MovieRelease, error)
	MarkNotified(ctx context.Context, id int64) error
}

// Sender delivers one templated e-mail. mailer.Mailer satisfies it.
type Sender interface {
	Send(recipient, templateFile string, data any) error
}

// Result counts what happened to the movies selected in one tick.
type Result struct {
	Selected int
	Sent     int
	Skipped  int
	Failed   int
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeSkipped
	outcomeFailed
)

// attempt pairs a due movie with the address it will be sent to. It lives
// for the duration of a single tick.
type attempt struct {
	release   *data.MovieRelease
	recipient string
}

// Job is one release-notification pass over the movie store.
type Job struct {
	store  ReleaseStore
	sender Sender
	logger *jsonlog.Logger
	now    func() time.Time
}

// NewJob returns a Job that reads the current time from the wall clock.
func NewJob(store ReleaseStore, sender Sender, logger *jsonlog.Logger) *Job {
	return &Job{
		store:  store,
		sender: sender,
		logger: logger,
		now:    time.Now,
	}
}

// Run executes one tick. Errors are logged, never returned: a failed
// selection ends the tick, a failure on one movie does not affect the others.
// If ctx is cancelled the remaining movies are left for the next tick.
func (j *Job) Run(ctx context.Context) (res Result) {
	defer func() {
		if err := recover(); err != nil {
			j.logger.PrintError(fmt.Errorf("release notifier panic: %s", err), nil)
		}
	}()

	now := j.now()

	releases, err := j.store.GetDue(ctx, now)
	if err != nil {
		j.logger.PrintError(fmt.Errorf("select due releases: %w", err), map[string]string{
			"now": now.UTC().Format(time.RFC3339),
		})
		return res
	}

	res.Selected = len(releases)
	if res.Selected == 0 {
		j.logger.PrintInfo("no pending releases", nil)
		return res
	}

	for _, release := range releases {
		if ctx.Err() != nil {
			j.logger.PrintWarn("release notifier interrupted", map[string]string{
				"remaining": strconv.Itoa(res.Selected - res.Sent - res.Skipped - res.Failed),
			})
			break
		}

		switch j.notify(ctx, release) {
		case outcomeSent:
			res.Sent++
		case outcomeSkipped:
			res.Skipped++
		case outcomeFailed:
			res.Failed++
		}
	}

	j.logger.PrintInfo("release notifier finished", map[string]string{
		"selected": strconv.Itoa(res.Selected),
		"sent":     strconv.Itoa(res.Sent),
		"skipped":  strconv.Itoa(res.Skipped),
		"failed":   strconv.Itoa(res.Failed),
	})

	return res
}

func (j *Job) notify(ctx context.Context, release *data.MovieRelease) (out outcome) {
	props := map[string]string{
		"movie_id": strconv.FormatInt(release.ID, 10),
		"title":    release.Title,
	}

	defer func() {
		if err := recover(); err != nil {
			j.logger.PrintError(fmt.Errorf("notify release panic: %s", err), props)
			out = outcomeFailed
		}
	}()

	if release.SubmitterEmail == nil || *release.SubmitterEmail == "" {
		j.logger.PrintWarn("movie has no submitter e-mail, skipping", props)
		return outcomeSkipped
	}

	a := attempt{release: release, recipient: *release.SubmitterEmail}

	if err := j.send(a); err != nil {
		j.logger.PrintError(fmt.Errorf("send release e-mail: %w", err), props)
		return outcomeFailed
	}

	// The e-mail is out; if this write fails the next tick sends it again.
	if err := j.store.MarkNotified(ctx, a.release.ID); err != nil {
		j.logger.PrintError(fmt.Errorf("mark movie notified: %w", err), props)
		return outcomeFailed
	}

	props["recipient"] = a.recipient
	j.logger.PrintInfo("release e-mail sent", props)

	return outcomeSent
}

func (j *Job) send(a attempt) error {
	payload := map[string]any{
		"Title":       a.release.Title,
		"ReleaseDate": a.release.ReleaseDate.Format(data.DateLayout),
	}

	return j.sender.Send(a.recipient, ReleaseTemplate, payload)
}
