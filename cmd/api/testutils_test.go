package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marcellovf/teste-lista-filmes/internal/data"
	"github.com/marcellovf/teste-lista-filmes/internal/jsonlog"
	"github.com/marcellovf/teste-lista-filmes/internal/notifier"
	"github.com/marcellovf/teste-lista-filmes/internal/session"
)

const testPassword = "pa55word"

type fakeUsers struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*data.User
}

func (m *fakeUsers) Insert(user *data.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return data.ErrDuplicateEmail
		}
	}

	m.nextID++
	user.ID = m.nextID
	user.CreatedAt = time.Now()
	user.Version = 1

	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *fakeUsers) Get(id int64) (*data.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, data.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *fakeUsers) GetByEmail(email string) (*data.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, data.ErrRecordNotFound
}

func (m *fakeUsers) Update(user *data.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.users[user.ID]
	if !ok || stored.Version != user.Version {
		return data.ErrEditConflict
	}

	user.Version++
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *fakeUsers) Delete(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return data.ErrRecordNotFound
	}
	delete(m.users, id)
	return nil
}

type fakeMovies struct {
	mu     sync.Mutex
	nextID int64
	movies map[int64]*data.Movie
}

func (m *fakeMovies) Insert(movie *data.Movie) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	movie.ID = m.nextID
	movie.CreatedAt = time.Now()
	movie.Version = 1

	cp := *movie
	m.movies[movie.ID] = &cp
	return nil
}

func (m *fakeMovies) Get(id int64) (*data.Movie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	movie, ok := m.movies[id]
	if !ok {
		return nil, data.ErrRecordNotFound
	}
	cp := *movie
	return &cp, nil
}

func (m *fakeMovies) GetAll(query data.MovieQuery) ([]*data.Movie, data.Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	movies := []*data.Movie{}
	for _, movie := range m.movies {
		if query.Title != "" && !strings.Contains(strings.ToLower(movie.Title), strings.ToLower(query.Title)) {
			continue
		}
		cp := *movie
		movies = append(movies, &cp)
	}
	sort.Slice(movies, func(i, j int) bool { return movies[i].ID < movies[j].ID })

	return movies, data.Metadata{CurrentPage: 1, PageSize: query.PageSize, FirstPage: 1, LastPage: 1, TotalRecords: len(movies)}, nil
}

func (m *fakeMovies) Update(movie *data.Movie) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.movies[movie.ID]
	if !ok || stored.Version != movie.Version {
		return data.ErrEditConflict
	}

	movie.Version++
	cp := *movie
	m.movies[movie.ID] = &cp
	return nil
}

func (m *fakeMovies) Delete(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.movies[id]; !ok {
		return data.ErrRecordNotFound
	}
	delete(m.movies, id)
	return nil
}

type fakeGenres []data.Genre

func (g fakeGenres) GetAll() ([]data.Genre, error) {
	return g, nil
}

func (g fakeGenres) AllExist(ids []int64) (bool, error) {
	for _, id := range ids {
		found := false
		for _, genre := range g {
			if genre.ID == id {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}
	return true, nil
}

type sentMail struct {
	recipient string
	template  string
	data      any
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) Send(recipient, templateFile string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, sentMail{recipient: recipient, template: templateFile, data: data})
	return nil
}

func (m *recordingMailer) messages() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]sentMail(nil), m.sent...)
}

type memoryPosters struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (p *memoryPosters) Save(originalName string, data []byte) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	url := postersURLPrefix + "/" + originalName
	p.files[url] = data
	return url, nil
}

// noReleases keeps the scheduler's job inert in handler tests.
type noReleases struct{}

func (noReleases) GetDue(context.Context, time.Time) ([]*data.MovieRelease, error) { return nil, nil }
func (noReleases) MarkNotified(context.Context, int64) error                       { return nil }

type testApplication struct {
	*application
	users   *fakeUsers
	movies  *fakeMovies
	mail    *recordingMailer
	posters *memoryPosters
}

func newTestApplication(t *testing.T) *testApplication {
	t.Helper()

	logger := jsonlog.NewLogger(io.Discard, jsonlog.LevelOff)
	mail := &recordingMailer{}

	scheduler, err := notifier.NewScheduler(notifier.DefaultSchedule, notifier.NewJob(noReleases{}, mail, logger), logger)
	require.NoError(t, err)
	t.Cleanup(func() { scheduler.Stop(context.Background()) })

	var cfg config
	cfg.env = "testing"
	cfg.baseURL = "http://movies.test"
	cfg.session.ttl = time.Hour
	cfg.session.verificationTTL = 24 * time.Hour
	cfg.posters.dir = t.TempDir()

	ta := &testApplication{
		users:   &fakeUsers{users: make(map[int64]*data.User)},
		movies:  &fakeMovies{movies: make(map[int64]*data.Movie)},
		mail:    mail,
		posters: &memoryPosters{files: make(map[string][]byte)},
	}

	ta.application = &application{
		config: cfg,
		logger: logger,
		models: data.Models{
			Movies: ta.movies,
			Users:  ta.users,
			Genres: fakeGenres{{ID: 1, Name: "Drama"}, {ID: 2, Name: "Romance"}, {ID: 3, Name: "War"}},
		},
		mailer:   mail,
		sessions: session.NewManager("test-secret"),
		posters:  ta.posters,
		notifier: scheduler,
	}

	return ta
}

// addUser stores a user whose password is testPassword.
func (ta *testApplication) addUser(t *testing.T, email string, verified bool) *data.User {
	t.Helper()

	user := &data.User{Name: "Test User", Email: email, Verified: verified}
	require.NoError(t, user.Password.Set(testPassword))
	require.NoError(t, ta.users.Insert(user))
	return user
}

func (ta *testApplication) sessionCookie(t *testing.T, user *data.User) *http.Cookie {
	t.Helper()

	token, _, err := ta.sessions.Issue(user.ID, user.Email, time.Hour)
	require.NoError(t, err)
	return &http.Cookie{Name: sessionCookieName, Value: token}
}

// do sends r through the full middleware chain.
func (ta *testApplication) do(r *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	ta.routes().ServeHTTP(rr, r)
	return rr
}

// findCookie returns the last cookie set under name, which is the one a browser keeps.
func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}
