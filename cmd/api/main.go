package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"os"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/marcellovf/teste-lista-filmes/internal/data"
	"github.com/marcellovf/teste-lista-filmes/internal/jsonlog"
	"github.com/marcellovf/teste-lista-filmes/internal/mailer"
	"github.com/marcellovf/teste-lista-filmes/internal/notifier"
	"github.com/marcellovf/teste-lista-filmes/internal/poster"
	"github.com/marcellovf/teste-lista-filmes/internal/session"
)

const version = "1.0.0"

// config holds all the configuration settings for the application.
type config struct {
	port int
	env  string

	// baseURL prefixes the links sent in e-mails.
	baseURL string

	db struct {
		dsn          string
		maxOpenConns int
		maxIdleConns int
		maxIdleTime  string
	}

	limiter struct {
		rps     float64
		burst   int
		enabled bool
	}

	smtp struct {
		host     string
		port     int
		username string
		password string
		sender   string
	}

	session struct {
		secret          string
		ttl             time.Duration
		verificationTTL time.Duration
		secureCookie    bool
	}

	notifier struct {
		schedule  string
		autostart bool
	}

	posters struct {
		dir string
	}
}

// emailSender delivers a templated e-mail; mailer.Mailer satisfies it.
type emailSender interface {
	Send(recipient, templateFile string, data any) error
}

// posterStore persists a processed poster and returns its public URL.
type posterStore interface {
	Save(originalName string, data []byte) (string, error)
}

// application holds the dependencies for the HTTP handlers, helpers and middleware.
type application struct {
	config   config
	logger   *jsonlog.Logger
	models   data.Models
	mailer   emailSender
	sessions *session.Manager
	posters  posterStore
	notifier *notifier.Scheduler
	wg       sync.WaitGroup
}

func main() {
	var cfg config

	flag.IntVar(&cfg.port, "port", 4000, "API server port")
	flag.StringVar(&cfg.env, "env", "development", "Environment (development|staging|production)")
	flag.StringVar(&cfg.baseURL, "base-url", "http://localhost:4000", "Public base URL used in e-mail links")

	flag.StringVar(&cfg.db.dsn, "db-dsn", os.Getenv("MOVIES_DB_DSN"), "PostgreSQL DSN")
	flag.IntVar(&cfg.db.maxOpenConns, "db-max-open-conns", 25, "PostgreSQL max open connections")
	flag.IntVar(&cfg.db.maxIdleConns, "db-max-idle-conns", 25, "PostgreSQL max idle connections")
	flag.StringVar(&cfg.db.maxIdleTime, "db-max-idle-time", "15m", "PostgreSQL max connection idle time")

	flag.Float64Var(&cfg.limiter.rps, "limiter-rps", 2, "Rate limiter maximum requests per second")
	flag.IntVar(&cfg.limiter.burst, "limiter-burst", 4, "Rate limiter maximum burst")
	flag.BoolVar(&cfg.limiter.enabled, "limiter-enabled", true, "Enable rate limiter")

	flag.StringVar(&cfg.smtp.host, "smtp-host", "127.0.0.1", "SMTP host")
	flag.IntVar(&cfg.smtp.port, "smtp-port", 1025, "SMTP port")
	flag.StringVar(&cfg.smtp.username, "smtp-username", os.Getenv("SMTP_USERNAME"), "SMTP username")
	flag.StringVar(&cfg.smtp.password, "smtp-password", os.Getenv("SMTP_PASSWORD"), "SMTP password")
	flag.StringVar(&cfg.smtp.sender, "smtp-sender", "Movie Catalog <no-reply@movies.local>", "SMTP sender")

	flag.StringVar(&cfg.session.secret, "session-secret", os.Getenv("SESSION_SECRET"), "Secret used to sign session and verification tokens")
	flag.DurationVar(&cfg.session.ttl, "session-ttl", time.Hour, "Session lifetime, refreshed on every request")
	flag.DurationVar(&cfg.session.verificationTTL, "verification-ttl", 24*time.Hour, "Time a new account has to confirm its e-mail")
	flag.BoolVar(&cfg.session.secureCookie, "session-secure-cookie", false, "Mark the session cookie as Secure")

	flag.StringVar(&cfg.notifier.schedule, "notifier-schedule", notifier.DefaultSchedule, "Cron expression for the release notifier")
	flag.BoolVar(&cfg.notifier.autostart, "notifier-autostart", false, "Start the release notifier on boot")

	flag.StringVar(&cfg.posters.dir, "posters-dir", "./uploads/posters", "Directory for uploaded posters")

	flag.Parse()

	logger := jsonlog.NewLogger(os.Stdout, jsonlog.LevelInfo)

	if cfg.session.secret == "" {
		logger.PrintFatal(errors.New("a session secret must be provided with -session-secret or SESSION_SECRET"), nil)
	}

	db, err := openDB(cfg)
	if err != nil {
		logger.PrintFatal(err, nil)
	}
	defer db.Close()

	logger.PrintInfo("database connection pool established", nil)

	models := data.NewModels(db)
	mail := mailer.New(cfg.smtp.host, cfg.smtp.port, cfg.smtp.username, cfg.smtp.password, cfg.smtp.sender)

	scheduler, err := notifier.NewScheduler(cfg.notifier.schedule, notifier.NewJob(models.Releases, mail, logger), logger)
	if err != nil {
		logger.PrintFatal(err, nil)
	}

	app := &application{
		config:   cfg,
		logger:   logger,
		models:   models,
		mailer:   mail,
		sessions: session.NewManager(cfg.session.secret),
		posters:  poster.DiskStore{Dir: cfg.posters.dir, URLPrefix: postersURLPrefix},
		notifier: scheduler,
	}

	if cfg.notifier.autostart {
		app.notifier.EnsureStarted()
	}

	err = app.serve()
	if err != nil {
		logger.PrintFatal(err, nil)
	}
}

// openDB returns a sql.DB connection pool that answered a ping within five seconds.
func openDB(cfg config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.db.dsn)
	if err != nil {
		return nil, err
	}

	// Values less than or equal to 0 mean no limit.
	db.SetMaxOpenConns(cfg.db.maxOpenConns)
	db.SetMaxIdleConns(cfg.db.maxIdleConns)

	duration, err := time.ParseDuration(cfg.db.maxIdleTime)
	if err != nil {
		return nil, err
	}

	db.SetConnMaxIdleTime(duration)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = db.PingContext(ctx)
	if err != nil {
		return nil, err
	}

	return db, nil
}
