// Package app wires the learner client together: local storage, session,
// API client, query cache and the domain services on top.
package app

import (
	"context"
	"database/sql"
	"log"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/ieltslisten/learner/internal/auth"
	"github.com/ieltslisten/learner/internal/catalog"
	"github.com/ieltslisten/learner/internal/client"
	"github.com/ieltslisten/learner/internal/config"
	"github.com/ieltslisten/learner/internal/db"
	"github.com/ieltslisten/learner/internal/journal"
	"github.com/ieltslisten/learner/internal/payment"
	"github.com/ieltslisten/learner/internal/prefs"
	"github.com/ieltslisten/learner/internal/progress"
	"github.com/ieltslisten/learner/internal/query"
	"github.com/ieltslisten/learner/internal/quiz"
	"github.com/ieltslisten/learner/internal/session"
	"github.com/ieltslisten/learner/internal/storage"
)

const driverFS = "fs"

type App struct {
	Config config.Config

	DB      *sql.DB            // nil with the fs driver
	Journal *journal.EventRepo // nil with the fs driver
	KV      storage.KV
	Session *session.Store
	Prefs   *prefs.Store
	Client  *client.Client
	Cache   *query.Cache

	Auth      *auth.API
	Catalog   *catalog.API
	Quiz      *quiz.API
	Quizzes   *quiz.Registry
	Progress  *progress.API
	Positions *progress.PositionStore
	Listening *progress.Listening
	Payment   *payment.API
}

// New opens local storage, restores the session and builds every service.
// The caller owns the App and must Close it.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg}
	if err := a.openStorage(ctx); err != nil {
		return nil, err
	}

	a.Session = session.New(a.KV, session.WithPassphrase(cfg.SessionKey))
	if err := a.Session.Load(ctx); err != nil {
		log.Printf("app: discarding unreadable session: %v", err)
		if err := a.Session.Clear(ctx); err != nil {
			return nil, multierror.Append(err, a.Close())
		}
	}
	a.Prefs = prefs.New(a.KV, cfg.Language)
	if err := a.Prefs.Load(ctx); err != nil {
		return nil, multierror.Append(err, a.Close())
	}

	a.Client = client.New(client.Config{
		BaseURL:  cfg.APIURL,
		Timeout:  cfg.RequestTimeout,
		Language: a.Prefs.Language,
		Debug:    cfg.Debug,
	}, a.Session)

	backend, err := cacheBackend(ctx, cfg)
	if err != nil {
		return nil, multierror.Append(err, a.Close())
	}
	a.Cache = query.New(backend, cfg.CacheTTL)

	var rec journal.Recorder
	if a.Journal != nil {
		rec = a.Journal
	}
	a.Auth = auth.New(a.Client, a.Session, a.Cache)
	a.Catalog = catalog.New(a.Client, a.Cache)
	a.Quiz = quiz.New(a.Client, a.Cache, rec)
	a.Quizzes = quiz.NewRegistry(a.Quiz)
	a.Progress = progress.New(a.Client, a.Cache)
	a.Positions = progress.NewPositionStore(a.KV)
	a.Listening = progress.NewListening(a.Positions, a.Progress, cfg.PositionInterval)
	a.Payment = payment.New(a.Client, a.Cache, a.Catalog, rec, cfg.PollTimeout)

	a.Session.OnClear(a.sessionCleared)
	return a, nil
}

func (a *App) openStorage(ctx context.Context) error {
	if a.Config.DBDriver == driverFS {
		dir := a.Config.DBDSN
		if dir == "" {
			dir = ".learner"
		}
		fs, err := storage.NewFSStore(dir)
		if err != nil {
			return err
		}
		a.KV = fs
		return nil
	}
	dbh, err := db.Open(ctx, db.Driver(a.Config.DBDriver), a.Config.DBDSN)
	if err != nil {
		return err
	}
	a.DB = dbh
	a.KV = storage.NewSQLStore(dbh)
	a.Journal = journal.NewEventRepo(dbh)
	return nil
}

func cacheBackend(ctx context.Context, cfg config.Config) (query.Backend, error) {
	if cfg.RedisAddr == "" {
		return query.NewMemory(), nil
	}
	r := query.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "learner")
	if err := r.Ping(ctx); err != nil {
		return nil, multierror.Append(errors.Wrapf(err, "redis at %s", cfg.RedisAddr), r.Close())
	}
	return r, nil
}

// sessionCleared runs on logout and on a failed token refresh.
func (a *App) sessionCleared() {
	ctx := context.Background()
	if err := a.Cache.Clear(ctx); err != nil {
		log.Printf("app: clear query cache: %v", err)
	}
	a.Quizzes.Forget()
	if a.Journal != nil {
		if err := a.Journal.Append(ctx, journal.TypeSessionCleared, "", struct{}{}); err != nil {
			log.Printf("app: journal: %v", err)
		}
	}
}

// Close stops listening trackers and releases the cache and database.
func (a *App) Close() error {
	var result error
	if a.Listening != nil {
		if err := a.Listening.Close(context.Background()); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}
