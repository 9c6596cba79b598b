package auth

import (
	"context"
	"log"
	"time"

	"github.com/pkg/errors"

	"github.com/ieltslisten/learner/internal/client"
	"github.com/ieltslisten/learner/internal/query"
	"github.com/ieltslisten/learner/internal/session"
)

// KeyEnrollments is invalidated when a purchase settles.
const KeyEnrollments = "enrollments"

type Enrollment struct {
	ID          int64      `json:"id"`
	Book        int64      `json:"book"`
	BookTitle   string     `json:"book_title"`
	BookSlug    string     `json:"book_slug"`
	ActiveFrom  time.Time  `json:"active_from"`
	ActiveUntil *time.Time `json:"active_until"`
	IsActive    bool       `json:"is_active"`
	IsExpired   bool       `json:"is_expired"`
	CreatedAt   time.Time  `json:"created_at"`
}

type tokenPair struct {
	User    *session.User `json:"user"`
	Access  string        `json:"access"`
	Refresh string        `json:"refresh"`
}

type API struct {
	c     *client.Client
	sess  *session.Store
	cache *query.Cache
}

func New(c *client.Client, sess *session.Store, cache *query.Cache) *API {
	return &API{c: c, sess: sess, cache: cache}
}

// signIn replaces any previous session. Clearing it first runs the OnClear
// hooks, so nothing cached for the previous identity survives the switch.
func (a *API) signIn(ctx context.Context, tp tokenPair) (*session.User, error) {
	if tp.Access == "" || tp.Refresh == "" {
		return nil, errors.New("backend returned no tokens")
	}
	if a.sess.IsAuthenticated() || a.sess.User() != nil {
		if err := a.sess.Clear(ctx); err != nil {
			return nil, err
		}
	}
	if err := a.sess.SetAuth(ctx, tp.User, tp.Access, tp.Refresh); err != nil {
		return nil, err
	}
	if tp.User != nil {
		return tp.User, nil
	}
	return a.Me(ctx)
}

// Login exchanges credentials for tokens and stores the session.
// POST /auth/login/
func (a *API) Login(ctx context.Context, f LoginForm) (*session.User, error) {
	if err := Validate(&f); err != nil {
		return nil, err
	}
	var tp tokenPair
	if err := a.c.PostAnonymous(ctx, "/auth/login/", f, &tp); err != nil {
		return nil, errors.Wrap(err, "login")
	}
	return a.signIn(ctx, tp)
}

// POST /auth/register/
func (a *API) Register(ctx context.Context, f RegisterForm) (*session.User, error) {
	if err := Validate(&f); err != nil {
		return nil, err
	}
	var tp tokenPair
	if err := a.c.PostAnonymous(ctx, "/auth/register/", f, &tp); err != nil {
		return nil, errors.Wrap(err, "register")
	}
	return a.signIn(ctx, tp)
}

// Logout revokes the refresh token and clears the local session. The local
// session is cleared even when the backend call fails, but only once: an
// expired session was already cleared by the client.
// POST /auth/logout/
func (a *API) Logout(ctx context.Context) error {
	if rt := a.sess.RefreshToken(); rt != "" {
		err := a.c.Post(ctx, "/auth/logout/", map[string]string{"refresh_token": rt}, nil)
		switch {
		case errors.Is(err, client.ErrSessionExpired):
			return nil
		case err != nil:
			log.Printf("auth: logout request failed, clearing local session anyway: %v", err)
		}
	}
	return a.sess.Clear(ctx)
}

// Me reloads the signed-in user and stores it in the session.
// GET /auth/me/
func (a *API) Me(ctx context.Context) (*session.User, error) {
	var u session.User
	if err := a.c.Get(ctx, "/auth/me/", nil, &u); err != nil {
		return nil, errors.Wrap(err, "get current user")
	}
	if err := a.sess.SetUser(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GET /auth/profile/
func (a *API) Profile(ctx context.Context) (*session.Profile, error) {
	var p session.Profile
	if err := a.c.Get(ctx, "/auth/profile/", nil, &p); err != nil {
		return nil, errors.Wrap(err, "get profile")
	}
	return &p, nil
}

// UpdateProfile patches the profile and mirrors it into the session user.
// PATCH /auth/profile/
func (a *API) UpdateProfile(ctx context.Context, f ProfileForm) (*session.Profile, error) {
	if err := Validate(&f); err != nil {
		return nil, err
	}
	var p session.Profile
	if err := a.c.Patch(ctx, "/auth/profile/", f, &p); err != nil {
		return nil, errors.Wrap(err, "update profile")
	}
	if u := a.sess.User(); u != nil {
		cp := *u
		cp.Profile = &p
		if err := a.sess.SetUser(ctx, &cp); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// POST /auth/change-password/
func (a *API) ChangePassword(ctx context.Context, f ChangePasswordForm) error {
	if err := Validate(&f); err != nil {
		return err
	}
	return errors.Wrap(a.c.Post(ctx, "/auth/change-password/", f, nil), "change password")
}

// GET /auth/enrollments/
func (a *API) Enrollments(ctx context.Context) ([]Enrollment, error) {
	return query.Fetch(ctx, a.cache, KeyEnrollments, func(ctx context.Context) ([]Enrollment, error) {
		var out client.List[Enrollment]
		if err := a.c.Get(ctx, "/auth/enrollments/", nil, &out); err != nil {
			return nil, errors.Wrap(err, "list enrollments")
		}
		return out.Results, nil
	})
}

// Owns reports whether the user holds an active enrollment for bookID.
func (a *API) Owns(ctx context.Context, bookID int64) (bool, error) {
	es, err := a.Enrollments(ctx)
	if err != nil {
		return false, err
	}
	for _, e := range es {
		if e.Book == bookID && e.IsActive && !e.IsExpired {
			return true, nil
		}
	}
	return false, nil
}
