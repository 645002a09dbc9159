package session

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

const (
	valueID   = "id"
	valueUser = "user"
)

// ErrEmptyUser is returned by Login for an empty username.
var ErrEmptyUser = errors.New("session: empty username")

// Options configures the cookie store.
type Options struct {
	Name     string
	HashKey  []byte
	BlockKey []byte
	Secure   bool
}

// Manager loads and saves Session records through a signed, encrypted cookie.
type Manager struct {
	store  *sessions.CookieStore
	name   string
	logger zerolog.Logger
}

// NewManager builds the cookie store. Missing keys are generated, which
// means cookies do not survive a process restart.
func NewManager(opts Options, logger zerolog.Logger) (*Manager, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("session: cookie name is required")
	}
	logger = logger.With().Str("component", "session").Logger()

	hashKey, blockKey := opts.HashKey, opts.BlockKey
	if len(hashKey) == 0 {
		hashKey = securecookie.GenerateRandomKey(64)
		blockKey = securecookie.GenerateRandomKey(32)
		if hashKey == nil || blockKey == nil {
			return nil, fmt.Errorf("session: generate cookie keys")
		}
		logger.Warn().Msg("SESSION_HASH_KEY not set, using per-process random cookie keys")
	}

	var store *sessions.CookieStore
	if len(blockKey) > 0 {
		store = sessions.NewCookieStore(hashKey, blockKey)
	} else {
		store = sessions.NewCookieStore(hashKey)
	}
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   0,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &Manager{store: store, name: opts.Name, logger: logger}, nil
}

// Middleware loads the cookie session and puts the matching Session record
// on the request context. A fresh cookie gets a new id.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs, err := m.store.Get(r, m.name)
		if err != nil {
			// undecodable cookie, e.g. after a key change; cs is a fresh session
			hlog.FromRequest(r).Debug().Err(err).Msg("discarding session cookie")
		}

		id, _ := cs.Values[valueID].(string)
		if id == "" {
			id = uuid.NewString()
			cs.Values[valueID] = id
			if err := cs.Save(r, w); err != nil {
				hlog.FromRequest(r).Error().Err(err).Msg("save session")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
		}
		user, _ := cs.Values[valueUser].(string)

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), New(id, user))))
	})
}

// Login sets the session user, queues a welcome flash and saves the cookie.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, name string) error {
	if name == "" {
		return ErrEmptyUser
	}
	cs, err := m.store.Get(r, m.name)
	if err != nil {
		hlog.FromRequest(r).Debug().Err(err).Msg("replacing session cookie on login")
	}
	if _, ok := cs.Values[valueID].(string); !ok {
		cs.Values[valueID] = uuid.NewString()
	}
	cs.Values[valueUser] = name
	cs.AddFlash(fmt.Sprintf("Welcome to Filmtopia, %s!", name))
	if err := cs.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	if s := FromContext(r.Context()); s != nil {
		s.SetUser(name)
	}
	return nil
}

// Flashes pops pending flash messages.
func (m *Manager) Flashes(w http.ResponseWriter, r *http.Request) []string {
	cs, err := m.store.Get(r, m.name)
	if err != nil {
		return nil
	}
	raw := cs.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := cs.Save(r, w); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("save session after reading flashes")
	}

	msgs := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			msgs = append(msgs, s)
		}
	}
	return msgs
}
