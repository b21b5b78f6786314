package sessions

import (
	"context"
	"encoding/json"
	"sync"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/kvstore"
	"github.com/pkg/errors"
)

const (
	// CurrentKey holds the JSON encoded Session.
	CurrentKey = "auth.session.v2"
	// LegacyKey is where older app versions kept the session. It is only cleared.
	LegacyKey = "auth.session"
)

var (
	ErrNoSession      = autherrors.ErrNoSession
	ErrCorruptSession = autherrors.ErrCorruptSession
)

var _ Repo = (*Store)(nil)

// Store keeps the session as one JSON blob in a kvstore.Store. Writes to a key
// are serialized so a sign-in and a refresh cannot interleave.
type Store struct {
	kv    kvstore.Store
	locks keyLocks
}

func NewStore(kv kvstore.Store) *Store {
	return &Store{kv: kv}
}

func (s *Store) Get(ctx context.Context) (*Session, error) {
	return s.get(ctx)
}

func (s *Store) get(ctx context.Context) (*Session, error) {
	data, err := s.kv.Get(ctx, CurrentKey)
	if autherrors.Is(err, kvstore.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Store.Get] kv.Get")
	}

	var session *Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, autherrors.Wrapf(ErrCorruptSession, "[Store.Get] %v", err)
	}
	// A session without an access token is not usable, whatever else it holds.
	if session == nil || session.AccessToken == "" {
		return nil, autherrors.Wrapf(ErrCorruptSession, "[Store.Get] no access token")
	}
	return session, nil
}

func (s *Store) Save(ctx context.Context, session *Session) error {
	if session == nil {
		return errors.New("[Store.Save] session is required")
	}
	unlock := s.locks.lock(CurrentKey)
	defer unlock()
	return s.put(ctx, session)
}

func (s *Store) put(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "[Store.Save] json.Marshal")
	}
	if err := s.kv.Set(ctx, CurrentKey, data); err != nil {
		return errors.Wrap(err, "[Store.Save] kv.Set")
	}
	return nil
}

func (s *Store) Update(ctx context.Context, fn func(*Session) error) (*Session, error) {
	unlock := s.locks.lock(CurrentKey)
	defer unlock()

	session, err := s.get(ctx)
	if err != nil {
		return nil, err
	}
	if err := fn(session); err != nil {
		return nil, err
	}
	if err := s.put(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Delete removes both the current and the legacy key. Both removals are
// attempted even if the first fails.
func (s *Store) Delete(ctx context.Context) error {
	unlock := s.locks.lock(CurrentKey)
	defer unlock()

	var firstErr error
	for _, key := range []string{CurrentKey, LegacyKey} {
		if err := s.kv.Remove(ctx, key); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "[Store.Delete] kv.Remove %s", key)
		}
	}
	return firstErr
}

type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyLocks) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
