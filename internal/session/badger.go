package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// Store persists sessions in BadgerDB, one record per front-end user.
type Store struct {
	db  *badger.DB
	log logrus.FieldLogger
	now func() time.Time
}

// OpenStore opens (or creates) the session database at dbPath.
func OpenStore(dbPath string, logger logrus.FieldLogger) (*Store, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(opts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %s: %w", dbPath, err)
	}
	logger.WithField("path", dbPath).Info("Session store opened")

	return &Store{
		db:  db,
		log: logger.WithField("component", "session_store"),
		now: time.Now,
	}, nil
}

// Close closes the BadgerDB database.
func (s *Store) Close() error {
	s.log.Info("Closing session store...")
	if err := s.db.Close(); err != nil {
		s.log.WithError(err).Error("Error closing BadgerDB")
		return err
	}
	return nil
}

// sessionKey format: session:{userKey}
func sessionKey(userKey string) []byte {
	return []byte("session:" + userKey)
}

// Save stores or replaces the session for sess.UserKey. Records expire from
// badger on their own once the known expiry passes.
func (s *Store) Save(ctx context.Context, sess Session) error {
	if sess.UserKey == "" {
		return errors.New("session: empty user key")
	}
	if sess.AccessToken == "" {
		return errors.New("session: empty access token")
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.now()
	}
	log := s.log.WithField("user_key", sess.UserKey)

	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	e := badger.NewEntry(sessionKey(sess.UserKey), b)
	if exp, ok := sess.Expiry(); ok {
		if ttl := exp.Sub(s.now()); ttl > 0 {
			e = e.WithTTL(ttl)
		}
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(e)
	}); err != nil {
		log.WithError(err).Error("Failed to save session")
		return fmt.Errorf("failed to save session: %w", err)
	}

	log.Info("Session saved")
	return nil
}

// Get returns the stored session. ok is false when none exists.
func (s *Store) Get(ctx context.Context, userKey string) (sess Session, ok bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(userKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sess)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Session{}, false, nil
	}
	if err != nil {
		s.log.WithError(err).WithField("user_key", userKey).Error("Failed to read session")
		return Session{}, false, fmt.Errorf("failed to get session for %s: %w", userKey, err)
	}
	return sess, true, nil
}

// Delete removes the session for userKey. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, userKey string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(sessionKey(userKey))
	})
	if err != nil {
		s.log.WithError(err).WithField("user_key", userKey).Error("Failed to delete session")
		return fmt.Errorf("failed to delete session for %s: %w", userKey, err)
	}
	s.log.WithField("user_key", userKey).Info("Session deleted")
	return nil
}

// ForUser returns the Provider for one front-end user.
func (s *Store) ForUser(userKey string) Provider {
	return &userSession{store: s, userKey: userKey}
}

type userSession struct {
	store   *Store
	userKey string
}

func (u *userSession) CurrentToken(ctx context.Context) (Token, bool, error) {
	sess, ok, err := u.store.Get(ctx, u.userKey)
	if err != nil || !ok {
		return "", false, err
	}
	if !sess.Valid(u.store.now()) {
		u.store.log.WithField("user_key", u.userKey).Debug("Stored session has expired")
		return "", false, nil
	}
	return Token(sess.AccessToken), true, nil
}

func (u *userSession) EndSession(ctx context.Context) error {
	return u.store.Delete(ctx, u.userKey)
}

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Errorf(f, v...)
}
func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warningf(f, v...)
}
func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
