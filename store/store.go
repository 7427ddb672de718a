package store

import (
	"errors"
	"fmt"

	"github.com/rubiojr/kv"
	kverrors "github.com/rubiojr/kv/errors"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("key not found")

type Store interface {
	Get(key []byte) ([]byte, error)
	Put(key []byte, value []byte) error
	Delete(key []byte) error
	Namespace(name string) Store
	Close() error
}

type kvStore struct {
	db        kv.Database
	namespace string
}

func NewStore(path string) (*kvStore, error) {
	db, err := kv.New("sqlite", path)
	if err != nil {
		return nil, err
	}

	store := &kvStore{db: db}
	return store, nil
}

func (s *kvStore) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(s.namespace + string(key))
	if errors.Is(err, kverrors.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return v, err
}

func (s *kvStore) Put(key []byte, value []byte) error {
	return s.db.Set(s.namespace+string(key), value, nil)
}

func (s *kvStore) Delete(key []byte) error {
	return s.db.Del(s.namespace + string(key))
}

func (s *kvStore) Namespace(name string) Store {
	return &kvStore{
		db:        s.db,
		namespace: fmt.Sprintf("%s%s:", s.namespace, name),
	}
}

func (s *kvStore) Close() error {
	return s.db.Raw().Close()
}

// Values exposes a Store as named string values, the persistent state
// capability sensors use.
type Values struct {
	s Store
}

func NewValues(s Store) *Values {
	return &Values{s: s}
}

// GetValue returns the value stored under name. ok is false when nothing
// was stored.
func (v *Values) GetValue(name string) (string, bool, error) {
	b, err := v.s.Get([]byte(name))
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

func (v *Values) SetValue(name, value string) error {
	return v.s.Put([]byte(name), []byte(value))
}

func (v *Values) DeleteValue(name string) error {
	return v.s.Delete([]byte(name))
}
