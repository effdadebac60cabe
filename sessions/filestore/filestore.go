// Package filestore persists the session as a single JSON file, optionally encrypted.
package filestore

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	apperrors "github.com/jrsteele09/zhancare-client/internal/errors"
	"github.com/jrsteele09/zhancare-client/sessions"
)

const (
	fileVersion = 1
	saltSize    = 16

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

var _ sessions.Storage = (*Store)(nil)

type envelope struct {
	Version int               `json:"v"`
	Values  map[string]string `json:"values,omitempty"`
	Salt    []byte            `json:"salt,omitempty"`
	Nonce   []byte            `json:"nonce,omitempty"`
	Data    []byte            `json:"data,omitempty"` // sealed JSON of Values
}

// Store keeps every key in one file and rewrites it atomically (temp file + rename),
// which makes MultiSet and MultiRemove all or nothing.
type Store struct {
	path       string
	passphrase []byte
	perm       os.FileMode

	lock sync.Mutex
	salt []byte
	aead cipher.AEAD
}

type Option func(*Store)

// WithPassphrase enables XChaCha20-Poly1305 encryption with an Argon2id derived key.
func WithPassphrase(passphrase string) Option {
	return func(s *Store) {
		if passphrase != "" {
			s.passphrase = []byte(passphrase)
		}
	}
}

func WithFileMode(perm os.FileMode) Option {
	return func(s *Store) {
		s.perm = perm
	}
}

func New(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "[filestore.New] path is required")
	}
	s := &Store{path: path, perm: 0o600}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "filestore.New MkdirAll")
	}
	return s, nil
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	values, err := s.read()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (s *Store) MultiGet(_ context.Context, keys ...string) (map[string]string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	values, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (s *Store) MultiSet(_ context.Context, values map[string]string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	current, err := s.read()
	if err != nil {
		return err
	}
	for k, v := range values {
		current[k] = v
	}
	return s.write(current)
}

func (s *Store) MultiRemove(_ context.Context, keys ...string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	current, err := s.read()
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(current, k)
	}
	if len(current) == 0 {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "filestore.MultiRemove Remove")
		}
		return nil
	}
	return s.write(current)
}

func (s *Store) read() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "filestore.read ReadFile")
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrap(err, "filestore.read decode")
	}
	if env.Data == nil {
		if env.Values == nil {
			env.Values = map[string]string{}
		}
		return env.Values, nil
	}

	if s.passphrase == nil {
		return nil, apperrors.Wrapf(apperrors.ErrStorage, "filestore.read: file is encrypted and no passphrase is set")
	}
	aead, err := s.cipherFor(env.Salt)
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, env.Nonce, env.Data, nil)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrStorage, "filestore.read: cannot decrypt session file")
	}
	values := map[string]string{}
	if err := json.Unmarshal(plain, &values); err != nil {
		return nil, errors.Wrap(err, "filestore.read decode values")
	}
	return values, nil
}

func (s *Store) write(values map[string]string) error {
	env := envelope{Version: fileVersion}
	if s.passphrase == nil {
		env.Values = values
	} else {
		if s.salt == nil {
			salt := make([]byte, saltSize)
			if _, err := rand.Read(salt); err != nil {
				return errors.Wrap(err, "filestore.write salt")
			}
			s.salt = salt
		}
		aead, err := s.cipherFor(s.salt)
		if err != nil {
			return err
		}
		plain, err := json.Marshal(values)
		if err != nil {
			return errors.Wrap(err, "filestore.write encode values")
		}
		nonce := make([]byte, aead.NonceSize())
		if _, err := rand.Read(nonce); err != nil {
			return errors.Wrap(err, "filestore.write nonce")
		}
		env.Salt = s.salt
		env.Nonce = nonce
		env.Data = aead.Seal(nil, nonce, plain, nil)
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "filestore.write encode")
	}
	return s.replaceFile(raw)
}

func (s *Store) replaceFile(raw []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "filestore.replaceFile CreateTemp")
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.Wrap(err, "filestore.replaceFile Write")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.Wrap(err, "filestore.replaceFile Sync")
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.Wrap(err, "filestore.replaceFile Close")
	}
	if err := os.Chmod(tmpName, s.perm); err != nil {
		cleanup()
		return errors.Wrap(err, "filestore.replaceFile Chmod")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return errors.Wrap(err, "filestore.replaceFile Rename")
	}
	return nil
}

// cipherFor derives the key for salt, reusing the cached AEAD when the salt is unchanged.
func (s *Store) cipherFor(salt []byte) (cipher.AEAD, error) {
	if len(salt) != saltSize {
		return nil, apperrors.Wrapf(apperrors.ErrStorage, "filestore: invalid salt")
	}
	if s.aead != nil && string(s.salt) == string(salt) {
		return s.aead, nil
	}
	key := argon2.IDKey(s.passphrase, salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "filestore.cipherFor NewX")
	}
	s.salt = append([]byte(nil), salt...)
	s.aead = aead
	return aead, nil
}
