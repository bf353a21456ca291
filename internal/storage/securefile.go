package storage

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/starkwallet-io/starkwallet-client/internal/walleterr"
)

const secureFileAAD = "starkwallet:securestore:v1"

// envelope is the on-disk encryption envelope, one file per stored key.
type envelope struct {
	Version int `json:"version"`

	// Argon2id params
	ArgonTime    uint32 `json:"argon_time"`
	ArgonMemory  uint32 `json:"argon_memory_kib"`
	ArgonThreads uint8  `json:"argon_threads"`
	ArgonKeyLen  uint32 `json:"argon_key_len"`

	SaltB64  string `json:"salt_b64"`
	NonceB64 string `json:"nonce_b64"`
	CTB64    string `json:"ct_b64"`
}

var defaultEnvelope = envelope{
	Version:      1,
	ArgonTime:    2,
	ArgonMemory:  64 * 1024, // KiB
	ArgonThreads: 1,
	ArgonKeyLen:  32,
}

// FileSecureStore keeps each value in its own argon2id + XChaCha20-Poly1305
// envelope under dir. It cannot enumerate and has no biometric gate; the
// manager's registry and downgrade paths cover both gaps.
type FileSecureStore struct {
	dir        string
	passphrase []byte
}

func NewFileSecureStore(dir string, passphrase []byte) (*FileSecureStore, error) {
	if dir == "" {
		return nil, walleterr.New(walleterr.KindStorage, walleterr.CodeStorageAccess, "secure store dir is empty")
	}
	if len(passphrase) == 0 {
		return nil, walleterr.New(walleterr.KindStorage, walleterr.CodeStorageAccess, "secure store passphrase is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "mkdir %s", dir)
	}
	return &FileSecureStore{dir: dir, passphrase: passphrase}, nil
}

func (s *FileSecureStore) pathFor(key string) string {
	// Storage keys contain dots and hex addresses; base64url keeps filenames safe.
	name := base64.RawURLEncoding.EncodeToString([]byte(key))
	return filepath.Join(s.dir, name+".json")
}

func (s *FileSecureStore) Put(_ context.Context, key, value string) error {
	e := defaultEnvelope

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeEncryptionFailed, "rand salt")
	}

	dk := argon2.IDKey(s.passphrase, salt, e.ArgonTime, e.ArgonMemory, e.ArgonThreads, e.ArgonKeyLen)
	aead, err := chacha20poly1305.NewX(dk)
	if err != nil {
		return walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeEncryptionFailed, "aead")
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeEncryptionFailed, "rand nonce")
	}

	ct := aead.Seal(nil, nonce, []byte(value), []byte(secureFileAAD))

	e.SaltB64 = base64.StdEncoding.EncodeToString(salt)
	e.NonceB64 = base64.StdEncoding.EncodeToString(nonce)
	e.CTB64 = base64.StdEncoding.EncodeToString(ct)

	b, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "marshal envelope")
	}

	if err := atomicWriteFile(s.pathFor(key), b, 0o600); err != nil {
		return walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "write %s", key)
	}
	return nil
}

func (s *FileSecureStore) Get(_ context.Context, key string) (string, bool, error) {
	b, err := os.ReadFile(s.pathFor(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "read %s", key)
	}

	var e envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return "", false, walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "unmarshal envelope for %s", key)
	}
	if e.Version != 1 {
		return "", false, walleterr.New(walleterr.KindStorage, walleterr.CodeStorageAccess, "unsupported envelope version %d", e.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(e.SaltB64)
	if err != nil {
		return "", false, walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "decode salt")
	}
	nonce, err := base64.StdEncoding.DecodeString(e.NonceB64)
	if err != nil {
		return "", false, walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "decode nonce")
	}
	ct, err := base64.StdEncoding.DecodeString(e.CTB64)
	if err != nil {
		return "", false, walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "decode ciphertext")
	}

	dk := argon2.IDKey(s.passphrase, salt, e.ArgonTime, e.ArgonMemory, e.ArgonThreads, e.ArgonKeyLen)
	aead, err := chacha20poly1305.NewX(dk)
	if err != nil {
		return "", false, walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeEncryptionFailed, "aead")
	}

	// Keep the failure generic to avoid leaking whether the passphrase or the
	// file is at fault.
	plain, err := aead.Open(nil, nonce, ct, []byte(secureFileAAD))
	if err != nil {
		return "", false, walleterr.New(walleterr.KindStorage, walleterr.CodeEncryptionFailed, "invalid passphrase or corrupted entry")
	}
	return string(plain), true, nil
}

func (s *FileSecureStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.pathFor(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return walleterr.Wrap(err, walleterr.KindStorage, walleterr.CodeStorageAccess, "delete %s", key)
	}
	return nil
}

func (s *FileSecureStore) SupportsBiometrics() bool { return false }

func (s *FileSecureStore) PutProtected(context.Context, string, string) error {
	return walleterr.New(walleterr.KindAuthentication, walleterr.CodeBiometricUnavailable,
		"file store has no biometric gate")
}

func (s *FileSecureStore) GetProtected(context.Context, string) (string, bool, error) {
	return "", false, walleterr.New(walleterr.KindAuthentication, walleterr.CodeBiometricUnavailable,
		"file store has no biometric gate")
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	_ = os.Remove(tmp)

	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
