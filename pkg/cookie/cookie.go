package cookie

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"
)

const minSecretLength = 32

type Manager struct {
	aeads    []cipher.AEAD
	defaults Options
}

// New builds a Manager. Every non-empty secret must be at least 32 chars.
func New(secrets []string, opts ...Option) (*Manager, error) {
	secrets = slices.DeleteFunc(slices.Clone(secrets), func(s string) bool { return s == "" })
	if len(secrets) == 0 {
		return nil, ErrNoSecret
	}

	aeads := make([]cipher.AEAD, 0, len(secrets))
	for i, s := range secrets {
		if len(s) < minSecretLength {
			return nil, fmt.Errorf("%w: secret %d has %d chars, need at least %d", ErrSecretTooShort, i, len(s), minSecretLength)
		}
		key := sha256.Sum256([]byte(s))
		block, err := aes.NewCipher(key[:])
		if err != nil {
			return nil, err
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, err
		}
		aeads = append(aeads, gcm)
	}

	defaults := apply(Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}, opts)

	return &Manager{aeads: aeads, defaults: defaults}, nil
}

// SetEncrypted seals value with the newest secret and writes it as a cookie.
func (m *Manager) SetEncrypted(w http.ResponseWriter, name, value string, opts ...Option) error {
	gcm := m.aeads[0]
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(value), []byte(name))

	o := apply(m.defaults, opts)
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    base64.RawURLEncoding.EncodeToString(sealed),
		Path:     o.Path,
		Domain:   o.Domain,
		MaxAge:   o.MaxAge,
		Secure:   o.Secure,
		HttpOnly: o.HttpOnly,
		SameSite: o.SameSite,
	})
	return nil
}

// GetEncrypted reads and opens a cookie written by SetEncrypted.
func (m *Manager) GetEncrypted(r *http.Request, name string) (string, error) {
	c, err := r.Cookie(name)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrCookieNotFound
		}
		return "", err
	}

	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return "", ErrInvalidFormat
	}

	for _, gcm := range m.aeads {
		if len(raw) < gcm.NonceSize() {
			return "", ErrInvalidFormat
		}
		nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
		if plain, err := gcm.Open(nil, nonce, ciphertext, []byte(name)); err == nil {
			return string(plain), nil
		}
	}
	return "", ErrDecryptionFailed
}

// Delete expires the cookie using the manager's default attributes.
func (m *Manager) Delete(w http.ResponseWriter, name string, opts ...Option) {
	o := apply(m.defaults, opts)
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     o.Path,
		Domain:   o.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   o.Secure,
		HttpOnly: o.HttpOnly,
		SameSite: o.SameSite,
	})
}
