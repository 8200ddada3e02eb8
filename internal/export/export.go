// Package export serializes encounters for hand-off outside the system.
// Exports are Fernet-encrypted by default; the envelope's encrypted flag
// always states what actually happened so a reader never guesses.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fernet/fernet-go"

	"medecho/internal/encounter"
	"medecho/internal/logging"
)

// Version identifies the export envelope format.
const Version = "1.0.0"

var (
	// ErrDecryptFailed means the data is a Fernet token (or close enough)
	// but could not be verified with the configured key.
	ErrDecryptFailed = errors.New("export: decryption failed, wrong key or corrupt data")

	// ErrCiphertextUnavailable means the data looks encrypted but this
	// packager has no key to decrypt it with.
	ErrCiphertextUnavailable = errors.New("export: data appears encrypted but no key is configured")
)

// Envelope is the export metadata wrapped around an encounter.
type Envelope struct {
	MedEchoVersion string `json:"medecho_version"`
	ExportedAt     string `json:"exported_at"`
	Encrypted      bool   `json:"encrypted"`

	encounter.Encounter
}

// Packager serializes and encrypts encounters with one symmetric key per
// session.
type Packager struct {
	key *fernet.Key

	now func() time.Time
}

// NewPackager creates a Packager with a freshly generated key.
func NewPackager() (*Packager, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return nil, fmt.Errorf("export: generating key: %w", err)
	}
	return &Packager{key: &k, now: time.Now}, nil
}

// NewPackagerWithKey creates a Packager from a base64 Fernet key, as
// produced by KeyHandoff.
func NewPackagerWithKey(encodedKey string) (*Packager, error) {
	k, err := fernet.DecodeKey(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("export: invalid key: %w", err)
	}
	return &Packager{key: k, now: time.Now}, nil
}

// NewUnencrypted creates a Packager with no key. Exports are plain JSON and
// marked as such.
func NewUnencrypted() *Packager {
	return &Packager{now: time.Now}
}

// EncryptionAvailable reports whether this packager holds a key.
func (p *Packager) EncryptionAvailable() bool { return p.key != nil }

// KeyHandoff returns the base64 key for sharing over a secure channel, or
// empty when no key is held. Treat the value as a secret.
func (p *Packager) KeyHandoff() string {
	if p.key == nil {
		return ""
	}
	return p.key.Encode()
}

// Export serializes enc and returns the bytes to write out: a Fernet token
// when encryption ran, indented JSON otherwise. The envelope's Encrypted
// flag records which one happened, never which one was requested.
func (p *Packager) Export(enc *encounter.Encounter, encrypt bool) ([]byte, error) {
	doEncrypt := encrypt && p.key != nil

	env := Envelope{
		MedEchoVersion: Version,
		ExportedAt:     p.now().UTC().Format("2006-01-02T15:04:05") + "Z",
		Encrypted:      doEncrypt,
		Encounter:      *enc,
	}

	plaintext, err := json.MarshalIndent(&env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: encoding envelope: %w", err)
	}

	if !doEncrypt {
		return plaintext, nil
	}

	token, err := fernet.EncryptAndSign(plaintext, p.key)
	if err != nil {
		return nil, fmt.Errorf("export: encrypting: %w", err)
	}
	return token, nil
}

// ExportFile writes an export to path.
func (p *Packager) ExportFile(enc *encounter.Encounter, encrypt bool, path string) error {
	data, err := p.Export(enc, encrypt)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("export: writing %s: %w", path, err)
	}
	lg := logging.WithComponent("export")
	lg.Info().Str("path", path).Bool("encrypted", encrypt && p.key != nil).
		Msg("encounter exported")
	return nil
}

// Decrypt reads an exported blob back into its envelope. With a key, Fernet
// decryption is tried first and plain JSON second; a blob that is neither
// yields ErrDecryptFailed. Without a key only plain JSON works; anything
// else yields ErrCiphertextUnavailable so the caller can distinguish a
// missing key from corrupt data.
func (p *Packager) Decrypt(data []byte) (*Envelope, error) {
	if p.key != nil {
		if msg := fernet.VerifyAndDecrypt(data, 0, []*fernet.Key{p.key}); msg != nil {
			var env Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				return nil, fmt.Errorf("export: decoding decrypted envelope: %w", err)
			}
			return &env, nil
		}
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		if p.key == nil {
			return nil, ErrCiphertextUnavailable
		}
		return nil, ErrDecryptFailed
	}
	return &env, nil
}

// DecryptFile reads and decrypts an export file.
func (p *Packager) DecryptFile(path string) (*Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("export: reading %s: %w", path, err)
	}
	return p.Decrypt(data)
}

// WriteKeyFile saves the key to a separate file for hand-off.
func (p *Packager) WriteKeyFile(path string) error {
	if p.key == nil {
		return errors.New("export: no key to write")
	}
	if err := os.WriteFile(path, []byte(p.KeyHandoff()), 0o600); err != nil {
		return fmt.Errorf("export: writing key file: %w", err)
	}
	lg := logging.WithComponent("export")
	lg.Info().Str("path", path).Msg("encryption key saved")
	return nil
}
