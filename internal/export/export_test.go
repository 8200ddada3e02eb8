package export

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"medecho/internal/encounter"
)

func testEncounter(t *testing.T) *encounter.Encounter {
	t.Helper()
	e := encounter.New()
	e.Physician = "attending"
	e.SetRawTranscript("persistent cough, no fever")
	e.Structured.Diagnoses = append(e.Structured.Diagnoses, "acute bronchitis")
	return e
}

func TestExport_EncryptedRoundTrip(t *testing.T) {
	p, err := NewPackager()
	if err != nil {
		t.Fatal(err)
	}
	enc := testEncounter(t)

	data, err := p.Export(enc, true)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if json.Valid(data) {
		t.Error("encrypted export is readable JSON, want ciphertext")
	}

	env, err := p.Decrypt(data)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !env.Encrypted {
		t.Error("envelope Encrypted = false, want true")
	}
	if env.MedEchoVersion != Version {
		t.Errorf("version = %q, want %q", env.MedEchoVersion, Version)
	}
	if !strings.HasSuffix(env.ExportedAt, "Z") {
		t.Errorf("exported_at = %q, want UTC with Z suffix", env.ExportedAt)
	}
	if env.ID != enc.ID {
		t.Errorf("id = %q, want %q", env.ID, enc.ID)
	}
	if len(env.Structured.Diagnoses) != 1 {
		t.Errorf("diagnoses = %v", env.Structured.Diagnoses)
	}
}

func TestExport_PlaintextWhenRequested(t *testing.T) {
	p, err := NewPackager()
	if err != nil {
		t.Fatal(err)
	}

	data, err := p.Export(testEncounter(t), false)
	if err != nil {
		t.Fatal(err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("plaintext export not JSON: %v", err)
	}
	if env.Encrypted {
		t.Error("Encrypted = true for a plaintext export")
	}
}

func TestExport_HonestFlagWithoutKey(t *testing.T) {
	p := NewUnencrypted()
	if p.EncryptionAvailable() {
		t.Error("EncryptionAvailable() = true without key")
	}

	// Encryption requested but impossible: output is plaintext and the flag
	// must say so.
	data, err := p.Export(testEncounter(t), true)
	if err != nil {
		t.Fatal(err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("export without key not JSON: %v", err)
	}
	if env.Encrypted {
		t.Error("Encrypted = true, want false when no key is held")
	}
}

func TestDecrypt_SharedKeyAcrossPackagers(t *testing.T) {
	sender, err := NewPackager()
	if err != nil {
		t.Fatal(err)
	}
	data, err := sender.Export(testEncounter(t), true)
	if err != nil {
		t.Fatal(err)
	}

	receiver, err := NewPackagerWithKey(sender.KeyHandoff())
	if err != nil {
		t.Fatalf("NewPackagerWithKey() error = %v", err)
	}
	if _, err := receiver.Decrypt(data); err != nil {
		t.Errorf("Decrypt() with handed-off key error = %v", err)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	sender, err := NewPackager()
	if err != nil {
		t.Fatal(err)
	}
	data, err := sender.Export(testEncounter(t), true)
	if err != nil {
		t.Fatal(err)
	}

	other, err := NewPackager()
	if err != nil {
		t.Fatal(err)
	}
	_, err = other.Decrypt(data)
	if !errors.Is(err, ErrDecryptFailed) {
		t.Errorf("Decrypt() error = %v, want ErrDecryptFailed", err)
	}
}

func TestDecrypt_NoKeyOnCiphertext(t *testing.T) {
	sender, err := NewPackager()
	if err != nil {
		t.Fatal(err)
	}
	data, err := sender.Export(testEncounter(t), true)
	if err != nil {
		t.Fatal(err)
	}

	_, err = NewUnencrypted().Decrypt(data)
	if !errors.Is(err, ErrCiphertextUnavailable) {
		t.Errorf("Decrypt() error = %v, want ErrCiphertextUnavailable", err)
	}
}

func TestDecrypt_PlaintextFallback(t *testing.T) {
	// A packager with a key must still read unencrypted exports.
	sender := NewUnencrypted()
	data, err := sender.Export(testEncounter(t), false)
	if err != nil {
		t.Fatal(err)
	}

	receiver, err := NewPackager()
	if err != nil {
		t.Fatal(err)
	}
	env, err := receiver.Decrypt(data)
	if err != nil {
		t.Fatalf("Decrypt() error = %v, want plaintext fallback", err)
	}
	if env.Encrypted {
		t.Error("Encrypted = true for plaintext export")
	}
}

func TestExportFile_RoundTrip(t *testing.T) {
	p, err := NewPackager()
	if err != nil {
		t.Fatal(err)
	}
	enc := testEncounter(t)
	path := filepath.Join(t.TempDir(), "encounter.enc")

	if err := p.ExportFile(enc, true, path); err != nil {
		t.Fatalf("ExportFile() error = %v", err)
	}
	env, err := p.DecryptFile(path)
	if err != nil {
		t.Fatalf("DecryptFile() error = %v", err)
	}
	if env.ID != enc.ID {
		t.Errorf("id = %q, want %q", env.ID, enc.ID)
	}
}

func TestWriteKeyFile(t *testing.T) {
	p, err := NewPackager()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "export.key")
	if err := p.WriteKeyFile(path); err != nil {
		t.Fatalf("WriteKeyFile() error = %v", err)
	}

	if err := NewUnencrypted().WriteKeyFile(path); err == nil {
		t.Error("WriteKeyFile() error = nil without a key")
	}
}
