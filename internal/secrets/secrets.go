// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package secrets decrypts the credentials stored with targets and agents.
// Stored values are base64-encoded age ciphertexts.
package secrets

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"filippo.io/age"

	"github.com/cardinalhq/dataimport/config"
)

// Decrypter turns a stored secret into its plaintext.
type Decrypter interface {
	Decrypt(stored string) (string, error)
}

// AgeDecrypter decrypts with one or more age identities.
type AgeDecrypter struct {
	identities []age.Identity
}

// NewAgeDecrypter parses an X25519 identity (AGE-SECRET-KEY-1...).
func NewAgeDecrypter(identity string) (*AgeDecrypter, error) {
	id, err := age.ParseX25519Identity(strings.TrimSpace(identity))
	if err != nil {
		return nil, fmt.Errorf("parsing age identity: %w", err)
	}
	return &AgeDecrypter{identities: []age.Identity{id}}, nil
}

// NewAgeDecrypterFromFile reads identities in the age key file format.
func NewAgeDecrypterFromFile(path string) (*AgeDecrypter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening identity file: %w", err)
	}
	defer func() { _ = f.Close() }()

	ids, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("parsing identity file %s: %w", path, err)
	}
	return &AgeDecrypter{identities: ids}, nil
}

// Decrypt returns "" for an empty stored value.
func (d *AgeDecrypter) Decrypt(stored string) (string, error) {
	if stored == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("decoding base64 ciphertext: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(raw), d.identities...)
	if err != nil {
		return "", fmt.Errorf("decrypting secret: %w", err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading decrypted secret: %w", err)
	}
	return string(plain), nil
}

// Plaintext passes stored values through unchanged.
type Plaintext struct{}

func (Plaintext) Decrypt(stored string) (string, error) {
	return stored, nil
}

// FromConfig picks the decrypter for the configured identity. With no
// identity configured, secrets are used as stored.
func FromConfig(cfg config.SecretsConfig) (Decrypter, error) {
	switch {
	case cfg.Identity != "":
		return NewAgeDecrypter(cfg.Identity)
	case cfg.IdentityFile != "":
		return NewAgeDecrypterFromFile(cfg.IdentityFile)
	default:
		slog.Warn("No secrets identity configured; stored credentials are used as plaintext")
		return Plaintext{}, nil
	}
}

// Encrypt seals plaintext for the given X25519 recipients and returns the
// base64 form stored in the database.
func Encrypt(plaintext string, recipientKeys ...string) (string, error) {
	if len(recipientKeys) == 0 {
		return "", errors.New("at least one recipient is required")
	}
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		r, err := age.ParseX25519Recipient(strings.TrimSpace(key))
		if err != nil {
			return "", fmt.Errorf("parsing recipient %q: %w", key, err)
		}
		recipients = append(recipients, r)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipients...)
	if err != nil {
		return "", fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("writing plaintext: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing encryption: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
