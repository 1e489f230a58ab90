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

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"filippo.io/age"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/dataimport/config"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	id, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	sealed, err := Encrypt("s3cret", id.Recipient().String())
	require.NoError(t, err)
	assert.NotContains(t, sealed, "s3cret")

	d, err := NewAgeDecrypter(id.String())
	require.NoError(t, err)
	plain, err := d.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", plain)

	empty, err := d.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDecryptWithWrongIdentity(t *testing.T) {
	owner, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	other, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	sealed, err := Encrypt("s3cret", owner.Recipient().String())
	require.NoError(t, err)

	d, err := NewAgeDecrypter(other.String())
	require.NoError(t, err)
	_, err = d.Decrypt(sealed)
	assert.Error(t, err)

	_, err = d.Decrypt("not base64!")
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	id, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	sealed, err := Encrypt("pw", id.Recipient().String())
	require.NoError(t, err)

	keyFile := filepath.Join(t.TempDir(), "key.txt")
	require.NoError(t, os.WriteFile(keyFile, []byte("# created for tests\n"+id.String()+"\n"), 0o600))

	for name, cfg := range map[string]config.SecretsConfig{
		"inline": {Identity: id.String()},
		"file":   {IdentityFile: keyFile},
	} {
		t.Run(name, func(t *testing.T) {
			d, err := FromConfig(cfg)
			require.NoError(t, err)
			plain, err := d.Decrypt(sealed)
			require.NoError(t, err)
			assert.Equal(t, "pw", plain)
		})
	}

	d, err := FromConfig(config.SecretsConfig{})
	require.NoError(t, err)
	plain, err := d.Decrypt("stored-as-is")
	require.NoError(t, err)
	assert.Equal(t, "stored-as-is", plain)

	_, err = FromConfig(config.SecretsConfig{Identity: "garbage"})
	assert.Error(t, err)
}

func TestEncryptRequiresRecipient(t *testing.T) {
	_, err := Encrypt("x")
	assert.Error(t, err)
	_, err = Encrypt("x", "not-a-key")
	assert.Error(t, err)
}
