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

package apiclient

import (
	"fmt"
	"strings"

	"github.com/cardinalhq/dataimport/internal/secrets"
	"github.com/cardinalhq/dataimport/ledgerdb"
)

// Config is a target's connection settings with credentials decrypted.
type Config struct {
	TargetID     int64
	Name         string
	URL          string
	AuthorizeURL string
	TokenURL     string
	ClientID     string
	ClientSecret string
	APIVersion   string
}

// ConfigFromApiServer decrypts the stored credentials of a target.
func ConfigFromApiServer(s ledgerdb.ApiServer, d secrets.Decrypter) (Config, error) {
	clientID, err := d.Decrypt(s.ClientID)
	if err != nil {
		return Config{}, fmt.Errorf("target %s client id: %w", s.Name, err)
	}
	clientSecret, err := d.Decrypt(s.ClientSecret)
	if err != nil {
		return Config{}, fmt.Errorf("target %s client secret: %w", s.Name, err)
	}
	return Config{
		TargetID:     s.ID,
		Name:         s.Name,
		URL:          s.Url,
		AuthorizeURL: s.AuthorizeUrl,
		TokenURL:     s.TokenUrl,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		APIVersion:   s.ApiVersion,
	}, nil
}

// usesAuthorizationCode reports whether the target expects the 2.x
// authorize-then-exchange flow instead of client credentials.
func (c Config) usesAuthorizationCode() bool {
	return strings.HasPrefix(strings.TrimSpace(c.APIVersion), "2.") && c.AuthorizeURL != ""
}

// ResourceURL joins the target URL and a resource path.
func (c Config) ResourceURL(resourcePath string) string {
	return strings.TrimRight(c.URL, "/") + "/" + strings.TrimLeft(resourcePath, "/")
}
