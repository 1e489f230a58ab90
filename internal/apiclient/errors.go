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
	"errors"
	"fmt"
	"net/http"
)

// StatusError is a request that finished with a status the client could
// not recover from locally.
type StatusError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	method := e.Method
	if method == "" {
		method = http.MethodPost
	}
	return fmt.Sprintf("%s %s: %d %s: %s", method, e.Endpoint, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Recoverable reports whether re-authenticating could make the request succeed.
func (e *StatusError) Recoverable() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// IsRecoverable reports whether err wraps a recoverable StatusError.
func IsRecoverable(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Recoverable()
}

// AuthError is a failure to obtain an access token.
type AuthError struct {
	Target string
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authenticate to %s: %v", e.Target, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
