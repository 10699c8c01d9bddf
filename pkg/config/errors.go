// Copyright 2026 The Enterprise Azure Policy as Code Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License"). You may
// not use this file except in compliance with the License. A copy of the
// License is located at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// or in the "license" file accompanying this file. This file is distributed
// on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either
// express or implied. See the License for the specific language governing
// permissions and limitations under the License.

package config

import (
	"errors"
	"fmt"
)

// ConfigurationError indicates the environment definition itself is missing
// or malformed. Planning must not start — there is nothing sensible to
// reconcile against.
type ConfigurationError struct {
	Setting string
	Err     error
}

func (e *ConfigurationError) Error() string { return fmt.Sprintf("%s: %v", e.Setting, e.Err) }
func (e *ConfigurationError) Unwrap() error { return e.Err }

// IsConfiguration reports whether err (or any error in its chain) is a
// configuration error.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

func configuration(setting string, err error) error {
	return &ConfigurationError{Setting: setting, Err: err}
}
