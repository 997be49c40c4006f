// Copyright © 2019 Erin Shepherd
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package driver

import (
	"github.com/erincandescent/stm32prog/flash"
)

type Option func(*Bank)

// WithLogger sets the logger used by the bank and its flash driver
func WithLogger(log flash.Logger) Option {
	return func(b *Bank) {
		if log != nil {
			b.log = log
		}
	}
}

// WithTimeouts overrides flash.DefaultTimeouts
func WithTimeouts(t flash.Timeouts) Option {
	return func(b *Bank) {
		b.timeouts = t
	}
}

// WithProgress reports programming progress in bytes
func WithProgress(fn func(done, total int)) Option {
	return func(b *Bank) {
		b.progress = fn
	}
}
