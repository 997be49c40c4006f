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
	"errors"
	"fmt"

	"github.com/erincandescent/stm32prog/protocol"
)

var (
	ErrTargetNotHalted   = errors.New("Target not halted")
	ErrTargetNotExamined = errors.New("Target not examined yet")
	ErrDeviceUnresolved  = errors.New("Flash bank not probed")
	ErrUnknownDevice     = errors.New("No supported device found")
)

// UnsupportedArchitectureError is returned when probing a core which no
// definition targets
type UnsupportedArchitectureError struct {
	Arch protocol.Arch
}

func (e *UnsupportedArchitectureError) Error() string {
	return fmt.Sprintf("Unsupported core architecture %s", e.Arch)
}

// UnknownFlashAreaError is returned when a bank's base address is not the
// main flash of the identified device
type UnknownFlashAreaError struct {
	Base uint32
}

func (e *UnknownFlashAreaError) Error() string {
	return fmt.Sprintf("Unknown flash area at 0x%08x", e.Base)
}
