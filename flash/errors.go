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
package flash

import (
	"errors"
	"fmt"
)

var (
	ErrOperationInProgress = errors.New("Flash operation already in progress")
	ErrLockedUntilReset    = errors.New("Flash controller rejected unlock keys; locked until device reset")
	ErrNotSupported        = errors.New("Operation not supported by this flash family")
	ErrBadGeometry         = errors.New("Unsupported flash geometry")
)

// HardwareFaultError reports error flags raised by the controller while an
// operation was running
type HardwareFaultError struct {
	Op     string
	Bank   int
	Status uint32
}

func (e *HardwareFaultError) Error() string {
	return fmt.Sprintf("%s failed on bank %d: status 0x%08x", e.Op, e.Bank, e.Status)
}

// TimeoutError reports that an operation neither completed nor failed
// within its polling budget
type TimeoutError struct {
	Op    string
	Bank  int
	Ticks int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s on bank %d did not complete within %d ms", e.Op, e.Bank, e.Ticks)
}

// TransportError wraps a failed register access
type TransportError struct {
	Op   string
	Addr uint32
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: register access at 0x%08x failed: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MisalignedError reports a write which does not start on a burst boundary
type MisalignedError struct {
	Offset    uint32
	Alignment uint32
}

func (e *MisalignedError) Error() string {
	return fmt.Sprintf("offset 0x%08x is not aligned to %d bytes", e.Offset, e.Alignment)
}

// RangeError reports a sector or byte range outside the bank. End is
// exclusive.
type RangeError struct {
	Unit  string
	Start uint64
	End   uint64
	Limit uint64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s range [%d, %d) out of bounds (limit %d)", e.Unit, e.Start, e.End, e.Limit)
}
