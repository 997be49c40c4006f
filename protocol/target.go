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

// Package protocol defines how the flash drivers reach a target: the
// register access contract they consume, the identity types shared with the
// device tables, and the concrete session clients and probe discovery that
// ship with stm32prog.
package protocol

// RegisterAccess is the minimal register interface the flash controller
// protocols are written against. Every call is synchronous and blocking.
type RegisterAccess interface {
	ReadU32(addr uint32) (uint32, error)
	ReadU16(addr uint32) (uint16, error)
	WriteU32(addr, value uint32) error

	// WriteBurst writes count items of width bytes each, taken from data
	// in target byte order, starting at addr
	WriteBurst(addr uint32, width, count int, data []byte) error

	// SleepTick blocks for ms milliseconds while keeping the session alive
	SleepTick(ms int)
}

// Target is a register interface bound to a debug session which knows the
// state and identity of the attached core.
type Target interface {
	RegisterAccess

	// Examined reports whether the session has identified the core
	Examined() bool
	State() State
	Arch() Arch
}

// Halter is implemented by sessions which can stop the core on request
type Halter interface {
	Halt() error
}
