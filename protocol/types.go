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
package protocol

import "fmt"

// Core architecture of the attached CPU, as reported by the debug session
type Arch uint8

const (
	ArchUnknown Arch = iota
	ArchV6M
	ArchV7M
	ArchV8M
)

func (a Arch) String() string {
	switch a {
	case ArchV6M:
		return "ARMv6-M"
	case ArchV7M:
		return "ARMv7-M"
	case ArchV8M:
		return "ARMv8-M"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// Flash controller family. Every variant in a family shares one register
// layout and one erase/program protocol.
type ChipFamily uint32

const (
	// STM32U5: single controller, lock bit in CR[31], error flags
	// acknowledged through SR
	ChipFamilyU5 ChipFamily = iota + 1

	// STM32H5: single controller, dual bank selected through CR.BKSEL,
	// error flags acknowledged through CCR
	ChipFamilyH5

	// STM32H7: one controller per physical bank, 256 bit flash words
	ChipFamilyH7
)

func (f ChipFamily) String() string {
	switch f {
	case ChipFamilyU5:
		return "STM32U5"
	case ChipFamilyH5:
		return "STM32H5"
	case ChipFamilyH7:
		return "STM32H7"
	default:
		return fmt.Sprintf("0x%08x", uint32(f))
	}
}

// DeviceID is the 12 bit DEV_ID field of DBGMCU_IDCODE
type DeviceID uint16

const DeviceIDMask = 0x0FFF

func (id DeviceID) String() string {
	return fmt.Sprintf("0x%03x", uint16(id))
}

// DeviceIDFromIDCode extracts DEV_ID from a raw DBGMCU_IDCODE word
func DeviceIDFromIDCode(idcode uint32) DeviceID {
	return DeviceID(idcode & DeviceIDMask)
}

// RevisionFromIDCode extracts REV_ID from a raw DBGMCU_IDCODE word
func RevisionFromIDCode(idcode uint32) uint16 {
	return uint16(idcode >> 16)
}

// Execution state of the target core
type State uint8

const (
	StateUnknown State = iota
	StateRunning
	StateHalted
	StateReset
	StateDebugRunning
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	case StateReset:
		return "reset"
	case StateDebugRunning:
		return "debug-running"
	default:
		return "unknown"
	}
}

// ParseState converts a state name as printed by OpenOCD's curstate
func ParseState(s string) State {
	switch s {
	case "running":
		return StateRunning
	case "halted":
		return StateHalted
	case "reset":
		return StateReset
	case "debug-running":
		return StateDebugRunning
	default:
		return StateUnknown
	}
}
