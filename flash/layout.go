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
	"fmt"

	"github.com/erincandescent/stm32prog/protocol"
)

// Unlock key sequence, shared by every family
const (
	Key1 = 0x45670123
	Key2 = 0xCDEF89AB
)

// ErasedByte is the value of an erased flash byte; short bursts are padded
// with it
const ErasedByte = 0xFF

// Registers holds the absolute addresses of one controller's registers
type Registers struct {
	KEYR uint32
	SR   uint32
	CR   uint32

	// Register acknowledging error flags; SR on families where the status
	// flags are write-one-to-clear
	Clear uint32
}

// Bits describes a family's control and status bit patterns
type Bits struct {
	// CR lock bit, also the pattern written to lock
	Lock uint32

	// SR bits which must all be clear before an operation starts
	Busy uint32

	// SR bits which abort polling immediately
	Fatal uint32

	// An operation has completed when SR&DoneMask == DoneValue
	DoneMask  uint32
	DoneValue uint32

	// Pattern written to Registers.Clear to acknowledge stale errors
	ClearErrors uint32

	// CR pattern starting a mass erase of one controller
	MassErase uint32

	// CR pattern starting a sector erase; 0 if unsupported
	SectorErase uint32
	// Position and width of the sector number field in CR
	SectorShift uint
	SectorField uint32
	// CR bit addressing the second bank on single-controller parts
	BankSelect uint32

	// CR programming enable; 0 if unsupported
	Program uint32
}

// Layout is the complete register description of a family
type Layout struct {
	Family protocol.ChipFamily

	// Number of physical banks with their own controller registers
	Controllers int

	Bits Bits

	base       uint32
	bankStride uint32
	offsets    Registers
}

// Registers returns the register addresses of controller n
func (l *Layout) Registers(n int) Registers {
	at := l.base + uint32(n)*l.bankStride
	return Registers{
		KEYR:  at + l.offsets.KEYR,
		SR:    at + l.offsets.SR,
		CR:    at + l.offsets.CR,
		Clear: at + l.offsets.Clear,
	}
}

// MaxSectorsPerBank is the number of sectors addressable by the sector
// number field
func (l *Layout) MaxSectorsPerBank() int {
	return int(l.Bits.SectorField) + 1
}

// SectorEraseControl returns the CR value erasing sector of a dual bank
// array with perBank sectors in each bank
func (l *Layout) SectorEraseControl(sector, perBank int) uint32 {
	b := &l.Bits
	cr := b.SectorErase
	if sector >= perBank {
		sector -= perBank
		cr |= b.BankSelect
	}
	return cr | (uint32(sector)&b.SectorField)<<b.SectorShift
}

// STM32U5 FLASH_NSCR / FLASH_NSSR (RM0456 7.9)
const (
	u5CRLock  = 1 << 31
	u5CRStart = 1 << 16
	u5CRMER2  = 1 << 15
	u5CRMER1  = 1 << 2

	u5SRBusy = 1 << 16
	u5SREOP  = 1 << 0
	// OPERR, PROGERR, WRPERR, PGAERR, SIZERR, PGSERR, OPTWERR
	u5SRErrors = 0x000020FA
)

// STM32H5 FLASH_NSCR / FLASH_NSSR / FLASH_NSCCR (RM0481 7.11)
const (
	h5CRLock   = 1 << 0
	h5CRPG     = 1 << 1
	h5CRSER    = 1 << 2
	h5CRStart  = 1 << 5
	h5CRMER    = 1 << 15
	h5CRBKSel  = 1 << 31
	h5CRSNBPos = 6
	h5CRSNB    = 0x7F

	// BSY, WBNE, DBNE
	h5SRBusy = 0x0000000B
	h5SREOP  = 1 << 16
	// WRPERR, PGSERR, STRBERR, INCERR, OBKERR, OBKWERR, OPTCHANGEERR
	h5SRErrors  = 0x00FE0000
	h5CCRAllErr = 0x00FF0000
)

// STM32H7 FLASH_CRx / FLASH_SRx / FLASH_CCRx (RM0433 4.9). These follow
// the reference manual, not the H5 bit positions: BER|PSIZE|START for mass
// erase, and a fault mask that leaves out EOP (bit 16).
const (
	h7CRLock   = 1 << 0
	h7CRBER    = 1 << 3
	h7CRPSize  = 3 << 4 // 64 bit parallelism
	h7CRStart  = 1 << 7
	h7SRBusy   = 0x0000000F // BSY, WBNE, QW, CRC_BUSY
	h7SRErrors = 0x07EE0000 // WRPERR..DBECCERR, EOP excluded
	h7CCRAll   = 0x0FEF0000
)

var layouts = map[protocol.ChipFamily]*Layout{
	protocol.ChipFamilyU5: {
		Family:      protocol.ChipFamilyU5,
		Controllers: 1,
		Bits: Bits{
			Lock:        u5CRLock,
			Busy:        u5SRBusy,
			Fatal:       u5SRErrors,
			DoneMask:    u5SRBusy | u5SREOP,
			DoneValue:   u5SREOP,
			ClearErrors: u5SRErrors | u5SREOP,
			MassErase:   u5CRStart | u5CRMER2 | u5CRMER1,
		},
		base:    0x40022000,
		offsets: Registers{KEYR: 0x008, SR: 0x020, CR: 0x028, Clear: 0x020},
	},

	protocol.ChipFamilyH5: {
		Family:      protocol.ChipFamilyH5,
		Controllers: 1,
		Bits: Bits{
			Lock:        h5CRLock,
			Busy:        h5SRBusy,
			Fatal:       h5SRErrors,
			DoneMask:    h5SRBusy | h5SREOP,
			DoneValue:   h5SREOP,
			ClearErrors: h5CCRAllErr,
			MassErase:   h5CRMER | h5CRStart,
			SectorErase: h5CRSER | h5CRStart,
			SectorShift: h5CRSNBPos,
			SectorField: h5CRSNB,
			BankSelect:  h5CRBKSel,
			Program:     h5CRPG,
		},
		base:    0x40022000,
		offsets: Registers{KEYR: 0x004, SR: 0x020, CR: 0x028, Clear: 0x030},
	},

	protocol.ChipFamilyH7: {
		Family:      protocol.ChipFamilyH7,
		Controllers: 2,
		Bits: Bits{
			Lock:        h7CRLock,
			Busy:        h7SRBusy,
			Fatal:       h7SRErrors,
			DoneMask:    h7SRBusy,
			DoneValue:   0,
			ClearErrors: h7CCRAll,
			MassErase:   h7CRStart | h7CRPSize | h7CRBER,
		},
		base:       0x52002000,
		bankStride: 0x100,
		offsets:    Registers{KEYR: 0x004, SR: 0x010, CR: 0x00C, Clear: 0x014},
	},
}

// LayoutOf returns the register layout of family f
func LayoutOf(f protocol.ChipFamily) (*Layout, error) {
	l, ok := layouts[f]
	if !ok {
		return nil, fmt.Errorf("No flash layout for family %s", f)
	}
	return l, nil
}
