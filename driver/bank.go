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

// Package driver binds a flash bank on an attached STM32 to its device
// definition and exposes the erase and program operations.
package driver

import (
	"fmt"

	"github.com/erincandescent/stm32prog/flash"
	"github.com/erincandescent/stm32prog/protocol"
	"github.com/erincandescent/stm32prog/target"
)

// Bank is a flash bank declared at base. Size, alignment and sector count
// are filled in by the first successful Probe.
type Bank struct {
	Base uint32

	// Size in bytes; the declared size until probed, then a copy of
	// Capacity. Changing it after Probe has no effect.
	Size uint32

	BusWidth        uint32
	WriteAlignment  uint32
	MinimalWriteGap uint32
	NumSectors      int

	t        protocol.Target
	log      flash.Logger
	timeouts flash.Timeouts
	progress func(done, total int)

	// Set once by Probe
	def      *target.Definition
	revision byte
	capacity uint32
	drv      *flash.Driver
}

// NewBank declares a bank at base. A size of zero selects the maximum flash
// size of the device found by Probe.
func NewBank(t protocol.Target, base, size uint32, opts ...Option) *Bank {
	b := &Bank{
		Base:     base,
		Size:     size,
		t:        t,
		log:      flash.NopLogger{},
		timeouts: flash.DefaultTimeouts,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Definition returns a copy of the bound device definition, or nil if
// unresolved
func (b *Bank) Definition() *target.Definition {
	if b.def == nil {
		return nil
	}
	return b.def.Clone()
}

// Capacity is the probed flash size, or zero if unresolved
func (b *Bank) Capacity() uint32 {
	return b.capacity
}

// Revision is the silicon revision letter: '?' if the revision is not
// known, 0 if the bank is unresolved
func (b *Bank) Revision() byte {
	return b.revision
}

// Probe identifies the attached device. Once a bank has been resolved,
// further calls return nil without accessing the target.
func (b *Bank) Probe() error {
	if !b.t.Examined() {
		b.log.Error("Target not examined yet")
		return ErrTargetNotExamined
	}
	if b.def != nil {
		return nil
	}

	arch := b.t.Arch()
	if arch != protocol.ArchV7M && arch != protocol.ArchV8M {
		b.log.Error("Not a supported ARM core", "arch", arch)
		return &UnsupportedArchitectureError{Arch: arch}
	}

	td, idcode, err := b.identify(arch)
	if err != nil {
		return err
	}

	if b.Base != td.FlashBase {
		b.log.Error("Unknown flash area", "base", fmt.Sprintf("0x%08x", b.Base))
		return &UnknownFlashAreaError{Base: b.Base}
	}

	drv, err := flash.New(b.t, td.Family,
		flash.WithLogger(b.log),
		flash.WithTimeouts(b.timeouts),
		flash.WithProgress(b.progress))
	if err != nil {
		return err
	}

	size := b.flashSize(td)
	b.log.Info("Using flash size", "kiB", size/1024)

	rev, ok := td.Revision(protocol.RevisionFromIDCode(idcode))
	if !ok {
		rev = '?'
	}

	b.def = td
	b.revision = rev
	b.drv = drv
	b.capacity = size
	b.Size = size
	b.BusWidth = td.BusWidth
	b.WriteAlignment = td.BusWidth
	b.MinimalWriteGap = td.BusWidth
	b.NumSectors = int(size / td.PageSize)
	return nil
}

// AutoProbe probes the bank unless it is already resolved
func (b *Bank) AutoProbe() error {
	if b.def != nil {
		return nil
	}
	return b.Probe()
}

// identify returns the first definition for arch whose IDCODE register
// carries its device ID
func (b *Bank) identify(arch protocol.Arch) (*target.Definition, uint32, error) {
	for _, td := range target.All() {
		if td.Arch != arch {
			continue
		}

		idcode, err := b.t.ReadU32(td.IDCodeAddr)
		if err != nil {
			b.log.Debug("Reading IDCODE failed", "target", td.Name, "err", err)
			continue
		}

		if protocol.DeviceIDFromIDCode(idcode) == td.DeviceID {
			b.log.Info("Device found", "target", td.Name)
			return td, idcode, nil
		}
	}

	b.log.Info("No supported device found", "arch", arch)
	return nil, 0, ErrUnknownDevice
}

// flashSize reconciles the declared size, the definition's maximum and the
// size reported by the device
func (b *Bank) flashSize(td *target.Definition) uint32 {
	size := b.Size
	switch {
	case size == 0:
		size = td.MaxFlashSize
	case size > td.MaxFlashSize:
		b.log.Warn("Declared flash size exceeds maximum flash size",
			"kiB", size/1024, "max", td.MaxFlashSize/1024)
		size = td.MaxFlashSize
	}

	if td.FlashSizeAddr == 0 {
		return size
	}

	kb, err := b.t.ReadU16(td.FlashSizeAddr)
	if err != nil {
		b.log.Warn("Unable to read flash size from MCU", "err", err)
		return size
	}

	reported := uint32(kb) * 1024
	if reported == 0 || reported > td.MaxFlashSize {
		b.log.Warn("MCU indicates invalid flash size", "kiB", kb)
		return size
	}
	if b.Size != 0 && b.Size != reported {
		b.log.Warn("Declared flash size differs from device reported size",
			"kiB", b.Size/1024, "reported", kb)
	}
	return reported
}

func (b *Bank) region() flash.Region {
	return flash.Region{
		Base:     b.Base,
		Size:     b.capacity,
		PageSize: b.def.PageSize,
		BusWidth: b.def.BusWidth,
	}
}

// ready checks the preconditions shared by every mutating operation
func (b *Bank) ready() error {
	if b.def == nil {
		return ErrDeviceUnresolved
	}
	if b.t.State() != protocol.StateHalted {
		b.log.Error("Target not halted")
		return ErrTargetNotHalted
	}
	return nil
}

// CanWrite reports whether the bound device family supports Write and Erase
func (b *Bank) CanWrite() bool {
	return b.drv != nil && b.drv.CanWrite()
}

// MassErase erases the entire device
func (b *Bank) MassErase() error {
	if err := b.ready(); err != nil {
		return err
	}
	return b.drv.MassErase()
}

// Erase erases sectors first through last inclusive
func (b *Bank) Erase(first, last int) error {
	if err := b.ready(); err != nil {
		return err
	}
	b.log.Info("Erasing sectors", "first", first, "last", last)
	return b.drv.EraseSectors(b.region(), first, last)
}

// Write programs data at offset bytes from the bank base
func (b *Bank) Write(data []byte, offset uint32) error {
	if err := b.ready(); err != nil {
		return err
	}
	b.log.Info("Programming", "bytes", len(data), "addr", fmt.Sprintf("0x%08x", b.Base+offset))
	return b.drv.Write(b.region(), data, offset)
}

// Info describes the bound device, or is empty if the bank is unresolved
func (b *Bank) Info() string {
	if b.def == nil {
		return ""
	}
	return fmt.Sprintf("%s rev %c, %d KiB", b.def.Name, b.revision, b.capacity/1024)
}
