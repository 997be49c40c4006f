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

// Package sim simulates the flash controllers of a supported STM32 closely
// enough to drive the flash and driver packages without hardware.
package sim

import (
	"encoding/binary"
	"fmt"

	"github.com/erincandescent/stm32prog/flash"
	"github.com/erincandescent/stm32prog/protocol"
	"github.com/erincandescent/stm32prog/target"
)

// DefaultLatency is the number of ticks an operation keeps the controller busy
const DefaultLatency = 2

type AccessError struct {
	Addr uint32
	Op   string
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("sim: %s of unmapped address 0x%08x", e.Op, e.Addr)
}

type controller struct {
	regs flash.Registers
	cr   uint32
	sr   uint32

	// Index of the next expected key; -1 once a wrong key locked KEYR out
	key int

	pending int
	finish  func()
	fault   uint32
}

// Device is a simulated target with one flash array
type Device struct {
	def    *target.Definition
	layout *flash.Layout
	bits   flash.Bits

	mem      []byte
	idcode   uint32
	sizeKiB  uint16
	arch     protocol.Arch
	state    protocol.State
	examined bool
	latency  int
	ticks    int

	ctrl []*controller
	fail map[uint32]error
}

type Option func(*Device)

// WithRevision sets the REV_ID reported in IDCODE
func WithRevision(rev uint16) Option {
	return func(d *Device) {
		d.idcode = uint32(rev)<<16 | uint32(d.def.DeviceID)
	}
}

// WithFlashSize sets the array size. The flash size register reports the
// same value unless overridden with WithReportedSize.
func WithFlashSize(size uint32) Option {
	return func(d *Device) {
		d.mem = make([]byte, size)
		d.sizeKiB = uint16(size / 1024)
	}
}

// WithReportedSize overrides the flash size register
func WithReportedSize(kib uint16) Option {
	return func(d *Device) {
		d.sizeKiB = kib
	}
}

func WithArch(arch protocol.Arch) Option {
	return func(d *Device) {
		d.arch = arch
	}
}

func WithState(state protocol.State) Option {
	return func(d *Device) {
		d.state = state
	}
}

// WithLatency sets how many ticks each operation takes
func WithLatency(ticks int) Option {
	return func(d *Device) {
		if ticks < 1 {
			ticks = 1
		}
		d.latency = ticks
	}
}

// New simulates a device matching def. The device starts halted and
// examined with its flash erased and every controller locked.
func New(def *target.Definition, opts ...Option) (*Device, error) {
	layout, err := flash.LayoutOf(def.Family)
	if err != nil {
		return nil, err
	}

	d := &Device{
		def:      def,
		layout:   layout,
		bits:     layout.Bits,
		arch:     def.Arch,
		state:    protocol.StateHalted,
		examined: true,
		latency:  DefaultLatency,
		fail:     make(map[uint32]error),
	}
	WithFlashSize(def.MaxFlashSize)(d)
	WithRevision(0)(d)
	if len(def.Revisions) > 0 {
		WithRevision(def.Revisions[0].ID)(d)
	}
	for _, opt := range opts {
		opt(d)
	}

	for n := 0; n < layout.Controllers; n++ {
		d.ctrl = append(d.ctrl, &controller{regs: layout.Registers(n)})
	}
	for i := range d.mem {
		d.mem[i] = flash.ErasedByte
	}
	d.Reset()
	return d, nil
}

// Reset relocks every controller and clears status, as a system reset would.
// Flash contents are preserved.
func (d *Device) Reset() {
	for _, c := range d.ctrl {
		c.cr = d.bits.Lock
		c.sr = 0
		c.key = 0
		c.pending = 0
		c.finish = nil
		c.fault = 0
	}
}

// Definition is the device definition being simulated
func (d *Device) Definition() *target.Definition {
	return d.def
}

// Flash returns the simulated array. The slice aliases device memory.
func (d *Device) Flash() []byte {
	return d.mem
}

// Ticks is the number of milliseconds slept so far
func (d *Device) Ticks() int {
	return d.ticks
}

// Locked reports whether controller n's CR is locked
func (d *Device) Locked(n int) bool {
	return d.ctrl[n].cr&d.bits.Lock != 0
}

// Status returns controller n's SR
func (d *Device) Status(n int) uint32 {
	return d.ctrl[n].sr
}

func (d *Device) SetState(state protocol.State) {
	d.state = state
}

func (d *Device) SetExamined(examined bool) {
	d.examined = examined
}

// InjectFault makes the next operation on controller n end with status set
// in SR instead of taking effect
func (d *Device) InjectFault(n int, status uint32) {
	d.ctrl[n].fault = status
}

// FailAccess makes every access to addr fail with err. A nil err removes the
// failure.
func (d *Device) FailAccess(addr uint32, err error) {
	if err == nil {
		delete(d.fail, addr)
		return
	}
	d.fail[addr] = err
}

func (d *Device) Examined() bool {
	return d.examined
}

func (d *Device) State() protocol.State {
	return d.state
}

func (d *Device) Arch() protocol.Arch {
	return d.arch
}

func (d *Device) Halt() error {
	d.state = protocol.StateHalted
	return nil
}

func (d *Device) SleepTick(ms int) {
	d.ticks += ms
	for _, c := range d.ctrl {
		if c.pending == 0 {
			continue
		}
		c.pending -= ms
		if c.pending <= 0 {
			d.complete(c)
		}
	}
}

func (d *Device) complete(c *controller) {
	c.pending = 0
	c.sr &^= d.bits.Busy
	if c.fault != 0 {
		c.sr |= c.fault
		c.fault = 0
	} else {
		c.finish()
		c.sr |= d.bits.DoneValue
	}
	c.finish = nil
}

// begin marks c busy until finish runs latency ticks from now
func (d *Device) begin(c *controller, finish func()) {
	c.sr |= d.bits.Busy & -d.bits.Busy
	c.pending = d.latency
	c.finish = finish
}

// reject flags a sequencing error on c
func (d *Device) reject(c *controller) {
	c.sr |= d.bits.Fatal & -d.bits.Fatal
}

func (d *Device) controllerFor(addr uint32) (*controller, uint32) {
	for _, c := range d.ctrl {
		switch addr {
		case c.regs.KEYR, c.regs.SR, c.regs.CR, c.regs.Clear:
			return c, addr
		}
	}
	return nil, 0
}

func (d *Device) inFlash(addr uint32, n int) bool {
	return addr >= d.def.FlashBase && uint64(addr)+uint64(n) <= uint64(d.def.FlashBase)+uint64(len(d.mem))
}

func (d *Device) ReadU32(addr uint32) (uint32, error) {
	if err := d.fail[addr]; err != nil {
		return 0, err
	}

	if c, reg := d.controllerFor(addr); c != nil {
		switch reg {
		case c.regs.SR:
			return c.sr, nil
		case c.regs.CR:
			return c.cr, nil
		}
		return 0, nil
	}

	switch {
	case addr == d.def.IDCodeAddr:
		return d.idcode, nil
	case d.inFlash(addr, 4):
		off := addr - d.def.FlashBase
		return binary.LittleEndian.Uint32(d.mem[off:]), nil
	}
	return 0, &AccessError{Addr: addr, Op: "read"}
}

func (d *Device) ReadU16(addr uint32) (uint16, error) {
	if err := d.fail[addr]; err != nil {
		return 0, err
	}

	switch {
	case d.def.FlashSizeAddr != 0 && addr == d.def.FlashSizeAddr:
		return d.sizeKiB, nil
	case d.inFlash(addr, 2):
		off := addr - d.def.FlashBase
		return binary.LittleEndian.Uint16(d.mem[off:]), nil
	}
	return 0, &AccessError{Addr: addr, Op: "read"}
}

func (d *Device) WriteU32(addr, value uint32) error {
	if err := d.fail[addr]; err != nil {
		return err
	}

	c, reg := d.controllerFor(addr)
	if c == nil {
		return &AccessError{Addr: addr, Op: "write"}
	}

	// U5 acknowledges flags in SR itself
	if reg == c.regs.Clear {
		c.sr &^= value &^ d.bits.Busy
		return nil
	}

	switch reg {
	case c.regs.KEYR:
		d.writeKey(c, value)
	case c.regs.CR:
		d.writeControl(c, value)
	}
	return nil
}

func (d *Device) writeKey(c *controller, value uint32) {
	switch {
	case c.key < 0:
	case c.key == 0 && value == flash.Key1:
		c.key = 1
	case c.key == 1 && value == flash.Key2:
		c.key = 0
		c.cr &^= d.bits.Lock
	default:
		c.key = -1
	}
}

func (d *Device) writeControl(c *controller, value uint32) {
	if c.cr&d.bits.Lock != 0 {
		return
	}
	c.cr = value
	if value&d.bits.Lock != 0 || c.pending != 0 {
		return
	}

	b := &d.bits
	switch {
	case value&b.MassErase == b.MassErase:
		d.begin(c, func() { d.massErase(c) })
	case b.SectorErase != 0 && value&b.SectorErase == b.SectorErase:
		sector := int(value >> b.SectorShift & b.SectorField)
		if value&b.BankSelect != 0 {
			sector += d.sectorsPerBank()
		}
		if sector >= d.sectorsPerBank()*2 {
			d.reject(c)
			return
		}
		d.begin(c, func() { d.fill(uint32(sector)*d.def.PageSize, d.def.PageSize) })
	}
}

func (d *Device) sectorsPerBank() int {
	return len(d.mem) / int(d.def.PageSize) / 2
}

func (d *Device) massErase(c *controller) {
	if len(d.ctrl) == 1 {
		d.fill(0, uint32(len(d.mem)))
		return
	}

	half := uint32(len(d.mem)) / uint32(len(d.ctrl))
	for n, cc := range d.ctrl {
		if cc == c {
			d.fill(uint32(n)*half, half)
		}
	}
}

func (d *Device) fill(off, n uint32) {
	for i := off; i < off+n; i++ {
		d.mem[i] = flash.ErasedByte
	}
}

// WriteBurst programs flash when the controller is in programming mode.
// Programming can only clear bits.
func (d *Device) WriteBurst(addr uint32, width, count int, data []byte) error {
	if err := d.fail[addr]; err != nil {
		return err
	}
	n := width * count
	if len(data) < n {
		return fmt.Errorf("sim: burst of %d bytes with %d supplied", n, len(data))
	}
	if !d.inFlash(addr, n) {
		return &AccessError{Addr: addr, Op: "write"}
	}

	c := d.ctrl[0]
	if d.bits.Program == 0 || c.cr&d.bits.Program == 0 || c.cr&d.bits.Lock != 0 {
		d.reject(c)
		return nil
	}

	off := addr - d.def.FlashBase
	chunk := append([]byte(nil), data[:n]...)
	d.begin(c, func() {
		for i, v := range chunk {
			d.mem[int(off)+i] &= v
		}
	})
	return nil
}
