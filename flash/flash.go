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

// Timeouts are polling budgets in milliseconds
type Timeouts struct {
	MassErase int // per controller
	Sector    int // per sector
	Write     int // per burst
}

var DefaultTimeouts = Timeouts{
	MassErase: 3000,
	Sector:    300,
	Write:     300,
}

// Region describes the flash array an operation is applied to
type Region struct {
	Base     uint32
	Size     uint32
	PageSize uint32
	BusWidth uint32
}

// NumSectors is the number of erasable pages in the region
func (r Region) NumSectors() int {
	if r.PageSize == 0 {
		return 0
	}
	return int(r.Size / r.PageSize)
}

type Option func(*Driver)

func WithLogger(log Logger) Option {
	return func(d *Driver) {
		if log != nil {
			d.log = log
		}
	}
}

func WithTimeouts(t Timeouts) Option {
	return func(d *Driver) {
		d.timeouts = t
	}
}

// WithProgress registers a function called after every programmed burst with
// the number of bytes written so far and the total
func WithProgress(fn func(done, total int)) Option {
	return func(d *Driver) {
		d.progress = fn
	}
}

// Driver implements mass erase, sector erase and programming for one family
type Driver struct {
	t        protocol.RegisterAccess
	layout   *Layout
	log      Logger
	timeouts Timeouts
	progress func(done, total int)
}

func New(t protocol.RegisterAccess, family protocol.ChipFamily, opts ...Option) (*Driver, error) {
	layout, err := LayoutOf(family)
	if err != nil {
		return nil, err
	}

	d := &Driver{
		t:        t,
		layout:   layout,
		log:      NopLogger{},
		timeouts: DefaultTimeouts,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Driver) Layout() *Layout {
	return d.layout
}

// Controller returns the register protocol helper for physical bank n
func (d *Driver) Controller(n int) *Controller {
	return NewController(d.t, d.layout, n, d.log)
}

func (d *Driver) CanEraseSectors() bool {
	return d.layout.Bits.SectorErase != 0
}

func (d *Driver) CanWrite() bool {
	return d.layout.Bits.Program != 0
}

// MassErase erases every controller in turn. Each controller is relocked
// whatever the outcome, and a failure on one controller does not prevent the
// next from being erased. The first failure is returned.
func (d *Driver) MassErase() error {
	var first error
	for n := 0; n < d.layout.Controllers; n++ {
		if err := d.massEraseOne(d.Controller(n)); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (d *Driver) massEraseOne(c *Controller) error {
	defer c.relock(OpMassErase)

	if err := c.Guard(); err != nil {
		return err
	}
	if err := c.Unlock(); err != nil {
		return err
	}

	d.log.Debug("Starting mass erase", "bank", c.Bank())
	if err := c.start(OpMassErase, d.layout.Bits.MassErase); err != nil {
		return err
	}
	err := c.WaitForCompletion(OpMassErase, d.timeouts.MassErase)
	c.resetControl(OpMassErase)
	return err
}

// checkSectors validates the bank geometry and the requested sector range
func (d *Driver) checkSectors(r Region, first, last int) (perBank int, err error) {
	total := r.NumSectors()
	if total == 0 || total%2 != 0 {
		return 0, fmt.Errorf("%w: %d sectors", ErrBadGeometry, total)
	}
	perBank = total / 2
	if perBank > d.layout.MaxSectorsPerBank() {
		return 0, fmt.Errorf("%w: %d sectors per bank", ErrBadGeometry, perBank)
	}
	if first < 0 || first > last || last >= total {
		return 0, &RangeError{
			Unit:  "sector",
			Start: uint64(first),
			End:   uint64(last) + 1,
			Limit: uint64(total),
		}
	}
	return perBank, nil
}

// EraseSectors erases sectors first through last inclusive. Sectors are
// numbered across both banks: the upper half of the range lies in bank 2.
func (d *Driver) EraseSectors(r Region, first, last int) error {
	if !d.CanEraseSectors() {
		return ErrNotSupported
	}
	perBank, err := d.checkSectors(r, first, last)
	if err != nil {
		return err
	}

	c := d.Controller(0)
	defer c.relock(OpSectorErase)
	if err := c.Guard(); err != nil {
		return err
	}
	if err := c.Unlock(); err != nil {
		return err
	}

	for s := first; s <= last; s++ {
		d.log.Debug("Erasing sector", "sector", s)
		if err := c.start(OpSectorErase, d.layout.SectorEraseControl(s, perBank)); err != nil {
			return err
		}
		err := c.WaitForCompletion(OpSectorErase, d.timeouts.Sector)
		c.resetControl(OpSectorErase)
		if err != nil {
			d.log.Error("Sector erase failed", "sector", s, "err", err)
			return err
		}
	}
	return nil
}

// Write programs data at offset bytes into the region. Offset must be a
// multiple of the bus width; a trailing partial burst is padded with the
// erased value.
func (d *Driver) Write(r Region, data []byte, offset uint32) error {
	if !d.CanWrite() {
		return ErrNotSupported
	}

	width := r.BusWidth
	if width == 0 || width%4 != 0 {
		return fmt.Errorf("%w: bus width %d", ErrBadGeometry, width)
	}
	if offset%width != 0 {
		return &MisalignedError{Offset: offset, Alignment: width}
	}
	if end := uint64(offset) + uint64(len(data)); end > uint64(r.Size) {
		return &RangeError{
			Unit:  "byte",
			Start: uint64(offset),
			End:   end,
			Limit: uint64(r.Size),
		}
	}
	if len(data) == 0 {
		return nil
	}

	c := d.Controller(0)
	defer c.relock(OpProgram)
	if err := c.Guard(); err != nil {
		return err
	}
	if err := c.Unlock(); err != nil {
		return err
	}

	if err := c.start(OpProgram, d.layout.Bits.Program); err != nil {
		return err
	}
	defer c.resetControl(OpProgram)

	buf := make([]byte, width)
	addr := r.Base + offset
	for done := 0; done < len(data); {
		n := copy(buf, data[done:])
		for i := n; i < len(buf); i++ {
			buf[i] = ErasedByte
		}

		if err := d.t.WriteBurst(addr, 4, int(width/4), buf); err != nil {
			d.log.Error("Burst write failed", "addr", hex32(addr), "err", err)
			return &TransportError{Op: OpProgram, Addr: addr, Err: err}
		}
		if err := c.WaitForCompletion(OpProgram, d.timeouts.Write); err != nil {
			return err
		}

		addr += width
		done += n
		if d.progress != nil {
			d.progress(done, len(data))
		}
	}
	return nil
}

func hex32(v uint32) string {
	return fmt.Sprintf("0x%08x", v)
}
