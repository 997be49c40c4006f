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
	"github.com/erincandescent/stm32prog/protocol"
)

// Operation names used in errors and logs
const (
	OpUnlock      = "unlock"
	OpLock        = "lock"
	OpCheck       = "check"
	OpClearErrors = "clear errors"
	OpMassErase   = "mass erase"
	OpSectorErase = "sector erase"
	OpProgram     = "program"
)

// Controller drives the register protocol of one flash controller: one
// physical bank on STM32H7, the whole array on STM32U5 and STM32H5.
type Controller struct {
	t    protocol.RegisterAccess
	bank int
	regs Registers
	bits Bits
	log  Logger
}

// NewController binds controller n of layout to t
func NewController(t protocol.RegisterAccess, layout *Layout, n int, log Logger) *Controller {
	if log == nil {
		log = NopLogger{}
	}
	return &Controller{
		t:    t,
		bank: n,
		regs: layout.Registers(n),
		bits: layout.Bits,
		log:  log,
	}
}

func (c *Controller) Bank() int {
	return c.bank
}

func (c *Controller) read(op string, addr uint32) (uint32, error) {
	v, err := c.t.ReadU32(addr)
	if err != nil {
		return 0, &TransportError{Op: op, Addr: addr, Err: err}
	}
	return v, nil
}

func (c *Controller) write(op string, addr, value uint32) error {
	if err := c.t.WriteU32(addr, value); err != nil {
		return &TransportError{Op: op, Addr: addr, Err: err}
	}
	return nil
}

// Lock sets the CR lock bit. Writes to CR are ignored by the hardware until
// the next successful Unlock.
func (c *Controller) Lock() error {
	return c.write(OpLock, c.regs.CR, c.bits.Lock)
}

// Unlock feeds the key sequence to KEYR if CR is locked. Unlocking an
// unlocked controller performs no writes. A rejected key sequence leaves the
// controller locked until the device is reset, which is reported as
// ErrLockedUntilReset.
func (c *Controller) Unlock() error {
	cr, err := c.read(OpUnlock, c.regs.CR)
	if err != nil {
		return err
	}
	if cr&c.bits.Lock == 0 {
		return nil
	}

	if err := c.write(OpUnlock, c.regs.KEYR, Key1); err != nil {
		return err
	}
	if err := c.write(OpUnlock, c.regs.KEYR, Key2); err != nil {
		return err
	}

	cr, err = c.read(OpUnlock, c.regs.CR)
	if err != nil {
		return err
	}
	if cr&c.bits.Lock != 0 {
		c.log.Error("Flash controller still locked after key sequence", "bank", c.bank)
		return ErrLockedUntilReset
	}
	return nil
}

// CheckNoOperation fails with ErrOperationInProgress if any busy bit is set
func (c *Controller) CheckNoOperation() error {
	sr, err := c.read(OpCheck, c.regs.SR)
	if err != nil {
		return err
	}
	if sr&c.bits.Busy != 0 {
		c.log.Error("Operation in progress", "bank", c.bank, "status", hex32(sr))
		return ErrOperationInProgress
	}
	return nil
}

// ClearErrorFlags acknowledges every latched error flag
func (c *Controller) ClearErrorFlags() error {
	return c.write(OpClearErrors, c.regs.Clear, c.bits.ClearErrors)
}

// Guard performs the checks required before starting an erase or program
// operation
func (c *Controller) Guard() error {
	if err := c.CheckNoOperation(); err != nil {
		return err
	}
	return c.ClearErrorFlags()
}

// WaitForCompletion polls SR once per millisecond for at most ticks
// milliseconds. Error flags end the wait on the tick they are observed.
func (c *Controller) WaitForCompletion(op string, ticks int) error {
	for remaining := ticks; remaining > 0; remaining-- {
		c.t.SleepTick(1)

		sr, err := c.read(op, c.regs.SR)
		if err != nil {
			return err
		}

		if sr&c.bits.Fatal != 0 {
			c.log.Error("Flash operation failed", "op", op, "bank", c.bank, "status", hex32(sr))
			return &HardwareFaultError{Op: op, Bank: c.bank, Status: sr}
		}

		if sr&c.bits.DoneMask == c.bits.DoneValue {
			return nil
		}
	}

	c.log.Error("Flash operation timed out", "op", op, "bank", c.bank, "ticks", ticks)
	return &TimeoutError{Op: op, Bank: c.bank, Ticks: ticks}
}

// start writes an operation pattern to CR
func (c *Controller) start(op string, cr uint32) error {
	return c.write(op, c.regs.CR, cr)
}

// resetControl clears every operation bit in CR. Failures are logged only;
// the caller's result stands.
func (c *Controller) resetControl(op string) {
	if err := c.write(op, c.regs.CR, 0); err != nil {
		c.log.Warn("Clearing control register failed", "op", op, "bank", c.bank, "err", err)
	}
}

// relock is Lock for cleanup paths
func (c *Controller) relock(op string) {
	if err := c.Lock(); err != nil {
		c.log.Warn("Relocking flash failed", "op", op, "bank", c.bank, "err", err)
	}
}
