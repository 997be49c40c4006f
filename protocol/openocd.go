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

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"
	"periph.io/x/conn/v3/physic"
)

const DefaultOpenOCDAddr = "localhost:6666"

// Cortex-M System Control Block CPUID register
const cpuidAddr = 0xE000ED00

// CommandError is returned when OpenOCD evaluated a command and reported
// a failure
type CommandError struct {
	Script  string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("openocd: %s: %s", e.Script, e.Message)
}

type openOCDConfig struct {
	timeout time.Duration
	speed   physic.Frequency
}

type OpenOCDOption func(*openOCDConfig)

// WithTimeout bounds every request/reply exchange with the server
func WithTimeout(d time.Duration) OpenOCDOption {
	return func(c *openOCDConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSpeed sets the debug adapter clock after connecting. Zero leaves the
// server's configuration alone.
func WithSpeed(f physic.Frequency) OpenOCDOption {
	return func(c *openOCDConfig) {
		c.speed = f
	}
}

// OpenOCD is a Target backed by a running OpenOCD instance, driven through
// its TCL RPC port. OpenOCD owns the probe, the DAP and the memory access
// path; this type only issues commands to it.
type OpenOCD struct {
	mu   sync.Mutex
	conn net.Conn
	rd   *bufio.Reader
	cfg  openOCDConfig

	archMu sync.Mutex
	arch   Arch
}

// DialOpenOCD connects to the TCL RPC server at addr
func DialOpenOCD(addr string, opts ...OpenOCDOption) (*OpenOCD, error) {
	cfg := openOCDConfig{timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}

	conn, err := net.DialTimeout("tcp", addr, cfg.timeout)
	if err != nil {
		return nil, errors.Annotatef(err, "connecting to openocd at %s", addr)
	}

	o, err := NewOpenOCD(conn, opts...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return o, nil
}

// NewOpenOCD wraps an established connection to a TCL RPC server
func NewOpenOCD(conn net.Conn, opts ...OpenOCDOption) (*OpenOCD, error) {
	o := &OpenOCD{
		conn: conn,
		rd:   bufio.NewReader(conn),
		cfg:  openOCDConfig{timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(&o.cfg)
	}

	if o.cfg.speed > 0 {
		khz := int64(o.cfg.speed / physic.KiloHertz)
		if khz == 0 {
			khz = 1
		}
		if _, err := o.Eval(fmt.Sprintf("adapter speed %d", khz)); err != nil {
			return nil, errors.Annotatef(err, "setting adapter speed to %s", o.cfg.speed)
		}
	}

	return o, nil
}

func (o *OpenOCD) Close() error {
	if o == nil || o.conn == nil {
		return nil
	}
	err := o.conn.Close()
	o.conn = nil
	return err
}

// Eval runs script on the server and returns its result. A non-zero Tcl
// return code is reported as a *CommandError.
func (o *OpenOCD) Eval(script string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.conn == nil {
		return "", errors.New("openocd connection closed")
	}

	msg, err := frameCommand(script)
	if err != nil {
		return "", err
	}

	glog.V(3).Infof("openocd > %s", script)
	if o.cfg.timeout > 0 {
		o.conn.SetDeadline(time.Now().Add(o.cfg.timeout))
		defer o.conn.SetDeadline(time.Time{})
	}

	if _, err := o.conn.Write(msg); err != nil {
		return "", errors.Annotate(err, "sending command")
	}

	reply, err := readReply(o.rd)
	if err != nil {
		return "", errors.Annotate(err, "reading reply")
	}
	glog.V(3).Infof("openocd < %d %s", reply.Code, reply.Result)

	if !reply.OK() {
		return "", &CommandError{Script: script, Message: reply.Result}
	}
	return reply.Result, nil
}

func parseWord(s string, bits int) (uint64, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		s = s[:i]
	}
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, errors.Annotatef(err, "parsing %q", s)
	}
	return v, nil
}

func (o *OpenOCD) ReadU32(addr uint32) (uint32, error) {
	res, err := o.Eval(fmt.Sprintf("read_memory 0x%08x 32 1", addr))
	if err != nil {
		return 0, errors.Annotatef(err, "read_memory 0x%08x", addr)
	}
	v, err := parseWord(res, 32)
	return uint32(v), err
}

func (o *OpenOCD) ReadU16(addr uint32) (uint16, error) {
	res, err := o.Eval(fmt.Sprintf("read_memory 0x%08x 16 1", addr))
	if err != nil {
		return 0, errors.Annotatef(err, "read_memory 0x%08x", addr)
	}
	v, err := parseWord(res, 16)
	return uint16(v), err
}

func (o *OpenOCD) WriteU32(addr, value uint32) error {
	_, err := o.Eval(fmt.Sprintf("write_memory 0x%08x 32 {0x%08x}", addr, value))
	return errors.Annotatef(err, "write_memory 0x%08x", addr)
}

func (o *OpenOCD) WriteBurst(addr uint32, width, count int, data []byte) error {
	if len(data) < width*count {
		return errors.Errorf("burst of %dx%d bytes needs %d bytes of data, have %d",
			count, width, width*count, len(data))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "write_memory 0x%08x %d {", addr, width*8)
	for i := 0; i < count; i++ {
		if i != 0 {
			sb.WriteByte(' ')
		}

		item := data[i*width : (i+1)*width]
		switch width {
		case 1:
			fmt.Fprintf(&sb, "0x%02x", item[0])
		case 2:
			fmt.Fprintf(&sb, "0x%04x", binary.LittleEndian.Uint16(item))
		case 4:
			fmt.Fprintf(&sb, "0x%08x", binary.LittleEndian.Uint32(item))
		case 8:
			fmt.Fprintf(&sb, "0x%016x", binary.LittleEndian.Uint64(item))
		default:
			return errors.NotValidf("burst width %d", width)
		}
	}
	sb.WriteByte('}')

	_, err := o.Eval(sb.String())
	return errors.Annotatef(err, "write_memory 0x%08x", addr)
}

// SleepTick only sleeps locally: OpenOCD services its own keep-alive while
// the RPC connection is idle
func (o *OpenOCD) SleepTick(ms int) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

func (o *OpenOCD) Examined() bool {
	res, err := o.Eval("[target current] was_examined")
	if err != nil {
		glog.Warningf("Querying target examination state: %v", err)
		return false
	}
	return strings.TrimSpace(res) == "1"
}

func (o *OpenOCD) State() State {
	res, err := o.Eval("[target current] curstate")
	if err != nil {
		glog.Warningf("Querying target state: %v", err)
		return StateUnknown
	}
	return ParseState(strings.TrimSpace(res))
}

func (o *OpenOCD) Halt() error {
	_, err := o.Eval("halt")
	return errors.Annotate(err, "halting target")
}

// Arch identifies the core from its CPUID register. A successful read is
// cached for the lifetime of the connection; after a failed read the next
// call tries again.
func (o *OpenOCD) Arch() Arch {
	o.archMu.Lock()
	defer o.archMu.Unlock()
	if o.arch != ArchUnknown {
		return o.arch
	}

	cpuid, err := o.ReadU32(cpuidAddr)
	if err != nil {
		glog.Warningf("Reading CPUID: %v", err)
		return ArchUnknown
	}
	o.arch = ArchFromCPUID(cpuid)
	return o.arch
}

// ArchFromCPUID maps an ARM Cortex-M CPUID value to its architecture
func ArchFromCPUID(cpuid uint32) Arch {
	const implementerARM = 0x41
	if cpuid>>24 != implementerARM {
		return ArchUnknown
	}

	switch partno := (cpuid >> 4) & 0xFFF; partno {
	case 0xC20, 0xC21, 0xC60: // M0, M1, M0+
		return ArchV6M
	case 0xC23, 0xC24, 0xC27: // M3, M4, M7
		return ArchV7M
	case 0xD20, 0xD21, 0xD22, 0xD23: // M23, M33, M55, M85
		return ArchV8M
	default:
		return ArchUnknown
	}
}
