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
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"

	"periph.io/x/conn/v3/physic"
)

// fakeOpenOCD serves the TCL RPC protocol over a pipe, answering each script
// with handle and recording it
type fakeOpenOCD struct {
	mu      sync.Mutex
	scripts []string
	handle  func(script string) (int, string)
}

func (f *fakeOpenOCD) serve(conn net.Conn) {
	defer conn.Close()
	rd := bufio.NewReader(conn)
	for {
		raw, err := rd.ReadString(rpcTerminator)
		if err != nil {
			return
		}

		script := strings.TrimSuffix(raw, "\x1a")
		script = strings.TrimPrefix(script, "list [catch {")
		script = strings.TrimSuffix(script, "} _stm32prog_r] $_stm32prog_r")

		f.mu.Lock()
		f.scripts = append(f.scripts, script)
		f.mu.Unlock()

		code, result := f.handle(script)
		if result == "" || strings.ContainsAny(result, " \t") {
			result = "{" + result + "}"
		}
		fmt.Fprintf(conn, "%d %s\x1a", code, result)
	}
}

func (f *fakeOpenOCD) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.scripts...)
}

func newFakeOpenOCD(t *testing.T, handle func(string) (int, string), opts ...OpenOCDOption) (*OpenOCD, *fakeOpenOCD) {
	t.Helper()
	client, server := net.Pipe()
	f := &fakeOpenOCD{handle: handle}
	go f.serve(server)

	o, err := NewOpenOCD(client, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { o.Close() })
	return o, f
}

// memoryServer implements read_memory and write_memory over a word map
func memoryServer(mem map[uint32]uint32) func(string) (int, string) {
	return func(script string) (int, string) {
		var addr uint32
		var width int
		switch {
		case strings.HasPrefix(script, "read_memory"):
			fmt.Sscanf(script, "read_memory 0x%x %d 1", &addr, &width)
			v, ok := mem[addr]
			if !ok {
				return 1, fmt.Sprintf("read_memory: failed to read memory at 0x%08x", addr)
			}
			if width == 16 {
				v &= 0xFFFF
			}
			return 0, fmt.Sprintf("0x%x", v)
		case strings.HasPrefix(script, "write_memory"):
			return 0, ""
		case script == "[target current] was_examined":
			return 0, "1"
		case script == "[target current] curstate":
			return 0, "halted"
		case script == "halt", strings.HasPrefix(script, "adapter speed"):
			return 0, ""
		}
		return 1, "invalid command name"
	}
}

func TestOpenOCDRegisterAccess(t *testing.T) {
	mem := map[uint32]uint32{
		0x44024000: 0x10010484,
		0x08FFF80C: 0x00000800,
		cpuidAddr:  0x410FD214,
	}
	o, f := newFakeOpenOCD(t, memoryServer(mem))

	v, err := o.ReadU32(0x44024000)
	if err != nil || v != 0x10010484 {
		t.Errorf("ReadU32: 0x%08x, %v", v, err)
	}
	h, err := o.ReadU16(0x08FFF80C)
	if err != nil || h != 0x800 {
		t.Errorf("ReadU16: 0x%04x, %v", h, err)
	}

	if err := o.WriteU32(0x40022004, 0x45670123); err != nil {
		t.Fatal(err)
	}
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := o.WriteBurst(0x08000000, 4, 2, data); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"read_memory 0x44024000 32 1",
		"read_memory 0x08fff80c 16 1",
		"write_memory 0x40022004 32 {0x45670123}",
		"write_memory 0x08000000 32 {0x04030201 0x08070605}",
	}
	got := f.seen()
	if len(got) != len(want) {
		t.Fatalf("scripts %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("script %d: %q, want %q", i, got[i], want[i])
		}
	}
}

func TestOpenOCDCommandError(t *testing.T) {
	o, _ := newFakeOpenOCD(t, memoryServer(map[uint32]uint32{}))

	_, err := o.ReadU32(0x20000000)
	var ce *CommandError
	if !errors.As(err, &ce) {
		t.Fatalf("got %v, want CommandError", err)
	}
	if !strings.Contains(ce.Message, "0x20000000") {
		t.Errorf("message %q", ce.Message)
	}
}

func TestOpenOCDTargetState(t *testing.T) {
	o, f := newFakeOpenOCD(t, memoryServer(map[uint32]uint32{cpuidAddr: 0x411FC271}))

	if !o.Examined() {
		t.Error("not examined")
	}
	if s := o.State(); s != StateHalted {
		t.Errorf("state %s", s)
	}
	if err := o.Halt(); err != nil {
		t.Error(err)
	}
	if a := o.Arch(); a != ArchV7M {
		t.Errorf("arch %s", a)
	}
	n := len(f.seen())
	if o.Arch() != ArchV7M || len(f.seen()) != n {
		t.Error("CPUID read again")
	}
}

func TestOpenOCDArchRetriesFailedRead(t *testing.T) {
	mem := memoryServer(map[uint32]uint32{cpuidAddr: 0x410FD214})
	failed := false
	o, f := newFakeOpenOCD(t, func(script string) (int, string) {
		if strings.HasPrefix(script, "read_memory") && !failed {
			failed = true
			return 1, "read_memory: DAP transaction stalled"
		}
		return mem(script)
	})

	if a := o.Arch(); a != ArchUnknown {
		t.Errorf("arch %s after failed read", a)
	}
	if a := o.Arch(); a != ArchV8M {
		t.Errorf("arch %s after successful read", a)
	}
	n := len(f.seen())
	if o.Arch() != ArchV8M || len(f.seen()) != n {
		t.Error("CPUID read again after success")
	}
}

func TestOpenOCDSpeed(t *testing.T) {
	_, f := newFakeOpenOCD(t, memoryServer(nil), WithSpeed(4*physic.MegaHertz))
	got := f.seen()
	if len(got) != 1 || got[0] != "adapter speed 4000" {
		t.Errorf("scripts %q", got)
	}
}

func TestWriteBurstWidths(t *testing.T) {
	o, f := newFakeOpenOCD(t, memoryServer(nil))
	data := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}

	tests := []struct {
		width, count int
		want         string
	}{
		{1, 2, "write_memory 0x20000000 8 {0x11 0x22}"},
		{2, 2, "write_memory 0x20000000 16 {0x2211 0x4433}"},
		{8, 1, "write_memory 0x20000000 64 {0x8877665544332211}"},
	}
	for _, tt := range tests {
		if err := o.WriteBurst(0x20000000, tt.width, tt.count, data); err != nil {
			t.Fatal(err)
		}
		got := f.seen()
		if last := got[len(got)-1]; last != tt.want {
			t.Errorf("width %d: %q, want %q", tt.width, last, tt.want)
		}
	}

	if err := o.WriteBurst(0x20000000, 3, 1, data); err == nil {
		t.Error("width 3 accepted")
	}
	if err := o.WriteBurst(0x20000000, 4, 4, data); err == nil {
		t.Error("short data accepted")
	}
}

func TestArchFromCPUID(t *testing.T) {
	tests := []struct {
		cpuid uint32
		want  Arch
	}{
		{0x410CC601, ArchV6M}, // M0+
		{0x412FC230, ArchV7M}, // M3
		{0x410FC241, ArchV7M}, // M4
		{0x411FC272, ArchV7M}, // M7
		{0x410FD214, ArchV8M}, // M33
		{0x410FD132, ArchUnknown},
		{0x000FC241, ArchUnknown},
	}
	for _, tt := range tests {
		if got := ArchFromCPUID(tt.cpuid); got != tt.want {
			t.Errorf("0x%08x: %s, want %s", tt.cpuid, got, tt.want)
		}
	}
}

func TestIdentifiers(t *testing.T) {
	if id := DeviceIDFromIDCode(0x10016484); id != 0x484 || id.String() != "0x484" {
		t.Errorf("device id %s", id)
	}
	if rev := RevisionFromIDCode(0x10016484); rev != 0x1001 {
		t.Errorf("revision 0x%04x", rev)
	}
	for _, s := range []State{StateRunning, StateHalted, StateReset, StateDebugRunning} {
		if ParseState(s.String()) != s {
			t.Errorf("state %s does not round trip", s)
		}
	}
}

func TestProbeNames(t *testing.T) {
	if name, ok := STLinkName(0x0483, 0x374e); !ok || name != "STLINK-V3" {
		t.Errorf("got %q, %v", name, ok)
	}
	if _, ok := STLinkName(0x1366, 0x374e); ok {
		t.Error("non-ST vendor accepted")
	}
	if !IsCMSISDAP("DAPLink CMSIS-DAP") || IsCMSISDAP("USB Keyboard") {
		t.Error("CMSIS-DAP detection")
	}

	p := Probe{Kind: ProbeSTLink, Path: "usb 1.4", VendorID: 0x0483, ProductID: 0x374e, Product: "STLINK-V3", Serial: "0042"}
	if s := p.String(); s != "[usb 1.4] ST-Link    0483:374e STLINK-V3 (0042)" {
		t.Errorf("formatted as %q", s)
	}
}
