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
package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/erincandescent/stm32prog/ihex"
)

func TestHexFlag(t *testing.T) {
	var h hexFlag
	if err := h.Set("0x0C000000"); err != nil {
		t.Fatal(err)
	}
	if h != 0x0C000000 || h.String() != "0x0c000000" {
		t.Errorf("parsed %s", h.String())
	}
	if err := h.Set("0x100000000"); err == nil {
		t.Error("33 bit address accepted")
	}
}

func TestSizeFlag(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
		err  bool
	}{
		{"0", 0, false},
		{"4096", 4096, false},
		{"512K", 512 * 1024, false},
		{"2M", 2 * 1024 * 1024, false},
		{"0x1000", 0x1000, false},
		{"8192M", 0, true},
		{"lots", 0, true},
	}
	for _, tt := range tests {
		var s sizeFlag
		err := s.Set(tt.in)
		if (err != nil) != tt.err || uint32(s) != tt.want {
			t.Errorf("%s: %d, %v", tt.in, s, err)
		}
	}
}

func TestFrequencyFlag(t *testing.T) {
	var f frequencyFlag
	if err := f.Set("4MHz"); err != nil {
		t.Fatal(err)
	}
	if f.String() != "4MHz" {
		t.Errorf("parsed %s", f.String())
	}
}

func TestFormatKV(t *testing.T) {
	if got := formatKV("Erasing", []interface{}{"sector", 3, "bank"}); got != "Erasing sector=3 bank" {
		t.Errorf("got %q", got)
	}
}

func withFlags(t *testing.T, adapter, name string) {
	t.Helper()
	oldAdapter, oldTarget, oldSim := adapterName, targetName, simDevice
	adapterName, targetName, simDevice = adapter, name, ""
	t.Cleanup(func() {
		adapterName, targetName, simDevice = oldAdapter, oldTarget, oldSim
	})
}

func TestConnectSim(t *testing.T) {
	withFlags(t, "sim", "stm32h503")

	s, err := connectToTarget()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if want := "STM32H503 rev A, 512 KiB"; s.bank.Info() != want {
		t.Errorf("info %q, want %q", s.bank.Info(), want)
	}
	if err := s.bank.MassErase(); err != nil {
		t.Error(err)
	}
}

func TestConnectErrors(t *testing.T) {
	withFlags(t, "sim", "")
	if _, err := connectToTarget(); err == nil {
		t.Error("sim adapter without device accepted")
	}

	withFlags(t, "jtag", "stm32h503")
	if _, err := connectToTarget(); err == nil {
		t.Error("unknown adapter accepted")
	}

	withFlags(t, "sim", "stm32h503")
	simDevice = "STM32H523/533"
	if _, err := connectToTarget(); err == nil {
		t.Error("device mismatch accepted")
	}
}

func TestImageConvert(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "fw.bin")
	hex := filepath.Join(dir, "fw.hex")
	out := filepath.Join(dir, "out.bin")

	data := bytes.Repeat([]byte{0xDE, 0xAD, 0xBE, 0xEF}, 20)
	if err := os.WriteFile(in, data, 0o644); err != nil {
		t.Fatal(err)
	}

	for _, args := range [][]string{
		{"image", "convert", "--base", "0x08000100", in, hex},
		{"image", "convert", "--base", "0x08000000", hex, out},
	} {
		rootCmd.SetArgs(args)
		if err := rootCmd.Execute(); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
	}

	f, err := os.Open(hex)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := ihex.ReadHex(f)
	if err != nil {
		t.Fatal(err)
	}
	if lo, hi := img.Bounds(); lo != 0x08000100 || hi != 0x08000100+uint32(len(data)) {
		t.Errorf("hex bounds 0x%08x-0x%08x", lo, hi)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := append(bytes.Repeat([]byte{0xFF}, 0x100), data...)
	if !bytes.Equal(got, want) {
		t.Errorf("binary output differs: %d bytes", len(got))
	}
}
