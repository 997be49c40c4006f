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
package ihex

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestParseRecord(t *testing.T) {
	tests := []struct {
		line string
		want Record
		err  error
	}{
		{
			line: ":10010000214601360121470136007EFE09D2190140",
			want: DataRecord(0x0100, []byte{
				0x21, 0x46, 0x01, 0x36, 0x01, 0x21, 0x47, 0x01,
				0x36, 0x00, 0x7E, 0xFE, 0x09, 0xD2, 0x19, 0x01,
			}),
		},
		{line: ":020000040800F2", want: ExtendedLinearAddressRecord(0x0800)},
		{line: ":0400000508000131BD", want: StartLinearAddressRecord(0x08000131)},
		{line: ":00000001FF", want: EOFRecord()},
		{line: ":00000001ff", want: EOFRecord()},
		{line: "00000001FF", err: ErrInvalidPrefix},
		{line: ":00000001FE", err: ErrInvalidChecksum},
		{line: ":0000001FF", err: ErrInvalidHex},
		{line: ":0G000001FF", err: ErrInvalidHex},
		{line: ":01000001FF", err: ErrInvalidRecordLength},
		{line: ":01000004FFFC", err: ErrInvalidRecordLength},
		{line: ":00000009F7", err: ErrUnknownRecordType},
	}

	for _, tt := range tests {
		got, err := ParseRecord([]byte(tt.line))
		if tt.err != nil {
			if !errors.Is(err, tt.err) {
				t.Errorf("%s: got %v, want %v", tt.line, err, tt.err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", tt.line, err)
			continue
		}
		if got.Type != tt.want.Type || got.Offset != tt.want.Offset || !bytes.Equal(got.Data, tt.want.Data) {
			t.Errorf("%s: got %+v, want %+v", tt.line, got, tt.want)
		}
		if s := got.String(); !strings.EqualFold(s, tt.line) {
			t.Errorf("re-encoded as %s", s)
		}
	}
}

const sample = `:020000040800F2
:0400000001020304F2

:04001000AABBCCDDDE
:020000040801F1
:02FFFE001122CE
:0400000508000131BD
:00000001FF
`

func TestReader(t *testing.T) {
	r := NewReader(strings.NewReader(sample))

	want := []Block{
		{0x08000000, []byte{1, 2, 3, 4}},
		{0x08000010, []byte{0xAA, 0xBB, 0xCC, 0xDD}},
		{0x0801FFFE, []byte{0x11, 0x22}},
	}
	for _, w := range want {
		b, err := r.Next()
		if err != nil {
			t.Fatal(err)
		}
		if b.Address != w.Address || !bytes.Equal(b.Data, w.Data) {
			t.Errorf("got block 0x%08x %x, want 0x%08x %x", b.Address, b.Data, w.Address, w.Data)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("got %v, want EOF", err)
	}
	if entry, ok := r.Entry(); !ok || entry != 0x08000131 {
		t.Errorf("entry 0x%08x, %v", entry, ok)
	}
}

func TestReaderSegmentAddress(t *testing.T) {
	r := NewReader(strings.NewReader(":020000021000EC\n:0100040042B9\n"))
	b, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if b.Address != 0x10004 {
		t.Errorf("address 0x%x", b.Address)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("unterminated file: %v", err)
	}
}

func TestReaderLineError(t *testing.T) {
	r := NewReader(strings.NewReader(":020000040800F2\n:0400000001020304F3\n"))
	_, err := r.Next()

	var le *LineError
	if !errors.As(err, &le) || le.Line != 2 || !errors.Is(err, ErrInvalidChecksum) {
		t.Errorf("got %v", err)
	}
}

func TestWriterSplitsRecords(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	data := make([]byte, 40)
	for i := range data {
		data[i] = byte(i)
	}
	// Straddles both a record boundary and a 64 KiB boundary
	if err := w.Write(0x0800FFF0, data); err != nil {
		t.Fatal(err)
	}
	w.SetEntry(0x08000131)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	types := []RecordType{ExtendedLinearAddress, Data, ExtendedLinearAddress, Data, StartLinearAddress, EOF}
	if len(lines) != len(types) {
		t.Fatalf("wrote %d records:\n%s", len(lines), buf.String())
	}
	for i, l := range lines {
		rec, err := ParseRecord([]byte(l))
		if err != nil {
			t.Fatalf("%s: %v", l, err)
		}
		if rec.Type != types[i] {
			t.Errorf("record %d type %d, want %d", i, rec.Type, types[i])
		}
	}
	if lines[1] != DataRecord(0xFFF0, data[:16]).String() {
		t.Errorf("first data record %s", lines[1])
	}
	if lines[2] != ":020000040801F1" {
		t.Errorf("second ELA record %s", lines[2])
	}

	img, err := ReadHex(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(img.Segments) != 1 || img.Segments[0].Address != 0x0800FFF0 || !bytes.Equal(img.Segments[0].Data, data) {
		t.Errorf("read back %+v", img.Segments)
	}
	if !img.HasEntry || img.Entry != 0x08000131 {
		t.Errorf("entry lost")
	}
}

func TestImageAdd(t *testing.T) {
	img := &Image{}
	steps := []struct {
		addr uint32
		data []byte
		err  bool
	}{
		{0x100, []byte{1, 2}, false},
		{0x104, []byte{5}, false},
		{0x102, []byte{3, 4}, false},
		{0x200, []byte{9}, false},
		{0x0FF, []byte{0, 0}, true},
		{0x1FF, []byte{8}, false},
	}
	for _, s := range steps {
		err := img.Add(s.addr, s.data)
		var oe *OverlapError
		if s.err != errors.As(err, &oe) {
			t.Fatalf("add at 0x%x: %v", s.addr, err)
		}
	}

	if len(img.Segments) != 2 {
		t.Fatalf("%d segments: %+v", len(img.Segments), img.Segments)
	}
	if s := img.Segments[0]; s.Address != 0x100 || !bytes.Equal(s.Data, []byte{1, 2, 3, 4, 5}) {
		t.Errorf("first segment %+v", s)
	}
	if s := img.Segments[1]; s.Address != 0x1FF || !bytes.Equal(s.Data, []byte{8, 9}) {
		t.Errorf("second segment %+v", s)
	}
	if lo, hi := img.Bounds(); lo != 0x100 || hi != 0x201 {
		t.Errorf("bounds 0x%x-0x%x", lo, hi)
	}
	if img.Len() != 7 {
		t.Errorf("length %d", img.Len())
	}
}

func TestFlatten(t *testing.T) {
	img := &Image{}
	img.Add(0x08000014, []byte{1, 2, 3})
	img.Add(0x08000030, []byte{4})

	off, data, err := img.Flatten(0x08000000, 0x1000, 16, 0xFF)
	if err != nil {
		t.Fatal(err)
	}
	if off != 0x10 {
		t.Errorf("offset 0x%x", off)
	}
	want := bytes.Repeat([]byte{0xFF}, 0x30)
	copy(want[4:], []byte{1, 2, 3})
	want[0x20] = 4
	if !bytes.Equal(data, want) {
		t.Errorf("flattened\n%x\nwant\n%x", data, want)
	}

	if _, _, err := img.Flatten(0x08000020, 0x1000, 16, 0xFF); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("below base: %v", err)
	}
	if _, _, err := img.Flatten(0x08000000, 0x30, 16, 0xFF); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("past end: %v", err)
	}
}

func TestIsHexFile(t *testing.T) {
	for name, want := range map[string]bool{
		"fw.hex":  true,
		"FW.HEX":  true,
		"fw.ihx":  true,
		"fw.bin":  false,
		"fw":      false,
		"hex.elf": false,
	} {
		if IsHexFile(name) != want {
			t.Errorf("%s: %v", name, !want)
		}
	}
}
