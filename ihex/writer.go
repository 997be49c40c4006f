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
	"io"
)

// Data records never cross a multiple of this
const recordSize = 32

// Writer encodes blocks as a HEX file. Close must be called to terminate it.
type Writer struct {
	w     io.Writer
	upper uint32
	buf   []byte
	entry *uint32
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// SetEntry records a start address to be emitted before the EOF record
func (w *Writer) SetEntry(addr uint32) {
	w.entry = &addr
}

func (w *Writer) emit(r Record) error {
	w.buf = r.AppendText(w.buf[:0])
	_, err := w.w.Write(w.buf)
	return err
}

func (w *Writer) record(addr uint32, data []byte) error {
	if upper := addr &^ 0xFFFF; upper != w.upper {
		if err := w.emit(ExtendedLinearAddressRecord(uint16(upper >> 16))); err != nil {
			return err
		}
		w.upper = upper
	}
	return w.emit(DataRecord(uint16(addr), data))
}

// Write encodes data at addr
func (w *Writer) Write(addr uint32, data []byte) error {
	for len(data) > 0 {
		n := int(recordSize - addr%recordSize)
		if n > len(data) {
			n = len(data)
		}
		if err := w.record(addr, data[:n]); err != nil {
			return err
		}
		addr += uint32(n)
		data = data[n:]
	}
	return nil
}

func (w *Writer) WriteBlock(b Block) error {
	return w.Write(b.Address, b.Data)
}

// Close writes the start address, if any, and the EOF record. It does not
// close the underlying writer.
func (w *Writer) Close() error {
	if w.entry != nil {
		if err := w.emit(StartLinearAddressRecord(*w.entry)); err != nil {
			return err
		}
	}
	return w.emit(EOFRecord())
}
