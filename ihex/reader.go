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
	"bufio"
	"bytes"
	"io"
)

// Block is the payload of one data record at its absolute address
type Block struct {
	Address uint32
	Data    []byte
}

func (b Block) End() uint32 {
	return b.Address + uint32(len(b.Data))
}

// Reader decodes a HEX file into address blocks
type Reader struct {
	s    *bufio.Scanner
	line int
	base uint32
	eof  bool

	entry    uint32
	hasEntry bool
}

func NewReader(r io.Reader) *Reader {
	return &Reader{s: bufio.NewScanner(r)}
}

// Entry returns the start address, if the file carried one
func (r *Reader) Entry() (uint32, bool) {
	return r.entry, r.hasEntry
}

// Next returns the next data block, or io.EOF after the EOF record
func (r *Reader) Next() (Block, error) {
	if r.eof {
		return Block{}, io.EOF
	}

	for r.s.Scan() {
		r.line++
		line := bytes.TrimSpace(r.s.Bytes())
		if len(line) == 0 {
			continue
		}

		rec, err := ParseRecord(line)
		if err != nil {
			return Block{}, &LineError{Line: r.line, Err: err}
		}

		d := rec.Data
		switch rec.Type {
		case Data:
			return Block{
				Address: r.base + uint32(rec.Offset),
				Data:    d,
			}, nil
		case EOF:
			r.eof = true
			return Block{}, io.EOF
		case ExtendedSegmentAddress:
			r.base = (uint32(d[0])<<8 | uint32(d[1])) << 4
		case ExtendedLinearAddress:
			r.base = (uint32(d[0])<<8 | uint32(d[1])) << 16
		case StartSegmentAddress:
			cs := uint32(d[0])<<8 | uint32(d[1])
			ip := uint32(d[2])<<8 | uint32(d[3])
			r.entry, r.hasEntry = cs<<4+ip, true
		case StartLinearAddress:
			r.entry = uint32(d[0])<<24 | uint32(d[1])<<16 | uint32(d[2])<<8 | uint32(d[3])
			r.hasEntry = true
		}
	}

	if err := r.s.Err(); err != nil {
		return Block{}, err
	}
	// Files truncated before their EOF record are accepted
	r.eof = true
	return Block{}, io.EOF
}
