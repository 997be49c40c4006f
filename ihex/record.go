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

// Package ihex reads and writes Intel HEX files and assembles their contents
// into flash images.
package ihex

import (
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrInvalidPrefix       = errors.New("Colon prefix missing")
	ErrInvalidHex          = errors.New("Invalid hex digit")
	ErrInvalidChecksum     = errors.New("Invalid checksum")
	ErrInvalidRecordLength = errors.New("Length invalid for record")
	ErrUnknownRecordType   = errors.New("Unknown record type")
)

type RecordType byte

const (
	Data RecordType = iota
	EOF
	ExtendedSegmentAddress
	StartSegmentAddress
	ExtendedLinearAddress
	StartLinearAddress
)

// Record is a single line of a HEX file
type Record struct {
	Type   RecordType
	Offset uint16
	Data   []byte
}

func DataRecord(offset uint16, data []byte) Record {
	return Record{Type: Data, Offset: offset, Data: data}
}

func EOFRecord() Record {
	return Record{Type: EOF}
}

func ExtendedLinearAddressRecord(upper uint16) Record {
	return Record{
		Type: ExtendedLinearAddress,
		Data: []byte{byte(upper >> 8), byte(upper)},
	}
}

func StartLinearAddressRecord(entry uint32) Record {
	return Record{
		Type: StartLinearAddress,
		Data: []byte{byte(entry >> 24), byte(entry >> 16), byte(entry >> 8), byte(entry)},
	}
}

// payloadLen is the fixed payload length of t, or -1 if it varies
func payloadLen(t RecordType) int {
	switch t {
	case Data:
		return -1
	case EOF:
		return 0
	case ExtendedSegmentAddress, ExtendedLinearAddress:
		return 2
	case StartSegmentAddress, StartLinearAddress:
		return 4
	}
	return -1
}

// ParseRecord decodes one line, without its line terminator
func ParseRecord(line []byte) (Record, error) {
	if len(line) == 0 || line[0] != ':' {
		return Record{}, ErrInvalidPrefix
	}

	raw := make([]byte, hex.DecodedLen(len(line)-1))
	if _, err := hex.Decode(raw, line[1:]); err != nil {
		return Record{}, ErrInvalidHex
	}

	// Count, offset, type and checksum
	if len(raw) < 5 || int(raw[0]) != len(raw)-5 {
		return Record{}, ErrInvalidRecordLength
	}

	var sum byte
	for _, b := range raw {
		sum += b
	}
	if sum != 0 {
		return Record{}, ErrInvalidChecksum
	}

	r := Record{
		Type:   RecordType(raw[3]),
		Offset: uint16(raw[1])<<8 | uint16(raw[2]),
		Data:   raw[4 : len(raw)-1],
	}
	if r.Type > StartLinearAddress {
		return Record{}, ErrUnknownRecordType
	}
	if n := payloadLen(r.Type); n >= 0 && len(r.Data) != n {
		return Record{}, ErrInvalidRecordLength
	}
	return r, nil
}

// AppendText appends the encoded record and a newline to buf
func (r Record) AppendText(buf []byte) []byte {
	raw := make([]byte, 0, len(r.Data)+5)
	raw = append(raw, byte(len(r.Data)), byte(r.Offset>>8), byte(r.Offset), byte(r.Type))
	raw = append(raw, r.Data...)

	var sum byte
	for _, b := range raw {
		sum += b
	}
	raw = append(raw, -sum)

	buf = append(buf, ':')
	enc := make([]byte, hex.EncodedLen(len(raw)))
	hex.Encode(enc, raw)
	for i, c := range enc {
		if c >= 'a' {
			enc[i] = c - 'a' + 'A'
		}
	}
	buf = append(buf, enc...)
	return append(buf, '\n')
}

func (r Record) String() string {
	buf := r.AppendText(nil)
	return string(buf[:len(buf)-1])
}

type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}
