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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var ErrOutOfRange = errors.New("Image data out of range")

// OverlapError is returned when two blocks of an image cover the same
// address
type OverlapError struct {
	Addr uint32
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("Image data overlaps at 0x%08x", e.Addr)
}

// Image is a set of non-overlapping, address-ordered segments. Adjacent
// blocks are merged into one segment.
type Image struct {
	Segments []Block

	Entry    uint32
	HasEntry bool
}

// Add copies data into the image at addr
func (img *Image) Add(addr uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if uint64(addr)+uint64(len(data)) >= 1<<32 {
		return fmt.Errorf("%w: %d bytes at 0x%08x", ErrOutOfRange, len(data), addr)
	}

	nb := Block{Address: addr, Data: append([]byte(nil), data...)}
	i := sort.Search(len(img.Segments), func(i int) bool {
		return img.Segments[i].End() > addr
	})
	if i < len(img.Segments) && img.Segments[i].Address < nb.End() {
		at := img.Segments[i].Address
		if at < addr {
			at = addr
		}
		return &OverlapError{Addr: at}
	}

	img.Segments = append(img.Segments, Block{})
	copy(img.Segments[i+1:], img.Segments[i:])
	img.Segments[i] = nb

	// Merge with neighbours
	if i+1 < len(img.Segments) && img.Segments[i].End() == img.Segments[i+1].Address {
		img.Segments[i].Data = append(img.Segments[i].Data, img.Segments[i+1].Data...)
		img.Segments = append(img.Segments[:i+1], img.Segments[i+2:]...)
	}
	if i > 0 && img.Segments[i-1].End() == img.Segments[i].Address {
		img.Segments[i-1].Data = append(img.Segments[i-1].Data, img.Segments[i].Data...)
		img.Segments = append(img.Segments[:i], img.Segments[i+1:]...)
	}
	return nil
}

// Bounds returns the lowest address and one past the highest. Both are zero
// for an empty image.
func (img *Image) Bounds() (lo, hi uint32) {
	if len(img.Segments) == 0 {
		return 0, 0
	}
	return img.Segments[0].Address, img.Segments[len(img.Segments)-1].End()
}

// Len is the number of bytes of data in the image
func (img *Image) Len() int {
	n := 0
	for _, s := range img.Segments {
		n += len(s.Data)
	}
	return n
}

// Flatten renders the image as one contiguous buffer relative to the flash
// at [base, base+size). The buffer starts and ends on multiples of align;
// gaps and padding hold fill. The returned offset is relative to base.
func (img *Image) Flatten(base, size, align uint32, fill byte) (offset uint32, data []byte, err error) {
	lo, hi := img.Bounds()
	if lo == hi {
		return 0, nil, nil
	}
	if lo < base || uint64(hi) > uint64(base)+uint64(size) {
		return 0, nil, fmt.Errorf("%w: data at 0x%08x-0x%08x, flash at 0x%08x-0x%08x",
			ErrOutOfRange, lo, hi, base, uint64(base)+uint64(size))
	}
	if align == 0 {
		align = 1
	}

	start := (lo - base) / align * align
	end := uint64(hi-base+align-1) / uint64(align) * uint64(align)
	if end > uint64(size) {
		end = uint64(size)
	}

	data = make([]byte, end-uint64(start))
	for i := range data {
		data[i] = fill
	}
	for _, s := range img.Segments {
		copy(data[s.Address-base-start:], s.Data)
	}
	return start, data, nil
}

// ReadHex reads an Intel HEX file
func ReadHex(r io.Reader) (*Image, error) {
	img := &Image{}
	rd := NewReader(r)
	for {
		b, err := rd.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		if err := img.Add(b.Address, b.Data); err != nil {
			return nil, err
		}
	}
	img.Entry, img.HasEntry = rd.Entry()
	return img, nil
}

// ReadBinary reads a raw image to be placed at base
func ReadBinary(r io.Reader, base uint32) (*Image, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	img := &Image{}
	if err := img.Add(base, buf); err != nil {
		return nil, err
	}
	return img, nil
}

// IsHexFile reports whether name has an Intel HEX extension
func IsHexFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".hex", ".ihx", ".ihex", ".h86":
		return true
	}
	return false
}

// Load reads a HEX or raw binary file, chosen by extension. Raw binaries are
// placed at base.
func Load(name string, base uint32) (*Image, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if IsHexFile(name) {
		return ReadHex(f)
	}
	return ReadBinary(f, base)
}

// WriteHex encodes img as an Intel HEX file
func WriteHex(w io.Writer, img *Image) error {
	hw := NewWriter(w)
	for _, s := range img.Segments {
		if err := hw.WriteBlock(s); err != nil {
			return err
		}
	}
	if img.HasEntry {
		hw.SetEntry(img.Entry)
	}
	return hw.Close()
}
