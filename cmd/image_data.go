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
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/erincandescent/stm32prog/ihex"
)

func openRead(arg string) (io.ReadCloser, error) {
	if arg == "-" {
		return io.NopCloser(os.Stdin), nil
	} else {
		return os.Open(arg)
	}
}

type stdoutW struct {
	*bufio.Writer
}

func (w *stdoutW) Close() error {
	return w.Flush()
}

// fileW writes to name~ and renames it over name on Close
type fileW struct {
	*bufio.Writer
	f *os.File
}

func (w *fileW) Close() error {
	nm := w.f.Name()
	nms := strings.TrimSuffix(nm, "~")

	if err := w.Flush(); err != nil {
		w.f.Close()
		return err
	}

	if err := w.f.Close(); err != nil {
		return err
	}

	return os.Rename(nm, nms)
}

func openWrite(arg string) (io.WriteCloser, error) {
	if arg == "-" {
		return &stdoutW{bufio.NewWriter(os.Stdout)}, nil
	} else {
		f, err := os.Create(arg + "~")
		if err != nil {
			return nil, err
		}

		return &fileW{
			bufio.NewWriter(f),
			f,
		}, nil
	}
}

// readImage loads a HEX file, or a raw binary placed at base. "-" reads
// from stdin, as HEX unless raw is set.
func readImage(arg string, base uint32, raw bool) (*ihex.Image, error) {
	if arg != "-" && !raw {
		return ihex.Load(arg, base)
	}

	rd, err := openRead(arg)
	if err != nil {
		return nil, err
	}
	defer rd.Close()

	if raw {
		return ihex.ReadBinary(rd, base)
	}
	return ihex.ReadHex(rd)
}
