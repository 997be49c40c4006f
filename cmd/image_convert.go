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
	"errors"

	"github.com/erincandescent/stm32prog/flash"
	"github.com/erincandescent/stm32prog/ihex"
	"github.com/spf13/cobra"
)

// imageConvertCmd represents the image convert command
var imageConvertCmd = &cobra.Command{
	Use:   "convert <input> <output>",
	Short: "Convert between Intel HEX and raw binary",
	Long: `Converts an image between Intel HEX and raw binary, chosen by the
	output file name. Binary output starts at --base; gaps are filled with 0xFF.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		raw, _ := cmd.Flags().GetBool("raw")
		img, err := readImage(args[0], uint32(imageBase), raw)
		if err != nil {
			return err
		}

		var data []byte
		if !ihex.IsHexFile(args[1]) {
			_, hi := img.Bounds()
			if hi < uint32(imageBase) {
				return errors.New("Image lies entirely below the base address")
			}
			var off uint32
			off, data, err = img.Flatten(uint32(imageBase), hi-uint32(imageBase), 1, flash.ErasedByte)
			if err != nil {
				return err
			}
			data = append(bytes.Repeat([]byte{flash.ErasedByte}, int(off)), data...)
		}

		w, err := openWrite(args[1])
		if err != nil {
			return err
		}
		defer func() {
			if cerr := w.Close(); err == nil {
				err = cerr
			}
		}()

		if data != nil {
			_, err = w.Write(data)
			return err
		}
		return ihex.WriteHex(w, img)
	},
}

func init() {
	imageCmd.AddCommand(imageConvertCmd)
}
