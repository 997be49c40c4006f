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
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/erincandescent/stm32prog/driver"
	"github.com/erincandescent/stm32prog/flash"
)

// progressPrinter redraws a single status line when stderr is a terminal
// and is silent otherwise
func progressPrinter() func(done, total int) {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}
	return func(done, total int) {
		fmt.Fprintf(os.Stderr, "\rProgramming: %d/%d bytes (%d%%)", done, total, done*100/total)
		if done == total {
			fmt.Fprintln(os.Stderr)
		}
	}
}

// programCmd represents the program command
var programCmd = &cobra.Command{
	Use:   "program <image>",
	Short: "Program a target device",
	Long: `Program an Intel HEX or raw binary image into flash. Raw binaries are
	placed at the bank base. Only supported on STM32H5.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eraseMode, _ := cmd.Flags().GetString("erase")
		switch eraseMode {
		case "sectors", "mass", "none":
		default:
			return fmt.Errorf("'%s' not understood for erase parameter", eraseMode)
		}

		s, err := connectToTarget(driver.WithProgress(progressPrinter()))
		if err != nil {
			return err
		}
		defer s.Close()

		b := s.bank
		if !b.CanWrite() {
			return fmt.Errorf("%s: %w", b.Definition().Name, flash.ErrNotSupported)
		}

		img, err := readImage(args[0], b.Base, false)
		if err != nil {
			return err
		}
		offset, data, err := img.Flatten(b.Base, b.Capacity(), b.WriteAlignment, flash.ErasedByte)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return fmt.Errorf("Image '%s' is empty", args[0])
		}

		switch eraseMode {
		case "mass":
			err = b.MassErase()
		case "sectors":
			page := b.Definition().PageSize
			first := int(offset / page)
			last := int((offset + uint32(len(data)) - 1) / page)
			err = b.Erase(first, last)
		}
		if err != nil {
			color.Red("Flash erase failed!")
			return err
		}

		if err := b.Write(data, offset); err != nil {
			color.Red("Programming failed!")
			return err
		}
		color.Green("Programmed %d bytes at 0x%08x.", len(data), b.Base+offset)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(programCmd)
	programCmd.Flags().StringP("erase", "e", "sectors", "erase before programming: sectors, mass or none")
}
