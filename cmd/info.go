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

	"github.com/spf13/cobra"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Identify the connected device",
	Long:  `Probe the connected device and print its flash geometry`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := connectToTarget()
		if err != nil {
			return err
		}
		defer s.Close()

		b := s.bank
		fmt.Println(b.Info())
		fmt.Printf("  core:      %s, %s\n", s.target.Arch(), s.target.State())
		fmt.Printf("  flash:     0x%08x-0x%08x\n", b.Base, b.Base+b.Size-1)
		fmt.Printf("  sectors:   %d x %d KiB\n", b.NumSectors, b.Definition().PageSize/1024)
		fmt.Printf("  bus width: %d bytes\n", b.BusWidth)
		if !b.CanWrite() {
			fmt.Println("  programming not supported; mass erase only")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
