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
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// massEraseCmd represents the mass-erase command
var massEraseCmd = &cobra.Command{
	Use:   "mass-erase",
	Short: "Erase the entire flash",
	Long:  `Erase every bank of the connected device's flash. The target must be halted.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := connectToTarget()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.bank.MassErase(); err != nil {
			color.Red("Flash erase failed!")
			return err
		}
		color.Green("Flash erased.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(massEraseCmd)
}
