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
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// eraseCmd represents the erase command
var eraseCmd = &cobra.Command{
	Use:   "erase <first> [last]",
	Short: "Erase flash sectors",
	Long: `Erase sectors first through last inclusive. Sectors are numbered
	across both banks. Only supported on STM32H5.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		first, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("Invalid sector '%s'", args[0])
		}
		last := first
		if len(args) == 2 {
			if last, err = strconv.Atoi(args[1]); err != nil {
				return fmt.Errorf("Invalid sector '%s'", args[1])
			}
		}

		s, err := connectToTarget()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.bank.Erase(first, last); err != nil {
			return err
		}
		color.Green("Erased sectors %d-%d.", first, last)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eraseCmd)
}
