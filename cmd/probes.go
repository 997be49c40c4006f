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

	"github.com/erincandescent/stm32prog/protocol"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// probesCmd represents the probes command
var probesCmd = &cobra.Command{
	Use:   "probes",
	Short: "List connected debug probes",
	Long:  `List ST-Link, CMSIS-DAP and FTDI debug probes attached to this machine`,
	RunE: func(cmd *cobra.Command, args []string) error {
		probes, err := protocol.ListProbes()
		if err != nil {
			return err
		}

		if len(probes) == 0 {
			color.Yellow("No debug probes found")
			return nil
		}

		for _, p := range probes {
			fmt.Println(p)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(probesCmd)
}
