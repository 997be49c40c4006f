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
	"text/tabwriter"

	"github.com/erincandescent/stm32prog/flash"
	"github.com/erincandescent/stm32prog/target"
	"github.com/spf13/cobra"
)

// targetsCmd represents the targets command
var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List supported devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tFAMILY\tCORE\tDEV_ID\tFLASH\tPAGE\tPROGRAM")
		for _, td := range target.All() {
			layout, err := flash.LayoutOf(td.Family)
			if err != nil {
				return err
			}

			program := "erase only"
			if layout.Bits.Program != 0 {
				program = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d KiB\t%d KiB\t%s\n",
				td.Name, td.Family, td.Arch, td.DeviceID,
				td.MaxFlashSize/1024, td.PageSize/1024, program)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(targetsCmd)
}
