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

// imageInfoCmd represents the image info command
var imageInfoCmd = &cobra.Command{
	Use:   "info <image>",
	Short: "Describe an image file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetBool("raw")
		img, err := readImage(args[0], uint32(imageBase), raw)
		if err != nil {
			return err
		}

		lo, hi := img.Bounds()
		fmt.Printf("%d bytes in %d segments, 0x%08x-0x%08x\n", img.Len(), len(img.Segments), lo, hi)
		for _, s := range img.Segments {
			fmt.Printf("  0x%08x-0x%08x %8d bytes\n", s.Address, s.End(), len(s.Data))
		}
		if img.HasEntry {
			fmt.Printf("entry point 0x%08x\n", img.Entry)
		}
		return nil
	},
}

func init() {
	imageCmd.AddCommand(imageInfoCmd)
}
