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
	"github.com/spf13/cobra"
)

// imageCmd represents the image command
var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Image manipulation commands",
	Long:  `Commands for inspecting and converting images`,
}

var imageBase = hexFlag(0x08000000)

func init() {
	rootCmd.AddCommand(imageCmd)

	imageCmd.PersistentFlags().Var(&imageBase, "base", "load address of raw binary images")
	imageCmd.PersistentFlags().Bool("raw", false, "treat the input as a raw binary whatever its name")
}
