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
	"flag"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	_ "github.com/erincandescent/stm32prog/target/all"
)

var verbose int
var targetName string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stm32prog",
	Short: "STM32 flash programmer",
	Long: `A tool for erasing and programming the internal flash of
	STM32U5, STM32H5 and STM32H7 devices through OpenOCD`,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}
}

// setupLogging points glog at stderr. Warnings and errors are always shown;
// each -v adds a level of detail.
func setupLogging(level int) {
	v := 0
	if level > 0 {
		v = level + 1
	}
	flag.Set("logtostderr", "true")
	flag.Set("v", strconv.Itoa(v))
	flag.CommandLine.Parse(nil)
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "make verbose (repeat for OpenOCD traffic)")
	rootCmd.PersistentFlags().StringVarP(&targetName, "target", "t", "", "expected target device")
}
