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
	"strings"

	"github.com/golang/glog"
)

// glogLogger adapts glog to flash.Logger. Info is shown from -v, Debug
// from -vv.
type glogLogger struct{}

func formatKV(msg string, kv []interface{}) string {
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if i+1 < len(kv) {
			fmt.Fprintf(&sb, " %v=%v", kv[i], kv[i+1])
		} else {
			fmt.Fprintf(&sb, " %v", kv[i])
		}
	}
	return sb.String()
}

func (glogLogger) Debug(msg string, kv ...interface{}) {
	if glog.V(3) {
		glog.InfoDepth(1, formatKV(msg, kv))
	}
}

func (glogLogger) Info(msg string, kv ...interface{}) {
	if glog.V(2) {
		glog.InfoDepth(1, formatKV(msg, kv))
	}
}

func (glogLogger) Warn(msg string, kv ...interface{}) {
	glog.WarningDepth(1, formatKV(msg, kv))
}

func (glogLogger) Error(msg string, kv ...interface{}) {
	glog.ErrorDepth(1, formatKV(msg, kv))
}
