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
package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"strconv"
	"strings"
)

// OpenOCD's TCL RPC server terminates every command and every reply with a
// single 0x1a byte
const rpcTerminator = 0x1a

var (
	ErrTerminatorInCommand = errors.New("Command contains RPC terminator")
	ErrMalformedReply      = errors.New("Malformed RPC reply")
)

// frameCommand wraps script so that the server reports the Tcl return code
// alongside the result, then appends the terminator
func frameCommand(script string) ([]byte, error) {
	if strings.IndexByte(script, rpcTerminator) >= 0 {
		return nil, ErrTerminatorInCommand
	}

	buf := new(bytes.Buffer)
	buf.WriteString("list [catch {")
	buf.WriteString(script)
	buf.WriteString("} _stm32prog_r] $_stm32prog_r")
	buf.WriteByte(rpcTerminator)
	return buf.Bytes(), nil
}

// rpcReply is the decoded "<code> <result>" pair produced by frameCommand
type rpcReply struct {
	Code   int
	Result string
}

func (r rpcReply) OK() bool {
	return r.Code == 0
}

// readReply reads one terminated reply and splits it into code and result
func readReply(rd *bufio.Reader) (rpcReply, error) {
	raw, err := rd.ReadString(rpcTerminator)
	if err != nil {
		return rpcReply{}, err
	}

	return unframeReply(strings.TrimSuffix(raw, "\x1a"))
}

func unframeReply(s string) (rpcReply, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return rpcReply{}, ErrMalformedReply
	}

	code, rest, _ := strings.Cut(s, " ")
	n, err := strconv.Atoi(code)
	if err != nil || n < 0 {
		return rpcReply{}, ErrMalformedReply
	}
	r := rpcReply{Code: n}

	r.Result = tclElement(rest)
	return r, nil
}

// tclElement undoes Tcl list quoting of a single element. Tcl braces an
// element when it can and backslash-escapes it otherwise, e.g. when the
// braces in it are unbalanced or it ends in a backslash.
func tclElement(s string) string {
	if len(s) >= 2 && s[0] == '{' && s[len(s)-1] == '}' {
		return s[1 : len(s)-1]
	}
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i == len(s)-1 {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
