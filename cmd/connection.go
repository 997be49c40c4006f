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
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jerrors "github.com/juju/errors"
	"periph.io/x/conn/v3/physic"

	"github.com/erincandescent/stm32prog/driver"
	"github.com/erincandescent/stm32prog/protocol"
	"github.com/erincandescent/stm32prog/sim"
	"github.com/erincandescent/stm32prog/target"
)

// hexFlag is a uint32 flag printed in hex
type hexFlag uint32

func (h *hexFlag) String() string {
	return fmt.Sprintf("0x%08x", uint32(*h))
}

func (h *hexFlag) Set(s string) error {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return err
	}
	*h = hexFlag(v)
	return nil
}

func (h *hexFlag) Type() string {
	return "address"
}

// frequencyFlag accepts values such as 4MHz or 480kHz
type frequencyFlag struct {
	physic.Frequency
}

func (f *frequencyFlag) Type() string {
	return "frequency"
}

// sizeFlag accepts a byte count with an optional K or M suffix
type sizeFlag uint32

func (s *sizeFlag) String() string {
	return strconv.FormatUint(uint64(*s), 10)
}

func (s *sizeFlag) Set(v string) error {
	mul := uint64(1)
	switch {
	case strings.HasSuffix(v, "K"), strings.HasSuffix(v, "k"):
		mul, v = 1024, v[:len(v)-1]
	case strings.HasSuffix(v, "M"):
		mul, v = 1024*1024, v[:len(v)-1]
	}
	n, err := strconv.ParseUint(v, 0, 32)
	if err != nil {
		return err
	}
	if n*mul > 0xFFFFFFFF {
		return fmt.Errorf("size %s out of range", v)
	}
	*s = sizeFlag(n * mul)
	return nil
}

func (s *sizeFlag) Type() string {
	return "size"
}

var (
	adapterName string
	openocdAddr string
	adapterKHz  frequencyFlag
	rpcTimeout  time.Duration
	haltTarget  bool
	bankBase    = hexFlag(0x08000000)
	bankSize    sizeFlag
	simDevice   string
)

// session is an open connection to a target with its flash bank probed
type session struct {
	target protocol.Target
	bank   *driver.Bank
	closer func() error
}

func (s *session) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

func openTarget() (protocol.Target, func() error, error) {
	switch adapterName {
	case "openocd":
		o, err := protocol.DialOpenOCD(openocdAddr,
			protocol.WithTimeout(rpcTimeout),
			protocol.WithSpeed(adapterKHz.Frequency))
		if err != nil {
			return nil, nil, err
		}
		return o, o.Close, nil

	case "sim":
		name := simDevice
		if name == "" {
			name = targetName
		}
		if name == "" {
			return nil, nil, errors.New("Simulated device not specified")
		}
		td := target.ByName(name)
		if td == nil {
			return nil, nil, fmt.Errorf("Target device '%s' not found", name)
		}
		d, err := sim.New(td)
		if err != nil {
			return nil, nil, err
		}
		return d, nil, nil

	default:
		return nil, nil, fmt.Errorf("Unknown adapter '%s'", adapterName)
	}
}

func connectToTarget(opts ...driver.Option) (*session, error) {
	var expected *target.Definition
	if targetName != "" {
		expected = target.ByName(targetName)
		if expected == nil {
			return nil, fmt.Errorf("Target device '%s' not found", targetName)
		}
	}

	t, closer, err := openTarget()
	if err != nil {
		return nil, err
	}
	s := &session{target: t, closer: closer}
	// Defer like this to avoid capturing the value of s now
	defer func() {
		if s != nil {
			s.Close()
		}
	}()

	if haltTarget {
		h, ok := t.(protocol.Halter)
		if !ok {
			return nil, errors.New("Adapter cannot halt the target")
		}
		if err := h.Halt(); err != nil {
			return nil, err
		}
	}

	opts = append([]driver.Option{driver.WithLogger(glogLogger{})}, opts...)
	s.bank = driver.NewBank(t, uint32(bankBase), uint32(bankSize), opts...)
	if err := s.bank.Probe(); err != nil {
		return nil, jerrors.Annotate(err, "probing flash")
	}

	if expected != nil && s.bank.Definition().Name != expected.Name {
		return nil, fmt.Errorf("Connected device %s is not %s", s.bank.Definition().Name, expected.Name)
	}

	// Swivel to prevent defer closing our session
	s2 := s
	s = nil
	return s2, nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&adapterName, "adapter", "openocd", "target access: openocd or sim")
	pf.StringVar(&openocdAddr, "openocd", protocol.DefaultOpenOCDAddr, "OpenOCD TCL RPC address")
	pf.Var(&adapterKHz, "speed", "adapter clock, e.g. 4MHz (default: leave unchanged)")
	pf.DurationVar(&rpcTimeout, "rpc-timeout", 5*time.Second, "OpenOCD request timeout")
	pf.BoolVar(&haltTarget, "halt", false, "halt the target before accessing flash")
	pf.Var(&bankBase, "bank-base", "flash bank base address")
	pf.Var(&bankSize, "bank-size", "flash bank size, e.g. 512K (default: detect)")
	pf.StringVar(&simDevice, "sim-device", "", "device simulated by the sim adapter (default: --target)")
}
