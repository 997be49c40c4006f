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
	"fmt"
	"strings"

	"github.com/golang/glog"
	"github.com/google/gousb"
	"github.com/juju/errors"
	"github.com/sstallion/go-hid"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"
)

// Kind of debug probe
type ProbeKind uint8

const (
	ProbeSTLink ProbeKind = iota + 1
	ProbeCMSISDAP
	ProbeFTDI
)

func (k ProbeKind) String() string {
	switch k {
	case ProbeSTLink:
		return "ST-Link"
	case ProbeCMSISDAP:
		return "CMSIS-DAP"
	case ProbeFTDI:
		return "FTDI MPSSE"
	default:
		return fmt.Sprintf("probe(%d)", uint8(k))
	}
}

// Probe describes a debug probe attached to this host. stm32prog does not
// talk to probes directly; the list tells the user what OpenOCD can be
// pointed at.
type Probe struct {
	Kind      ProbeKind
	Path      string
	VendorID  uint16
	ProductID uint16
	Product   string
	Serial    string
}

func (p Probe) String() string {
	s := fmt.Sprintf("[%s] %-10s %04x:%04x", p.Path, p.Kind, p.VendorID, p.ProductID)
	if p.Product != "" {
		s += " " + p.Product
	}
	if p.Serial != "" {
		s += " (" + p.Serial + ")"
	}
	return s
}

const vendorST = 0x0483

var stlinkProducts = map[uint16]string{
	0x3744: "ST-Link/V1",
	0x3748: "ST-Link/V2",
	0x374b: "ST-Link/V2-1",
	0x374a: "ST-Link/V2-1 (no MSD)",
	0x374d: "STLINK-V3 loader",
	0x374e: "STLINK-V3",
	0x374f: "STLINK-V3",
	0x3752: "ST-Link/V2-1 (no MSD)",
	0x3753: "STLINK-V3",
	0x3754: "STLINK-V3 (no MSD)",
	0x3757: "STLINK-V3PWR",
}

var ftdiProducts = map[uint16]bool{
	0x6010: true, // FT2232H
	0x6011: true, // FT4232H
	0x6014: true, // FT232H
}

// STLinkName returns the product name of a known ST-Link VID:PID pair
func STLinkName(vid, pid uint16) (string, bool) {
	if vid != vendorST {
		return "", false
	}
	name, ok := stlinkProducts[pid]
	return name, ok
}

// IsCMSISDAP reports whether a HID product string names a CMSIS-DAP probe.
// CMSIS-DAP requires the string to appear in it.
func IsCMSISDAP(product string) bool {
	return strings.Contains(product, "CMSIS-DAP")
}

// ListProbes enumerates ST-Link (libusb), CMSIS-DAP (hidapi) and FTDI MPSSE
// (D2XX) probes. Enumeration failures of one kind are logged and do not hide
// the others; an error is only returned when every backend failed.
func ListProbes() ([]Probe, error) {
	var (
		probes []Probe
		errs   []error
	)

	for _, list := range []func() ([]Probe, error){listSTLink, listCMSISDAP, listFTDI} {
		found, err := list()
		if err != nil {
			glog.Warningf("Probe enumeration: %v", err)
			errs = append(errs, err)
			continue
		}
		probes = append(probes, found...)
	}

	if len(errs) == 3 {
		return nil, errors.Annotate(errs[0], "no probe backend available")
	}
	return probes, nil
}

func listSTLink() ([]Probe, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		_, ok := STLinkName(uint16(desc.Vendor), uint16(desc.Product))
		return ok
	})
	defer func() {
		for _, d := range devs {
			d.Close()
		}
	}()
	// OpenDevices returns the devices it could open alongside the first
	// error, so a permission problem on one probe does not hide the rest
	if err != nil && len(devs) == 0 {
		return nil, errors.Annotate(err, "libusb")
	}

	probes := make([]Probe, 0, len(devs))
	for _, d := range devs {
		name, _ := STLinkName(uint16(d.Desc.Vendor), uint16(d.Desc.Product))
		serial, err := d.SerialNumber()
		if err != nil {
			glog.V(1).Infof("Reading ST-Link serial number: %v", err)
		}

		probes = append(probes, Probe{
			Kind:      ProbeSTLink,
			Path:      fmt.Sprintf("usb %d.%d", d.Desc.Bus, d.Desc.Address),
			VendorID:  uint16(d.Desc.Vendor),
			ProductID: uint16(d.Desc.Product),
			Product:   name,
			Serial:    serial,
		})
	}
	return probes, nil
}

func listCMSISDAP() ([]Probe, error) {
	if err := hid.Init(); err != nil {
		return nil, errors.Annotate(err, "hidapi")
	}
	defer hid.Exit()

	var probes []Probe
	err := hid.Enumerate(hid.VendorIDAny, hid.ProductIDAny, func(info *hid.DeviceInfo) error {
		if !IsCMSISDAP(info.ProductStr) {
			return nil
		}
		probes = append(probes, Probe{
			Kind:      ProbeCMSISDAP,
			Path:      "hid " + info.Path,
			VendorID:  info.VendorID,
			ProductID: info.ProductID,
			Product:   info.ProductStr,
			Serial:    info.SerialNbr,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Annotate(err, "hidapi")
	}
	return probes, nil
}

func listFTDI() ([]Probe, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Annotate(err, "periph host")
	}

	var probes []Probe
	info := ftdi.Info{}
	for i, dev := range ftdi.All() {
		dev.Info(&info)
		if !ftdiProducts[info.DevID] {
			continue
		}
		probes = append(probes, Probe{
			Kind:      ProbeFTDI,
			Path:      fmt.Sprintf("ftdi %d", i),
			VendorID:  info.VenID,
			ProductID: info.DevID,
			Product:   info.Type,
		})
	}
	return probes, nil
}
