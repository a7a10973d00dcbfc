// Package config loads the on-disk description of an accelerator device.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const pageSize = 0x1000

// RegisterWindow is one page of control registers that user space may map.
type RegisterWindow struct {
	Name string `yaml:"name"`
	// Logical is the offset user space maps, Physical the offset of the
	// backing page inside the register BAR.
	Logical  uint64 `yaml:"logical"`
	Physical uint64 `yaml:"physical"`
}

// InterruptLine names one interrupt source and its register triple.
type InterruptLine struct {
	Name   string `yaml:"name"`
	Status uint64 `yaml:"status"`
	Clear  uint64 `yaml:"clear"`
	Mask   uint64 `yaml:"mask"`
	// InitialMask is the enable mask programmed when the line is armed.
	InitialMask uint32 `yaml:"initialMask"`
}

// SoftReset is the register write that hard-resets the device.
type SoftReset struct {
	Offset uint64 `yaml:"offset"`
	Value  uint32 `yaml:"value"`
}

// Clocks names the clock and power domains the platform provides.
type Clocks struct {
	Core string   `yaml:"core,omitempty"`
	Aux  []string `yaml:"aux,omitempty"`
}

// Device describes one accelerator instance.
type Device struct {
	Name string `yaml:"name"`

	// UIOPath, if set, binds the device to a Linux userspace I/O node.
	// When empty an in-memory register block is used, which is the
	// development and test configuration.
	UIOPath string `yaml:"uioPath,omitempty"`

	// RegisterSize is the size of the control register BAR in bytes.
	RegisterSize uint64 `yaml:"registerSize"`

	SoftReset SoftReset        `yaml:"softReset"`
	Windows   []RegisterWindow `yaml:"windows,omitempty"`
	Lines     []InterruptLine  `yaml:"interrupts,omitempty"`
	Clocks    Clocks           `yaml:"clocks,omitempty"`

	// Firmware is the path of the firmware image the firmware subsystem
	// loads at bring-up.
	Firmware string `yaml:"firmware,omitempty"`
}

// Load reads and validates a device description from path.
func Load(path string) (*Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses and validates a YAML device description.
func Parse(data []byte) (*Device, error) {
	var d Device
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks internal consistency of the description.
func (d *Device) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("config: device name required")
	}
	if d.RegisterSize == 0 {
		return fmt.Errorf("config: registerSize required")
	}
	if d.RegisterSize%pageSize != 0 {
		return fmt.Errorf("config: registerSize must be page aligned, got 0x%x", d.RegisterSize)
	}
	if d.SoftReset.Offset+4 > d.RegisterSize || d.SoftReset.Offset+4 < d.SoftReset.Offset {
		return fmt.Errorf("config: softReset offset 0x%x out of range", d.SoftReset.Offset)
	}

	logical := make(map[uint64]string)
	for _, w := range d.Windows {
		if w.Name == "" {
			return fmt.Errorf("config: window name required")
		}
		if w.Logical%pageSize != 0 || w.Physical%pageSize != 0 {
			return fmt.Errorf("config: window %q offsets must be page aligned", w.Name)
		}
		if w.Physical+pageSize > d.RegisterSize || w.Physical+pageSize < w.Physical {
			return fmt.Errorf("config: window %q outside register BAR", w.Name)
		}
		if prev, ok := logical[w.Logical]; ok {
			return fmt.Errorf("config: windows %q and %q share logical offset 0x%x", prev, w.Name, w.Logical)
		}
		logical[w.Logical] = w.Name
	}

	names := make(map[string]bool)
	for _, l := range d.Lines {
		if l.Name == "" {
			return fmt.Errorf("config: interrupt line name required")
		}
		if names[l.Name] {
			return fmt.Errorf("config: duplicate interrupt line %q", l.Name)
		}
		names[l.Name] = true
		for _, off := range []uint64{l.Status, l.Clear, l.Mask} {
			if off+4 > d.RegisterSize || off+4 < off {
				return fmt.Errorf("config: interrupt line %q register 0x%x out of range", l.Name, off)
			}
		}
	}
	return nil
}
