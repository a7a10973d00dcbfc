//go:build linux

package api

import (
	"io"

	"github.com/tinyrange/accel/internal/config"
	"github.com/tinyrange/accel/internal/hwio"
)

// openHardware binds the device to its UIO node: one mapping for the
// register BAR, blocking reads for interrupt delivery.
func openHardware(cfg *config.Device) (hwio.Block, hwio.InterruptSource, io.Closer, error) {
	dev, err := hwio.OpenUIO(cfg.UIOPath, cfg.RegisterSize)
	if err != nil {
		return nil, nil, nil, err
	}
	return dev, dev, dev, nil
}
