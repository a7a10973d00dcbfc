//go:build !linux

package api

import (
	"fmt"
	"io"

	"github.com/tinyrange/accel/internal/config"
	"github.com/tinyrange/accel/internal/hwio"
)

func openHardware(cfg *config.Device) (hwio.Block, hwio.InterruptSource, io.Closer, error) {
	return nil, nil, nil, fmt.Errorf("uio devices are not supported on this platform")
}
