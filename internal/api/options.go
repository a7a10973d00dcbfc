package api

import (
	"log/slog"

	"github.com/tinyrange/accel/internal/hwio"
	"github.com/tinyrange/accel/internal/irq"
	"github.com/tinyrange/accel/internal/lifecycle"
	"github.com/tinyrange/accel/internal/taskq"
)

// Option configures a Device.
type Option interface {
	IsOption()
}

// WithLogger sets the structured logger used by the device and its
// components. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return &loggerOption{log: log}
}

type loggerOption struct{ log *slog.Logger }

func (*loggerOption) IsOption() {}

// WithRegisters overrides the register block, bypassing both the UIO binding
// and the default in-memory block. Embedders use this to attach their own
// transport.
func WithRegisters(regs hwio.Block) Option {
	return &registersOption{regs: regs}
}

type registersOption struct{ regs hwio.Block }

func (*registersOption) IsOption() {}

// WithSynchronousReset runs reset recovery inline on the scheduling
// goroutine instead of the background queue. Diagnostic and test use only.
func WithSynchronousReset() Option {
	return &syncResetOption{}
}

type syncResetOption struct{}

func (*syncResetOption) IsOption() {}

// WithInterruptHandler registers the deferred-phase handler for the named
// interrupt line. Lines without a handler log and drop their interrupts.
func WithInterruptHandler(line string, h irq.Handler) Option {
	return &handlerOption{line: line, h: h}
}

type handlerOption struct {
	line string
	h    irq.Handler
}

func (*handlerOption) IsOption() {}

// WithClocks sets the platform clock controller. Defaults to a no-op.
func WithClocks(c lifecycle.ClockController) Option {
	return &clocksOption{c: c}
}

type clocksOption struct{ c lifecycle.ClockController }

func (*clocksOption) IsOption() {}

// WithFrequencyScaler sets the frequency-scaling hook interposed in power
// transitions. Defaults to a no-op.
func WithFrequencyScaler(s lifecycle.FrequencyScaler) Option {
	return &scalerOption{s: s}
}

type scalerOption struct{ s lifecycle.FrequencyScaler }

func (*scalerOption) IsOption() {}

type deviceOptions struct {
	log      *slog.Logger
	regs     hwio.Block
	runner   taskq.Runner
	handlers map[string]irq.Handler
	clocks   lifecycle.ClockController
	scaler   lifecycle.FrequencyScaler
}

func parseOptions(opts []Option) deviceOptions {
	cfg := deviceOptions{handlers: make(map[string]irq.Handler)}
	for _, opt := range opts {
		switch o := opt.(type) {
		case *loggerOption:
			cfg.log = o.log
		case *registersOption:
			cfg.regs = o.regs
		case *syncResetOption:
			cfg.runner = taskq.SyncRunner{}
		case *handlerOption:
			cfg.handlers[o.line] = o.h
		case *clocksOption:
			cfg.clocks = o.c
		case *scalerOption:
			cfg.scaler = o.s
		}
	}
	return cfg
}
