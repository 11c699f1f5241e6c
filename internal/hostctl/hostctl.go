// Package hostctl powers the host off or reboots it on client request.
package hostctl

import (
	"context"
	"errors"
	"time"

	"github.com/MrSnakeDoc/xrrecorder/internal/logger"
	"github.com/MrSnakeDoc/xrrecorder/internal/utils"
)

const runTimeout = 30 * time.Second

var errNoCommand = errors.New("no command configured")

// Exec runs the configured shutdown and reboot commands in the background.
// Callers only learn that the command was dispatched.
type Exec struct {
	shutdown []string
	reboot   []string
	runner   utils.Runner
	log      logger.Logger

	// done receives each command's result; tests use it to wait.
	done chan<- error
}

func New(shutdown, reboot []string, runner utils.Runner, log logger.Logger) *Exec {
	if runner == nil {
		runner = utils.ExecRunner{}
	}
	return &Exec{shutdown: shutdown, reboot: reboot, runner: runner, log: log}
}

func (e *Exec) Shutdown(ctx context.Context) error { return e.dispatch("shutdown", e.shutdown) }
func (e *Exec) Reboot(ctx context.Context) error   { return e.dispatch("reboot", e.reboot) }

func (e *Exec) dispatch(what string, argv []string) error {
	if len(argv) == 0 {
		e.log.Error("host command not configured", logger.String("action", what))
		return errNoCommand
	}
	e.log.Warn("host command requested",
		logger.String("action", what),
		logger.Strings("argv", argv))

	go func() {
		// Detached from the request; the connection may be gone by now.
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		_, err := e.runner.Run(ctx, argv[0], argv[1:]...)
		if err != nil {
			e.log.Error("host command failed", logger.String("action", what), logger.Error(err))
		}
		if e.done != nil {
			e.done <- err
		}
	}()
	return nil
}
