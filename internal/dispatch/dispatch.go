// Package dispatch routes decoded client commands to the components that
// serve them and turns results into protocol replies.
package dispatch

import (
	"context"

	"github.com/MrSnakeDoc/xrrecorder/internal/devices"
	"github.com/MrSnakeDoc/xrrecorder/internal/domain"
	"github.com/MrSnakeDoc/xrrecorder/internal/files"
	"github.com/MrSnakeDoc/xrrecorder/internal/logger"
	"github.com/MrSnakeDoc/xrrecorder/internal/protocol"
	"github.com/MrSnakeDoc/xrrecorder/internal/recorder"
)

type Recorder interface {
	StartRecording(ctx context.Context, cfg recorder.CaptureConfig) (recorder.Status, error)
	StopRecording(ctx context.Context) (recorder.Status, error)
	Status(ctx context.Context) (recorder.Status, error)
}

type Files interface {
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
	Probe(ctx context.Context, name string) (files.FileDetail, error)
}

type Devices interface {
	List(ctx context.Context) ([]devices.Device, error)
}

type Host interface {
	Shutdown(ctx context.Context) error
	Reboot(ctx context.Context) error
}

// Broadcaster delivers a message to every connected peer.
type Broadcaster interface {
	Broadcast(v any)
}

// Peer is the connection a command arrived on.
type Peer interface {
	ID() string
	Send(v any) error
}

type Deps struct {
	Recorder      Recorder
	Files         Files
	Devices       Devices
	Host          Host
	Broadcaster   Broadcaster
	DefaultDevice string
	Logger        logger.Logger
}

type Dispatcher struct {
	d Deps
}

func New(d Deps) *Dispatcher {
	return &Dispatcher{d: d}
}

// Handle processes one inbound message. Replies go to peer only; mutating
// commands are followed by a status broadcast to every peer, peer included.
// Errors never escape: they are logged and reported to peer.
func (x *Dispatcher) Handle(ctx context.Context, peer Peer, raw []byte) {
	log := x.d.Logger.With(logger.String("conn_id", peer.ID()))

	cmd, err := protocol.Decode(raw)
	if err != nil {
		log.Warn("rejected client message", logger.Error(err))
		x.reply(log, peer, protocol.NewError("", err))
		return
	}

	log.Debug("command received", logger.String("type", cmd.Type()))

	resp, err := x.route(ctx, cmd)
	if err != nil {
		x.logFailure(log, cmd, err)
		resp = protocol.NewError(cmd.Type(), err)
	}
	x.reply(log, peer, resp)

	if protocol.Mutating(cmd) {
		x.broadcastStatus(ctx, log)
	}
}

func (x *Dispatcher) route(ctx context.Context, cmd protocol.Command) (any, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	switch c := cmd.(type) {
	case protocol.StartRecording:
		st, err := x.d.Recorder.StartRecording(ctx, c.CaptureConfig(x.d.DefaultDevice))
		if err != nil {
			return nil, err
		}
		return protocol.NewStatus(st), nil

	case protocol.StopRecording:
		st, err := x.d.Recorder.StopRecording(ctx)
		if err != nil {
			return nil, err
		}
		return protocol.NewStatus(st), nil

	case protocol.GetStatus:
		st, err := x.d.Recorder.Status(ctx)
		if err != nil {
			return nil, err
		}
		return protocol.NewStatus(st), nil

	case protocol.ListFiles:
		names, err := x.d.Files.List(ctx)
		if err != nil {
			return nil, err
		}
		return protocol.NewFiles(names), nil

	case protocol.DeleteFile:
		if err := x.d.Files.Delete(ctx, c.Name); err != nil {
			return nil, err
		}
		return protocol.NewAck(c.Type(), c.Name), nil

	case protocol.ProbeFile:
		detail, err := x.d.Files.Probe(ctx, c.Name)
		if err != nil {
			return nil, err
		}
		return protocol.NewFileDetail(detail), nil

	case protocol.ListDevices:
		list, err := x.d.Devices.List(ctx)
		if err != nil {
			return nil, err
		}
		return protocol.NewDevices(list), nil

	case protocol.ShutdownHost:
		if err := x.d.Host.Shutdown(ctx); err != nil {
			return nil, domain.Wrap(domain.KindProcess, "host.shutdown", err, "shutdown not dispatched")
		}
		return protocol.NewAck(c.Type(), ""), nil

	case protocol.RebootHost:
		if err := x.d.Host.Reboot(ctx); err != nil {
			return nil, domain.Wrap(domain.KindProcess, "host.reboot", err, "reboot not dispatched")
		}
		return protocol.NewAck(c.Type(), ""), nil
	}

	return nil, domain.New(domain.KindProtocol, "dispatch", "unhandled command %q", cmd.Type())
}

func (x *Dispatcher) broadcastStatus(ctx context.Context, log logger.Logger) {
	st, err := x.d.Recorder.Status(ctx)
	if err != nil {
		log.Warn("cannot read status for broadcast", logger.Error(err))
		return
	}
	x.d.Broadcaster.Broadcast(protocol.NewStatus(st))
}

func (x *Dispatcher) reply(log logger.Logger, peer Peer, v any) {
	if err := peer.Send(v); err != nil {
		log.Debug("reply not delivered", logger.Error(err))
	}
}

// logFailure keeps expected client mistakes at warn and the rest at error.
func (x *Dispatcher) logFailure(log logger.Logger, cmd protocol.Command, err error) {
	fields := []logger.Field{
		logger.String("type", cmd.Type()),
		logger.String("kind", string(domain.KindOf(err))),
		logger.Error(err),
	}
	switch domain.KindOf(err) {
	case domain.KindValidation, domain.KindState, domain.KindInvalidName, domain.KindNotFound, domain.KindProtocol:
		log.Warn("command rejected", fields...)
	default:
		log.Error("command failed", fields...)
	}
}
