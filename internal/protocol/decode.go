package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/xrrecorder/internal/domain"
)

const decodeOp = "protocol.decode"

// Decode parses one inbound message into a Command. Anything that is not a
// JSON object with a known "type" is a ProtocolError.
func Decode(raw []byte) (Command, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, domain.New(domain.KindProtocol, decodeOp, "message must be a JSON object")
	}

	var envelope struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, protocolErr(err)
	}
	if envelope.Type == nil || *envelope.Type == "" {
		return nil, domain.New(domain.KindProtocol, decodeOp, "missing message type")
	}

	switch t := *envelope.Type; t {
	case TypeStartRecording:
		return decodeInto[StartRecording](raw)
	case TypeStopRecording:
		return StopRecording{}, nil
	case TypeGetStatus:
		return GetStatus{}, nil
	case TypeListFiles:
		return ListFiles{}, nil
	case TypeDeleteFile:
		return decodeInto[DeleteFile](raw)
	case TypeProbeFile:
		return decodeInto[ProbeFile](raw)
	case TypeListDevices:
		return ListDevices{}, nil
	case TypeShutdownHost:
		return ShutdownHost{}, nil
	case TypeRebootHost:
		return RebootHost{}, nil
	default:
		return nil, domain.New(domain.KindProtocol, decodeOp, "unknown message type %q", t)
	}
}

func decodeInto[T Command](raw []byte) (Command, error) {
	var cmd T
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return nil, protocolErr(err)
	}
	return cmd, nil
}

func protocolErr(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		msg := fmt.Sprintf("field %q must be %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value)
		return domain.Wrap(domain.KindProtocol, decodeOp, err, msg)
	}
	return domain.Wrap(domain.KindProtocol, decodeOp, err, "malformed JSON")
}
