package protocol

import (
	"github.com/MrSnakeDoc/xrrecorder/internal/devices"
	"github.com/MrSnakeDoc/xrrecorder/internal/domain"
	"github.com/MrSnakeDoc/xrrecorder/internal/files"
	"github.com/MrSnakeDoc/xrrecorder/internal/recorder"
)

// Reply type tags.
const (
	TypeStatus     = "status"
	TypeFiles      = "files"
	TypeFileDetail = "fileDetail"
	TypeDevices    = "devices"
	TypeAck        = "ack"
	TypeError      = "error"
)

type StatusMessage struct {
	Type string `json:"type"`
	recorder.Status
}

func NewStatus(st recorder.Status) StatusMessage {
	return StatusMessage{Type: TypeStatus, Status: st}
}

type FilesMessage struct {
	Type  string   `json:"type"`
	Files []string `json:"files"`
}

func NewFiles(names []string) FilesMessage {
	if names == nil {
		names = []string{}
	}
	return FilesMessage{Type: TypeFiles, Files: names}
}

type FileDetailMessage struct {
	Type       string           `json:"type"`
	FileDetail files.FileDetail `json:"fileDetail"`
}

func NewFileDetail(d files.FileDetail) FileDetailMessage {
	return FileDetailMessage{Type: TypeFileDetail, FileDetail: d}
}

type DevicesMessage struct {
	Type    string           `json:"type"`
	Devices []devices.Device `json:"devices"`
}

func NewDevices(list []devices.Device) DevicesMessage {
	if list == nil {
		list = []devices.Device{}
	}
	return DevicesMessage{Type: TypeDevices, Devices: list}
}

type AckMessage struct {
	Type    string `json:"type"`
	Request string `json:"request"`
	Name    string `json:"name,omitempty"`
}

func NewAck(request, name string) AckMessage {
	return AckMessage{Type: TypeAck, Request: request, Name: name}
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Request string `json:"request,omitempty"`
	Kind    string `json:"kind"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// NewError renders err for the client. request is the command type, empty
// when the message could not be decoded.
func NewError(request string, err error) ErrorMessage {
	return ErrorMessage{
		Type:    TypeError,
		Request: request,
		Kind:    string(domain.KindOf(err)),
		Code:    domain.CodeOf(err),
		Message: err.Error(),
	}
}
