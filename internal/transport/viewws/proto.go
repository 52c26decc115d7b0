package viewws

import (
	"github.com/roach88/flowgrid/internal/flow"
	"github.com/roach88/flowgrid/internal/view"
)

// ProtocolVersion is sent in every server frame.
const ProtocolVersion = 1

// Request types a client may send.
const (
	// RequestFrame asks for the momentary visuals and inventory at Time.
	RequestFrame = "FRAME"
	// RequestMachines asks for the machines of the region at Path.
	RequestMachines = "MACHINES"
	// RequestFollow asks for a new frame at Time after every accepted
	// edit, until a request with Follow false.
	RequestFollow = "FOLLOW"
)

// Request is a client message. An empty Type means RequestFrame.
type Request struct {
	Type   string `json:"type,omitempty"`
	Time   int64  `json:"time"`
	Path   string `json:"path,omitempty"`
	Follow bool   `json:"follow,omitempty"`
}

// Frame is what the map looks like at one instant.
type Frame struct {
	Type            string                `json:"type"`
	ProtocolVersion int                   `json:"protocol_version"`
	Version         int64                 `json:"version"`
	Time            int64                 `json:"time"`
	Inventory       flow.Amounts          `json:"inventory"`
	Machines        []view.MachineVisuals `json:"machines"`
}

// MachinesFrame lists one region.
type MachinesFrame struct {
	Type            string        `json:"type"`
	ProtocolVersion int           `json:"protocol_version"`
	Version         int64         `json:"version"`
	Path            string        `json:"path"`
	Machines        []view.Placed `json:"machines"`
}

// ErrorFrame reports a request the server could not answer. The
// connection stays open.
type ErrorFrame struct {
	Type            string `json:"type"`
	ProtocolVersion int    `json:"protocol_version"`
	Message         string `json:"message"`
}
