package replication

import (
	"encoding/json"

	ba "github.com/drpcorg/blockarena"
	"github.com/drpcorg/blockarena/arena_errors"
	"github.com/pkg/errors"
)

type FrameType string

const (
	FrameHello    FrameType = "hello"
	FrameSnapshot FrameType = "snapshot"
	FrameUpdate   FrameType = "update"
	FrameBye      FrameType = "bye"
)

// Frame is one message of a sync session. Every frame is a single
// JSON document:
//
//	{"type":"hello","peer":"<uuid>","mode":7}
//	{"type":"snapshot","records":[...]}
//	{"type":"update","records":[...]}
//	{"type":"bye","reason":"closing"}
type Frame struct {
	Type    FrameType   `json:"type"`
	Peer    string      `json:"peer,omitempty"`
	Mode    SyncMode    `json:"mode,omitempty"`
	Records []ba.Record `json:"records,omitempty"`
	Reason  string      `json:"reason,omitempty"`
}

func EncodeFrame(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

func DecodeFrame(raw []byte) (f Frame, err error) {
	if err = json.Unmarshal(raw, &f); err != nil {
		return f, errors.Wrapf(arena_errors.ErrBadFrame, "%v", err)
	}
	switch f.Type {
	case FrameHello, FrameSnapshot, FrameUpdate, FrameBye:
	default:
		return f, errors.Wrapf(arena_errors.ErrBadFrame, "frame type %q", f.Type)
	}
	if f.Mode > SyncRWLive {
		return f, errors.Wrapf(arena_errors.ErrBadFrame, "mode %d", f.Mode)
	}
	return f, nil
}
