package websocket

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/octree/models"
	"github.com/aukilabs/octree/octree"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	// Client messages.
	MsgTypePing   = "ping"
	MsgTypePose   = "pose"
	MsgTypeRemove = "remove"
	MsgTypeQuery  = "query"

	// Server messages.
	MsgTypePong        = "pong"
	MsgTypePoseAck     = "pose_ack"
	MsgTypeRemoveAck   = "remove_ack"
	MsgTypeQueryResult = "query_result"
	MsgTypeFrame       = "frame"
	MsgTypeError       = "error"
)

const (
	ErrTypeMsgUnknown = "msg-unknown"
	ErrTypeMsgInvalid = "msg-invalid"
)

// Msg is a JSON frame exchanged over a world stream. Only the fields used by
// Type are set.
type Msg struct {
	Type string `json:"type"`

	// Set by clients to match responses with their request.
	RequestID uint32 `json:"request_id,omitempty"`

	// The entity targeted by pose and remove messages. A pose message without
	// entity id creates an entity.
	EntityID uint32 `json:"entity_id,omitempty"`

	Pose     *models.Pose        `json:"pose,omitempty"`
	Query    *models.Query       `json:"query,omitempty"`
	Entity   *models.EntityInfo  `json:"entity,omitempty"`
	Entities []models.EntityInfo `json:"entities,omitempty"`
	Update   *octree.UpdateStats `json:"update,omitempty"`
	Error    *ErrorInfo          `json:"error,omitempty"`
}

type ErrorInfo struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newErrorMsg(requestID uint32, err error) Msg {
	return Msg{
		Type:      MsgTypeError,
		RequestID: requestID,
		Error: &ErrorInfo{
			Type:    errors.Type(err),
			Message: err.Error(),
		},
	}
}

// Receiver receives a message and returns the number of bytes read.
type Receiver func() (Msg, int, error)

// Sender sends a message and returns the number of bytes written.
type Sender func(Msg) (int, error)

// ResponseSender queues messages to the connected client.
type ResponseSender interface {
	Send(Msg)
}

func newReceiver(conn *websocket.Conn) Receiver {
	return func() (Msg, int, error) {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			return Msg{}, 0, err
		}

		var msg Msg
		if err := json.Unmarshal(data, &msg); err != nil {
			return Msg{}, len(data), errors.New("decoding message failed").
				WithType(ErrTypeMsgInvalid).
				Wrap(err)
		}
		return msg, len(data), nil
	}
}

func newSender(conn *websocket.Conn) Sender {
	return func(msg Msg) (int, error) {
		data, err := json.Marshal(msg)
		if err != nil {
			return 0, errors.New("encoding message failed").
				WithTag("msg_type", msg.Type).
				Wrap(err)
		}

		if err := websocket.Message.Send(conn, string(data)); err != nil {
			return 0, err
		}
		return len(data), nil
	}
}
