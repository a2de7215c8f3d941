package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/octree/models"
	"github.com/aukilabs/octree/octree"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

const (
	ErrTypeWorldNotJoined = "world-not-joined"

	// The header clients can set to identify themselves.
	ClientIDHeaderKey = "X-Client-Id"

	defaultIdleTimeout = time.Minute
)

// StreamHandler streams the entities of a world to a connected client. The
// world is read from the "world" path value of the upgraded request.
type StreamHandler struct {
	// The worlds clients can connect to.
	Worlds *models.WorldStore

	// The duration after which an idle client is disconnected.
	ClientIdleTimeout time.Duration

	conn         *websocket.Conn
	clientID     string
	world        *models.World
	mutex        sync.Mutex
	cancelFrames func()
}

func (h *StreamHandler) HandleConnect(conn *websocket.Conn, respond ResponseSender) error {
	h.conn = conn

	req := conn.Request()
	h.clientID = req.Header.Get(ClientIDHeaderKey)
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}

	worldUUID := req.PathValue("world")
	world, ok := h.Worlds.Get(worldUUID)
	if !ok {
		return errors.New("world not found").
			WithType(models.ErrTypeWorldNotFound).
			WithTag("world_uuid", worldUUID)
	}

	h.mutex.Lock()
	h.world = world
	h.mutex.Unlock()

	if req.URL.Query().Get("frames") == "true" {
		h.cancelFrames = world.HandleFrame(func(stats octree.UpdateStats) {
			respond.Send(Msg{
				Type:   MsgTypeFrame,
				Update: &stats,
			})
		})
	}
	return nil
}

func (h *StreamHandler) HandleDisconnect(err error) {
	if h.cancelFrames != nil {
		h.cancelFrames()
	}

	h.mutex.Lock()
	h.world = nil
	h.mutex.Unlock()
}

func (h *StreamHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	respond.Send(Msg{
		Type:      MsgTypePong,
		RequestID: msg.RequestID,
	})
	return nil
}

func (h *StreamHandler) HandlePose(ctx context.Context, respond ResponseSender, msg Msg) error {
	world, err := h.currentWorld()
	if err != nil {
		return err
	}

	if msg.Pose == nil {
		return errors.New("missing pose").
			WithType(ErrTypeMsgInvalid).
			WithTag("request_id", msg.RequestID)
	}

	var entity *models.Entity
	if msg.EntityID == 0 {
		entity, err = world.AddEntity(*msg.Pose)
	} else {
		entity, err = world.MoveEntity(msg.EntityID, *msg.Pose)
	}
	if err != nil {
		return err
	}

	info := entity.Info()
	respond.Send(Msg{
		Type:      MsgTypePoseAck,
		RequestID: msg.RequestID,
		EntityID:  info.ID,
		Entity:    &info,
	})
	return nil
}

func (h *StreamHandler) HandleRemove(ctx context.Context, respond ResponseSender, msg Msg) error {
	world, err := h.currentWorld()
	if err != nil {
		return err
	}

	if err := world.RemoveEntity(msg.EntityID); err != nil {
		return err
	}

	respond.Send(Msg{
		Type:      MsgTypeRemoveAck,
		RequestID: msg.RequestID,
		EntityID:  msg.EntityID,
	})
	return nil
}

func (h *StreamHandler) HandleQuery(ctx context.Context, respond ResponseSender, msg Msg) error {
	world, err := h.currentWorld()
	if err != nil {
		return err
	}

	if msg.Query == nil {
		return errors.New("missing query").
			WithType(ErrTypeMsgInvalid).
			WithTag("request_id", msg.RequestID)
	}

	entities, err := world.Query(*msg.Query)
	if err != nil {
		return err
	}

	respond.Send(Msg{
		Type:      MsgTypeQueryResult,
		RequestID: msg.RequestID,
		Entities:  models.EntitiesToInfo(entities),
	})
	return nil
}

func (h *StreamHandler) Receiver() Receiver {
	return newReceiver(h.conn)
}

func (h *StreamHandler) Sender() Sender {
	return newSender(h.conn)
}

func (h *StreamHandler) Close() {
}

func (h *StreamHandler) IdleTimeout() time.Duration {
	if h.ClientIdleTimeout <= 0 {
		return defaultIdleTimeout
	}
	return h.ClientIdleTimeout
}

func (h *StreamHandler) CurrentWorld() *models.World {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.world
}

func (h *StreamHandler) GetClientID() string {
	return h.clientID
}

func (h *StreamHandler) currentWorld() (*models.World, error) {
	world := h.CurrentWorld()
	if world == nil {
		return nil, errors.New("client is not connected to a world").
			WithType(ErrTypeWorldNotJoined)
	}
	return world, nil
}
