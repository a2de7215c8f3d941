package http

import (
	"net/http"
	"strconv"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/octree/models"
	"github.com/segmentio/encoding/json"
)

const (
	ErrTypeInvalidRequest = "invalid-request"

	maxBodySize = 1 << 20
)

// WorldHandler serves the REST api of the worlds in a store.
type WorldHandler struct {
	Worlds *models.WorldStore
}

// Register adds the world routes to mux.
func (h *WorldHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /worlds", h.HandleListWorlds)
	mux.HandleFunc("POST /worlds", h.HandleCreateWorld)
	mux.HandleFunc("GET /worlds/{world}", h.HandleGetWorld)
	mux.HandleFunc("DELETE /worlds/{world}", h.HandleDeleteWorld)
	mux.HandleFunc("GET /worlds/{world}/entities", h.HandleListEntities)
	mux.HandleFunc("POST /worlds/{world}/entities", h.HandleAddEntity)
	mux.HandleFunc("GET /worlds/{world}/entities/{entity}", h.HandleGetEntity)
	mux.HandleFunc("PUT /worlds/{world}/entities/{entity}", h.HandleMoveEntity)
	mux.HandleFunc("DELETE /worlds/{world}/entities/{entity}", h.HandleDeleteEntity)
	mux.HandleFunc("POST /worlds/{world}/queries", h.HandleQuery)
}

func (h *WorldHandler) HandleListWorlds(w http.ResponseWriter, r *http.Request) {
	worlds := h.Worlds.Worlds()

	infos := make([]models.WorldInfo, len(worlds))
	for i, world := range worlds {
		infos[i] = world.Info()
	}
	writeJSON(w, http.StatusOK, struct {
		Worlds []models.WorldInfo `json:"worlds"`
	}{
		Worlds: infos,
	})
}

func (h *WorldHandler) HandleCreateWorld(w http.ResponseWriter, r *http.Request) {
	var config models.WorldConfig
	if err := decodeJSON(r, &config); err != nil {
		WriteError(w, r, err)
		return
	}

	world, err := h.Worlds.Create(r.Context(), config)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, world.Info())
}

func (h *WorldHandler) HandleGetWorld(w http.ResponseWriter, r *http.Request) {
	world, err := h.world(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, world.Info())
}

func (h *WorldHandler) HandleDeleteWorld(w http.ResponseWriter, r *http.Request) {
	if err := h.Worlds.Remove(r.Context(), r.PathValue("world")); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WorldHandler) HandleListEntities(w http.ResponseWriter, r *http.Request) {
	world, err := h.world(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeEntities(w, world.Entities())
}

func (h *WorldHandler) HandleAddEntity(w http.ResponseWriter, r *http.Request) {
	world, err := h.world(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var pose models.Pose
	if err := decodeJSON(r, &pose); err != nil {
		WriteError(w, r, err)
		return
	}

	entity, err := world.AddEntity(pose)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entity.Info())
}

func (h *WorldHandler) HandleGetEntity(w http.ResponseWriter, r *http.Request) {
	world, err := h.world(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	id, err := entityID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	entity, ok := world.EntityByID(id)
	if !ok {
		WriteError(w, r, errors.New("entity not found").
			WithType(models.ErrTypeEntityNotFound).
			WithTag("entity_id", id))
		return
	}
	writeJSON(w, http.StatusOK, entity.Info())
}

func (h *WorldHandler) HandleMoveEntity(w http.ResponseWriter, r *http.Request) {
	world, err := h.world(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	id, err := entityID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var pose models.Pose
	if err := decodeJSON(r, &pose); err != nil {
		WriteError(w, r, err)
		return
	}

	entity, err := world.MoveEntity(id, pose)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entity.Info())
}

func (h *WorldHandler) HandleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	world, err := h.world(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	id, err := entityID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := world.RemoveEntity(id); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WorldHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	world, err := h.world(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var query models.Query
	if err := decodeJSON(r, &query); err != nil {
		WriteError(w, r, err)
		return
	}

	entities, err := world.Query(query)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeEntities(w, entities)
}

func (h *WorldHandler) world(r *http.Request) (*models.World, error) {
	worldUUID := r.PathValue("world")

	world, ok := h.Worlds.Get(worldUUID)
	if !ok {
		return nil, errors.New("world not found").
			WithType(models.ErrTypeWorldNotFound).
			WithTag("world_uuid", worldUUID)
	}
	return world, nil
}

func entityID(r *http.Request) (uint32, error) {
	v := r.PathValue("entity")

	id, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, errors.New("invalid entity id").
			WithType(ErrTypeInvalidRequest).
			WithTag("entity_id", v).
			Wrap(err)
	}
	return uint32(id), nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return errors.New("decoding request body failed").
			WithType(ErrTypeInvalidRequest).
			Wrap(err)
	}
	return nil
}

func writeEntities(w http.ResponseWriter, entities []*models.Entity) {
	writeJSON(w, http.StatusOK, struct {
		Entities []models.EntityInfo `json:"entities"`
	}{
		Entities: models.EntitiesToInfo(entities),
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logs.Error(errors.New("encoding response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(b)
}

// ErrorResponse is the body of failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

// WriteError responds with an ErrorResponse whose status code is derived from
// the type of err.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	errType := errors.Type(err)
	statusCode := statusCodeFromErrorType(errType)

	entry := logs.WithTag("method", r.Method).
		WithTag("path", r.URL.Path).
		WithTag("status_code", statusCode)
	if statusCode >= http.StatusInternalServerError {
		entry.Error(err)
	} else {
		entry.Debug(err)
	}

	writeJSON(w, statusCode, ErrorResponse{
		Error: err.Error(),
		Type:  errType,
	})
}

func statusCodeFromErrorType(errType string) int {
	switch errType {
	case models.ErrTypeWorldNotFound,
		models.ErrTypeEntityNotFound:
		return http.StatusNotFound

	case models.ErrTypeEntityOutOfBounds:
		return http.StatusUnprocessableEntity

	case models.ErrTypeTooManyWorlds:
		return http.StatusConflict

	case ErrTypeUnauthorized:
		return http.StatusUnauthorized

	case ErrTypeInvalidRequest,
		models.ErrTypeInvalidWorld,
		models.ErrTypeInvalidPose,
		models.ErrTypeInvalidQuery:
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}
