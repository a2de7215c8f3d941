package smoketest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/octree/geom"
	octreehttp "github.com/aukilabs/octree/http"
	"github.com/aukilabs/octree/models"
	owebsocket "github.com/aukilabs/octree/websocket"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	ErrTypeSmokeTestFailed = "smoke-test-failed"

	defaultTimeout = time.Second * 10
)

type Options struct {
	// The endpoint of the server running the smoke tests.
	Endpoint  string
	UserAgent string

	// The HTTP client used to call the tested endpoint.
	Client *http.Client
}

// Request is the body of a smoke test request.
type Request struct {
	// The endpoint of the server to test.
	Endpoint string `json:"endpoint"`

	// The bearer token sent to the tested endpoint.
	Token string `json:"token,omitempty"`

	TimeoutMilliSec int `json:"timeout_ms,omitempty"`
}

// Results describe the outcome of a smoke test.
type Results struct {
	FromEndpoint    string  `json:"from_endpoint"`
	ToEndpoint      string  `json:"to_endpoint"`
	Success         bool    `json:"success"`
	Error           string  `json:"error,omitempty"`
	LatencyMilliSec float64 `json:"latency_ms"`
}

// HandleSmokeTest runs a smoke test against the endpoint of the request and
// responds with its results.
func HandleSmokeTest(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			octreehttp.WriteError(w, r, errors.New("decoding smoke test request failed").
				WithType(octreehttp.ErrTypeInvalidRequest).
				Wrap(err))
			return
		}
		if req.Endpoint == "" {
			octreehttp.WriteError(w, r, errors.New("smoke test endpoint is missing").
				WithType(octreehttp.ErrTypeInvalidRequest))
			return
		}

		res, err := Run(r.Context(), opts, req)
		if err != nil {
			logs.WithTag("from_endpoint", opts.Endpoint).
				WithTag("to_endpoint", req.Endpoint).
				Warn(err)
		}

		b, err := json.Marshal(res)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(b)
	}
}

// Run creates a temporary world on the requested endpoint and exercises its
// stream with a pose, a query and a removal. The world is deleted before
// returning.
func Run(ctx context.Context, opts Options, req Request) (Results, error) {
	res := Results{
		FromEndpoint: opts.Endpoint,
		ToEndpoint:   req.Endpoint,
	}

	timeout := time.Duration(req.TimeoutMilliSec) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := client{
		endpoint:  strings.TrimSuffix(req.Endpoint, "/"),
		token:     req.Token,
		userAgent: opts.UserAgent,
		http:      opts.Client,
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}

	latency, err := c.run(ctx)
	if err != nil {
		err = errors.New("smoke test failed").
			WithType(ErrTypeSmokeTestFailed).
			WithTag("to_endpoint", req.Endpoint).
			Wrap(err)
		res.Error = err.Error()
		return res, err
	}

	res.Success = true
	res.LatencyMilliSec = float64(latency.Microseconds()) / 1000
	return res, nil
}

type client struct {
	endpoint  string
	token     string
	userAgent string
	http      *http.Client
}

func (c client) run(ctx context.Context) (time.Duration, error) {
	bounds := geom.Box{
		Min: geom.Vector3f{X: -10, Y: -10, Z: -10},
		Max: geom.Vector3f{X: 10, Y: 10, Z: 10},
	}

	var world models.WorldInfo
	if err := c.do(ctx, http.MethodPost, "/worlds", models.WorldConfig{Bounds: bounds}, http.StatusCreated, &world); err != nil {
		return 0, errors.New("creating world failed").Wrap(err)
	}
	defer func() {
		if err := c.do(context.Background(), http.MethodDelete, "/worlds/"+world.UUID, nil, http.StatusNoContent, nil); err != nil {
			logs.WithTag("world_uuid", world.UUID).
				Warn(errors.New("deleting smoke test world failed").Wrap(err))
		}
	}()

	conn, err := c.dial(world.UUID)
	if err != nil {
		return 0, errors.New("dialing world stream failed").Wrap(err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	start := time.Now()
	pose, err := c.roundTrip(ctx, conn, owebsocket.Msg{
		Type:      owebsocket.MsgTypePose,
		RequestID: 1,
		Pose: &models.Pose{
			Extents: geom.Vector3f{X: 1, Y: 1, Z: 1},
		},
	}, owebsocket.MsgTypePoseAck)
	if err != nil {
		return 0, err
	}
	latency := time.Since(start)

	query, err := c.roundTrip(ctx, conn, owebsocket.Msg{
		Type:      owebsocket.MsgTypeQuery,
		RequestID: 2,
		Query: &models.Query{
			Shape: models.ShapeBox,
			Box:   &bounds,
		},
	}, owebsocket.MsgTypeQueryResult)
	if err != nil {
		return 0, err
	}
	if len(query.Entities) != 1 || query.Entities[0].ID != pose.EntityID {
		return 0, errors.New("unexpected query result").
			WithTag("entities", query.Entities)
	}

	if _, err := c.roundTrip(ctx, conn, owebsocket.Msg{
		Type:      owebsocket.MsgTypeRemove,
		RequestID: 3,
		EntityID:  pose.EntityID,
	}, owebsocket.MsgTypeRemoveAck); err != nil {
		return 0, err
	}

	return latency, nil
}

func (c client) roundTrip(ctx context.Context, conn *websocket.Conn, msg owebsocket.Msg, resType string) (owebsocket.Msg, error) {
	if err := websocket.JSON.Send(conn, msg); err != nil {
		return owebsocket.Msg{}, errors.New("sending message failed").
			WithTag("msg_type", msg.Type).
			Wrap(err)
	}

	for {
		var res owebsocket.Msg
		if err := websocket.JSON.Receive(conn, &res); err != nil {
			return owebsocket.Msg{}, errors.New("receiving message failed").
				WithTag("msg_type", resType).
				Wrap(err)
		}

		if res.RequestID != msg.RequestID {
			continue
		}
		if res.Type == owebsocket.MsgTypeError && res.Error != nil {
			return owebsocket.Msg{}, errors.New(res.Error.Message).
				WithType(res.Error.Type)
		}
		if res.Type == resType {
			return res, nil
		}
	}
}

func (c client) dial(worldUUID string) (*websocket.Conn, error) {
	url := c.endpoint + "/worlds/" + worldUUID + "/stream"
	url = strings.Replace(url, "http", "ws", 1)

	config, err := websocket.NewConfig(url, c.endpoint)
	if err != nil {
		return nil, err
	}
	c.setHeaders(config.Header)
	return websocket.DialConfig(config)
}

func (c client) do(ctx context.Context, method, path string, body any, statusCode int, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return err
	}
	c.setHeaders(req.Header)

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != statusCode {
		b, _ := io.ReadAll(res.Body)
		return errors.New("unexpected status code").
			WithTag("method", method).
			WithTag("path", path).
			WithTag("status_code", res.StatusCode).
			WithTag("body", string(b))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func (c client) setHeaders(h http.Header) {
	if c.userAgent != "" {
		h.Set("User-Agent", c.userAgent)
	}
	if c.token != "" {
		h.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
}
