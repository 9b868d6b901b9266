package simulator

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const WS_WRITE_TIMEOUT = 5 * time.Second

type DigitalValue struct {
	Bit   int  `json:"bit"`
	Value bool `json:"value"`
}

type AnalogValue struct {
	Channel int     `json:"channel"`
	Value   float64 `json:"value"`
}

type errorResponse struct {
	Error string `json:"error"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewInspectHandler exposes the controller registers:
//
//	GET /state                      full register snapshot
//	GET /outputs/digital/{bit}      one digital output
//	GET /outputs/analog/{channel}   one analog output
//	PUT /inputs/digital/{bit}       drive a digital input
//	PUT /inputs/analog/{channel}    drive an analog input
//	GET /ws                         snapshot stream, one message per change
func NewInspectHandler(ctrl *Controller, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/state", func(w http.ResponseWriter, req *http.Request) {
		render.JSON(w, req, ctrl.Snapshot())
	})

	r.Route("/outputs", func(r chi.Router) {
		r.Get("/digital/{bit}", func(w http.ResponseWriter, req *http.Request) {
			bit, err := strconv.Atoi(chi.URLParam(req, "bit"))
			if err != nil {
				badRequest(w, req, err)
				return
			}
			v, err := ctrl.DigitalOutput(bit)
			if err != nil {
				badRequest(w, req, err)
				return
			}
			render.JSON(w, req, DigitalValue{Bit: bit, Value: v})
		})

		r.Get("/analog/{channel}", func(w http.ResponseWriter, req *http.Request) {
			channel, err := strconv.Atoi(chi.URLParam(req, "channel"))
			if err != nil {
				badRequest(w, req, err)
				return
			}
			v, err := ctrl.AnalogOutput(channel)
			if err != nil {
				badRequest(w, req, err)
				return
			}
			render.JSON(w, req, AnalogValue{Channel: channel, Value: v})
		})
	})

	r.Route("/inputs", func(r chi.Router) {
		r.Put("/digital/{bit}", func(w http.ResponseWriter, req *http.Request) {
			bit, err := strconv.Atoi(chi.URLParam(req, "bit"))
			if err != nil {
				badRequest(w, req, err)
				return
			}
			var body DigitalValue
			if err := render.DecodeJSON(req.Body, &body); err != nil {
				badRequest(w, req, err)
				return
			}
			if err := ctrl.SetDigitalInput(bit, body.Value); err != nil {
				inputError(w, req, err)
				return
			}
			render.JSON(w, req, DigitalValue{Bit: bit, Value: body.Value})
		})

		r.Put("/analog/{channel}", func(w http.ResponseWriter, req *http.Request) {
			channel, err := strconv.Atoi(chi.URLParam(req, "channel"))
			if err != nil {
				badRequest(w, req, err)
				return
			}
			var body AnalogValue
			if err := render.DecodeJSON(req.Body, &body); err != nil {
				badRequest(w, req, err)
				return
			}
			if err := ctrl.SetAnalogInput(channel, body.Value); err != nil {
				inputError(w, req, err)
				return
			}
			render.JSON(w, req, AnalogValue{Channel: channel, Value: body.Value})
		})
	})

	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		streamState(ctrl, logger, w, req)
	})

	return r
}

func badRequest(w http.ResponseWriter, req *http.Request, err error) {
	render.Status(req, http.StatusBadRequest)
	render.JSON(w, req, errorResponse{Error: err.Error()})
}

func inputError(w http.ResponseWriter, req *http.Request, err error) {
	if errors.Is(err, ErrDrivenInput) {
		render.Status(req, http.StatusConflict)
		render.JSON(w, req, errorResponse{Error: err.Error()})
		return
	}
	badRequest(w, req, err)
}

// streamState sends the current snapshot and then one per change until the
// client goes away
func streamState(ctrl *Controller, logger *zap.Logger, w http.ResponseWriter, req *http.Request) {
	ws, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	updates, cancel := ctrl.Subscribe()
	defer cancel()

	// reader goroutine notices the client closing
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(s State) bool {
		ws.SetWriteDeadline(time.Now().Add(WS_WRITE_TIMEOUT))
		if err := ws.WriteJSON(s); err != nil {
			logger.Info("Websocket subscriber dropped", zap.Error(err))
			return false
		}
		return true
	}

	if !send(ctrl.Snapshot()) {
		return
	}

	for {
		select {
		case <-gone:
			return
		case s, ok := <-updates:
			if !ok || !send(s) {
				return
			}
		}
	}
}
