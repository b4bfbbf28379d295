package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/strataui/strata/internal/core/observability/log"
)

// Dispatcher receives route names pushed by external routers.
type Dispatcher interface {
	Dispatch(route string)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// RouteFeed is the websocket endpoint an external router pushes route
// changes through. Messages are JSON objects {"route": "<name>"}; each is
// acknowledged, then handed to the dispatcher for the next tick boundary.
type RouteFeed struct {
	dispatcher Dispatcher
	logger     log.Log
	srv        *http.Server
}

type routeMessage struct {
	Route string `json:"route"`
}

type ackMessage struct {
	OK    bool   `json:"ok"`
	Route string `json:"route,omitempty"`
	Error string `json:"error,omitempty"`
}

func NewRouteFeed(addr string, dispatcher Dispatcher, logger log.Log) *RouteFeed {
	f := &RouteFeed{dispatcher: dispatcher, logger: logger}
	mux := http.NewServeMux()
	mux.HandleFunc("/routes", f.handleRoutes)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	f.srv = &http.Server{Addr: addr, Handler: mux}
	return f
}

// Start serves until Stop is called. Blocking; run it under an errgroup.
func (f *RouteFeed) Start() error {
	f.logger.Info("route feed listening", log.String("addr", f.srv.Addr))
	if err := f.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the listener down gracefully.
func (f *RouteFeed) Stop(ctx context.Context) error {
	return f.srv.Shutdown(ctx)
}

func (f *RouteFeed) handleRoutes(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("websocket upgrade failed", log.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	remote := conn.RemoteAddr().String()
	f.logger.Debug("router connected", log.String("remote", remote))

	for {
		var msg routeMessage
		if err = conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				f.logger.Warn("router connection lost", log.String("remote", remote), log.Error(err))
			}
			return
		}
		if msg.Route == "" {
			if err = conn.WriteJSON(ackMessage{OK: false, Error: "missing route"}); err != nil {
				return
			}
			continue
		}
		f.dispatcher.Dispatch(msg.Route)
		if err = conn.WriteJSON(ackMessage{OK: true, Route: msg.Route}); err != nil {
			return
		}
	}
}
