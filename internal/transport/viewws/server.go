// Package viewws serves the read-only view of a running session over
// WebSocket, for renderers that live outside the process.
//
// A client connects to GET /view and sends JSON requests; each one is
// answered with a frame computed between edits by the session loop. A
// client that asks to follow receives a fresh frame after every accepted
// edit. GET /inventory answers a single inventory query over plain HTTP.
package viewws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/flowgrid/internal/flow"
	"github.com/roach88/flowgrid/internal/view"
	"github.com/roach88/flowgrid/internal/world"
)

const writeTimeout = 5 * time.Second

// Viewer is the part of a session the server reads through.
// *engine.Engine implements it.
type Viewer interface {
	View(ctx context.Context, fn func(*view.View) error) error
	Watch() (versions <-chan int64, cancel func())
	Version() int64
}

// Server answers view requests for one session.
type Server struct {
	viewer Viewer
	logger *slog.Logger

	upgrader        websocket.Upgrader
	maxMessageBytes int64
	loopbackOnly    bool
	nextID          atomic.Uint64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMaxMessageBytes bounds client request frames. Default: 4096.
func WithMaxMessageBytes(n int64) Option {
	return func(s *Server) {
		s.maxMessageBytes = n
	}
}

// WithLoopbackOnly refuses clients that do not connect from a loopback
// address. Default: true.
func WithLoopbackOnly(on bool) Option {
	return func(s *Server) {
		s.loopbackOnly = on
	}
}

// NewServer returns a server reading through v.
func NewServer(v Viewer, opts ...Option) *Server {
	s := &Server{
		viewer:          v,
		logger:          slog.Default(),
		maxMessageBytes: 4096,
		loopbackOnly:    true,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			// renderers are local tools; the loopback check guards access
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler routes GET /view and GET /inventory.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /view", s.handleView)
	mux.HandleFunc("GET /inventory", s.handleInventory)
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled. Open view
// connections are closed when ctx is.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.logger.Info("view server listening", "addr", ln.Addr().String())

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown view server: %w", err)
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		s.logger.Info("view server stopped")
		return nil
	}
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	if s.loopbackOnly && !isLoopbackRemote(r.RemoteAddr) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied
		s.logger.Debug("view upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.maxMessageBytes)

	id := s.nextID.Add(1)
	logger := s.logger.With("conn", id)
	logger.Info("view client connected", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		// unblock ReadMessage when the server shuts down
		<-ctx.Done()
		conn.Close()
	}()

	out := make(chan any, 16)
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		s.writeLoop(ctx, cancel, conn, out, logger)
	}()

	versions, stopWatch := s.viewer.Watch()
	defer stopWatch()
	follow := make(chan *int64)
	go s.followLoop(ctx, versions, follow, out)

	s.readLoop(ctx, conn, follow, out, logger)

	cancel()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	<-writeDone
	logger.Info("view client disconnected")
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, follow chan<- *int64, out chan<- any, logger *slog.Logger) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				logger.Debug("view read failed", "error", err)
			}
			return
		}

		var req Request
		if err := json.Unmarshal(msg, &req); err != nil {
			send(ctx, out, errorFrame("bad request: %v", err))
			continue
		}

		switch req.Type {
		case "", RequestFrame:
			send(ctx, out, s.frame(ctx, req.Time))
		case RequestMachines:
			send(ctx, out, s.machines(ctx, req.Path))
		case RequestFollow:
			var at *int64
			if req.Follow {
				t := req.Time
				at = &t
			}
			select {
			case follow <- at:
			case <-ctx.Done():
				return
			}
			if at != nil {
				send(ctx, out, s.frame(ctx, *at))
			}
		default:
			send(ctx, out, errorFrame("unknown request type %q", req.Type))
		}
	}
}

// followLoop pushes a frame at the followed time after each accepted edit.
func (s *Server) followLoop(ctx context.Context, versions <-chan int64, follow <-chan *int64, out chan<- any) {
	var at *int64
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-follow:
			at = t
		case <-versions:
			if at != nil {
				send(ctx, out, s.frame(ctx, *at))
			}
		}
	}
}

func (s *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out <-chan any, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug("view write failed", "error", err)
				cancel()
				return
			}
		}
	}
}

func send(ctx context.Context, out chan<- any, msg any) {
	select {
	case out <- msg:
	case <-ctx.Done():
	}
}

func (s *Server) frame(ctx context.Context, t int64) any {
	if t < 0 {
		return errorFrame("negative time %d", t)
	}
	var f Frame
	err := s.viewer.View(ctx, func(v *view.View) error {
		f = Frame{
			Type:            RequestFrame,
			ProtocolVersion: ProtocolVersion,
			Version:         s.viewer.Version(),
			Time:            t,
			Inventory:       v.InventoryAt(t),
			Machines:        v.MomentaryVisuals(t),
		}
		return nil
	})
	if err != nil {
		return errorFrame("frame at %d: %v", t, err)
	}
	return f
}

func (s *Server) machines(ctx context.Context, path string) any {
	p, err := world.ParsePath(path)
	if err != nil {
		return errorFrame("%v", err)
	}
	var f MachinesFrame
	err = s.viewer.View(ctx, func(v *view.View) error {
		placed, err := v.MachinesAtDepth(p)
		if err != nil {
			return err
		}
		f = MachinesFrame{
			Type:            RequestMachines,
			ProtocolVersion: ProtocolVersion,
			Version:         s.viewer.Version(),
			Path:            p.String(),
			Machines:        placed,
		}
		return nil
	})
	if err != nil {
		return errorFrame("machines at %s: %v", path, err)
	}
	return f
}

func errorFrame(format string, args ...any) ErrorFrame {
	return ErrorFrame{Type: "ERROR", ProtocolVersion: ProtocolVersion, Message: fmt.Sprintf(format, args...)}
}

// handleInventory answers GET /inventory?time=T.
func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	if s.loopbackOnly && !isLoopbackRemote(r.RemoteAddr) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	t, err := strconv.ParseInt(r.URL.Query().Get("time"), 10, 64)
	if err != nil || t < 0 {
		http.Error(w, "time must be a non-negative integer", http.StatusBadRequest)
		return
	}

	var resp struct {
		Version   int64        `json:"version"`
		Time      int64        `json:"time"`
		Inventory flow.Amounts `json:"inventory"`
	}
	err = s.viewer.View(r.Context(), func(v *view.View) error {
		resp.Version = s.viewer.Version()
		resp.Time = t
		resp.Inventory = v.InventoryAt(t)
		return nil
	})
	if err != nil {
		s.logger.Warn("inventory query failed", "time", t, "error", err)
		http.Error(w, "session unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
