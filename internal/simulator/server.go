package simulator

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"

	"go.uber.org/zap"
)

// Server answers Galil commands on a TCP port, one goroutine per client.
type Server struct {
	ctrl   *Controller
	logger *zap.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

func NewServer(ctrl *Controller, logger *zap.Logger) *Server {
	return &Server{
		ctrl:   ctrl,
		logger: logger,
		conns:  make(map[net.Conn]struct{}),
	}
}

// Serve accepts clients until ctx is cancelled, then closes the listener and
// every open client connection before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("Simulator command port listening", zap.String("addr", ln.Addr().String()))

	go func() {
		<-ctx.Done()
		ln.Close()
		s.mu.Lock()
		for c := range s.conns {
			c.Close()
		}
		s.mu.Unlock()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		// accepted while shutting down, the closer may already have run
		if ctx.Err() != nil {
			conn.Close()
		}

		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// handle reads carriage return terminated commands, line feeds are ignored
func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	remote := conn.RemoteAddr().String()
	s.logger.Info("Simulator client connected", zap.String("remote", remote))

	reader := bufio.NewReader(conn)
	line := make([]byte, 0, 64)
	for {
		b, err := reader.ReadByte()
		if err != nil {
			s.logger.Info("Simulator client disconnected", zap.String("remote", remote))
			return
		}

		switch b {
		case '\n':
			continue
		case '\r':
			resp := s.ctrl.Exec(string(line))
			s.logger.Debug("Executed command", zap.ByteString("command", line), zap.String("response", resp))
			line = line[:0]
			if _, err := conn.Write([]byte(resp)); err != nil {
				s.logger.Warn("Error while writing response", zap.Error(err), zap.String("remote", remote))
				return
			}
		default:
			line = append(line, b)
		}
	}
}
