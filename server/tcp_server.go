package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"minidbms/common"
	"minidbms/executor"
	"minidbms/interpreter"
	"minidbms/logger"
)

// Server accepts client connections and feeds their commands to the
// interpreter, one command at a time per connection.
type Server struct {
	interp *interpreter.Interpreter

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

func New(interp *interpreter.Interpreter) *Server {
	return &Server{interp: interp, conns: make(map[net.Conn]struct{})}
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on l until ctx is done, then closes every open
// connection and waits for their handlers to return.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	logger.Info("server started", "addr", l.Addr().String())

	go func() {
		<-ctx.Done()
		s.shutdown()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			logger.Warn("failed to accept connection", "error", err)
			continue
		}
		s.track(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(conn, false)
			s.handleConnection(ctx, conn)
		}()
	}
}

// Addr returns the listening address once Serve has started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		if s.closed {
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.listener != nil {
		s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	connID := uuid.NewString()
	log := logger.With("conn", connID, "remote", conn.RemoteAddr().String())
	log.Info("connection established")
	defer log.Info("connection closed")

	session := interpreter.NewSession(connID)
	reader := bufio.NewReader(conn)

	welcome := executor.Result{Kind: common.KindOK, Message: welcomeMessage}
	if _, err := conn.Write([]byte(EncodeResponse(welcome))); err != nil {
		log.Warn("write failed", "error", err)
		return
	}

	for {
		message, err := reader.ReadString(endOfMessage[0])
		if err != nil {
			return
		}
		command := strings.TrimSpace(strings.TrimSuffix(message, endOfMessage))
		reqID := ulid.Make().String()
		log.Debug("received command", "req", reqID, "cmd", command)

		// A command runs to completion even if the client goes away.
		res := s.interp.Execute(context.WithoutCancel(ctx), session, command)
		log.Info("command finished", "req", reqID, "db", session.Database(), "kind", res.Kind.String())

		if _, err := conn.Write([]byte(EncodeResponse(res))); err != nil {
			log.Warn("write failed", "req", reqID, "error", err)
			return
		}
	}
}
