// Package transport exposes a registry over JSON-RPC on TCP so the CLI can
// drive a running daemon.
package transport

import (
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/jesspatton/watson/engine"
)

// ServiceName is the RPC service name methods are registered under.
const ServiceName = "Watson"

// Registry is what the server exposes.
type Registry interface {
	Hello() string
	AddProject(dir string, layer map[string]any) error
	Build(name string) error
	Status() []engine.ProjectStatus
}

// Empty is the argument or reply of calls that carry nothing.
type Empty struct{}

// AddProjectArgs are the arguments of Watson.AddProject.
type AddProjectArgs struct {
	Dir    string         `json:"dir"`
	Config map[string]any `json:"config"`
}

// BuildArgs are the arguments of Watson.Build.
type BuildArgs struct {
	Name string `json:"name"`
}

// StatusReply is the reply of Watson.Status.
type StatusReply struct {
	Projects []engine.ProjectStatus `json:"projects"`
}

// Service holds the RPC methods. Shutdown only signals; the process that
// owns the registry performs the actual teardown once the reply is sent.
type Service struct {
	registry Registry
	shutdown func()
}

// Hello returns the server identity string.
func (s *Service) Hello(_ Empty, reply *string) error {
	*reply = s.registry.Hello()
	return nil
}

// AddProject registers or updates a project.
func (s *Service) AddProject(args AddProjectArgs, _ *Empty) error {
	if args.Dir == "" {
		return errors.New("add project: missing directory")
	}
	return s.registry.AddProject(args.Dir, args.Config)
}

// Build forces an immediate build of a project.
func (s *Service) Build(args BuildArgs, _ *Empty) error {
	return s.registry.Build(args.Name)
}

// Status returns every project's state.
func (s *Service) Status(_ Empty, reply *StatusReply) error {
	reply.Projects = s.registry.Status()
	return nil
}

// Shutdown asks the daemon to stop.
func (s *Service) Shutdown(_ Empty, _ *Empty) error {
	s.shutdown()
	return nil
}

// Server accepts JSON-RPC connections.
type Server struct {
	rpc    *rpc.Server
	logger *log.Logger

	shutdownOnce sync.Once
	shutdown     chan struct{}

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewServer creates a server for registry. Call Listen and Serve to start
// accepting calls.
func NewServer(registry Registry) (*Server, error) {
	s := &Server{
		rpc:      rpc.NewServer(),
		logger:   log.Default().WithPrefix("rpc"),
		shutdown: make(chan struct{}),
		conns:    make(map[net.Conn]struct{}),
	}
	svc := &Service{registry: registry, shutdown: s.requestShutdown}
	if err := s.rpc.RegisterName(ServiceName, svc); err != nil {
		return nil, err
	}
	return s, nil
}

// Listen binds the server to addr, a host:port pair.
func (s *Server) Listen(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		l.Close()
		return net.ErrClosed
	}
	s.listener = l
	s.logger.Info("listening", "addr", l.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until Close. It returns nil after Close.
func (s *Server) Serve() error {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	if l == nil {
		return errors.New("transport: Serve called before Listen")
	}

	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return nil
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	s.logger.Debug("client connected", "remote", conn.RemoteAddr().String())
	s.rpc.ServeCodec(jsonrpc.NewServerCodec(conn))
	s.logger.Debug("client disconnected", "remote", conn.RemoteAddr().String())
}

// ShutdownRequested is closed once a client has called Shutdown.
func (s *Server) ShutdownRequested() <-chan struct{} {
	return s.shutdown
}

func (s *Server) requestShutdown() {
	s.shutdownOnce.Do(func() {
		s.logger.Info("shutdown requested")
		close(s.shutdown)
	})
}

// Close stops accepting, drops open connections and waits for their
// handlers to return.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}
