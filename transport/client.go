package transport

import (
	"errors"
	"io"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"github.com/jesspatton/watson/engine"
)

// DialTimeout bounds connection setup in Dial.
const DialTimeout = 2 * time.Second

// Client calls a running daemon.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to the daemon at addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, DialTimeout)
	if err != nil {
		return nil, err
	}
	return &Client{rpc: jsonrpc.NewClient(conn)}, nil
}

// Hello returns the daemon's identity string.
func (c *Client) Hello() (string, error) {
	var reply string
	err := c.rpc.Call(ServiceName+".Hello", Empty{}, &reply)
	return reply, err
}

// AddProject registers or updates the project in dir.
func (c *Client) AddProject(dir string, layer map[string]any) error {
	return c.rpc.Call(ServiceName+".AddProject", AddProjectArgs{Dir: dir, Config: layer}, &Empty{})
}

// Build forces an immediate build of the named project.
func (c *Client) Build(name string) error {
	return c.rpc.Call(ServiceName+".Build", BuildArgs{Name: name}, &Empty{})
}

// Status returns every project's state.
func (c *Client) Status() ([]engine.ProjectStatus, error) {
	var reply StatusReply
	if err := c.rpc.Call(ServiceName+".Status", Empty{}, &reply); err != nil {
		return nil, err
	}
	return reply.Projects, nil
}

// Shutdown asks the daemon to stop. The daemon may drop the connection
// before the reply arrives; that counts as success.
func (c *Client) Shutdown() error {
	err := c.rpc.Call(ServiceName+".Shutdown", Empty{}, &Empty{})
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) || errors.Is(err, rpc.ErrShutdown) {
		return nil
	}
	return err
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.rpc.Close()
}
