package server

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"

	"minidbms/executor"
)

const (
	endOfMessage = "\x04" // EOT - End of transmission
	msgDelimiter = "\x1E" // RS - Record separator (status / message)

	welcomeMessage = "Welcome to the Mini DBMS server!"
)

// EncodeResponse frames a result as STATUS<RS>message<EOT>.
func EncodeResponse(res executor.Result) string {
	return res.Kind.String() + msgDelimiter + res.Message + endOfMessage
}

// DecodeResponse splits a frame into status and message. The trailing EOT is
// optional.
func DecodeResponse(frame string) (status, message string, err error) {
	frame = strings.TrimSuffix(frame, endOfMessage)
	parts := strings.SplitN(frame, msgDelimiter, 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid response frame %q", frame)
	}
	return parts[0], parts[1], nil
}

// Client is a minimal connection that sends one command at a time.
type Client struct {
	conn    net.Conn
	reader  *bufio.Reader
	Welcome string
}

// Dial connects and consumes the server's welcome frame.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	c := &Client{conn: conn, reader: bufio.NewReader(conn)}
	_, welcome, err := c.read()
	if err != nil {
		conn.Close()
		return nil, err
	}
	c.Welcome = welcome
	return c, nil
}

// Send writes one command and waits for its response.
func (c *Client) Send(command string) (status, message string, err error) {
	if strings.Contains(command, endOfMessage) {
		return "", "", fmt.Errorf("command may not contain the EOT byte")
	}
	if _, err := c.conn.Write([]byte(command + endOfMessage)); err != nil {
		return "", "", err
	}
	return c.read()
}

func (c *Client) read() (string, string, error) {
	frame, err := c.reader.ReadString(endOfMessage[0])
	if err != nil {
		return "", "", err
	}
	return DecodeResponse(frame)
}

func (c *Client) Close() error {
	return c.conn.Close()
}
