// Package esl implements a minimal FreeSWITCH/Asterisk Event Socket
// Library client: a persistent TCP connection issuing text commands
// (uuid_broadcast, uuid_break, uuid_setvar, uuid_transfer, uuid_kill,
// uuid_record, uuid_getvar) and parsing +OK/-ERR replies plus
// CHANNEL_EXECUTE_COMPLETE events.
//
// No repo in the reference pack implements ESL; this client is built fresh
// from the softswitch's documented text protocol, following the same
// command-dispatch-then-classify-reply shape the gateway already uses for
// its other telephony integrations.
package esl

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/libertycall/ivr-gateway/internal/gatewayerr"
	"github.com/libertycall/ivr-gateway/internal/logging"
)

// Client is a long-lived ESL command connection plus an event reader.
type Client struct {
	addr     string
	password string
	dialTO   time.Duration
	log      logging.Logger

	mu     sync.Mutex
	conn   net.Conn
	reader *textproto.Reader
	writer *bufio.Writer

	events chan Event

	closed chan struct{}
}

// Event is one parsed CHANNEL_EXECUTE_COMPLETE (or other) ESL event.
type Event struct {
	Name    string
	Headers map[string]string
}

// NewClient dials the softswitch's Event Socket, authenticates, and
// subscribes to CHANNEL_EXECUTE_COMPLETE events for the owning process to
// correlate playback completion.
func NewClient(ctx context.Context, addr, password string, dialTimeout time.Duration, log logging.Logger) (*Client, error) {
	if log == nil {
		log = logging.NewNop()
	}
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("esl: dial %s: %w", addr, err)
	}

	c := &Client{
		addr:     addr,
		password: password,
		dialTO:   dialTimeout,
		log:      log,
		conn:     conn,
		reader:   textproto.NewReader(bufio.NewReader(conn)),
		writer:   bufio.NewWriter(conn),
		events:   make(chan Event, 64),
		closed:   make(chan struct{}),
	}

	if err := c.authenticate(); err != nil {
		conn.Close()
		return nil, err
	}
	if err := c.sendCommand("event plain CHANNEL_EXECUTE_COMPLETE"); err != nil {
		conn.Close()
		return nil, err
	}

	go c.readLoop()
	return c, nil
}

// Events exposes the parsed event stream (currently CHANNEL_EXECUTE_COMPLETE
// only) for the Playback Coordinator to correlate against in-flight
// uuid_broadcast commands.
func (c *Client) Events() <-chan Event { return c.events }

func (c *Client) authenticate() error {
	// FreeSWITCH/Asterisk ESL sends a Content-Type: auth/request banner
	// immediately on connect; read and discard it before authenticating.
	if _, err := c.reader.ReadMIMEHeader(); err != nil {
		return fmt.Errorf("esl: read auth banner: %w", err)
	}
	return c.sendCommand("auth " + c.password)
}

func (c *Client) sendCommand(cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.writer.WriteString(cmd + "\n\n"); err != nil {
		return fmt.Errorf("esl: write command: %w", err)
	}
	if err := c.writer.Flush(); err != nil {
		return fmt.Errorf("esl: flush command: %w", err)
	}

	headers, err := c.reader.ReadMIMEHeader()
	if err != nil {
		return fmt.Errorf("esl: read reply: %w", err)
	}
	status := headers.Get("Reply-Text")
	if strings.HasPrefix(status, "-ERR") {
		return gatewayerr.WrapCall("", "esl_command", fmt.Errorf("%w: %s", gatewayerr.ErrESLCommandFailed, status))
	}
	return nil
}

func (c *Client) readLoop() {
	for {
		headers, err := c.reader.ReadMIMEHeader()
		if err != nil {
			close(c.closed)
			return
		}
		if headers.Get("Content-Type") != "text/event-plain" {
			continue
		}
		length, _ := strconv.Atoi(headers.Get("Content-Length"))
		body := make([]byte, length)
		// ReadMIMEHeader already consumed the blank line; body follows.
		if length > 0 {
			_, _ = c.reader.R.Read(body)
		}
		name := parseEventName(string(body))
		select {
		case c.events <- Event{Name: name, Headers: headers2map(headers)}:
		default:
		}
	}
}

func parseEventName(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "Event-Name:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "Event-Name:"))
		}
	}
	return ""
}

func headers2map(h map[string][]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// Broadcast plays (or stops) audio on a channel via uuid_broadcast.
func (c *Client) Broadcast(uuid, path, direction string) error {
	return c.sendCommand(fmt.Sprintf("api uuid_broadcast %s %s %s", uuid, path, direction))
}

// Break stops current playback on a channel (used on barge-in).
func (c *Client) Break(uuid string) error {
	return c.sendCommand(fmt.Sprintf("api uuid_break %s", uuid))
}

// SetVar sets a channel variable.
func (c *Client) SetVar(uuid, name, value string) error {
	return c.sendCommand(fmt.Sprintf("api uuid_setvar %s %s %s", uuid, name, value))
}

// Transfer bridges the channel to the given destination/dialplan/context.
func (c *Client) Transfer(uuid, destination, dialplan, context string) error {
	return c.sendCommand(fmt.Sprintf("api uuid_transfer %s %s %s %s", uuid, destination, dialplan, context))
}

// Kill hangs up a channel.
func (c *Client) Kill(uuid string) error {
	return c.sendCommand(fmt.Sprintf("api uuid_kill %s", uuid))
}

// Record starts or stops call recording.
func (c *Client) Record(uuid, path string, start bool) error {
	action := "start"
	if !start {
		action = "stop"
	}
	return c.sendCommand(fmt.Sprintf("api uuid_record %s %s %s", uuid, action, path))
}

// GetVar reads a channel variable. The softswitch's reply body is the raw
// value (or "_undef_").
func (c *Client) GetVar(uuid, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmd := fmt.Sprintf("api uuid_getvar %s %s", uuid, name)
	if _, err := c.writer.WriteString(cmd + "\n\n"); err != nil {
		return "", fmt.Errorf("esl: write command: %w", err)
	}
	if err := c.writer.Flush(); err != nil {
		return "", fmt.Errorf("esl: flush command: %w", err)
	}
	headers, err := c.reader.ReadMIMEHeader()
	if err != nil {
		return "", fmt.Errorf("esl: read reply: %w", err)
	}
	return headers.Get("Reply-Text"), nil
}

// Close tears down the ESL connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
