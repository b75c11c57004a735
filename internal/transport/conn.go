// Package transport implements the line-oriented command/data protocol: a
// thin collaborator over net.Conn that buffers ADC samples, recognizes
// CMD: control lines, and calls into the DSP pipeline and the auth matcher
// to do the actual work. It carries no biometric logic of its own.
package transport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"

	"github.com/rawblock/ecg-auth-engine/internal/auth"
	"github.com/rawblock/ecg-auth-engine/internal/dsp"
)

// connState is the per-connection mode. idle accepts only control commands;
// registering/loggingIn also accept integer sample lines.
type connState int

const (
	stateIdle connState = iota
	stateRegistering
	stateLoggingIn
)

// EventSink receives notifications of successful registrations and login
// attempts, for broadcast to a dashboard. A nil sink is valid.
type EventSink interface {
	Registered(userID string)
	LoginAttempted(userID string, accepted bool, similarity float64)
}

// Server accepts connections for the line protocol and dispatches each to
// its own goroutine, per the concurrency model: the matcher serializes its
// own state, so connections never need to coordinate with each other.
type Server struct {
	Matcher    *auth.Matcher
	SampleRate float64
	BufferSize int
	Events     EventSink

	sessions *sessionShim
}

// ListenAndServe blocks accepting connections on addr until the listener
// errors (typically because the caller closed it).
func (s *Server) ListenAndServe(addr string) error {
	if s.sessions == nil {
		s.sessions = newSessionShim(s.Matcher)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("transport: listen: %w", err)
	}
	log.Printf("transport: listening on %s", addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("transport: accept: %w", err)
		}
		go s.handleConn(conn)
	}
}

// conn holds the per-connection state: sample ring, mode, and the user id
// or session in play for the active operation.
type conn struct {
	server    *Server
	netConn   net.Conn
	writer    *bufio.Writer
	state     connState
	userID    string
	sessionID string
	samples   []int
}

func (s *Server) handleConn(netConn net.Conn) {
	defer netConn.Close()

	c := &conn{
		server:  s,
		netConn: netConn,
		writer:  bufio.NewWriter(netConn),
	}
	c.respond(reply(statusConnected, ""))

	scanner := bufio.NewScanner(netConn)
	for scanner.Scan() {
		c.handleLine(strings.TrimSpace(scanner.Text()))
	}
}

// Status strings not covered by these constants (low_quality,
// insufficient_peaks, beat_processing_failed, signature_failed) come
// straight from dsp.Status — see runPipeline.
const (
	statusConnected  = "connected"
	statusReady      = "ready"
	statusSuccess    = "success"
	statusError      = "error"
	statusAuthFailed = "auth_failed"
	statusCancelled  = "cancelled"
	statusInfo       = "info"
	statusInvalid    = "invalid"
	statusExpired    = "expired"
	statusValid      = "valid"
)

// response is the single-line JSON object every command reply takes.
type response struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
	Data   any    `json:"data,omitempty"`
}

func reply(status, detail string) response {
	return response{Status: status, Detail: detail}
}

func marshalResponse(r response) ([]byte, error) {
	return json.Marshal(r)
}

func (c *conn) respond(r response) {
	data, err := marshalResponse(r)
	if err != nil {
		log.Printf("transport: failed to marshal response: %v", err)
		return
	}
	c.writer.Write(data)
	c.writer.WriteByte('\n')
	c.writer.Flush()
}

// ringBound is the sample ring's cap, twice the configured window size.
func (c *conn) ringBound() int {
	return 2 * c.server.BufferSize
}

func (c *conn) handleLine(line string) {
	if line == "" {
		return
	}

	if strings.HasPrefix(strings.ToUpper(line), "CMD:") {
		c.handleCommand(line[4:])
		return
	}

	n, err := strconv.Atoi(line)
	if err != nil {
		return // non-integer junk, silently discarded per the protocol
	}

	if c.state == stateIdle {
		return
	}

	c.samples = append(c.samples, n)
	if len(c.samples) > c.ringBound() {
		c.samples = c.samples[len(c.samples)-c.ringBound():]
	}

	if len(c.samples) >= c.server.BufferSize {
		c.runPipeline()
	}
}

func (c *conn) handleCommand(body string) {
	parts := strings.SplitN(body, ":", 2)
	verb := strings.ToUpper(parts[0])
	arg := ""
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch verb {
	case "REGISTER":
		c.state = stateRegistering
		c.userID = arg
		c.samples = nil
		c.respond(reply(statusReady, "registration mode"))

	case "LOGIN":
		c.state = stateLoggingIn
		c.userID = arg
		c.samples = nil
		c.respond(reply(statusReady, "login mode"))

	case "LOGOUT":
		c.server.sessions.revoke(c.sessionID)
		c.sessionID = ""
		c.respond(reply(statusSuccess, "logged out"))

	case "STATUS":
		c.respond(response{Status: statusInfo, Data: map[string]any{
			"mode":      c.stateName(),
			"buffered":  len(c.samples),
			"userId":    c.userID,
			"sessionId": c.sessionID,
		}})

	case "USERS":
		users := c.server.Matcher.ListUsers()
		out := make([]map[string]any, 0, len(users))
		for _, u := range users {
			out = append(out, map[string]any{
				"userId":     u.UserID,
				"samples":    len(u.Templates),
				"createdAt":  u.CreatedAt,
				"updatedAt":  u.UpdatedAt,
				"loginCount": u.LoginCount,
				"lastLogin":  u.LastLogin,
			})
		}
		c.respond(response{Status: statusInfo, Data: out})

	case "DELETE":
		if err := c.server.Matcher.DeleteUser(arg); err != nil {
			c.respond(reply(statusError, err.Error()))
			return
		}
		c.respond(reply(statusSuccess, "user deleted"))

	case "CANCEL":
		c.state = stateIdle
		c.samples = nil
		c.userID = ""
		c.respond(reply(statusCancelled, ""))

	case "VERIFY":
		if c.sessionID == "" {
			c.respond(reply(statusInvalid, "no active session"))
			return
		}
		if !c.server.sessions.verify(c.sessionID) {
			c.respond(reply(statusExpired, ""))
			return
		}
		c.respond(reply(statusValid, ""))

	case "COMPLETE":
		if c.state == stateIdle {
			c.respond(reply(statusError, "COMPLETE received while not registering or logging in"))
			return
		}
		if len(c.samples) >= c.server.BufferSize {
			c.runPipeline()
		} else {
			c.respond(reply(statusError, "insufficient buffered samples"))
		}

	default:
		c.respond(reply(statusError, "unrecognized command"))
	}
}

func (c *conn) stateName() string {
	switch c.state {
	case stateRegistering:
		return "registering"
	case stateLoggingIn:
		return "logging_in"
	default:
		return "idle"
	}
}

// runPipeline runs the buffered window through the DSP pipeline and, on
// success, through the matcher operation implied by the connection's
// current mode. It always resets to idle afterward — one window, one
// decision, per the specification's single-shot pipeline-run model.
func (c *conn) runPipeline() {
	window := c.samples
	c.samples = nil
	state := c.state
	userID := c.userID
	c.state = stateIdle
	c.userID = ""

	result := dsp.Run(window, c.server.SampleRate)
	if result.Status != dsp.StatusSuccess {
		c.respond(reply(string(result.Status), ""))
		return
	}

	switch state {
	case stateRegistering:
		if _, err := c.server.Matcher.Register(userID, result.Signature); err != nil {
			c.respond(reply(statusError, err.Error()))
			return
		}
		if c.server.Events != nil {
			c.server.Events.Registered(userID)
		}
		c.respond(reply(statusSuccess, "registered"))

	case stateLoggingIn:
		remoteAddr := c.netConn.RemoteAddr().String()
		res, err := c.server.Matcher.Login(result.Signature, userID, remoteAddr)
		if err != nil {
			c.respond(reply(statusError, err.Error()))
			return
		}
		if c.server.Events != nil {
			c.server.Events.LoginAttempted(res.UserID, res.Accepted, res.BestSimilarity)
		}
		if !res.Accepted {
			c.respond(response{Status: statusAuthFailed, Data: map[string]any{
				"bestSimilarity": res.BestSimilarity,
				"threshold":      res.Threshold,
			}})
			return
		}
		c.sessionID = res.Session.ID
		c.respond(response{Status: statusSuccess, Data: map[string]any{
			"userId":    res.UserID,
			"sessionId": res.Session.ID,
			"expiresAt": res.Session.ExpiresAt,
		}})
	}
}
