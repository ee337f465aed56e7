package zyxel

import (
	"context"
	"fmt"
	"io"
	"net"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/micro-ha/zyxel-ap/addon/internal/model"
)

const dialTimeout = 10 * time.Second

// promptLine matches the ZySH prompt the firmware prints after every
// command, in both exec and configuration-terminal mode. The hostname
// prefix is configurable on the device so it is not anchored to
// "Router".
var promptLine = regexp.MustCompile(`^[\w.-]*(\(config[^)]*\))?[#>]\s*$`)

// Session is one interactive CLI session on the access point. All
// read commands of a poll cycle share a session; the firmware's SSH
// daemon tears connections down aggressively when sessions are opened
// per command.
type Session interface {
	// Run sends one command and returns the cleaned output, with the
	// echoed command and prompt lines stripped.
	Run(ctx context.Context, command string) (string, error)
	Close() error
}

// Dialer opens CLI sessions. The SSH implementation is the production
// one; tests substitute a scripted dialer.
type Dialer interface {
	Dial(ctx context.Context, cfg model.APConfig) (Session, error)
}

// SSHDialer opens interactive shell sessions over SSH with password
// authentication. Host keys are not pinned: the AP sits on the
// management network and regenerates its key on factory reset.
type SSHDialer struct{}

func NewSSHDialer() *SSHDialer {
	return &SSHDialer{}
}

func (d *SSHDialer) Dial(ctx context.Context, cfg model.APConfig) (Session, error) {
	sshCfg := &ssh.ClientConfig{
		User: cfg.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(cfg.Password),
			// Older firmware builds only offer keyboard-interactive.
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = cfg.Password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec
		Timeout:         dialTimeout,
	}

	address := cfg.Address()
	conn, err := net.DialTimeout("tcp", address, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, sshCfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", address, err)
	}
	_ = conn.SetDeadline(time.Time{})

	client := ssh.NewClient(sshConn, chans, reqs)
	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("open ssh session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := sess.RequestPty("xterm", 200, 80, modes); err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("request pty: %w", err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, err
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, err
	}
	if err := sess.Shell(); err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("start shell: %w", err)
	}

	s := &shellSession{
		client:  client,
		sess:    sess,
		stdin:   stdin,
		chunks:  make(chan []byte, 16),
		done:    make(chan struct{}),
		timeout: cfg.CommandDeadline(),
	}
	go s.pump(stdout)
	s.drainBanner(ctx)
	return s, nil
}

type shellSession struct {
	client  *ssh.Client
	sess    *ssh.Session
	stdin   io.WriteCloser
	chunks  chan []byte
	done    chan struct{}
	timeout time.Duration
	closed  bool

	// desynced is set when a command's output was not consumed up to
	// its prompt (timeout or cancellation). The next Run must discard
	// the stale tail before sending anything, or it would read the
	// previous command's late output as its own.
	desynced bool
}

func (s *shellSession) pump(r io.Reader) {
	defer close(s.chunks)
	buf := make([]byte, 8192)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.chunks <- chunk:
			case <-s.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// drainBanner discards the login banner and initial prompt so the
// first command starts from a clean buffer.
func (s *shellSession) drainBanner(ctx context.Context) {
	deadline := time.NewTimer(2 * time.Second)
	defer deadline.Stop()
	var buf strings.Builder
	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case chunk, ok := <-s.chunks:
			if !ok {
				return
			}
			buf.Write(chunk)
			if endsWithPrompt(buf.String()) {
				return
			}
		}
	}
}

func (s *shellSession) Run(ctx context.Context, command string) (string, error) {
	if s.closed {
		return "", ErrSessionClosed
	}
	if s.desynced {
		if err := s.resync(ctx); err != nil {
			return "", err
		}
	}
	if _, err := io.WriteString(s.stdin, command+"\n"); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSessionClosed, err)
	}

	deadline := time.NewTimer(s.timeout)
	defer deadline.Stop()

	var buf strings.Builder
	for {
		select {
		case <-ctx.Done():
			s.desynced = true
			return "", ctx.Err()
		case <-deadline.C:
			s.desynced = true
			return "", ErrPromptTimeout
		case chunk, ok := <-s.chunks:
			if !ok {
				return "", ErrSessionClosed
			}
			buf.Write(chunk)
			if endsWithPrompt(buf.String()) {
				return cleanOutput(buf.String(), command), nil
			}
		}
	}
}

// resync discards output left over from a timed-out command until the
// prompt reappears, so the next command starts from a clean buffer.
func (s *shellSession) resync(ctx context.Context) error {
	deadline := time.NewTimer(s.timeout)
	defer deadline.Stop()

	var buf strings.Builder
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrPromptTimeout
		case chunk, ok := <-s.chunks:
			if !ok {
				return ErrSessionClosed
			}
			buf.Write(chunk)
			if endsWithPrompt(buf.String()) {
				s.desynced = false
				return nil
			}
		}
	}
}

func (s *shellSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	_, _ = io.WriteString(s.stdin, "exit\n")
	if s.sess != nil {
		_ = s.sess.Close()
	}
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func endsWithPrompt(buf string) bool {
	trimmed := strings.TrimRight(buf, " \t")
	idx := strings.LastIndexByte(trimmed, '\n')
	last := trimmed[idx+1:]
	return promptLine.MatchString(strings.TrimSpace(last)) && strings.TrimSpace(last) != ""
}

// cleanOutput strips prompt lines, the echoed command, and blank
// padding from raw shell output.
func cleanOutput(raw, command string) string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	clean := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(strings.ReplaceAll(line, "\r", ""))
		if promptLine.MatchString(trimmed) && trimmed != "" {
			continue
		}
		if trimmed == strings.TrimSpace(command) {
			continue
		}
		if len(clean) == 0 && trimmed == "" {
			continue
		}
		clean = append(clean, strings.ReplaceAll(line, "\r", ""))
	}
	for len(clean) > 0 && strings.TrimSpace(clean[len(clean)-1]) == "" {
		clean = clean[:len(clean)-1]
	}
	return strings.TrimSpace(strings.Join(clean, "\n"))
}
