package zyxel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/micro-ha/zyxel-ap/addon/internal/model"
)

const maxDialAttempts = 3

// Client executes the fixed CLI command surface against one access
// point. It holds no connection state: each fetch or control call
// opens a single session, batches its commands, and closes it.
type Client struct {
	dialer Dialer
	logger *slog.Logger
}

func NewClient(dialer Dialer, logger *slog.Logger) *Client {
	return &Client{dialer: dialer, logger: logger}
}

// FetchSnapshot runs every read command in one session and parses the
// output into a Snapshot. Individual command failures are tolerated
// and recorded in Snapshot.Missing; only a fully failed cycle is an
// error.
func (c *Client) FetchSnapshot(ctx context.Context, cfg model.APConfig) (*Snapshot, error) {
	sess, err := c.dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	snapshot := &Snapshot{FetchedAt: time.Now().UTC()}
	outputs := make(map[string]string, len(readCommands))
	for i, cmd := range readCommands {
		out, err := sess.Run(ctx, cmd)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			c.logger.Warn("cli command failed", "command", cmd, "err", err)
			snapshot.Missing = append(snapshot.Missing, cmd)
			if errors.Is(err, ErrSessionClosed) {
				// Remaining commands cannot run on a dead session.
				snapshot.Missing = append(snapshot.Missing, readCommands[i+1:]...)
				break
			}
			continue
		}
		outputs[cmd] = out
	}
	if len(outputs) == 0 {
		return nil, ErrAllCommandsFailed
	}

	if out, ok := outputs[CmdVersion]; ok {
		snapshot.Device = parseVersion(out)
	}
	if out, ok := outputs[CmdUptime]; ok {
		snapshot.UptimeSeconds = parseUptime(out)
	}
	if out, ok := outputs[CmdCPU]; ok {
		snapshot.CPU = parseCPU(out)
	}
	if out, ok := outputs[CmdMemory]; ok {
		snapshot.MemoryPercent = parseMemory(out)
	}
	if out, ok := outputs[CmdStations]; ok {
		snapshot.Stations = parseStations(out)
	}
	if out, ok := outputs[CmdInterfaces]; ok {
		snapshot.Network = parseInterfaces(out)
	}
	if out, ok := outputs[CmdWLAN]; ok {
		snapshot.Radios = parseWLAN(out)
	}
	if out, ok := outputs[CmdPortStatus]; ok {
		snapshot.Port = parsePortStatus(out)
	}
	return snapshot, nil
}

// SetRadio activates or deactivates the radio profile bound to the
// given slot (1 = 2.4GHz, 2 = 5GHz) and writes the configuration.
func (c *Client) SetRadio(ctx context.Context, cfg model.APConfig, slot int, active bool) error {
	profile := cfg.RadioProfile(slot)
	if profile == "" {
		return fmt.Errorf("unknown radio slot %d", slot)
	}
	return c.runSequence(ctx, cfg, radioSequence(profile, active))
}

// SetGuestSchedule toggles the guest SSID schedule. alwaysOn removes
// the schedule so the SSID stays up; false re-enables it so the SSID
// follows its configured hours.
func (c *Client) SetGuestSchedule(ctx context.Context, cfg model.APConfig, alwaysOn bool) error {
	return c.runSequence(ctx, cfg, guestSequence(cfg.GuestSSIDProfile(), alwaysOn))
}

// Reboot restarts the access point. The device drops the SSH session
// while executing the command, so a closed session or missing prompt
// after sending counts as success.
func (c *Client) Reboot(ctx context.Context, cfg model.APConfig) error {
	sess, err := c.dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	if _, err := sess.Run(ctx, CmdReboot); err != nil {
		if errors.Is(err, ErrSessionClosed) || errors.Is(err, ErrPromptTimeout) {
			c.logger.Info("reboot command sent, session dropped", "host", cfg.Host)
			return nil
		}
		return err
	}
	return nil
}

func (c *Client) runSequence(ctx context.Context, cfg model.APConfig, commands []string) error {
	sess, err := c.dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	for _, cmd := range commands {
		if _, err := sess.Run(ctx, cmd); err != nil {
			return fmt.Errorf("command %q: %w", cmd, err)
		}
	}
	return nil
}

func (c *Client) dial(ctx context.Context, cfg model.APConfig) (Session, error) {
	var lastErr error
	for attempt := 1; attempt <= maxDialAttempts; attempt++ {
		sess, err := c.dialer.Dial(ctx, cfg)
		if err == nil {
			return sess, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("ssh connect to %s failed: %w", cfg.Address(), lastErr)
}
