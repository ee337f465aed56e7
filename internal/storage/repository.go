package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/micro-ha/zyxel-ap/addon/internal/model"
)

var ErrNotFound = errors.New("not found")

// SwitchGuestSSID keys the persisted optimistic state of the guest
// SSID switch. The CLI cannot read schedule state back, so the last
// commanded value is the source of truth across restarts.
const SwitchGuestSSID = "guest_ssid"

func (r *Repository) LoadAllStates(ctx context.Context) (map[string]model.ClientState, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT mac, online, last_seen_at, connected_since_at, last_ip, last_ssid, last_band,
		       last_rssi_dbm, vendor, generated_name, first_seen_at, updated_at
		FROM clients_state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string]model.ClientState{}
	for rows.Next() {
		var (
			state                              model.ClientState
			lastSeen, connectedSince           sql.NullString
			lastIP, lastSSID, lastBand         sql.NullString
			lastRSSI                           sql.NullInt64
			firstSeen, updatedAt               string
		)
		if err := rows.Scan(&state.MAC, &state.Online, &lastSeen, &connectedSince, &lastIP,
			&lastSSID, &lastBand, &lastRSSI, &state.Vendor, &state.GeneratedName,
			&firstSeen, &updatedAt); err != nil {
			return nil, err
		}
		state.LastSeenAt = toTimePtr(lastSeen)
		state.ConnectedSinceAt = toTimePtr(connectedSince)
		state.LastIP = strPtr(lastIP)
		state.LastSSID = strPtr(lastSSID)
		state.LastBand = strPtr(lastBand)
		state.LastRSSIdBm = intPtr(lastRSSI)
		if ts, err := time.Parse(time.RFC3339Nano, firstSeen); err == nil {
			state.FirstSeenAt = ts.UTC()
		}
		if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			state.UpdatedAt = ts.UTC()
		}
		result[state.MAC] = state
	}
	return result, rows.Err()
}

func (r *Repository) UpsertStates(ctx context.Context, states []model.ClientState) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO clients_state (mac, online, last_seen_at, connected_since_at, last_ip,
			last_ssid, last_band, last_rssi_dbm, vendor, generated_name, first_seen_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(mac) DO UPDATE SET
			online=excluded.online,
			last_seen_at=excluded.last_seen_at,
			connected_since_at=excluded.connected_since_at,
			last_ip=excluded.last_ip,
			last_ssid=excluded.last_ssid,
			last_band=excluded.last_band,
			last_rssi_dbm=excluded.last_rssi_dbm,
			vendor=excluded.vendor,
			generated_name=excluded.generated_name,
			updated_at=excluded.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, state := range states {
		if _, err := stmt.ExecContext(
			ctx,
			state.MAC,
			state.Online,
			fromTimePtr(state.LastSeenAt),
			fromTimePtr(state.ConnectedSinceAt),
			fromStringPtr(state.LastIP),
			fromStringPtr(state.LastSSID),
			fromStringPtr(state.LastBand),
			fromIntPtr(state.LastRSSIdBm),
			state.Vendor,
			state.GeneratedName,
			state.FirstSeenAt.UTC().Format(time.RFC3339Nano),
			state.UpdatedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) DeleteStates(ctx context.Context, macs []string) error {
	if len(macs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, mac := range macs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM clients_state WHERE mac = ?`, mac); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) ListRegistered(ctx context.Context) (map[string]model.ClientRegistered, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT mac, name, icon, comment, created_at, updated_at FROM clients_registered`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string]model.ClientRegistered{}
	for rows.Next() {
		var (
			reg                  model.ClientRegistered
			name, icon, comment  sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(&reg.MAC, &name, &icon, &comment, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		reg.Name = strPtr(name)
		reg.Icon = strPtr(icon)
		reg.Comment = strPtr(comment)
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			reg.CreatedAt = ts.UTC()
		}
		if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			reg.UpdatedAt = ts.UTC()
		}
		result[reg.MAC] = reg
	}
	return result, rows.Err()
}

func (r *Repository) UpsertRegistered(ctx context.Context, mac string, name, icon, comment *string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clients_registered (mac, name, icon, comment, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(mac) DO UPDATE SET
			name=excluded.name,
			icon=excluded.icon,
			comment=excluded.comment,
			updated_at=excluded.updated_at`,
		mac, fromStringPtr(name), fromStringPtr(icon), fromStringPtr(comment), now, now)
	return err
}

func (r *Repository) PatchRegistered(ctx context.Context, mac string, name, icon, comment *string) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().Format(time.RFC3339Nano)}
	if name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *name)
	}
	if icon != nil {
		sets = append(sets, "icon = ?")
		args = append(args, *icon)
	}
	if comment != nil {
		sets = append(sets, "comment = ?")
		args = append(args, *comment)
	}
	args = append(args, mac)

	res, err := r.db.ExecContext(ctx,
		"UPDATE clients_registered SET "+strings.Join(sets, ", ")+" WHERE mac = ?", args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: client %s", ErrNotFound, mac)
	}
	return nil
}

// SetSwitchState persists an optimistic switch value.
func (r *Repository) SetSwitchState(ctx context.Context, key string, on bool) error {
	value := 0
	if on {
		value = 1
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO switch_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// SwitchState reads a persisted switch value; ok is false when the
// switch was never commanded.
func (r *Repository) SwitchState(ctx context.Context, key string) (on bool, ok bool, err error) {
	var value int
	err = r.db.QueryRowContext(ctx, `SELECT value FROM switch_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return value != 0, true, nil
}

// pollRunRetention caps the poll run log; old rows are pruned on
// every insert.
const pollRunRetention = 500

// RecordPollRun appends one poll cycle outcome to the run log.
func (r *Repository) RecordPollRun(ctx context.Context, run model.PollRun) error {
	ok := 0
	if run.OK {
		ok = 1
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO poll_runs (started_at, finished_at, ok, error, station_count, missing_count)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		ok, run.Error, run.StationCount, run.MissingCount)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		DELETE FROM poll_runs WHERE id NOT IN (
			SELECT id FROM poll_runs ORDER BY id DESC LIMIT ?)`, pollRunRetention)
	return err
}

// RecentPollRuns returns the newest poll runs, most recent first.
func (r *Repository) RecentPollRuns(ctx context.Context, limit int) ([]model.PollRun, error) {
	if limit <= 0 || limit > pollRunRetention {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, ok, error, station_count, missing_count
		FROM poll_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.PollRun
	for rows.Next() {
		var run model.PollRun
		var started, finished string
		var ok int
		if err := rows.Scan(&run.ID, &started, &finished, &ok, &run.Error, &run.StationCount, &run.MissingCount); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, started); err == nil {
			run.StartedAt = t.UTC()
		}
		if t, err := time.Parse(time.RFC3339Nano, finished); err == nil {
			run.FinishedAt = t.UTC()
		}
		run.OK = ok != 0
		result = append(result, run)
	}
	return result, rows.Err()
}

// MergeClientViews joins persisted state with user registrations into
// the API representation.
func MergeClientViews(
	states map[string]model.ClientState,
	registered map[string]model.ClientRegistered,
) []model.ClientView {
	all := map[string]struct{}{}
	for mac := range states {
		all[mac] = struct{}{}
	}
	for mac := range registered {
		all[mac] = struct{}{}
	}

	result := make([]model.ClientView, 0, len(all))
	for mac := range all {
		state, hasState := states[mac]
		reg, hasReg := registered[mac]

		name := state.GeneratedName
		status := "new"
		var registeredAt *time.Time
		var icon, comment *string
		if hasReg {
			status = "registered"
			if reg.Name != nil && strings.TrimSpace(*reg.Name) != "" {
				name = *reg.Name
			}
			registeredAt = &reg.CreatedAt
			icon = reg.Icon
			comment = reg.Comment
		}

		vendor := state.Vendor
		if vendor == "" {
			vendor = "Unknown"
		}

		view := model.ClientView{
			MAC:          mac,
			Name:         name,
			Vendor:       vendor,
			Icon:         icon,
			Comment:      comment,
			Status:       status,
			RegisteredAt: registeredAt,
			UpdatedAt:    time.Now().UTC(),
		}
		if hasState {
			view.Online = state.Online
			view.LastSeenAt = state.LastSeenAt
			view.ConnectedSinceAt = state.ConnectedSinceAt
			view.LastIP = state.LastIP
			view.LastSSID = state.LastSSID
			view.LastBand = state.LastBand
			view.LastRSSIdBm = state.LastRSSIdBm
			view.UpdatedAt = state.UpdatedAt
			if !state.FirstSeenAt.IsZero() {
				firstSeen := state.FirstSeenAt
				view.FirstSeenAt = &firstSeen
			}
		}
		result = append(result, view)
	}
	return result
}

func FindClient(items []model.ClientView, mac string) (model.ClientView, error) {
	for _, item := range items {
		if strings.EqualFold(item.MAC, mac) {
			return item, nil
		}
	}
	return model.ClientView{}, fmt.Errorf("%w: client %s", ErrNotFound, mac)
}
