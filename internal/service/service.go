package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/micro-ha/zyxel-ap/addon/internal/aggregator"
	"github.com/micro-ha/zyxel-ap/addon/internal/configsync"
	"github.com/micro-ha/zyxel-ap/addon/internal/model"
	"github.com/micro-ha/zyxel-ap/addon/internal/storage"
	"github.com/micro-ha/zyxel-ap/addon/internal/zyxel"
)

var (
	ErrIntegrationNotConfigured = errors.New("integration not configured")
	ErrNoSnapshot               = errors.New("no snapshot available yet")
)

// APClient is the subset of the SSH client the service drives.
type APClient interface {
	FetchSnapshot(ctx context.Context, cfg model.APConfig) (*zyxel.Snapshot, error)
	SetRadio(ctx context.Context, cfg model.APConfig, slot int, active bool) error
	SetGuestSchedule(ctx context.Context, cfg model.APConfig, alwaysOn bool) error
	Reboot(ctx context.Context, cfg model.APConfig) error
}

type Service struct {
	repo       *storage.Repository
	aggregator *aggregator.Aggregator
	ap         APClient
	config     *configsync.Manager
	logger     *slog.Logger

	mu         sync.RWMutex
	latest     *zyxel.Snapshot
	counts     model.ClientCounts
	lastPollAt time.Time
	lastErr    string
}

func New(repo *storage.Repository, agg *aggregator.Aggregator, client APClient, cfg *configsync.Manager, logger *slog.Logger) *Service {
	return &Service{repo: repo, aggregator: agg, ap: client, config: cfg, logger: logger}
}

type ListFilter struct {
	Status string
	Online *bool
	Query  string
}

// Status is the API view of the last poll cycle.
type Status struct {
	Configured  bool               `json:"configured"`
	LastPollAt  *time.Time         `json:"last_poll_at,omitempty"`
	LastError   string             `json:"last_error,omitempty"`
	Snapshot    *zyxel.Snapshot    `json:"snapshot,omitempty"`
	Counts      model.ClientCounts `json:"counts"`
	GuestSSIDOn *bool              `json:"guest_ssid_on,omitempty"`
}

func (s *Service) PollOnce(ctx context.Context) error {
	cfg, ok := s.config.Get()
	if !ok {
		return ErrIntegrationNotConfigured
	}

	startedAt := time.Now().UTC()
	snapshot, err := s.ap.FetchSnapshot(ctx, cfg)
	if err != nil {
		s.recordPoll(nil, model.ClientCounts{}, err)
		s.logPollRun(ctx, startedAt, 0, 0, err)
		return err
	}
	observed := s.aggregator.Aggregate(snapshot)
	if err := s.persistObservations(ctx, observed); err != nil {
		s.recordPoll(snapshot, aggregator.Counts(observed), err)
		s.logPollRun(ctx, startedAt, len(snapshot.Stations), len(snapshot.Missing), err)
		return err
	}
	s.recordPoll(snapshot, aggregator.Counts(observed), nil)
	s.logPollRun(ctx, startedAt, len(snapshot.Stations), len(snapshot.Missing), nil)
	return nil
}

func (s *Service) logPollRun(ctx context.Context, startedAt time.Time, stations, missing int, pollErr error) {
	run := model.PollRun{
		StartedAt:    startedAt,
		FinishedAt:   time.Now().UTC(),
		OK:           pollErr == nil,
		StationCount: stations,
		MissingCount: missing,
	}
	if pollErr != nil {
		run.Error = pollErr.Error()
	}
	if err := s.repo.RecordPollRun(ctx, run); err != nil {
		s.logger.Warn("poll run log write failed", "err", err)
	}
}

// PollRuns returns the newest poll cycle outcomes, most recent first.
func (s *Service) PollRuns(ctx context.Context, limit int) ([]model.PollRun, error) {
	return s.repo.RecentPollRuns(ctx, limit)
}

func (s *Service) recordPoll(snapshot *zyxel.Snapshot, counts model.ClientCounts, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPollAt = time.Now().UTC()
	if err != nil {
		s.lastErr = err.Error()
		return
	}
	s.lastErr = ""
	s.latest = snapshot
	s.counts = counts
}

// LatestSnapshot returns the result of the most recent successful poll.
func (s *Service) LatestSnapshot() (*zyxel.Snapshot, model.ClientCounts, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, model.ClientCounts{}, false
	}
	return s.latest, s.counts, true
}

func (s *Service) Status(ctx context.Context) (Status, error) {
	_, configured := s.config.Get()

	s.mu.RLock()
	status := Status{
		Configured: configured,
		LastError:  s.lastErr,
		Snapshot:   s.latest,
		Counts:     s.counts,
	}
	if !s.lastPollAt.IsZero() {
		at := s.lastPollAt
		status.LastPollAt = &at
	}
	s.mu.RUnlock()

	if on, ok, err := s.repo.SwitchState(ctx, storage.SwitchGuestSSID); err != nil {
		return Status{}, err
	} else if ok {
		status.GuestSSIDOn = &on
	}
	return status, nil
}

// persistObservations folds one poll cycle into the client state table.
// Stations that disappeared go offline; unregistered clients that have
// gone offline are dropped from the table so only registered clients
// accumulate history.
func (s *Service) persistObservations(ctx context.Context, observed map[string]model.ClientObservation) error {
	prevStates, err := s.repo.LoadAllStates(ctx)
	if err != nil {
		return err
	}
	registered, err := s.repo.ListRegistered(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	allMACs := map[string]struct{}{}
	for mac := range prevStates {
		allMACs[mac] = struct{}{}
	}
	for mac := range observed {
		allMACs[mac] = struct{}{}
	}

	states := make([]model.ClientState, 0, len(allMACs))
	var gone []string

	for mac := range allMACs {
		prev, hadPrev := prevStates[mac]
		obs, hasObs := observed[mac]

		next := model.ClientState{MAC: mac, FirstSeenAt: now, UpdatedAt: now}
		if hadPrev {
			next = prev
			next.UpdatedAt = now
		}

		if hasObs {
			next.Online = true
			seen := obs.ObservedAt
			next.LastSeenAt = &seen
			if obs.IP != "" {
				ip := obs.IP
				next.LastIP = &ip
			}
			if obs.SSID != "" {
				ssid := obs.SSID
				next.LastSSID = &ssid
			}
			if obs.Band != "" {
				band := obs.Band
				next.LastBand = &band
			}
			if obs.RSSIdBm != 0 {
				rssi := obs.RSSIdBm
				next.LastRSSIdBm = &rssi
			}
			next.Vendor = obs.Vendor
			next.GeneratedName = obs.Generated
			switch {
			case obs.ConnectedSince != nil:
				next.ConnectedSinceAt = obs.ConnectedSince
			case !hadPrev || !prev.Online:
				started := now
				next.ConnectedSinceAt = &started
			}
		} else {
			if _, isRegistered := registered[mac]; !isRegistered {
				gone = append(gone, mac)
				continue
			}
			next.Online = false
			next.ConnectedSinceAt = nil
		}
		states = append(states, next)
	}

	if err := s.repo.UpsertStates(ctx, states); err != nil {
		return err
	}
	if len(gone) > 0 {
		if err := s.repo.DeleteStates(ctx, gone); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) ListClients(ctx context.Context, filter ListFilter) ([]model.ClientView, error) {
	states, err := s.repo.LoadAllStates(ctx)
	if err != nil {
		return nil, err
	}
	registered, err := s.repo.ListRegistered(ctx)
	if err != nil {
		return nil, err
	}

	items := storage.MergeClientViews(states, registered)
	filtered := filterViews(items, filter)
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Online != filtered[j].Online {
			return filtered[i].Online
		}
		if filtered[i].Status != filtered[j].Status {
			return filtered[i].Status < filtered[j].Status
		}
		return filtered[i].Name < filtered[j].Name
	})
	return filtered, nil
}

func (s *Service) GetClient(ctx context.Context, mac string) (model.ClientView, error) {
	items, err := s.ListClients(ctx, ListFilter{})
	if err != nil {
		return model.ClientView{}, err
	}
	return storage.FindClient(items, normalizeMAC(mac))
}

type RegisterInput struct {
	Name    *string `json:"name"`
	Icon    *string `json:"icon"`
	Comment *string `json:"comment"`
}

func (s *Service) RegisterClient(ctx context.Context, mac string, in RegisterInput) error {
	return s.repo.UpsertRegistered(ctx, normalizeMAC(mac), in.Name, in.Icon, in.Comment)
}

func (s *Service) PatchClient(ctx context.Context, mac string, in RegisterInput) error {
	return s.repo.PatchRegistered(ctx, normalizeMAC(mac), in.Name, in.Icon, in.Comment)
}

// SetRadio turns one radio slot on or off.
func (s *Service) SetRadio(ctx context.Context, slot int, active bool) error {
	cfg, ok := s.config.Get()
	if !ok {
		return ErrIntegrationNotConfigured
	}
	if err := s.ap.SetRadio(ctx, cfg, slot, active); err != nil {
		return err
	}
	s.logger.Info("radio toggled", "slot", slot, "active", active)
	return nil
}

// SetGuestSSID toggles the guest SSID schedule. The AP CLI does not
// report the schedule state back, so the last commanded value is
// persisted and served as the switch state.
func (s *Service) SetGuestSSID(ctx context.Context, on bool) error {
	cfg, ok := s.config.Get()
	if !ok {
		return ErrIntegrationNotConfigured
	}
	if err := s.ap.SetGuestSchedule(ctx, cfg, on); err != nil {
		return err
	}
	if err := s.repo.SetSwitchState(ctx, storage.SwitchGuestSSID, on); err != nil {
		return err
	}
	s.logger.Info("guest ssid toggled", "on", on)
	return nil
}

// GuestSSIDState returns the last commanded guest SSID state, if any
// toggle has been issued since the database was created.
func (s *Service) GuestSSIDState(ctx context.Context) (on bool, known bool, err error) {
	return s.repo.SwitchState(ctx, storage.SwitchGuestSSID)
}

func (s *Service) Reboot(ctx context.Context) error {
	cfg, ok := s.config.Get()
	if !ok {
		return ErrIntegrationNotConfigured
	}
	if err := s.ap.Reboot(ctx, cfg); err != nil {
		return err
	}
	s.logger.Info("reboot issued", "host", cfg.Host)
	return nil
}

func filterViews(items []model.ClientView, filter ListFilter) []model.ClientView {
	status := strings.ToLower(strings.TrimSpace(filter.Status))
	query := strings.ToLower(strings.TrimSpace(filter.Query))

	result := make([]model.ClientView, 0, len(items))
	for _, item := range items {
		if status == "new" && item.Status != "new" {
			continue
		}
		if status == "registered" && item.Status != "registered" {
			continue
		}
		if filter.Online != nil && item.Online != *filter.Online {
			continue
		}
		if query != "" && !matchesQuery(item, query) {
			continue
		}
		result = append(result, item)
	}
	return result
}

func matchesQuery(item model.ClientView, query string) bool {
	if strings.Contains(strings.ToLower(item.Name), query) {
		return true
	}
	if strings.Contains(strings.ToLower(item.MAC), query) {
		return true
	}
	if strings.Contains(strings.ToLower(item.Vendor), query) {
		return true
	}
	if item.LastIP != nil && strings.Contains(strings.ToLower(*item.LastIP), query) {
		return true
	}
	return false
}

func normalizeMAC(mac string) string {
	return strings.TrimSpace(strings.ToUpper(strings.ReplaceAll(mac, "-", ":")))
}
