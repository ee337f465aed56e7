package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/micro-ha/zyxel-ap/addon/internal/configsync"
	"github.com/micro-ha/zyxel-ap/addon/internal/poller"
	"github.com/micro-ha/zyxel-ap/addon/internal/service"
	"github.com/micro-ha/zyxel-ap/addon/internal/storage"
)

type API struct {
	service *service.Service
	poller  *poller.Poller
	config  *configsync.Manager
	logger  *slog.Logger
}

func New(svc *service.Service, p *poller.Poller, cfg *configsync.Manager, logger *slog.Logger) *API {
	return &API{service: svc, poller: p, config: cfg, logger: logger}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(stripIngressPrefix)
	r.Use(requestLogger(a.logger))

	r.Get("/healthz", a.health)
	r.Route("/api", func(api chi.Router) {
		api.Get("/status", a.status)
		api.Get("/clients", a.listClients)
		api.Get("/clients/{mac}", a.getClient)
		api.Post("/clients/{mac}/register", a.registerClient)
		api.Patch("/clients/{mac}", a.patchClient)
		api.Get("/radios", a.radios)
		api.Post("/radios/{slot}", a.setRadio)
		api.Post("/guest-ssid", a.setGuestSSID)
		api.Post("/reboot", a.reboot)
		api.Get("/polls", a.pollRuns)
		api.Post("/refresh", a.refresh)
	})
	return r
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	_, configured := a.config.Get()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "configured": configured})
}

func (a *API) status(w http.ResponseWriter, r *http.Request) {
	status, err := a.service.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "status_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *API) listClients(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.config.Get(); !ok {
		writeError(w, http.StatusConflict, "integration_not_configured", "Integration not configured")
		return
	}
	filter := service.ListFilter{Status: r.URL.Query().Get("status"), Query: r.URL.Query().Get("query")}
	if raw := strings.TrimSpace(r.URL.Query().Get("online")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_online_filter", "online must be true or false")
			return
		}
		filter.Online = &value
	}
	items, err := a.service.ListClients(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) getClient(w http.ResponseWriter, r *http.Request) {
	client, err := a.service.GetClient(r.Context(), chi.URLParam(r, "mac"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "Client not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "get_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (a *API) registerClient(w http.ResponseWriter, r *http.Request) {
	var payload service.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	if err := a.service.RegisterClient(r.Context(), chi.URLParam(r, "mac"), payload); err != nil {
		writeError(w, http.StatusInternalServerError, "register_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (a *API) patchClient(w http.ResponseWriter, r *http.Request) {
	var payload service.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	if err := a.service.PatchClient(r.Context(), chi.URLParam(r, "mac"), payload); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "Registered client not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "patch_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (a *API) radios(w http.ResponseWriter, _ *http.Request) {
	snapshot, _, ok := a.service.LatestSnapshot()
	if !ok {
		writeError(w, http.StatusConflict, "no_snapshot", "No poll has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": snapshot.Radios})
}

type radioPayload struct {
	Active *bool `json:"active"`
}

func (a *API) setRadio(w http.ResponseWriter, r *http.Request) {
	slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil || (slot != 1 && slot != 2) {
		writeError(w, http.StatusBadRequest, "invalid_slot", "slot must be 1 or 2")
		return
	}
	var payload radioPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Active == nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "active must be true or false")
		return
	}
	if err := a.service.SetRadio(r.Context(), slot, *payload.Active); err != nil {
		a.writeControlError(w, err, "radio_failed")
		return
	}
	a.poller.TriggerRefresh()
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

type guestPayload struct {
	On *bool `json:"on"`
}

func (a *API) setGuestSSID(w http.ResponseWriter, r *http.Request) {
	var payload guestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.On == nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "on must be true or false")
		return
	}
	if err := a.service.SetGuestSSID(r.Context(), *payload.On); err != nil {
		a.writeControlError(w, err, "guest_ssid_failed")
		return
	}
	a.poller.TriggerRefresh()
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (a *API) reboot(w http.ResponseWriter, r *http.Request) {
	if err := a.service.Reboot(r.Context()); err != nil {
		a.writeControlError(w, err, "reboot_failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (a *API) pollRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = value
	}
	runs, err := a.service.PollRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "polls_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": runs})
}

func (a *API) refresh(w http.ResponseWriter, _ *http.Request) {
	a.poller.TriggerRefresh()
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (a *API) writeControlError(w http.ResponseWriter, err error, code string) {
	if errors.Is(err, service.ErrIntegrationNotConfigured) {
		writeError(w, http.StatusConflict, "integration_not_configured", "Integration not configured")
		return
	}
	writeError(w, http.StatusBadGateway, code, err.Error())
}

func stripIngressPrefix(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := strings.TrimSpace(r.Header.Get("X-Ingress-Path"))
		if prefix != "" && strings.HasPrefix(r.URL.Path, prefix) {
			r.URL.Path = strings.TrimPrefix(r.URL.Path, prefix)
			if r.URL.Path == "" {
				r.URL.Path = "/"
			}
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

func RunServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", "err", err)
			return err
		}
		return nil
	}
}
