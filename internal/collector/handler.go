package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mm-osint/newswire/internal/logger"
	"github.com/mm-osint/newswire/internal/models"
	"github.com/mm-osint/newswire/internal/repository"
	"github.com/mm-osint/newswire/internal/telegram"
)

// ChannelResolver looks a username up at the message source. Registration
// needs it to learn the numeric channel id.
type ChannelResolver interface {
	ResolveChannel(ctx context.Context, username string) (*telegram.Channel, error)
}

// ChannelAdminStore is the channel persistence the admin API needs.
type ChannelAdminStore interface {
	Create(ctx context.Context, c *models.Channel) error
	GetAll(ctx context.Context) ([]models.Channel, error)
	GetByName(ctx context.Context, name string) (*models.Channel, error)
	SetActive(ctx context.Context, channelID int64, active bool) error
}

// RuleAdminStore is the rule persistence the admin API needs.
type RuleAdminStore interface {
	GetAll(ctx context.Context) ([]models.ExclusionRule, error)
	Create(ctx context.Context, rule *models.ExclusionRule) error
	SetActive(ctx context.Context, id int, active bool) error
}

// Handler exposes the collector's control API.
type Handler struct {
	manager  *RunManager
	channels ChannelAdminStore
	rules    RuleAdminStore
	resolver ChannelResolver
	log      *logger.Logger
}

func NewHandler(manager *RunManager, channels ChannelAdminStore, rules RuleAdminStore, resolver ChannelResolver, log *logger.Logger) *Handler {
	return &Handler{
		manager:  manager,
		channels: channels,
		rules:    rules,
		resolver: resolver,
		log:      log,
	}
}

// StartRun handles POST /api/runs.
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	var opts RunOptions
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}
	if err := opts.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := h.manager.Start(opts)
	if err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.log.Info().Str("run_id", run.ID.String()).Strs("channels", opts.Channels).Msg("api: run started")
	respondJSON(w, http.StatusAccepted, run.Snapshot())
}

// GetStatus handles GET /api/status. It reports the message source state
// plus the active run, falling back to the last finished one.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"telegram_status": h.manager.GetTelegramStatus(),
		"running":         false,
	}

	if run := h.manager.Current(); run != nil {
		resp["running"] = true
		resp["run"] = run.Snapshot()
	} else if last := h.manager.Last(); last != nil {
		resp["run"] = last.Snapshot()
	}

	respondJSON(w, http.StatusOK, resp)
}

// GetCurrentRun handles GET /api/runs/current.
func (h *Handler) GetCurrentRun(w http.ResponseWriter, r *http.Request) {
	run := h.manager.Current()
	if run == nil {
		respondError(w, http.StatusNotFound, "no run in progress")
		return
	}
	respondJSON(w, http.StatusOK, run.Snapshot())
}

// GetLastRun handles GET /api/runs/last.
func (h *Handler) GetLastRun(w http.ResponseWriter, r *http.Request) {
	run := h.manager.Last()
	if run == nil {
		respondError(w, http.StatusNotFound, "no finished run")
		return
	}
	respondJSON(w, http.StatusOK, run.Snapshot())
}

// CancelRun handles POST /api/runs/current/cancel.
func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	run := h.manager.Current()
	if run == nil {
		respondError(w, http.StatusNotFound, "no run in progress")
		return
	}

	h.manager.Cancel()
	h.log.Info().Str("run_id", run.ID.String()).Msg("api: run cancellation requested")
	respondJSON(w, http.StatusAccepted, map[string]string{
		"message": "cancellation requested",
		"run_id":  run.ID.String(),
	})
}

// ListChannels handles GET /api/channels.
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.channels.GetAll(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("api: failed to list channels")
		respondError(w, http.StatusInternalServerError, "failed to list channels")
		return
	}
	if channels == nil {
		channels = []models.Channel{}
	}
	respondJSON(w, http.StatusOK, channels)
}

// CreateChannel handles POST /api/channels. The username is resolved at the
// message source first; registration fails if it does not exist there.
func (h *Handler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	var req CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resolved, err := h.resolver.ResolveChannel(r.Context(), req.Name)
	if err != nil {
		h.log.Warn().Err(err).Str("channel", req.Name).Msg("api: channel resolution failed")
		respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("cannot resolve channel %s: %v", req.Name, err))
		return
	}

	ch := &models.Channel{
		TelegramChannelID: resolved.ID,
		Name:              req.Name,
		DisplayName:       req.DisplayName,
		Category:          req.Category,
		IsActive:          true,
	}
	if ch.DisplayName == nil && resolved.Title != "" {
		title := resolved.Title
		ch.DisplayName = &title
	}

	if err := h.channels.Create(r.Context(), ch); err != nil {
		h.log.Error().Err(err).Str("channel", req.Name).Msg("api: failed to create channel")
		respondError(w, http.StatusInternalServerError, "failed to create channel")
		return
	}

	h.log.Info().Str("channel", ch.Name).Int64("channel_id", ch.TelegramChannelID).Msg("api: channel registered")
	respondJSON(w, http.StatusCreated, ch)
}

// SetChannelActive handles PUT /api/channels/{name}/active.
func (h *Handler) SetChannelActive(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ch, err := h.channels.GetByName(r.Context(), name)
	if err != nil {
		h.log.Error().Err(err).Str("channel", name).Msg("api: failed to load channel")
		respondError(w, http.StatusInternalServerError, "failed to load channel")
		return
	}
	if ch == nil {
		respondError(w, http.StatusNotFound, "channel not registered: "+name)
		return
	}

	if err := h.channels.SetActive(r.Context(), ch.TelegramChannelID, req.IsActive); err != nil {
		h.log.Error().Err(err).Str("channel", name).Msg("api: failed to update channel")
		respondError(w, http.StatusInternalServerError, "failed to update channel")
		return
	}

	ch.IsActive = req.IsActive
	respondJSON(w, http.StatusOK, ch)
}

// ListRules handles GET /api/rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.GetAll(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("api: failed to list rules")
		respondError(w, http.StatusInternalServerError, "failed to list rules")
		return
	}
	if rules == nil {
		rules = []models.ExclusionRule{}
	}
	respondJSON(w, http.StatusOK, rules)
}

// CreateRule handles POST /api/rules.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rule := &models.ExclusionRule{
		RuleType:        models.RuleType(req.RuleType),
		Pattern:         req.Pattern,
		IsCaseSensitive: req.IsCaseSensitive,
		IsActive:        true,
		Description:     req.Description,
	}
	if err := h.rules.Create(r.Context(), rule); err != nil {
		h.log.Error().Err(err).Msg("api: failed to create rule")
		respondError(w, http.StatusInternalServerError, "failed to create rule")
		return
	}

	respondJSON(w, http.StatusCreated, rule)
}

// SetRuleActive handles PUT /api/rules/{id}/active.
func (h *Handler) SetRuleActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.rules.SetActive(r.Context(), id, req.IsActive); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "rule not found")
			return
		}
		h.log.Error().Err(err).Int("rule_id", id).Msg("api: failed to update rule")
		respondError(w, http.StatusInternalServerError, "failed to update rule")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"id": id, "is_active": req.IsActive})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Get().Error().Err(err).Msg("api: failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
