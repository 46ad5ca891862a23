package billing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/maen-al-khraisha/mentorpath-sub001/core"
	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/entitlement"
	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/plans"
	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/subscription"
	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/usage"
)

const maxBodyBytes = 1 << 20

type handlers struct {
	deps Deps
}

// webhook receives billing provider callbacks. The response is 200 for
// every delivery that passes signature verification, even when the handler
// fails internally: bugs here are a monitoring concern, and surfacing them
// as errors would only trigger an uncontrolled provider retry storm.
func (h *handlers) webhook(w http.ResponseWriter, r *http.Request) {
	if h.deps.WebhookSecret == "" {
		core.JSONError(w, core.ErrInternalServerError, "webhook secret is not configured")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		core.JSONError(w, core.ErrBadRequest, "failed to read request body")
		return
	}

	timestamp, _ := strconv.ParseInt(r.Header.Get(subscription.HeaderWebhookTimestamp), 10, 64)
	maxAge := h.deps.SignatureMaxAge
	if maxAge == 0 {
		maxAge = subscription.DefaultSignatureMaxAge
	}
	if err := subscription.VerifySignature(
		h.deps.WebhookSecret,
		payload,
		r.Header.Get(subscription.HeaderWebhookSignature),
		timestamp,
		maxAge,
	); err != nil {
		h.deps.Log.WarnContext(r.Context(), "webhook signature rejected", slog.Any("error", err))
		core.JSONError(w, core.NewHTTPError(http.StatusUnauthorized, "invalid_signature"), "")
		return
	}

	event, err := subscription.ParseEvent(payload)
	if err != nil {
		// Unknown or malformed events are acknowledged: redelivery cannot
		// fix them, and the payload came from the verified provider.
		h.deps.Log.ErrorContext(r.Context(), "unparseable webhook event", slog.Any("error", err))
		core.JSON(w, http.StatusOK, nil)
		return
	}

	if err := h.deps.Reconciler.Handle(r.Context(), event); err != nil {
		h.deps.Log.ErrorContext(r.Context(), "webhook handler failed",
			slog.String("event_type", event.Meta().Type), slog.Any("error", err))
	}
	core.JSON(w, http.StatusOK, nil)
}

func (h *handlers) usageSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userIDFromQuery(w, r)
	if !ok {
		return
	}

	info, err := h.deps.Gate.Usage(r.Context(), userID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	core.JSON(w, http.StatusOK, info)
}

// usageRecord increments a counter after the client's gated write
// succeeded. Counting happens post-write so failed writes are never billed
// against the user.
func (h *handlers) usageRecord(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID  string `json:"user_id"`
		Feature string `json:"feature"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	userID, ok := h.parseUserID(w, req.UserID)
	if !ok {
		return
	}
	feature := plans.Feature(req.Feature)
	if !plans.Known(feature) {
		core.JSONError(w, core.ErrBadRequest, "feature must be one of tasks, notes, habits, events, sheets")
		return
	}

	if err := h.deps.UsageStore.Increment(r.Context(), userID, feature); err != nil {
		h.deps.Log.ErrorContext(r.Context(), "usage increment failed",
			slog.String("user_id", userID.String()), slog.String("feature", req.Feature), slog.Any("error", err))
		core.JSONError(w, core.ErrInternalServerError, "failed to record usage, retry the request")
		return
	}
	core.JSON(w, http.StatusOK, nil)
}

func (h *handlers) usageReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"user_id"`
		MonthKey string `json:"month_key"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	userID, ok := h.parseUserID(w, req.UserID)
	if !ok {
		return
	}
	monthKey := req.MonthKey
	if monthKey == "" {
		monthKey = usage.CurrentMonthKey()
	}

	record, err := h.deps.UsageStore.Reset(r.Context(), userID, monthKey)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	core.JSON(w, http.StatusOK, record)
}

func (h *handlers) usageSync(w http.ResponseWriter, r *http.Request) {
	if h.deps.Syncer == nil {
		core.JSONError(w, core.ErrInternalServerError, "usage sync is not configured")
		return
	}

	var req struct {
		UserID string `json:"user_id"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	userID, ok := h.parseUserID(w, req.UserID)
	if !ok {
		return
	}

	record, err := h.deps.Syncer.Sync(r.Context(), userID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	core.JSON(w, http.StatusOK, record)
}

// entitlementCheck reports whether the user may perform an action once
// more, with a machine-readable denial reason so the UI can distinguish
// "you hit your plan limit" (upgrade prompt) from a generic failure.
func (h *handlers) entitlementCheck(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userIDFromQuery(w, r)
	if !ok {
		return
	}
	action := r.URL.Query().Get("action")
	if action == "" {
		core.JSONError(w, core.ErrBadRequest, "action is required")
		return
	}

	type checkResponse struct {
		Allowed bool   `json:"allowed"`
		Reason  string `json:"reason,omitempty"`
	}

	err := h.deps.Gate.CanPerform(r.Context(), userID, plans.Feature(action))
	switch {
	case err == nil:
		core.JSON(w, http.StatusOK, checkResponse{Allowed: true})
	case errors.Is(err, entitlement.ErrLimitExceeded):
		core.JSON(w, http.StatusOK, checkResponse{Allowed: false, Reason: "limit_reached"})
	case errors.Is(err, entitlement.ErrUnknownFeature):
		core.JSON(w, http.StatusOK, checkResponse{Allowed: false, Reason: "unknown_action"})
	case errors.Is(err, entitlement.ErrNoSubscription):
		core.JSON(w, http.StatusOK, checkResponse{Allowed: false, Reason: "no_subscription"})
	default:
		h.respondErr(w, r, err)
	}
}

func (h *handlers) startTrial(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Email  string `json:"email"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	userID, ok := h.parseUserID(w, req.UserID)
	if !ok {
		return
	}

	record, err := h.deps.Subs.StartTrial(r.Context(), userID, req.Email)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	core.JSON(w, http.StatusCreated, record)
}

func (h *handlers) currentSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userIDFromQuery(w, r)
	if !ok {
		return
	}

	record, err := h.deps.Subs.Current(r.Context(), userID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	core.JSON(w, http.StatusOK, record)
}

func (h *handlers) checkout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID     string `json:"user_id"`
		PriceID    string `json:"price_id"`
		SuccessURL string `json:"success_url"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	userID, ok := h.parseUserID(w, req.UserID)
	if !ok {
		return
	}
	if req.PriceID == "" {
		core.JSONError(w, core.ErrBadRequest, "price_id is required")
		return
	}

	link, err := h.deps.Subs.Checkout(r.Context(), userID, req.PriceID, req.SuccessURL)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	core.JSON(w, http.StatusOK, link)
}

func (h *handlers) portal(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userIDFromQuery(w, r)
	if !ok {
		return
	}

	link, err := h.deps.Subs.PortalLink(r.Context(), userID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	core.JSON(w, http.StatusOK, link)
}

func (h *handlers) cancel(w http.ResponseWriter, r *http.Request) {
	h.subscriptionAction(w, r, h.deps.Subs.Cancel)
}

func (h *handlers) resume(w http.ResponseWriter, r *http.Request) {
	h.subscriptionAction(w, r, h.deps.Subs.Resume)
}

func (h *handlers) subscriptionAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, userID uuid.UUID) error) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	userID, ok := h.parseUserID(w, req.UserID)
	if !ok {
		return
	}

	if err := action(r.Context(), userID); err != nil {
		h.respondErr(w, r, err)
		return
	}
	core.JSON(w, http.StatusOK, nil)
}

func (h *handlers) signUpload(w http.ResponseWriter, r *http.Request) {
	if h.deps.Uploads == nil {
		core.JSONError(w, core.ErrInternalServerError, "object storage is not configured")
		return
	}

	var req struct {
		UserID      string `json:"user_id"`
		Filename    string `json:"filename"`
		ContentType string `json:"content_type"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	userID, ok := h.parseUserID(w, req.UserID)
	if !ok {
		return
	}
	if req.Filename == "" {
		core.JSONError(w, core.ErrBadRequest, "filename is required")
		return
	}

	signed, err := h.deps.Uploads.SignUpload(r.Context(), userID.String(), req.Filename, req.ContentType)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	core.JSON(w, http.StatusOK, signed)
}

// decode reads a JSON body into dst, responding 400 on failure.
func (h *handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		core.JSONError(w, core.ErrBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (h *handlers) parseUserID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	if raw == "" {
		core.JSONError(w, core.ErrBadRequest, "user_id is required")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		core.JSONError(w, core.ErrBadRequest, "user_id must be a valid UUID")
		return uuid.Nil, false
	}
	return userID, true
}

func (h *handlers) userIDFromQuery(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	return h.parseUserID(w, r.URL.Query().Get("user_id"))
}

// respondErr maps domain errors onto the HTTP error taxonomy. Upstream
// provider failures surface as bad gateway with the provider message
// attached for diagnostics; everything unexpected is a generic 500.
func (h *handlers) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, subscription.ErrNotFound):
		core.JSONError(w, core.ErrNotFound, "no subscription record for user")
	case errors.Is(err, subscription.ErrAlreadyExists):
		core.JSONError(w, core.ErrConflict, "subscription already exists")
	case errors.Is(err, subscription.ErrNoBillingSubscription):
		core.JSONError(w, core.ErrBadRequest, "no billing subscription attached to this account")
	case errors.Is(err, subscription.ErrProviderError):
		h.deps.Log.ErrorContext(r.Context(), "billing provider call failed", slog.Any("error", err))
		core.JSONError(w, core.ErrBadGateway, err.Error())
	case errors.Is(err, entitlement.ErrLimitExceeded):
		core.JSONError(w, core.ErrPaymentRequired, "you hit your plan limit, upgrade to continue")
	case errors.Is(err, entitlement.ErrNoSubscription):
		core.JSONError(w, core.ErrNotFound, "no subscription record for user")
	case errors.Is(err, usage.ErrUnknownFeature):
		core.JSONError(w, core.ErrBadRequest, "unknown feature")
	default:
		h.deps.Log.ErrorContext(r.Context(), "request failed", slog.Any("error", err))
		core.JSONError(w, core.ErrInternalServerError, "something went wrong, try again")
	}
}
