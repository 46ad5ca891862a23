// Package billing exposes the metering and subscription HTTP surface:
// entitlement checks, usage counters and their admin operations, checkout
// and portal links, the billing provider webhook, and upload URL signing.
package billing

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/entitlement"
	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/subscription"
	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/uploads"
	"github.com/maen-al-khraisha/mentorpath-sub001/pkg/usage"
)

// Deps carries the services the billing module mounts. Gate, usage store
// and reconciler are required; the rest degrade gracefully when absent
// (the corresponding endpoints report a configuration error).
type Deps struct {
	Gate       *entitlement.Gate
	Subs       *subscription.Service
	Reconciler *subscription.Reconciler
	UsageStore usage.Store
	Syncer     *usage.Syncer
	Uploads    *uploads.Signer

	// WebhookSecret verifies inbound webhook signatures. Empty means the
	// webhook endpoint refuses all deliveries with a configuration error.
	WebhookSecret string
	// SignatureMaxAge bounds webhook timestamp staleness; zero uses the
	// package default.
	SignatureMaxAge time.Duration

	Log *slog.Logger
}

// Router mounts the billing module.
func Router(deps Deps) chi.Router {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	h := &handlers{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/webhook", h.webhook)

	r.Route("/usage", func(r chi.Router) {
		r.Get("/", h.usageSummary)
		r.Post("/record", h.usageRecord)
		r.Post("/reset", h.usageReset)
		r.Post("/sync", h.usageSync)
	})

	r.Get("/entitlements/check", h.entitlementCheck)

	r.Route("/subscriptions", func(r chi.Router) {
		r.Post("/trial", h.startTrial)
		r.Get("/", h.currentSubscription)
		r.Post("/checkout", h.checkout)
		r.Get("/portal", h.portal)
		r.Post("/cancel", h.cancel)
		r.Post("/resume", h.resume)
	})

	r.Post("/uploads/sign", h.signUpload)

	return r
}
