package settlement

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/aperture-prints/backend-prints/internal/common"
	"github.com/aperture-prints/backend-prints/internal/obs"
	"github.com/aperture-prints/backend-prints/internal/payment"
)

// Webhook receives payment provider callbacks. Signature verification is the
// only transport-level rejection; everything after it is acknowledged with a
// generic body so no business state leaks to the provider.
type Webhook struct {
	Gateway    payment.Gateway
	Reconciler *Reconciler
	Replay     *redis.Client
	ReplayTTL  time.Duration
	Logger     zerolog.Logger
}

// Handle verifies and processes one provider event.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Gateway == nil || h.Reconciler == nil {
		common.JSONError(w, http.StatusInternalServerError, "WEBHOOK_NOT_CONFIGURED", "webhook unavailable", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}

	event, err := h.Gateway.VerifyEvent(r, body)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			// Security event: reject outright so the provider retries and the
			// attempt is on record. No state was touched.
			h.Logger.Warn().
				Str("remote_addr", common.ClientIP(r)).
				Msg("webhook_signature_rejected")
			h.count("signature_rejected")
			common.JSONError(w, http.StatusBadRequest, "INVALID_SIGNATURE", "signature verification failed", nil)
			return
		}
		h.Logger.Error().Err(err).Msg("webhook_event_malformed")
		h.count("malformed")
		common.JSONError(w, http.StatusBadRequest, "WEBHOOK_INVALID", "event could not be parsed", nil)
		return
	}

	replayKey := ""
	if h.Replay != nil && h.ReplayTTL > 0 {
		key := fmt.Sprintf("wh:payment:%s", common.Sha256Hex(string(body)))
		replayKey = key
		fresh, err := h.Replay.SetNX(r.Context(), key, "1", h.ReplayTTL).Result()
		if err == nil && !fresh {
			// Exact redelivery; the reconciler is idempotent anyway, so skip
			// the work and acknowledge.
			h.Logger.Info().Str("event_id", event.ID).Msg("webhook_replay_skipped")
			h.count("replay")
			ack(w)
			return
		}
		if err != nil {
			h.Logger.Error().Err(err).Msg("webhook_replay_store_error")
		}
	}

	if err := h.Reconciler.Process(r.Context(), event); err != nil {
		// Processing failures rely on the provider's own redelivery; the
		// response stays a generic acknowledgement. Release the replay key so
		// the redelivered event is actually reprocessed.
		if replayKey != "" {
			if delErr := h.Replay.Del(r.Context(), replayKey).Err(); delErr != nil {
				h.Logger.Error().Err(delErr).Msg("webhook_replay_release_failed")
			}
		}
		h.Logger.Error().Err(err).
			Str("event_id", event.ID).
			Str("event_type", event.Type).
			Msg("webhook_processing_failed")
		h.count("error")
		ack(w)
		return
	}
	h.count("ok")
	ack(w)
}

func (h Webhook) count(result string) {
	if obs.PaymentWebhookTotal != nil {
		obs.PaymentWebhookTotal.WithLabelValues("stripe", result).Inc()
	}
}

func ack(w http.ResponseWriter) {
	common.JSON(w, http.StatusOK, map[string]any{"received": true})
}
