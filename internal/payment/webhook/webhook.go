package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"courseshop-be/internal/logger"
	"courseshop-be/internal/metrics"
	"courseshop-be/internal/order"
	"courseshop-be/internal/payment"

	"go.uber.org/zap"
)

// AckStatus is the answer returned to the gateway for one delivery.
type AckStatus int

const (
	// AckOK covers handled events and benign no-ops.
	AckOK AckStatus = iota
	// AckBadRequest is non-retryable: bad payload, missing metadata, unknown order.
	AckBadRequest
	// AckServerError asks the gateway to redeliver.
	AckServerError
)

func (a AckStatus) HTTPStatus() int {
	switch a {
	case AckOK:
		return http.StatusOK
	case AckBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

const maxPayloadBytes = 1 << 20

// Payload is the notification body sent by the gateway.
type Payload struct {
	Type   string        `json:"type"`
	Object PayloadObject `json:"object"`
}

type PayloadObject struct {
	ID       string                   `json:"id"`
	Status   string                   `json:"status"`
	Metadata map[string]MetadataValue `json:"metadata"`
}

// MetadataValue holds a metadata entry sent either as a string or as a bare
// JSON number. Values of any other kind decode to the empty string.
type MetadataValue string

func (v *MetadataValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = MetadataValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*v = MetadataValue(n.String())
		return nil
	}
	*v = ""
	return nil
}

func (p PayloadObject) metadataID(key string) (int64, bool) {
	id, err := strconv.ParseInt(string(p.Metadata[key]), 10, 64)
	return id, err == nil && id > 0
}

var errInvalidPayload = errors.New("invalid webhook payload")

type Reconciler interface {
	HandleNotification(ctx context.Context, raw []byte) AckStatus
}

type Handler struct {
	OrderSvc order.Service
	Stats    *metrics.Payments
}

var _ Reconciler = (*Handler)(nil)

func NewWebhookHandler(orderSvc order.Service) *Handler {
	return &Handler{OrderSvc: orderSvc, Stats: &metrics.Payments{}}
}

// parseEvent validates the payload and extracts the correlation metadata.
func parseEvent(raw []byte) (order.PaymentEvent, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return order.PaymentEvent{}, fmt.Errorf("%w: %v", errInvalidPayload, err)
	}

	orderID, ok := p.Object.metadataID(payment.MetadataOrderID)
	if !ok {
		return order.PaymentEvent{}, fmt.Errorf("%w: missing order_id", errInvalidPayload)
	}
	userID, ok := p.Object.metadataID(payment.MetadataUserID)
	if !ok {
		return order.PaymentEvent{}, fmt.Errorf("%w: missing user_id", errInvalidPayload)
	}

	return order.PaymentEvent{
		Type:      p.Type,
		PaymentID: p.Object.ID,
		Status:    p.Object.Status,
		OrderID:   orderID,
		UserID:    userID,
	}, nil
}

func (h *Handler) HandleNotification(ctx context.Context, raw []byte) AckStatus {
	ack := h.handle(ctx, raw)
	h.record(ack)
	return ack
}

func (h *Handler) handle(ctx context.Context, raw []byte) AckStatus {
	log := logger.FromCtx(ctx)
	timer := metrics.StartTimer()

	ev, err := parseEvent(raw)
	if err != nil {
		log.Error("rejecting webhook", zap.Error(err))
		return AckBadRequest
	}

	log = log.With(
		zap.String("event", ev.Type),
		zap.String("payment_id", ev.PaymentID),
		zap.Int64("order_id", ev.OrderID),
		zap.Int64("user_id", ev.UserID),
	)
	log.Info("processing payment webhook")

	_, changed, err := h.OrderSvc.ApplyPaymentEvent(ctx, ev)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			log.Error("webhook order not found")
			return AckBadRequest
		}
		log.Error("webhook processing failed", zap.Error(err))
		return AckServerError
	}

	log.Info("payment webhook handled",
		zap.Bool("changed", changed),
		zap.Duration("duration", timer.Duration()),
	)
	return AckOK
}

func (h *Handler) record(ack AckStatus) {
	if h.Stats == nil {
		return
	}
	switch ack {
	case AckOK:
		h.Stats.WebhookOK.Inc()
	case AckBadRequest:
		h.Stats.WebhookRejected.Inc()
	default:
		h.Stats.WebhookFailed.Inc()
	}
}

// PaymentWebhookHandler is the HTTP entry point for gateway notifications.
func (h *Handler) PaymentWebhookHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromCtx(r.Context())

	if r.Method != http.MethodPost {
		log.Warn("webhook method not allowed", zap.String("method", r.Method))
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	log.Info("payment webhook received",
		zap.String("ip", r.RemoteAddr),
		zap.String("user_agent", r.UserAgent()),
	)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	ack := h.HandleNotification(r.Context(), body)
	if ack == AckBadRequest {
		http.Error(w, "invalid notification", ack.HTTPStatus())
		return
	}
	w.WriteHeader(ack.HTTPStatus())
}
