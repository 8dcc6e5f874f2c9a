package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"courseshop-be/internal/logger"

	"go.uber.org/zap"
)

const yookassaBaseURL = "https://api.yookassa.ru/v3"

// ErrGateway wraps every non-success answer from the provider.
var ErrGateway = errors.New("payment gateway error")

type yookassaGateway struct {
	shopID     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

// ----------------- Constructor -----------------

func NewYooKassaGateway(shopID, secretKey string) Gateway {
	if shopID == "" || secretKey == "" {
		logger.L().Warn("YooKassa credentials are empty")
	}

	return &yookassaGateway{
		shopID:    shopID,
		secretKey: secretKey,
		baseURL:   yookassaBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ----------------- CreatePayment -----------------

func (y *yookassaGateway) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*Session, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("order_id", req.Metadata[MetadataOrderID]),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("currency", req.Currency),
	)

	if req.IdempotencyKey == "" {
		return nil, errors.New("idempotency key is required")
	}

	body := ykCreatePaymentRequest{
		Amount:  ykAmount{Value: req.Amount.StringFixed(2), Currency: req.Currency},
		Capture: true,
		Confirmation: ykConfirmation{
			Type:      "redirect",
			ReturnURL: req.ReturnURL,
		},
		Description: req.Description,
		Metadata:    req.Metadata,
	}

	if req.Receipt != nil {
		receipt := &ykReceipt{Customer: ykCustomer{Email: req.Receipt.CustomerEmail}}
		for _, it := range req.Receipt.Items {
			receipt.Items = append(receipt.Items, ykReceiptItem{
				Description: it.Description,
				Quantity:    strconv.Itoa(it.Quantity),
				Amount:      ykAmount{Value: it.Amount.StringFixed(2), Currency: req.Currency},
				VATCode:     it.VATCode,
			})
		}
		body.Receipt = receipt
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		log.Error("Failed to marshal payment request", zap.Error(err))
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, y.baseURL+"/payments", bytes.NewReader(jsonBody))
	if err != nil {
		log.Error("Failed creating request", zap.Error(err))
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotence-Key", req.IdempotencyKey)

	log.Info("Sending payment request to YooKassa")

	var res ykPayment
	if err := y.do(httpReq, &res); err != nil {
		log.Error("YooKassa create payment failed", zap.Error(err))
		return nil, err
	}

	if res.Confirmation == nil || res.Confirmation.ConfirmationURL == "" {
		log.Error("YooKassa response has no confirmation url", zap.String("payment_id", res.ID))
		return nil, fmt.Errorf("%w: missing confirmation url", ErrGateway)
	}

	log.Info("YooKassa payment created",
		zap.String("payment_id", res.ID),
		zap.String("status", res.Status),
	)

	return &Session{
		ID:              res.ID,
		Status:          res.Status,
		ConfirmationURL: res.Confirmation.ConfirmationURL,
	}, nil
}

// ----------------- FindPayment -----------------

func (y *yookassaGateway) FindPayment(ctx context.Context, paymentID string) (*Info, error) {
	log := logger.FromCtx(ctx).With(zap.String("payment_id", paymentID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+"/payments/"+url.PathEscape(paymentID), nil)
	if err != nil {
		log.Error("Failed building request", zap.Error(err))
		return nil, err
	}

	var res ykPayment
	if err := y.do(httpReq, &res); err != nil {
		log.Error("YooKassa find payment failed", zap.Error(err))
		return nil, err
	}

	return &Info{ID: res.ID, Status: res.Status, Paid: res.Paid}, nil
}

func (y *yookassaGateway) do(req *http.Request, out any) error {
	req.SetBasicAuth(y.shopID, y.secretKey)

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read yookassa response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr ykError
		if json.Unmarshal(bodyBytes, &apiErr) == nil && apiErr.Code != "" {
			return fmt.Errorf("%w: status %d: %s: %s", ErrGateway, resp.StatusCode, apiErr.Code, apiErr.Description)
		}
		return fmt.Errorf("%w: status %d", ErrGateway, resp.StatusCode)
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("decode yookassa response: %w", err)
	}
	return nil
}
