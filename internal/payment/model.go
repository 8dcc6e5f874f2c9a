package payment

// Wire types of the YooKassa v3 API.

type ykAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type ykConfirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type ykCustomer struct {
	Email string `json:"email,omitempty"`
}

type ykReceiptItem struct {
	Description string   `json:"description"`
	Quantity    string   `json:"quantity"`
	Amount      ykAmount `json:"amount"`
	VATCode     int      `json:"vat_code"`
}

type ykReceipt struct {
	Customer ykCustomer      `json:"customer"`
	Items    []ykReceiptItem `json:"items"`
}

type ykCreatePaymentRequest struct {
	Amount       ykAmount          `json:"amount"`
	Capture      bool              `json:"capture"`
	Confirmation ykConfirmation    `json:"confirmation"`
	Description  string            `json:"description,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Receipt      *ykReceipt        `json:"receipt,omitempty"`
}

type ykPayment struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Paid         bool              `json:"paid"`
	Amount       ykAmount          `json:"amount"`
	Confirmation *ykConfirmation   `json:"confirmation,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type ykError struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Description string `json:"description"`
}
