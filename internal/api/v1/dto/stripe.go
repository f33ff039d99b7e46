package dto

// URLResponseDTO carries a Stripe-hosted page URL
type URLResponseDTO struct {
	URL string `json:"url"`
}

type PaymentLinkResponseDTO struct {
	PaymentURL string `json:"paymentUrl"`
	Message    string `json:"message"`
}

type WebhookAckDTO struct {
	Received bool `json:"received"`
}

type WebhookErrorDTO struct {
	Error string `json:"error"`
}

// CheckoutResultDTO is shown after Stripe redirects back from checkout
type CheckoutResultDTO struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ProductResponseDTO is one purchasable recurring price
type ProductResponseDTO struct {
	PriceID     string `json:"priceId"`
	ProductID   string `json:"productId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UnitAmount  int64  `json:"unitAmount"`
	Currency    string `json:"currency"`
	Interval    string `json:"interval"`
}
