package booking

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// InitStripe initializes the Stripe API with the secret key.
func InitStripe(secretKey string) {
	stripe.Key = secretKey
}

// StripeGateway implements PaymentGateway with Stripe payment intents.
type StripeGateway struct{}

func (g *StripeGateway) CreateIntent(ctx context.Context, amount float64, reservationCode string) (string, string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(amount * 100)),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		Metadata: map[string]string{
			"reservation_code": reservationCode,
		},
	}
	params.Context = ctx

	intent, err := paymentintent.New(params)
	if err != nil {
		return "", "", fmt.Errorf("failed to create payment intent: %w", err)
	}
	return intent.ID, intent.ClientSecret, nil
}
