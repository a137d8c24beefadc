package checkout

import "context"

//go:generate mockgen -destination=mocks/mock_session.go -package=mocks -source=interface.go

// OrderCreator starts a PIX order on the backend.
type OrderCreator interface {
	CreatePixOrder(ctx context.Context, r OrderRequest) (PixOrderResult, error)
}

// StatusChecker asks the backend whether an order is paid.
type StatusChecker interface {
	CheckPayment(ctx context.Context, orderNSU string) (PaymentStatus, error)
}

// Notifier triggers the order confirmation e-mails.
type Notifier interface {
	SendOrderEmails(ctx context.Context, orderNSU string) error
}

type Cart interface {
	Clear()
}
