package checkout

import (
	"errors"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/coupons"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/orders"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/payments"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/shared/apperr"
)

var (
	ErrPixUnavailable    = apperr.ConflictErr("Pagamento via PIX indisponível no momento.")
	ErrBoletoUnavailable = apperr.ConflictErr("Pagamento via boleto indisponível no momento.")
	ErrCardUnavailable   = apperr.ConflictErr("Pagamento com cartão indisponível no momento.")
)

const gatewayFallbackMsg = "Não foi possível gerar o pagamento. Tente novamente em instantes."

var couponMessages = map[error]string{
	coupons.ErrNotFound:     "Cupom não encontrado.",
	coupons.ErrInactive:     "Cupom inativo.",
	coupons.ErrExpired:      "Cupom expirado.",
	coupons.ErrExhausted:    "Cupom esgotado.",
	coupons.ErrMinimumOrder: "Valor mínimo do pedido não atingido para este cupom.",
}

// CouponError maps coupon failures to a field error; other errors pass through.
func CouponError(err error) error {
	for sentinel, msg := range couponMessages {
		if errors.Is(err, sentinel) {
			return &apperr.AppError{Kind: apperr.Invalid, PublicMsg: msg, Fields: map[string]string{"coupon_code": msg}, Err: err}
		}
	}
	return err
}

func orderError(err error) error {
	switch {
	case errors.Is(err, orders.ErrCartEmpty):
		return &apperr.AppError{Kind: apperr.Invalid, PublicMsg: "O carrinho está vazio.", Err: err}
	case errors.Is(err, orders.ErrInvalidItem):
		return &apperr.AppError{Kind: apperr.Invalid, PublicMsg: "Há itens inválidos no carrinho.", Err: err}
	default:
		return CouponError(err)
	}
}

// gatewayError keeps the provider's own message when it sent one.
func gatewayError(err error) error {
	if msg := payments.GatewayMessage(err); msg != "" {
		return apperr.GatewayErr(msg, err)
	}
	return apperr.GatewayErr(gatewayFallbackMsg, err)
}
