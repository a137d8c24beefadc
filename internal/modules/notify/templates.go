package notify

import (
	htmltemplate "html/template"
	"io"
	"strings"
	texttemplate "text/template"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/orders"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/pkg/view"
)

var methodLabels = map[string]string{
	orders.MethodPix:    "PIX",
	orders.MethodBoleto: "Boleto / transferência",
	orders.MethodCard:   "Cartão",
}

// Summary formats an order for messages.
func Summary(o orders.Order, items []orders.OrderItem) view.OrderSummary {
	s := view.OrderSummary{
		NSU:           o.NSU,
		Status:        o.Status,
		CustomerName:  o.CustomerName,
		PaymentMethod: methodLabels[o.PaymentMethod],
		Subtotal:      view.MoneyFromCents(o.SubtotalCents),
		Total:         view.MoneyFromCents(o.TotalCents),
	}
	if o.DiscountCents > 0 {
		s.Discount = view.MoneyFromCents(o.DiscountCents)
	}
	for _, it := range items {
		s.Items = append(s.Items, view.OrderLine{
			Name:      it.Name,
			Qty:       it.Quantity,
			PriceEach: view.MoneyFromCents(it.PriceCents),
			LineTotal: view.MoneyFromCents(it.LineTotalCents),
		})
	}
	return s
}

var customerText = texttemplate.Must(texttemplate.New("customer").Parse(
	`Olá {{.CustomerName}},

Recebemos o pagamento do pedido {{.NSU}}. Obrigado pela compra!

{{range .Items}}{{.Qty}}x {{.Name}} - {{.LineTotal}}
{{end}}
Subtotal: {{.Subtotal}}
{{if .Discount}}Desconto: -{{.Discount}}
{{end}}Total: {{.Total}}
Forma de pagamento: {{.PaymentMethod}}

Avisaremos quando o pedido for enviado.
`))

var customerHTML = htmltemplate.Must(htmltemplate.New("customer").Parse(
	`<html>
  <body style="font-family: sans-serif;">
    <h2>Pagamento confirmado</h2>
    <p>Olá {{.CustomerName}},</p>
    <p>Recebemos o pagamento do pedido <strong>{{.NSU}}</strong>. Obrigado pela compra!</p>
    <table cellpadding="4">
      {{range .Items}}<tr><td>{{.Qty}}x</td><td>{{.Name}}</td><td align="right">{{.LineTotal}}</td></tr>
      {{end}}
    </table>
    <p>Subtotal: {{.Subtotal}}{{if .Discount}}<br>Desconto: -{{.Discount}}{{end}}<br><strong>Total: {{.Total}}</strong></p>
    <p>Forma de pagamento: {{.PaymentMethod}}</p>
  </body>
</html>
`))

var adminText = texttemplate.Must(texttemplate.New("admin").Parse(
	`Pedido pago: {{.NSU}}
Cliente: {{.CustomerName}}
Pagamento: {{.PaymentMethod}}
{{range .Items}}{{.Qty}}x {{.Name}}
{{end}}Total: {{.Total}}`))

type executor interface {
	Execute(w io.Writer, data any) error
}

func render(t executor, data any) string {
	var b strings.Builder
	_ = t.Execute(&b, data)
	return b.String()
}
