package view

// OrderLine is a pre-formatted order item for e-mails and WhatsApp messages.
type OrderLine struct {
	Name      string `json:"name"`
	Qty       int    `json:"quantity"`
	PriceEach string `json:"price"`
	LineTotal string `json:"line_total"`
}

type OrderSummary struct {
	NSU           string
	Status        string
	CustomerName  string
	PaymentMethod string

	Subtotal string
	Discount string
	Total    string

	Items []OrderLine
}
