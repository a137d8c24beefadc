package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/config"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/functions"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/logging"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/checkout"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/orders"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/pkg/view"
)

type itemFlags []orders.ItemInput

func (f *itemFlags) String() string { return fmt.Sprint(len(*f)) }

// Set parses "name=price_cents" or "name=price_centsxqty".
func (f *itemFlags) Set(v string) error {
	name, rest, ok := strings.Cut(v, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("item %q: want name=price_cents[xqty]", v)
	}
	price, qty, hasQty := strings.Cut(rest, "x")
	cents, err := strconv.ParseInt(price, 10, 64)
	if err != nil {
		return fmt.Errorf("item %q: %w", v, err)
	}
	n := 1
	if hasQty {
		if n, err = strconv.Atoi(qty); err != nil {
			return fmt.Errorf("item %q: %w", v, err)
		}
	}
	*f = append(*f, orders.ItemInput{Name: strings.TrimSpace(name), PriceCents: cents, Quantity: n})
	return nil
}

func main() {
	_ = godotenv.Load()

	var items itemFlags
	baseURL := flag.String("url", "http://localhost:8080/functions/v1", "Functions base URL")
	name := flag.String("name", "", "Customer name")
	email := flag.String("email", "", "Customer e-mail")
	coupon := flag.String("coupon", "", "Coupon code")
	interval := flag.Duration("interval", checkout.DefaultPollInterval, "Payment status poll interval")
	maxWait := flag.Duration("max-wait", 30*time.Minute, "Give up polling after this long (0 = never)")
	flag.Var(&items, "item", "Cart item name=price_cents[xqty], repeatable")
	flag.Parse()

	logger := logging.New(config.LoggingConfig{Level: os.Getenv("LOG_LEVEL"), Format: "text"})

	cart := &checkout.MemoryCart{}
	for _, it := range items {
		cart.Add(it)
	}
	if len(cart.Items()) == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one -item is required")
		os.Exit(1)
	}

	os.Exit(run(*baseURL, checkout.OrderRequest{
		Items:         cart.Items(),
		CustomerName:  *name,
		CustomerEmail: *email,
		CouponCode:    *coupon,
	}, cart, checkout.SessionConfig{PollInterval: *interval, MaxPollDuration: *maxWait}, logger))
}

func run(baseURL string, req checkout.OrderRequest, cart checkout.Cart, sc checkout.SessionConfig, logger *slog.Logger) int {
	client := functions.New(baseURL, os.Getenv("FUNCTIONS_TOKEN"), nil)
	session := checkout.NewPixSession(client, client, client, cart, sc, logger)
	defer session.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	order, err := session.Checkout(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Printf("Pedido %s  total %s\n", order.OrderNSU, view.MoneyFromCents(order.TotalCents))
	fmt.Printf("PIX copia e cola:\n%s\n\nAguardando pagamento...\n", order.PixCode)

	done := make(chan struct{})
	go func() {
		session.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		session.Abandon()
	}
	fmt.Printf("Estado final: %s\n", session.State())
	if session.State() != checkout.StatePaid {
		return 2
	}
	return 0
}
