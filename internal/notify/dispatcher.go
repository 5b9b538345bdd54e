package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	domain "github.com/brewcoin/api/internal/domain"
	"github.com/brewcoin/api/internal/platform/textutil"
)

// Sender delivers one message to a chat channel.
type Sender interface {
	Send(ctx context.Context, chatID, text string) error
}

// Config controls where order and stock notifications are delivered.
// Location channel keys are location IDs, values are chat IDs.
type Config struct {
	Enabled          bool
	AccountingChatID string
	LocationChannels map[string]string
}

// DispatcherDeps wires the dependencies required by the dispatcher.
type DispatcherDeps struct {
	Config Config
	Sender Sender
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

// Dispatcher fans order notifications out to the accounting channel and the
// pickup location's channel. Delivery is best effort; failures are logged and
// never propagate to the caller.
type Dispatcher struct {
	cfg       Config
	sender    Sender
	now       func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)
	sanitizer *bluemonday.Policy
	titler    cases.Caser
}

// NewDispatcher constructs a Dispatcher validating required dependencies.
func NewDispatcher(deps DispatcherDeps) (*Dispatcher, error) {
	if deps.Sender == nil && deps.Config.Enabled {
		return nil, errors.New("notify dispatcher: sender is required when enabled")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	cfg := deps.Config
	cfg.AccountingChatID = strings.TrimSpace(cfg.AccountingChatID)
	cfg.LocationChannels = textutil.NormalizeStringMap(cfg.LocationChannels)

	return &Dispatcher{
		cfg:    cfg,
		sender: deps.Sender,
		now: func() time.Time {
			return clock().UTC()
		},
		logger:    logger,
		sanitizer: bluemonday.StrictPolicy(),
		titler:    cases.Title(language.English),
	}, nil
}

// OrderCreated announces a new order to every configured channel concurrently.
func (d *Dispatcher) OrderCreated(ctx context.Context, order domain.Order) {
	if d == nil || !d.cfg.Enabled || d.sender == nil {
		return
	}

	text := d.renderOrderMessage(order)
	targets := d.orderTargets(order.LocationID)
	if len(targets) == 0 {
		d.logger(ctx, "notify_no_targets", map[string]any{"orderId": order.ID})
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(targets))
	for _, chatID := range targets {
		chatID := chatID
		go func() {
			defer wg.Done()
			if err := d.sender.Send(ctx, chatID, text); err != nil {
				d.logger(ctx, "notify_send_failed", map[string]any{
					"orderId": order.ID,
					"chatId":  chatID,
					"error":   err.Error(),
				})
			}
		}()
	}
	wg.Wait()
}

// StockAvailable pings one subscriber that their product is back in stock.
// Unlike order announcements the caller needs the outcome, so the error returns.
func (d *Dispatcher) StockAvailable(ctx context.Context, sub domain.StockSubscription, quantity int64) error {
	if d == nil || !d.cfg.Enabled || d.sender == nil {
		return errors.New("notify dispatcher: disabled")
	}

	chatID := strings.TrimSpace(sub.ChatID)
	if chatID == "" {
		chatID = d.locationChannel(sub.LocationID)
	}
	if chatID == "" {
		return fmt.Errorf("notify dispatcher: no channel for subscription %s", sub.ID)
	}

	text := fmt.Sprintf("Back in stock: %s at %s (%d available)",
		sub.ProductID, d.locationLabel(sub.LocationID), quantity)
	return d.sender.Send(ctx, chatID, text)
}

func (d *Dispatcher) orderTargets(locationID string) []string {
	var targets []string
	if d.cfg.AccountingChatID != "" {
		targets = append(targets, d.cfg.AccountingChatID)
	}
	if chatID := d.locationChannel(locationID); chatID != "" && chatID != d.cfg.AccountingChatID {
		targets = append(targets, chatID)
	}
	return targets
}

func (d *Dispatcher) locationChannel(locationID string) string {
	locationID = strings.TrimSpace(locationID)
	if locationID == "" {
		return ""
	}
	if chatID, ok := d.cfg.LocationChannels[locationID]; ok {
		return chatID
	}
	// Channel keys are stored trimmed but not case folded.
	lower := strings.ToLower(locationID)
	for key, chatID := range d.cfg.LocationChannels {
		if strings.ToLower(key) == lower {
			return chatID
		}
	}
	return ""
}

func (d *Dispatcher) locationLabel(locationID string) string {
	locationID = strings.TrimSpace(locationID)
	if locationID == "" {
		return "unknown location"
	}
	return d.titler.String(strings.ReplaceAll(locationID, "-", " "))
}

func (d *Dispatcher) renderOrderMessage(order domain.Order) string {
	var b strings.Builder

	if order.Number > 0 {
		fmt.Fprintf(&b, "Order #%d\n", order.Number)
	} else {
		fmt.Fprintf(&b, "Order %s\n", order.ID)
	}
	fmt.Fprintf(&b, "Pickup: %s\n", d.locationLabel(order.LocationID))
	fmt.Fprintf(&b, "Payment: %s\n", order.PaymentMethod)

	for _, line := range order.Lines {
		fmt.Fprintf(&b, "- %s x%d = %d\n", line.Name, line.Quantity, line.LineTotal)
	}

	if order.Totals.VolumeDiscount > 0 {
		fmt.Fprintf(&b, "Volume discount: -%d\n", order.Totals.VolumeDiscount)
	}
	if order.Totals.LoyaltyDiscount > 0 {
		fmt.Fprintf(&b, "Loyalty discount: -%d\n", order.Totals.LoyaltyDiscount)
	}
	if order.Totals.CoinsRedeemed > 0 {
		fmt.Fprintf(&b, "Coins redeemed: -%d\n", order.Totals.CoinsRedeemed)
	}
	fmt.Fprintf(&b, "Total: %d", order.Totals.Total)

	if comment := strings.TrimSpace(d.sanitizer.Sanitize(order.Comment)); comment != "" {
		fmt.Fprintf(&b, "\nComment: %s", comment)
	}
	return b.String()
}
