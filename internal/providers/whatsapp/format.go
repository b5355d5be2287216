package whatsapp

import (
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/orderrelay/internal/webhook/domain"
)

const divider = "━━━━━━━━━━━━━━━━━━"

// Format renders the notification text for an event. Unmodeled kinds get a
// generic summary.
func Format(event domain.Event) string {
	switch event.Kind {
	case domain.KindCurrencyOrderPurchased:
		return formatCurrencyOrder(event)
	case domain.KindAccountOrderPurchased:
		return formatOrder("NEW ACCOUNT ORDER", event)
	case domain.KindItemOrderPurchased:
		return formatOrder("NEW ITEM ORDER", event)
	case domain.KindOrderReportIssued:
		return formatOrderReport(event)
	default:
		p := event.Payload
		return "🔔 *New Webhook Event*\n\n" +
			fmt.Sprintf("Event: %s\n", event.Kind) +
			fmt.Sprintf("Order ID: %d\n", p.ID) +
			fmt.Sprintf("Status: %s\n", p.Status) +
			fmt.Sprintf("Price: €%s / $%s", p.PriceEUR, p.PriceUSD)
	}
}

func formatCurrencyOrder(event domain.Event) string {
	p := event.Payload
	var (
		game, buyer, currency, delivery = "N/A", "N/A", "N/A", "N/A"
		quantity                        int64
	)
	if c := event.Currency; c != nil {
		game = orNA(c.Game.Name)
		buyer = orNA(c.Buyer.Username)
		currency = orNA(c.CurrencyUnit.CurrencyName)
		delivery = orNA(c.DeliveryTime.FormatLong)
		quantity = c.Quantity
	}

	var b strings.Builder
	b.WriteString("🎮 *NEW CURRENCY ORDER* 🎮\n\n")
	b.WriteString(divider + "\n")
	fmt.Fprintf(&b, "📦 Order ID: *#%d*\n", p.ID)
	fmt.Fprintf(&b, "🎯 Game: *%s*\n", game)
	fmt.Fprintf(&b, "👤 Buyer: *%s*\n\n", buyer)
	fmt.Fprintf(&b, "💰 Currency: *%s*\n", currency)
	fmt.Fprintf(&b, "📊 Quantity: *%d*\n", quantity)
	fmt.Fprintf(&b, "💵 Price: *€%s* / *$%s*\n\n", p.PriceEUR, p.PriceUSD)
	fmt.Fprintf(&b, "📋 Status: *%s*\n", statusLabel(p.Status))
	fmt.Fprintf(&b, "⏱️ Delivery Time: *%s*\n", delivery)
	b.WriteString(divider + "\n\n")
	b.WriteString("✅ Please process this order immediately!")
	return b.String()
}

func formatOrder(title string, event domain.Event) string {
	p := event.Payload
	var b strings.Builder
	fmt.Fprintf(&b, "🎮 *%s* 🎮\n\n", title)
	b.WriteString(divider + "\n")
	fmt.Fprintf(&b, "📦 Order ID: *#%d*\n", p.ID)
	fmt.Fprintf(&b, "💵 Price: *€%s* / *$%s*\n", p.PriceEUR, p.PriceUSD)
	fmt.Fprintf(&b, "📋 Status: *%s*\n", statusLabel(p.Status))
	b.WriteString(divider + "\n\n")
	b.WriteString("✅ Please process this order immediately!")
	return b.String()
}

func formatOrderReport(event domain.Event) string {
	p := event.Payload
	var b strings.Builder
	b.WriteString("⚠️ *DISPUTE / REPORT ALERT* ⚠️\n\n")
	b.WriteString(divider + "\n")
	fmt.Fprintf(&b, "📦 Order ID: *#%d*\n", p.ID)
	fmt.Fprintf(&b, "💵 Amount: *€%s* / *$%s*\n", p.PriceEUR, p.PriceUSD)
	fmt.Fprintf(&b, "📋 Status: *%s*\n", statusLabel(p.Status))
	b.WriteString(divider + "\n\n")
	b.WriteString("🚨 ACTION REQUIRED: Please check the dispute immediately!")
	return b.String()
}

// FormatStatusUpdate renders an order status transition.
func FormatStatusUpdate(orderID int64, oldStatus, newStatus string, at time.Time) string {
	return "📢 *ORDER STATUS UPDATE*\n\n" +
		fmt.Sprintf("Order ID: *#%d*\n", orderID) +
		fmt.Sprintf("Old Status: %s\n", oldStatus) +
		fmt.Sprintf("New Status: *%s*\n\n", strings.ToUpper(newStatus)) +
		fmt.Sprintf("Updated at: %s", at.Format(time.DateTime))
}

func statusLabel(status domain.Status) string {
	return strings.ToUpper(string(status))
}

func orNA(v string) string {
	if strings.TrimSpace(v) == "" {
		return "N/A"
	}
	return v
}
