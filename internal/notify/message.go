package notify

import (
	"fmt"
	"strings"

	"github.com/kvitka-ua/backend-kvitka/internal/money"
	"github.com/kvitka-ua/backend-kvitka/internal/store"
)

var topicHeadlines = map[string]string{
	"order.created":   "🆕 Нове замовлення",
	"order.paid":      "✅ Замовлення оплачено",
	"payment.failed":  "❌ Оплата не пройшла",
	"payment.expired": "⌛ Рахунок протермінувався",
}

// ComposeMessage renders the operational chat message for an order event.
// Item titles come from the catalog when the product still exists, otherwise
// from the snapshot taken at order time. Formatting never fails: missing
// pieces degrade to placeholders.
func ComposeMessage(topic string, order store.Order, items []store.OrderItem, titles map[string]string) string {
	headline, ok := topicHeadlines[topic]
	if !ok {
		headline = "ℹ️ Подія замовлення"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s #%s\n", headline, shortID(order.ID.String()))
	if order.CustomerName != "" {
		fmt.Fprintf(&b, "Клієнт: %s\n", order.CustomerName)
	}
	if order.CustomerPhone != "" {
		fmt.Fprintf(&b, "Телефон: %s\n", order.CustomerPhone)
	}
	if len(items) > 0 {
		b.WriteString("Товари:\n")
		for _, item := range items {
			title := item.Title
			if item.ProductID.Valid {
				if live, ok := titles[item.ProductID.UUID.String()]; ok && live != "" {
					title = live
				}
			}
			if title == "" {
				title = "(без назви)"
			}
			fmt.Fprintf(&b, "  • %s × %d — %s\n", title, item.Qty, money.Format(item.Subtotal))
		}
	}
	fmt.Fprintf(&b, "Сума: %s %s\n", money.Format(order.Total), order.Currency)
	if order.DeliveryMethod != "" {
		fmt.Fprintf(&b, "Доставка: %s\n", order.DeliveryMethod)
	}
	fmt.Fprintf(&b, "Адреса: %s", FormatDeliveryAddress(order.DeliveryPayload))
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
