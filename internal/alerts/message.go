package alerts

import (
	"fmt"

	"github.com/DaDevFox/task-systems/mhd-core/internal/domain"
)

func newAlert(item domain.AnnotatedItem, kind Kind, days int) Alert {
	return Alert{
		ItemID:   item.ID,
		ItemName: item.Name,
		Kind:     kind,
		Days:     days,
		Title:    title(item.Name, kind),
		Body:     body(item.Item, kind, days),
	}
}

func title(name string, kind Kind) string {
	if kind == KindExpired {
		return "Expired: " + name
	}
	return "Expiring soon: " + name
}

func body(item domain.Item, kind Kind, days int) string {
	var when string
	switch {
	case kind == KindExpired && days == -1:
		when = "expired yesterday"
	case kind == KindExpired:
		when = fmt.Sprintf("expired %d days ago", -days)
	case days == 0:
		when = "expires today"
	case days == 1:
		when = "expires tomorrow"
	default:
		when = fmt.Sprintf("expires in %d days", days)
	}

	date := item.ExpiryDate
	if expiry, ok := domain.ParseDate(item.ExpiryDate); ok {
		date = domain.FormatDate(expiry)
	}

	msg := fmt.Sprintf("%s %s (%s)", item.Name, when, date)
	if item.Lot != "" {
		msg += ", lot " + item.Lot
	}
	if item.Quantity > 1 {
		msg += fmt.Sprintf(", %d units", item.Quantity)
	}
	return msg
}
