package whatsapp

import (
	"fmt"
	"strings"
	"time"

	"github.com/shajaurahman10/remindly-pay-flow/internal/clients"
)

// RenderReminder fills a message template's placeholders from the client
// record. Supported placeholders are {{clientName}}, {{amount}}, {{dueDate}}
// and {{paymentLink}}; unknown placeholders are left verbatim so a typo in a
// template is visible in the delivered message instead of silently vanishing.
func RenderReminder(template string, c *clients.Client) string {
	r := strings.NewReplacer(
		"{{clientName}}", c.Name,
		"{{amount}}", FormatAmount(c.AmountPaise),
		"{{dueDate}}", c.WindowEnd.Format("02 Jan 2006"),
		"{{paymentLink}}", c.PaymentLinkURL,
	)
	return r.Replace(template)
}

// DefaultReminder composes the fallback reminder body from the client's
// enabled payment channels when no template is configured.
func DefaultReminder(c *clients.Client) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s, this is a reminder that your payment of %s is due on %s.",
		c.Name, FormatAmount(c.AmountPaise), c.WindowEnd.Format("02 Jan 2006"))

	if c.HasOption(clients.OptionUPI) && c.UPIID != "" {
		fmt.Fprintf(&b, "\n\nPay via UPI: %s", c.UPIID)
	}
	if c.HasOption(clients.OptionGatewayLink) && c.PaymentLinkURL != "" {
		fmt.Fprintf(&b, "\n\nPay online: %s", c.PaymentLinkURL)
	}
	if c.QRCodeURL != "" {
		fmt.Fprintf(&b, "\n\nScan to pay: %s", c.QRCodeURL)
	}

	b.WriteString("\n\nPlease ignore this message if you have already paid.")
	return b.String()
}

// FormatAmount renders an amount held in paise as rupees, trimming the
// decimal part when it is whole.
func FormatAmount(paise int64) string {
	rupees := paise / 100
	rem := paise % 100
	if rem == 0 {
		return fmt.Sprintf("₹%d", rupees)
	}
	return fmt.Sprintf("₹%d.%02d", rupees, rem)
}

// overdueNote is appended when the reminder fires on or after the due date.
func reminderBody(c *clients.Client, template string, now time.Time) string {
	body := DefaultReminder(c)
	if strings.TrimSpace(template) != "" {
		body = RenderReminder(template, c)
	}
	if c.EffectiveStatus(now) == clients.StatusOverdue {
		body += "\n\nThis payment is now overdue."
	}
	return body
}
