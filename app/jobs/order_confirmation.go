// Package jobs holds the queued background jobs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"html/template"

	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/pkg/mail"
	"github.com/shashiranjanraj/storefront/pkg/notification"
	"github.com/shashiranjanraj/storefront/pkg/queue"
)

var confirmationTmpl = template.Must(template.New("order_confirmation").Parse(`<p>Hi {{.Name}},</p>
<p>Thanks for your order <strong>{{.OrderID}}</strong>. We will let you know when it ships.</p>
<table>
{{- range .Items}}
<tr><td>{{.Name}}</td><td>x{{.Quantity}}</td><td>{{.Price}}</td></tr>
{{- end}}
</table>
<p>Total: <strong>{{.Total}}</strong></p>
<p>Shipping to {{.Address.FullName}}, {{.Address.Address}}, {{.Address.City}}, {{.Address.State}} {{.Address.ZipCode}}, {{.Address.Country}}</p>`))

type confirmationLine struct {
	Name     string
	Quantity int
	Price    string
}

// OrderConfirmation mails the customer and pings the admin Slack channel
// about a newly placed order.
type OrderConfirmation struct {
	Order models.Order `json:"order"`

	notifier *notification.Notifier
}

func NewOrderConfirmation(order models.Order) *OrderConfirmation {
	return &OrderConfirmation{Order: order}
}

// Register makes the job decodable by m with notifier injected.
func Register(m *queue.Manager, notifier *notification.Notifier) {
	m.Register(fmt.Sprintf("%T", &OrderConfirmation{}), func() queue.Job {
		return &OrderConfirmation{notifier: notifier}
	})
}

func (j *OrderConfirmation) Handle(ctx context.Context) error {
	if j.notifier == nil {
		return errors.New("jobs: order confirmation has no notifier")
	}
	return j.notifier.Send(ctx, orderPlaced{order: j.Order})
}

type orderPlaced struct {
	order models.Order
}

func (n orderPlaced) Via() []string {
	if n.order.Customer == nil || n.order.Customer.Email == "" {
		return []string{notification.Slack}
	}
	return []string{notification.Mail, notification.Slack}
}

func money(v float64) string { return "₹" + decimal.NewFromFloat(v).StringFixed(2) }

func (n orderPlaced) ToMail() *mail.Message {
	o := n.order
	lines := make([]confirmationLine, len(o.Items))
	for i, it := range o.Items {
		lines[i] = confirmationLine{Name: it.Name, Quantity: it.Quantity, Price: money(it.Price)}
	}
	return mail.To(o.Customer.Email).
		WithSubject("Your order " + o.OrderID).
		Template(confirmationTmpl, map[string]any{
			"Name":    o.Customer.Name,
			"OrderID": o.OrderID,
			"Items":   lines,
			"Total":   money(o.TotalAmount),
			"Address": o.ShippingAddress,
		})
}

func (n orderPlaced) ToSlack() notification.SlackData {
	o := n.order
	who := "unknown customer"
	if o.Customer != nil {
		who = o.Customer.Name
	}
	return notification.SlackData{
		Text: fmt.Sprintf("New order %s", o.OrderID),
		Attachments: []notification.SlackAttachment{{
			Color:  "good",
			Title:  fmt.Sprintf("%s placed %d item(s)", who, o.ItemCount()),
			Text:   "Total " + money(o.TotalAmount),
			Footer: string(o.Status),
		}},
	}
}
