package payment

import (
	"time"

	"github.com/ieltslisten/learner/internal/client"
)

type Provider string

const (
	VNPay Provider = "vnpay"
	MoMo  Provider = "momo"
)

func (p Provider) Valid() bool { return p == VNPay || p == MoMo }

const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusCompleted = "completed" // older backends report success this way
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

type Order struct {
	ID           int64         `json:"id"`
	Book         int64         `json:"book"`
	BookTitle    string        `json:"book_title"`
	BookSlug     string        `json:"book_slug"`
	Amount       client.Number `json:"amount"`
	Currency     string        `json:"currency"`
	Status       string        `json:"status"`
	Provider     Provider      `json:"provider"`
	IsPaid       bool          `json:"is_paid"`
	IsPending    bool          `json:"is_pending"`
	ErrorMessage string        `json:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

func (o *Order) Succeeded() bool {
	return o.IsPaid || o.Status == StatusPaid || o.Status == StatusCompleted
}

// Terminal reports whether the order will not change status any more.
func (o *Order) Terminal() bool {
	return o.Succeeded() || o.Status == StatusFailed || o.Status == StatusCancelled
}

// Checkout is where the learner has to go to pay. QRCodeURL and Deeplink
// are only set for MoMo.
type Checkout struct {
	PaymentURL string `json:"payment_url"`
	QRCodeURL  string `json:"qr_code_url,omitempty"`
	Deeplink   string `json:"deeplink,omitempty"`
}

// Outcome is the settled state of an order after the provider returned.
type Outcome struct {
	Order   *Order `json:"order"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (o *Outcome) Succeeded() bool { return o.Status == StatusPaid || o.Status == StatusCompleted }
