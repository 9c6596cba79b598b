package payment

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/ieltslisten/learner/internal/auth"
	"github.com/ieltslisten/learner/internal/client"
	"github.com/ieltslisten/learner/internal/journal"
	"github.com/ieltslisten/learner/internal/query"
)

const KeyOrders = "orders"

var ErrStillPending = errors.New("payment is still pending")

// Catalog drops cached book ownership after a purchase.
type Catalog interface {
	InvalidateOwnership(ctx context.Context) error
}

type API struct {
	c           *client.Client
	cache       *query.Cache
	catalog     Catalog
	journal     journal.Recorder
	pollTimeout time.Duration
	pollEvery   time.Duration
}

// New builds the payment API. catalog and rec may be nil.
func New(c *client.Client, cache *query.Cache, catalog Catalog, rec journal.Recorder, pollTimeout time.Duration) *API {
	if pollTimeout <= 0 {
		pollTimeout = 2 * time.Minute
	}
	return &API{c: c, cache: cache, catalog: catalog, journal: rec, pollTimeout: pollTimeout, pollEvery: time.Second}
}

// SetPollInterval changes the first wait between status checks.
func (a *API) SetPollInterval(d time.Duration) {
	if d > 0 {
		a.pollEvery = d
	}
}

func (a *API) record(ctx context.Context, typ string, orderID int64, data any) error {
	if a.journal == nil {
		return nil
	}
	return a.journal.Append(ctx, typ, strconv.FormatInt(orderID, 10), data)
}

// POST /payments/orders/create_order/
func (a *API) CreateOrder(ctx context.Context, bookID int64, provider Provider) (*Order, error) {
	if !provider.Valid() {
		return nil, errors.Errorf("unknown payment provider %q", provider)
	}
	var o Order
	err := a.c.Post(ctx, "/payments/orders/create_order/",
		map[string]any{"book_id": bookID, "provider": provider}, &o)
	if err != nil {
		return nil, errors.Wrapf(err, "create order for book %d", bookID)
	}
	if err := a.cache.Invalidate(ctx, KeyOrders); err != nil {
		return nil, err
	}
	return &o, a.record(ctx, journal.TypeOrderCreated, o.ID, o)
}

// Checkout asks the order's provider for a payment page.
// POST /payments/{vnpay,momo}/checkout/
func (a *API) Checkout(ctx context.Context, o *Order) (*Checkout, error) {
	body := map[string]int64{"order_id": o.ID}
	switch o.Provider {
	case VNPay:
		var out Checkout
		if err := a.c.Post(ctx, "/payments/vnpay/checkout/", body, &out); err != nil {
			return nil, errors.Wrapf(err, "vnpay checkout for order %d", o.ID)
		}
		return &out, nil
	case MoMo:
		var out struct {
			PayURL    string `json:"pay_url"`
			QRCodeURL string `json:"qr_code_url"`
			Deeplink  string `json:"deeplink"`
		}
		if err := a.c.Post(ctx, "/payments/momo/checkout/", body, &out); err != nil {
			return nil, errors.Wrapf(err, "momo checkout for order %d", o.ID)
		}
		return &Checkout{PaymentURL: out.PayURL, QRCodeURL: out.QRCodeURL, Deeplink: out.Deeplink}, nil
	}
	return nil, errors.Errorf("order %d has unknown provider %q", o.ID, o.Provider)
}

// Buy creates an order and starts its checkout.
func (a *API) Buy(ctx context.Context, bookID int64, provider Provider) (*Order, *Checkout, error) {
	o, err := a.CreateOrder(ctx, bookID, provider)
	if err != nil {
		return nil, nil, err
	}
	co, err := a.Checkout(ctx, o)
	if err != nil {
		return o, nil, err
	}
	if co.PaymentURL == "" {
		return o, nil, errors.Errorf("provider returned no payment url for order %d", o.ID)
	}
	return o, co, nil
}

// GET /payments/orders/
func (a *API) Orders(ctx context.Context) ([]Order, error) {
	return query.Fetch(ctx, a.cache, KeyOrders, func(ctx context.Context) ([]Order, error) {
		var out client.List[Order]
		if err := a.c.Get(ctx, "/payments/orders/", nil, &out); err != nil {
			return nil, errors.Wrap(err, "list orders")
		}
		return out.Results, nil
	})
}

// Order always asks the backend; status polling must not see a cached copy.
// GET /payments/orders/{id}/
func (a *API) Order(ctx context.Context, id int64) (*Order, error) {
	var o Order
	if err := a.c.Get(ctx, "/payments/orders/"+strconv.FormatInt(id, 10)+"/", nil, &o); err != nil {
		return nil, errors.Wrapf(err, "get order %d", id)
	}
	return &o, nil
}

// WaitForStatus polls the order with exponential backoff until it reaches a
// terminal status or the poll timeout passes, in which case the last seen
// order is returned with ErrStillPending.
func (a *API) WaitForStatus(ctx context.Context, id int64) (*Order, error) {
	var last *Order
	err := backoff.RetryNotify(
		func() error {
			o, err := a.Order(ctx, id)
			if err != nil {
				if s := client.StatusOf(err); s >= 400 && s < 500 {
					return backoff.Permanent(err)
				}
				return err
			}
			last = o
			if !o.Terminal() {
				return ErrStillPending
			}
			return nil
		},
		backoff.WithContext(&backoff.ExponentialBackOff{
			InitialInterval:     a.pollEvery,
			RandomizationFactor: 0.2,
			Multiplier:          1.5,
			MaxInterval:         10 * a.pollEvery,
			MaxElapsedTime:      a.pollTimeout,
			Stop:                backoff.Stop,
			Clock:               backoff.SystemClock,
		}, ctx),
		func(e error, next time.Duration) {
			if !errors.Is(e, ErrStillPending) {
				log.Printf("payment: order %d status check failed, retrying in %v: %v", id, next, e)
			}
		})
	if err != nil {
		if errors.Is(err, ErrStillPending) && last != nil {
			return last, ErrStillPending
		}
		return last, errors.Wrapf(err, "wait for order %d", id)
	}
	return last, nil
}

// Settle resolves what happened to an order once the provider sent the
// learner back. A provider-reported failure is final: the order is read once
// and reported failed with the provider's message, without retrying. A
// reported success is confirmed by polling the order until it is terminal.
func (a *API) Settle(ctx context.Context, ret Return) (*Outcome, error) {
	if ret.OrderID == 0 {
		return nil, errors.New("return carries no order id")
	}
	var out Outcome
	if ret.Provider != "" && !ret.Success {
		o, err := a.Order(ctx, ret.OrderID)
		if err != nil {
			return nil, err
		}
		out = Outcome{Order: o, Status: StatusFailed, Message: ret.Message}
		if o.Terminal() {
			out.Status = o.Status
		}
		if out.Message == "" {
			out.Message = o.ErrorMessage
		}
	} else {
		o, err := a.WaitForStatus(ctx, ret.OrderID)
		if err != nil {
			return nil, err
		}
		out = Outcome{Order: o, Status: o.Status, Message: o.ErrorMessage}
		if o.Succeeded() {
			out.Status = StatusPaid
		}
	}

	invalidate := []string{KeyOrders}
	if out.Succeeded() {
		invalidate = append(invalidate, auth.KeyEnrollments)
		if a.catalog != nil {
			if err := a.catalog.InvalidateOwnership(ctx); err != nil {
				return nil, err
			}
		}
	}
	if err := a.cache.Invalidate(ctx, invalidate...); err != nil {
		return nil, err
	}
	return &out, a.record(ctx, journal.TypePaymentSettled, ret.OrderID, out)
}
