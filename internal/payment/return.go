package payment

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
)

// Return is what a provider appends to the URL it sends the learner back to.
type Return struct {
	OrderID  int64    `json:"order_id"`
	Provider Provider `json:"provider,omitempty"`
	Success  bool     `json:"success"`
	Code     string   `json:"code,omitempty"`
	Message  string   `json:"message,omitempty"`
}

// ParseReturn reads a provider return query. order_id wins over the
// provider's own reference; VNPay reports success as vnp_ResponseCode "00",
// MoMo as resultCode "0". A query with only order_id has no provider verdict.
func ParseReturn(q url.Values) (Return, error) {
	var r Return
	ref := q.Get("order_id")
	switch {
	case q.Has("vnp_ResponseCode"):
		r.Provider = VNPay
		r.Code = q.Get("vnp_ResponseCode")
		r.Success = r.Code == "00"
		if !r.Success {
			r.Message = vnpayMessage(r.Code)
		}
		if ref == "" {
			ref = q.Get("vnp_TxnRef")
		}
	case q.Has("resultCode"):
		r.Provider = MoMo
		r.Code = q.Get("resultCode")
		r.Success = r.Code == "0"
		if !r.Success {
			r.Message = q.Get("message")
		}
		if ref == "" {
			ref = q.Get("orderId")
		}
	}
	if ref == "" {
		return r, errors.New("missing order id in payment return")
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil || id <= 0 {
		return r, errors.Errorf("invalid order id %q in payment return", ref)
	}
	r.OrderID = id
	return r, nil
}

func vnpayMessage(code string) string {
	switch code {
	case "07":
		return "transaction flagged as suspicious"
	case "09":
		return "card or account not registered for internet banking"
	case "10":
		return "card or account verification failed too many times"
	case "11":
		return "payment window expired"
	case "12":
		return "card or account is locked"
	case "13":
		return "wrong one-time password"
	case "24":
		return "cancelled by customer"
	case "51":
		return "insufficient balance"
	case "65":
		return "daily transaction limit exceeded"
	case "75":
		return "bank under maintenance"
	case "79":
		return "wrong payment password too many times"
	}
	return "payment failed with code " + code
}

// ReturnHandler parses the return query and hands it to fn.
// GET /payment/return
func ReturnHandler(fn func(w http.ResponseWriter, r *http.Request, ret Return)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ret, err := ParseReturn(r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fn(w, r, ret)
	}
}
