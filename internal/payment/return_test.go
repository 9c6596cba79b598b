package payment

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReturn(t *testing.T) {
	cases := []struct {
		name  string
		query string
		want  Return
	}{
		{"vnpay ok", "vnp_ResponseCode=00&vnp_TxnRef=15", Return{OrderID: 15, Provider: VNPay, Success: true, Code: "00"}},
		{"vnpay cancelled", "order_id=16&vnp_ResponseCode=24&vnp_TxnRef=99",
			Return{OrderID: 16, Provider: VNPay, Code: "24", Message: "cancelled by customer"}},
		{"vnpay unknown code", "vnp_ResponseCode=97&vnp_TxnRef=3",
			Return{OrderID: 3, Provider: VNPay, Code: "97", Message: "payment failed with code 97"}},
		{"momo ok", "resultCode=0&orderId=21&message=Successful.", Return{OrderID: 21, Provider: MoMo, Success: true, Code: "0"}},
		{"momo failed", "resultCode=1006&orderId=22&message=Transaction+denied+by+user.",
			Return{OrderID: 22, Provider: MoMo, Code: "1006", Message: "Transaction denied by user."}},
		{"order only", "order_id=8", Return{OrderID: 8}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q, err := url.ParseQuery(tc.query)
			require.NoError(t, err)
			got, err := ParseReturn(q)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseReturnRejectsMissingOrder(t *testing.T) {
	_, err := ParseReturn(url.Values{"vnp_ResponseCode": {"00"}})
	require.Error(t, err)
	_, err = ParseReturn(url.Values{"order_id": {"abc"}})
	require.Error(t, err)
	_, err = ParseReturn(url.Values{"order_id": {"-4"}})
	require.Error(t, err)
}

func TestReturnServer(t *testing.T) {
	rs, err := StartReturnServer("127.0.0.1:0")
	require.NoError(t, err)
	defer rs.Close()

	resp, err := http.Get(rs.URL() + "?vnp_ResponseCode=00&vnp_TxnRef=44")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ret, err := rs.Wait(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 44, ret.OrderID)
	assert.True(t, ret.Success)

	resp, err = http.Get(rs.URL())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
