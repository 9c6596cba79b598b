package client_test

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieltslisten/learner/internal/client"
)

func TestNumberAcceptsDecimalStrings(t *testing.T) {
	var v struct {
		Price client.Number `json:"price"`
		Score client.Number `json:"score"`
		Empty client.Number `json:"empty"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"price":"199000.00","score":85.5,"empty":null}`), &v))
	assert.Equal(t, 199000.0, v.Price.Float())
	assert.Equal(t, 85.5, v.Score.Float())
	assert.Zero(t, v.Empty)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":199000,"score":85.5,"empty":0}`, string(out))

	require.Error(t, json.Unmarshal([]byte(`{"price":"abc"}`), &v))
}
