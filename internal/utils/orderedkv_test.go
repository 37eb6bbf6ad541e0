package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderedKVMapMarshal(t *testing.T) {
	om := OrderedKVMap[any]{
		"zeta":  {Value: "last", Order: 2},
		"alpha": {Value: true, Order: 1},
		"mid":   {Value: "first", Order: 0},
	}

	b, err := json.Marshal(om)
	require.NoError(t, err)
	assert.Equal(t, `{"mid":"first","alpha":true,"zeta":"last"}`, string(b))
}

func TestOrderedKVMapEmpty(t *testing.T) {
	b, err := json.Marshal(OrderedKVMap[string]{})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(b))
}
