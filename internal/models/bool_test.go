package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBool_ScanNormalizesStoredRepresentations(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"native true", true, true},
		{"native false", false, false},
		{"postgres t", "t", true},
		{"postgres f", "f", false},
		{"int one", int64(1), true},
		{"int zero", int64(0), false},
		{"string true", "true", true},
		{"bytes yes", []byte("YES"), true},
		{"nil", nil, false},
		{"empty string", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b Bool
			require.NoError(t, b.Scan(tt.value))
			assert.Equal(t, tt.want, b.Bool())
		})
	}
}

func TestBool_ScanRejectsGarbage(t *testing.T) {
	var b Bool
	assert.Error(t, b.Scan("perhaps"))
	assert.Error(t, b.Scan(struct{}{}))
}

func TestBool_UnmarshalJSON(t *testing.T) {
	var payload struct {
		A Bool `json:"a"`
		B Bool `json:"b"`
		C Bool `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"t","b":1,"c":false}`), &payload))
	assert.True(t, payload.A.Bool())
	assert.True(t, payload.B.Bool())
	assert.False(t, payload.C.Bool())

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":true,"b":true,"c":false}`, string(out))
}

func TestOrderStatus_Terminal(t *testing.T) {
	assert.False(t, OrderStatusPending.Terminal())
	assert.False(t, OrderStatusProcessing.Terminal())
	assert.True(t, OrderStatusSuccessful.Terminal())
	assert.True(t, OrderStatusFailed.Terminal())
	assert.False(t, OrderStatus("refunded").Valid())
}

func TestUser_PublicOmitsPasswordHash(t *testing.T) {
	u := &User{ID: 7, Username: "alice", PasswordHash: "$2a$10$secret", IsAdmin: true}
	out, err := json.Marshal(u.Public())
	require.NoError(t, err)
	assert.NotContains(t, string(out), "secret")
	assert.Contains(t, string(out), `"isAdmin":true`)
	assert.Equal(t, RoleAdmin, RoleFor(u))
}
