package v1

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEnvelope_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		env     Envelope
		wantErr string
	}{
		{
			name: "valid new-message",
			env:  Envelope{V: Version, Type: TypeNewMessage},
		},
		{
			name: "valid online-users",
			env:  Envelope{V: Version, Type: TypeOnlineUsers},
		},
		{
			name: "valid ping",
			env:  Envelope{V: Version, Type: TypePing},
		},
		{
			name: "valid error",
			env:  Envelope{V: Version, Type: TypeError},
		},
		{
			name:    "missing version",
			env:     Envelope{Type: TypePing},
			wantErr: "missing field: v",
		},
		{
			name:    "wrong version",
			env:     Envelope{V: "v2", Type: TypePing},
			wantErr: "unsupported protocol version",
		},
		{
			name:    "missing type",
			env:     Envelope{V: Version},
			wantErr: "missing field: type",
		},
		{
			name:    "unknown type",
			env:     Envelope{V: Version, Type: "subscribe"},
			wantErr: "unknown type",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.env.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestEnvelope_PayloadRoundTrip(t *testing.T) {
	t.Parallel()

	payload, err := json.Marshal(OnlineUsersPayload{Users: []string{"u1", "u2"}})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	raw, err := json.Marshal(Envelope{V: Version, Type: TypeOnlineUsers, ID: "ev-1", Payload: payload})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if err := env.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	var users OnlineUsersPayload
	if err := json.Unmarshal(env.Payload, &users); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(users.Users) != 2 || users.Users[0] != "u1" {
		t.Fatalf("unexpected payload: %+v", users)
	}
}
