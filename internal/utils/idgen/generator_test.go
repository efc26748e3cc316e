package idgen

import (
	"strings"
	"testing"
)

func TestGenerateSecureID(t *testing.T) {
	tests := []struct {
		name       string
		prefix     string
		length     int
		wantErr    bool
		wantPrefix string
	}{
		{name: "message id", prefix: "msg", length: 20, wantPrefix: "msg_"},
		{name: "dm id", prefix: "dm", length: 20, wantPrefix: "dm_"},
		{name: "short id", prefix: "test", length: 4, wantPrefix: "test_"},
		{name: "zero length", prefix: "test", length: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GenerateSecureID(tt.prefix, tt.length)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GenerateSecureID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !strings.HasPrefix(got, tt.wantPrefix) {
				t.Errorf("GenerateSecureID() = %v, want prefix %v", got, tt.wantPrefix)
			}
			if want := len(tt.prefix) + 1 + tt.length; len(got) != want {
				t.Errorf("GenerateSecureID() length = %d, want %d", len(got), want)
			}
			for _, char := range got[len(tt.prefix)+1:] {
				if !((char >= 'a' && char <= 'z') || (char >= '0' && char <= '9')) {
					t.Errorf("GenerateSecureID() contains invalid character: %c", char)
				}
			}
		})
	}
}

func TestNewMessageIDUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id, err := NewMessageID()
		if err != nil {
			t.Fatalf("NewMessageID() error = %v", err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = struct{}{}
	}
}

func TestNewMessageIDSortsInCreationOrder(t *testing.T) {
	prev := ""
	for i := 0; i < 500; i++ {
		id, err := NewMessageID()
		if err != nil {
			t.Fatalf("NewMessageID() error = %v", err)
		}
		if !strings.HasPrefix(id, "msg_") {
			t.Fatalf("NewMessageID() = %s, want msg_ prefix", id)
		}
		if id <= prev {
			t.Fatalf("NewMessageID() = %s, not after %s", id, prev)
		}
		prev = id
	}
}

func TestParseMessageID(t *testing.T) {
	id, err := NewMessageID()
	if err != nil {
		t.Fatalf("NewMessageID() error = %v", err)
	}
	parsed, err := ParseMessageID(id)
	if err != nil {
		t.Fatalf("ParseMessageID(%s) error = %v", id, err)
	}
	if got := "msg_" + strings.ToLower(parsed.String()); got != id {
		t.Errorf("round trip = %s, want %s", got, id)
	}

	if _, err := ParseMessageID("dm_01h0000000000000000000000"); err == nil {
		t.Error("ParseMessageID() accepted a dm id")
	}
}
