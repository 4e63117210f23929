package vpn

import (
	"errors"
	"testing"
)

func TestGuardCheck(t *testing.T) {
	guard := DefaultGuard()

	tests := []struct {
		raw  string
		want error
	}{
		{"8.8.8.8", nil},
		{"2a00:1450:4001:829::200e", nil},
		{"127.0.0.1", ErrReservedRange},
		{"10.0.0.5", ErrReservedRange},
		{"172.31.255.255", ErrReservedRange},
		{"100.64.0.1", ErrReservedRange},
		{"::1", ErrReservedRange},
		{"::ffff:8.8.8.8", ErrReservedRange},
		{"fd00::1", ErrReservedRange},
		{"2001:db8::1", ErrReservedRange},
		{"255.255.255.255", ErrReservedRange},
		{"not-an-ip", ErrInvalidIP},
		{"1.2.3.4/24", ErrInvalidIP},
	}

	for _, tc := range tests {
		_, err := guard.Check(tc.raw)
		if tc.want == nil {
			if err != nil {
				t.Fatalf("Check(%q) returned %v, want nil", tc.raw, err)
			}
			continue
		}
		if !errors.Is(err, tc.want) {
			t.Fatalf("Check(%q) returned %v, want %v", tc.raw, err, tc.want)
		}
	}
}

func TestGuardDoesNotRejectAllIPv6(t *testing.T) {
	for _, prefix := range DefaultGuard().Ranges() {
		if prefix.Bits() == 0 {
			t.Fatalf("default ranges contain catch-all %s", prefix)
		}
	}
}

func TestNewGuardRejectsBadRange(t *testing.T) {
	if _, err := NewGuard("10.0.0.0/8", "garbage"); err == nil {
		t.Fatal("expected an error for an unparseable range")
	}
}
