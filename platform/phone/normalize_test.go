package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"5125551234", "+15125551234"},
		{"(512) 555-1234", "+15125551234"},
		{" +1 512 555 1234 ", "+15125551234"},
		{"not a phone", "not a phone"},
		{"", ""},
	}

	for _, tc := range tests {
		if got := NormalizeE164(tc.in); got != tc.want {
			t.Errorf("NormalizeE164(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsValid(t *testing.T) {
	if !IsValid("5125551234") {
		t.Fatal("expected 5125551234 to be valid")
	}
	if IsValid("123") {
		t.Fatal("expected 123 to be invalid")
	}
}
