package utils

import "testing"

func TestGeneratedGuestTokenIsValid(t *testing.T) {
	for i := 0; i < 100; i++ {
		token := GenerateGuestToken()
		if !IsValidGuestToken(token) {
			t.Fatalf("generated token %q rejected by validator", token)
		}
	}
}

func TestGuestTokenFormatRejectsJunk(t *testing.T) {
	cases := []string{
		"",
		"guest_",
		"guest_1699999999999",
		"guest_1699999999999_",
		"guest_1699999999999_short",
		"guest_1699999999999_toolongsuffix1",
		"guest_1699999999999_with space",
		"guest_169999999999_a1B2c3D4e5",  // 12-digit timestamp
		"ghost_1699999999999_a1B2c3D4e5", // wrong prefix
		"guest_1699999999999_a1B2c3D4e5 ",
		"Bearer eyJhbGciOiJIUzI1NiJ9",
	}
	for _, token := range cases {
		if IsValidGuestToken(token) {
			t.Errorf("IsValidGuestToken(%q) = true, want false", token)
		}
	}
}
