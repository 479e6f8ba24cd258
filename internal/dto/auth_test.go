package dto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	valid := []string{
		"alice@example.com",
		"a.b+tag@sub.domain.co",
		"USER_99@host.io",
	}
	for _, email := range valid {
		r := RegisterRequest{Email: email}
		ok, _ := r.ValidateEmail()
		assert.True(t, ok, "expected %q to be valid", email)
	}

	invalid := []string{
		"",
		"plainaddress",
		"@no-local.com",
		"no-domain@",
		"no-tld@host",
		"spaces in@host.com",
	}
	for _, email := range invalid {
		r := RegisterRequest{Email: email}
		ok, _ := r.ValidateEmail()
		assert.False(t, ok, "expected %q to be invalid", email)
	}
}

func TestValidatePasswordStrength(t *testing.T) {
	cases := []struct {
		name     string
		password string
		ok       bool
	}{
		{"valid", "Sup3r$ecret", true},
		{"too short", "Ab1$x", false},
		{"too long", "Ab1$" + strings.Repeat("x", 70), false},
		{"no uppercase", "sup3r$ecret", false},
		{"no lowercase", "SUP3R$ECRET", false},
		{"no digit", "Super$ecret", false},
		{"no special", "Sup3rSecret", false},
		{"symbol counts as special", "Sup3rSecret+", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, msg := ValidatePasswordStrength(tc.password)
			assert.Equal(t, tc.ok, ok, msg)
			if !tc.ok {
				assert.NotEmpty(t, msg)
			}
		})
	}
}
