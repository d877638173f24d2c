package phone

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	assert.True(t, Validate("254712345678"))
	assert.True(t, Validate("254112345678"))
	assert.False(t, Validate("0712345678"))
	assert.False(t, Validate("+254712345678"))
	assert.False(t, Validate("25471234567"))
	assert.False(t, Validate("2547123456789"))
	assert.False(t, Validate("25471234567a"))
	assert.False(t, Validate(""))
}

func TestFormat(t *testing.T) {
	cases := []struct{ in, want string }{
		{"0712345678", "254712345678"},
		{"0112345678", "254112345678"},
		{"712345678", "254712345678"},
		{"112345678", "254112345678"},
		{"+254712345678", "254712345678"},
		{"254712345678", "254712345678"},
		{"0712 345-678", "254712345678"},
		{" +254 712 345 678", "254712345678"},
		{"12345", "25412345"},
		{"abc", "abc"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Format(tc.in), "Format(%q)", tc.in)
	}
}

func TestFormatLocalNumbersAlwaysValidate(t *testing.T) {
	for i := 0; i < 1000; i++ {
		n := fmt.Sprintf("%09d", i*999983%1000000000)
		local := "0" + n
		assert.True(t, Validate(Format(local)), "0-prefixed %q", local)

		short := "7" + n[1:]
		assert.True(t, Validate(Format(short)), "7-prefixed %q", short)
		short = "1" + n[1:]
		assert.True(t, Validate(Format(short)), "1-prefixed %q", short)
	}
}

func TestFormatDoesNotGuaranteeCanonical(t *testing.T) {
	for _, raw := range []string{"12345", "07123", "9712345678", "2547123"} {
		assert.False(t, Validate(Format(raw)), "Format(%q) = %q", raw, Format(raw))
	}
}

func TestFormatIsIdempotentOnCanonical(t *testing.T) {
	raw := "+254712345678"
	formatted := Format(raw)
	assert.Equal(t, "254712345678", formatted)
	assert.True(t, Validate(formatted))
	assert.Equal(t, formatted, Format(formatted))
}
