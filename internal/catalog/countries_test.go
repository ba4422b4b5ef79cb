package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountryCodeResolvesKnownNames(t *testing.T) {
	assert.Equal(t, "CHIN", CountryCode("CHINA"))
	assert.Equal(t, "GRBR", CountryCode("UNITED KINGDOM"))
	assert.Equal(t, "CAN", CountryCode("CANADA"))
}

func TestCountryCodeUnknownNamesPassThrough(t *testing.T) {
	assert.Equal(t, "ATLANTIS", CountryCode("ATLANTIS"))
}

func TestCountryTableIsNormalized(t *testing.T) {
	for name, code := range CountryCodes() {
		assert.Equal(t, strings.ToUpper(name), name, "names are upper-case")
		assert.NotEmpty(t, code)
		assert.LessOrEqual(t, len(code), 5, "CEAC codes are short tokens")
	}
}
