// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToken(t *testing.T) {
	assert.Equal(t, "high", Token("  High\u200B"))
	assert.Equal(t, "normal", Token("\uFEFFNORMAL"))
	assert.Equal(t, "", Token(""))
}

func TestText_PreservesCase(t *testing.T) {
	assert.Equal(t, "Needs Attention", Text(" Needs Attention\n"))
	// e + combining acute composes to a single rune
	assert.Equal(t, "caf\u00e9", Text("cafe\u0301"))
}

func TestTitle(t *testing.T) {
	tests := map[string]string{
		"bodyTemperature":  "Body Temperature",
		"body_temperature": "Body Temperature",
		"spO2":             "Sp O2",
		"x":                "X",
		"":                 "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Title(in), in)
	}
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Lighting", Capitalize("lighting"))
	assert.Equal(t, "", Capitalize(""))
}
