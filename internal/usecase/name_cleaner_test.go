package usecase

import (
	"testing"
)

func TestNameCleaner_Clean(t *testing.T) {
	c := NewNameCleaner(nil)

	testCases := []struct {
		name  string
		input string
		brand string
		want  string
	}{
		{
			name:  "splits glued units and drops connectors",
			input: "Inca Kola Sin Azúcar x 1.5L",
			want:  "Inca Kola Azucar 1.5 L",
		},
		{
			name:  "puts brand first without repeating it",
			input: "Leche GLORIA Evaporada Entera x 400g",
			brand: "Gloria",
			want:  "Gloria Leche Evaporada Entera 400 G",
		},
		{
			name:  "keeps four text words plus quantities",
			input: "Detergente en polvo Opal Ultra multiusos 2.6kg bolsa",
			want:  "Detergente En Polvo Opal 2.6 Kg",
		},
		{
			name:  "strips symbols and packaging words",
			input: "Agua San Luis (botella) sin gas - 625ml ***",
			want:  "Agua San Luis 625 Ml",
		},
		{
			name:  "multi-word brand",
			input: "Galletas Soda san jorge paquete 6 unidades",
			brand: "San Jorge",
			want:  "San Jorge Galletas Soda 6",
		},
		{
			name:  "empty input",
			input: "   ",
			want:  "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Clean(tc.input, tc.brand)
			if got != tc.want {
				t.Errorf("Clean(%q, %q) = %q, want %q", tc.input, tc.brand, got, tc.want)
			}
		})
	}
}
