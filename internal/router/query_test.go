package router

import "testing"

func TestExtractSearchIntent(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"explicit verb", "busca vuelos baratos a Lisboa", "vuelos baratos a lisboa"},
		{"polite prefix", "¿Puedes buscar restaurantes en Bilbao?", "restaurantes en bilbao"},
		{"search about", "investiga sobre la fusion nuclear", "la fusion nuclear"},
		{"news question", "noticias sobre la huelga de trenes", "la huelga de trenes"},
		{"what is question", "que es la computacion cuantica", "la computacion cuantica"},
		{"who is question", "quien es la presidenta del congreso", "la presidenta del congreso"},
		{"how much question", "cuanto cuesta el bitcoin", "el bitcoin"},
		{"price of", "precio del litro de gasolina", "litro de gasolina"},
		{"subject then price", "el bitcoin precio actual", "el bitcoin"},
		{"no search request", "cuentame un chiste", ""},
		{"too generic capture", "precio actual", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractSearchIntent(tt.message); got != tt.want {
				t.Errorf("extractSearchIntent(%q) = %q, want %q", tt.message, got, tt.want)
			}
		})
	}
}

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"¿Puedes buscar hoteles en Roma?", "hoteles en Roma"},
		{"busca el tiempo en Donostia", "el tiempo en Donostia"},
		{"el tiempo en Donostia", "el tiempo en Donostia"},
	}

	for _, tt := range tests {
		if got := normalizeQuery(tt.message); got != tt.want {
			t.Errorf("normalizeQuery(%q) = %q, want %q", tt.message, got, tt.want)
		}
	}
}
