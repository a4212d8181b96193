package language

import "testing"

func TestDetectScripts(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"hindi", "यह अनुबंध दोनों पक्षों के बीच है", "hi"},
		{"arabic", "هذا العقد بين الطرفين", "ar"},
		{"tamil", "இந்த ஒப்பந்தம் இரு தரப்பினருக்கும் இடையில்", "ta"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(tt.text, "en")
			if got.Language != tt.want {
				t.Errorf("Detect() language = %q, want %q", got.Language, tt.want)
			}
			if got.Method != MethodPatternBased {
				t.Errorf("method = %q, want %q", got.Method, MethodPatternBased)
			}
			if got.Confidence < 0.7 || got.Confidence > 0.99 {
				t.Errorf("confidence = %v, want in [0.7, 0.99]", got.Confidence)
			}
		})
	}
}

func TestDetectStopwords(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"english", "This agreement shall be binding on the parties and their assigns for the term of the contract.", "en"},
		{"spanish", "El contrato establece las obligaciones de las partes y los plazos para el pago.", "es"},
		{"french", "Le contrat définit les obligations des parties et les délais de paiement pour la durée.", "fr"},
		{"german", "Der Vertrag regelt die Pflichten der Parteien und die Fristen für die Zahlung.", "de"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(tt.text, "en")
			if got.Language != tt.want {
				t.Errorf("Detect() language = %q, want %q", got.Language, tt.want)
			}
			if got.Method != MethodStopwords {
				t.Errorf("method = %q, want %q", got.Method, MethodStopwords)
			}
		})
	}
}

func TestDetectFallsBackToDefault(t *testing.T) {
	got := Detect("", "en")
	if got.Language != "en" || got.Method != MethodDefault || got.Confidence != 0 {
		t.Errorf("Detect(\"\") = %+v", got)
	}

	got = Detect("zzz qqq xxx", "pt")
	if got.Language != "pt" || got.Method != MethodDefault {
		t.Errorf("Detect(gibberish) = %+v, want default pt", got)
	}
}
