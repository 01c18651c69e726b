package types

import (
	"encoding/json"
	"testing"
)

func TestMoneyConstructors(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		amount   int64
		currency string
		display  string
	}{
		{"EUR", EUR(12100), 12100, "eur", "€121.00"},
		{"USD", USD(4900), 4900, "usd", "$49.00"},
		{"GBP", GBP(9900), 9900, "gbp", "£99.00"},
		{"CHF", CHF(2500), 2500, "chf", "CHF 25.00"},
		{"New lowercases", New(500, "SEK"), 500, "sek", "kr 5.00"},
		{"Zero EUR", Zero("EUR"), 0, "eur", "€0.00"},
		{"Zero USD", Zero("USD"), 0, "usd", "$0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.money.Amount != tt.amount {
				t.Errorf("Amount: got %d, want %d", tt.money.Amount, tt.amount)
			}
			if tt.money.Currency != tt.currency {
				t.Errorf("Currency: got %s, want %s", tt.money.Currency, tt.currency)
			}
			if tt.money.String() != tt.display {
				t.Errorf("Display: got %s, want %s", tt.money.String(), tt.display)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Money
		expected Money
	}{
		{"Add", func() Money { return EUR(100).Add(EUR(200)) }, EUR(300)},
		{"Subtract", func() Money { return EUR(500).Subtract(EUR(200)) }, EUR(300)},
		{"Multiply", func() Money { return EUR(100).Multiply(3) }, EUR(300)},
		{"Negate", func() Money { return EUR(100).Negate() }, EUR(-100)},
		{"Abs positive", func() Money { return EUR(100).Abs() }, EUR(100)},
		{"Abs negative", func() Money { return EUR(-100).Abs() }, EUR(100)},
		{"Complex", func() Money {
			return EUR(1000).Add(EUR(500)).Multiply(2).Subtract(EUR(1000))
		}, EUR(2000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.op()
			if !result.Equal(tt.expected) {
				t.Errorf("Got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMoneyApplyBasisPoints(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		bps      int64
		expected Money
	}{
		{"21% of 100.00", EUR(10000), 2100, EUR(2100)},
		{"21% of 45.00", EUR(4500), 2100, EUR(945)},
		{"9% of 33.33 rounds up", EUR(3333), 900, EUR(300)},     // 299.97 -> 300
		{"21% of 0.01 rounds down", EUR(1), 2100, EUR(0)},       // 0.21 -> 0
		{"21% of 0.03 rounds up", EUR(3), 2100, EUR(1)},         // 0.63 -> 1
		{"negative base rounds away", EUR(-3333), 900, EUR(-300)},
		{"zero rate", EUR(12345), 0, EUR(0)},
		{"full rate", EUR(12345), 10000, EUR(12345)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.money.ApplyBasisPoints(tt.bps)
			if !result.Equal(tt.expected) {
				t.Errorf("Got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for currency mismatch")
		}
	}()

	// This should panic
	_ = EUR(100).Add(USD(100))
}

func TestMoneyComparison(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Money
		less    bool
		greater bool
		equal   bool
	}{
		{"Equal", EUR(100), EUR(100), false, false, true},
		{"Less", EUR(50), EUR(100), true, false, false},
		{"Greater", EUR(200), EUR(100), false, true, false},
		{"Zero equal", EUR(0), Zero("eur"), false, false, true},
		{"Negative less", EUR(-100), EUR(100), true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.LessThan(tt.b); got != tt.less {
				t.Errorf("LessThan: got %v, want %v", got, tt.less)
			}
			if got := tt.a.GreaterThan(tt.b); got != tt.greater {
				t.Errorf("GreaterThan: got %v, want %v", got, tt.greater)
			}
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Errorf("Equal: got %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestMoneyMinMax(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Money
		min, max Money
	}{
		{"First smaller", EUR(50), EUR(100), EUR(50), EUR(100)},
		{"Second smaller", EUR(100), EUR(50), EUR(50), EUR(100)},
		{"Equal", EUR(100), EUR(100), EUR(100), EUR(100)},
		{"Negative", EUR(-50), EUR(50), EUR(-50), EUR(50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if minVal := tt.a.Min(tt.b); !minVal.Equal(tt.min) {
				t.Errorf("Min: got %v, want %v", minVal, tt.min)
			}
			if maxVal := tt.a.Max(tt.b); !maxVal.Equal(tt.max) {
				t.Errorf("Max: got %v, want %v", maxVal, tt.max)
			}
		})
	}
}

func TestMoneyPredicates(t *testing.T) {
	tests := []struct {
		name       string
		money      Money
		isZero     bool
		isPositive bool
		isNegative bool
	}{
		{"Zero", EUR(0), true, false, false},
		{"Positive", EUR(100), false, true, false},
		{"Negative", EUR(-100), false, false, true},
		{"Large positive", EUR(999999999), false, true, false},
		{"Large negative", EUR(-999999999), false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.money.IsZero(); got != tt.isZero {
				t.Errorf("IsZero: got %v, want %v", got, tt.isZero)
			}
			if got := tt.money.IsPositive(); got != tt.isPositive {
				t.Errorf("IsPositive: got %v, want %v", got, tt.isPositive)
			}
			if got := tt.money.IsNegative(); got != tt.isNegative {
				t.Errorf("IsNegative: got %v, want %v", got, tt.isNegative)
			}
		})
	}
}

func TestMoneyFormatMajor(t *testing.T) {
	tests := []struct {
		money    Money
		expected string
	}{
		{EUR(12100), "121.00"},
		{EUR(100), "1.00"},
		{EUR(1), "0.01"},
		{EUR(0), "0.00"},
		{EUR(-12100), "-121.00"},
		{EUR(-1), "-0.01"},
		{GBP(9999), "99.99"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.money.FormatMajor(); got != tt.expected {
				t.Errorf("FormatMajor: got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestMoneyJSON(t *testing.T) {
	m := EUR(12100)

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	expected := `{"amount":12100,"currency":"eur","display":"€121.00"}`
	if string(data) != expected {
		t.Errorf("JSON: got %s, want %s", string(data), expected)
	}

	var result struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if result.Amount != 12100 || result.Currency != "eur" || result.Display != "€121.00" {
		t.Errorf("Unmarshaled data incorrect: %+v", result)
	}
}

func TestSum(t *testing.T) {
	tests := []struct {
		name     string
		values   []Money
		expected Money
	}{
		{"Empty", []Money{}, Zero("eur")},
		{"Single", []Money{EUR(100)}, EUR(100)},
		{"Multiple", []Money{EUR(100), EUR(200), EUR(300)}, EUR(600)},
		{"With negatives", []Money{EUR(100), EUR(-50), EUR(200)}, EUR(250)},
		{"All zero", []Money{EUR(0), EUR(0), EUR(0)}, EUR(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Sum(tt.values...)
			if !result.Equal(tt.expected) {
				t.Errorf("Sum: got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestCurrencySymbols(t *testing.T) {
	tests := []struct {
		currency string
		symbol   string
	}{
		{"eur", "€"},
		{"usd", "$"},
		{"gbp", "£"},
		{"sek", "kr "},
		{"unknown", "UNKNOWN "},
	}

	for _, tt := range tests {
		t.Run(tt.currency, func(t *testing.T) {
			got := currencySymbol(tt.currency)
			if got != tt.symbol {
				t.Errorf("Symbol for %s: got %s, want %s", tt.currency, got, tt.symbol)
			}
		})
	}
}

func BenchmarkMoneyAdd(b *testing.B) {
	m1 := EUR(100)
	m2 := EUR(200)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m1.Add(m2)
	}
}

func BenchmarkMoneyApplyBasisPoints(b *testing.B) {
	m := EUR(4500)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.ApplyBasisPoints(2100)
	}
}

func BenchmarkMoneyString(b *testing.B) {
	m := EUR(12100)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.String()
	}
}
