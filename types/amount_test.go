package types

import (
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"Integer", "100", "100", nil},
		{"Negative", "-25", "-25", nil},
		{"Zero", "0", "0", nil},
		{"Negative zero", "-0", "0", nil},
		{"Whitespace", "  42 ", "42", nil},
		{"Zero fraction", "10.00", "10", nil},
		{"Max digits", strings.Repeat("9", MaxDigits), strings.Repeat("9", MaxDigits), nil},
		{"Exponent", "1e3", "", ErrMalformedAmount},
		{"Huge exponent", "1e20000000", "", ErrMalformedAmount},
		{"Signed exponent", "5E-2", "", ErrMalformedAmount},
		{"Too many digits", "1" + strings.Repeat("0", MaxDigits), "", ErrAmountOverflow},
		{"Beyond int64", "123456789012345678901234567890", "123456789012345678901234567890", nil},
		{"Fraction", "1.5", "", ErrFractionalAmount},
		{"Empty", "", "", ErrMalformedAmount},
		{"Garbage", "ten", "", ErrMalformedAmount},
		{"Hex", "0x10", "", ErrMalformedAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseAmount(%q): got err %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q): unexpected error %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got.String(), tt.want)
			}
		})
	}
}

func TestAmountArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Amount
		expected string
	}{
		{"Add", func() Amount { return NewAmount(100).Add(NewAmount(200)) }, "300"},
		{"Sub", func() Amount { return NewAmount(500).Sub(NewAmount(200)) }, "300"},
		{"Sub below zero", func() Amount { return NewAmount(50).Sub(NewAmount(60)) }, "-10"},
		{"Neg", func() Amount { return NewAmount(100).Neg() }, "-100"},
		{"Zero value", func() Amount { var a Amount; return a.Add(NewAmount(7)) }, "7"},
		{"Sum", func() Amount { return Sum(NewAmount(1), NewAmount(2), NewAmount(3)) }, "6"},
		{"Sum empty", func() Amount { return Sum() }, "0"},
		{"Big", func() Amount {
			return MustParseAmount("99999999999999999999").Add(NewAmount(1))
		}, "100000000000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op().String(); got != tt.expected {
				t.Errorf("got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestAmountComparison(t *testing.T) {
	a, b := NewAmount(10), NewAmount(20)

	if a.Cmp(b) != -1 || b.Cmp(a) != 1 || a.Cmp(NewAmount(10)) != 0 {
		t.Error("Cmp returned unexpected ordering")
	}
	if !a.Equal(MustParseAmount("10")) {
		t.Error("expected 10 == 10")
	}
	if !Zero().IsZero() || Zero().Sign() != 0 {
		t.Error("Zero should be zero")
	}
	if !NewAmount(-1).IsNegative() || NewAmount(1).IsNegative() {
		t.Error("IsNegative mismatch")
	}
	if !NewAmount(1).IsPositive() || Zero().IsPositive() {
		t.Error("IsPositive mismatch")
	}
}

func TestWeiConversion(t *testing.T) {
	tests := []struct {
		tokens string
		wei    string
	}{
		{"1", "1000000000000000000"},
		{"1.5", "1500000000000000000"},
		{"0.000000000000000001", "1"},
		{"0", "0"},
		{"1000000", "1000000000000000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.tokens, func(t *testing.T) {
			got, err := ToWei(tt.tokens)
			if err != nil {
				t.Fatalf("ToWei(%q): %v", tt.tokens, err)
			}
			if got.String() != tt.wei {
				t.Errorf("ToWei(%q) = %s, want %s", tt.tokens, got.String(), tt.wei)
			}
			if back := FromWei(got); back != tt.tokens {
				t.Errorf("FromWei(%s) = %s, want %s", tt.wei, back, tt.tokens)
			}
		})
	}

	if _, err := ToWei("0.0000000000000000001"); !errors.Is(err, ErrFractionalAmount) {
		t.Errorf("expected ErrFractionalAmount for 19 decimals, got %v", err)
	}
	if _, err := ToWei("abc"); !errors.Is(err, ErrMalformedAmount) {
		t.Errorf("expected ErrMalformedAmount, got %v", err)
	}
	if _, err := ToWei("1e5"); !errors.Is(err, ErrMalformedAmount) {
		t.Errorf("expected ErrMalformedAmount for exponent, got %v", err)
	}
}

func TestAmountJSON(t *testing.T) {
	payload := struct {
		Amount Amount `json:"amount"`
	}{Amount: MustParseAmount("123456789012345678901234567890")}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"amount":"123456789012345678901234567890"}` {
		t.Errorf("unexpected JSON: %s", data)
	}

	var restored struct {
		Amount Amount `json:"amount"`
	}
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !restored.Amount.Equal(payload.Amount) {
		t.Errorf("mismatch: %s != %s", restored.Amount, payload.Amount)
	}
}

func TestAmountValueScan(t *testing.T) {
	original := MustParseAmount("42000000000000000000")
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned Amount
	if err := scanned.Scan(val); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if !scanned.Equal(original) {
		t.Errorf("mismatch: %s != %s", scanned, original)
	}

	if err := scanned.Scan([]byte("7")); err != nil || scanned.String() != "7" {
		t.Errorf("Scan([]byte) = %s, %v", scanned, err)
	}
	if err := scanned.Scan(int64(9)); err != nil || scanned.String() != "9" {
		t.Errorf("Scan(int64) = %s, %v", scanned, err)
	}
	if err := scanned.Scan(nil); err != nil || !scanned.IsZero() {
		t.Errorf("Scan(nil) = %s, %v", scanned, err)
	}
	if err := scanned.Scan(1.5); err == nil {
		t.Error("expected error scanning float64")
	}
}

func TestScanSkipsDigitCap(t *testing.T) {
	wide := "1" + strings.Repeat("0", MaxDigits)
	var a Amount
	if err := a.Scan(wide); err != nil {
		t.Fatalf("Scan(%d digits): %v", len(wide), err)
	}
	if !a.Overflows() {
		t.Errorf("expected %s to overflow", a)
	}
	if err := a.Scan("1e3"); !errors.Is(err, ErrMalformedAmount) {
		t.Errorf("expected ErrMalformedAmount, got %v", err)
	}
}

func TestNewAmountFromBigInt(t *testing.T) {
	v, _ := new(big.Int).SetString("340282366920938463463374607431768211456", 10)
	a := NewAmountFromBigInt(v)
	if a.String() != v.String() {
		t.Errorf("got %s, want %s", a, v)
	}
	v.SetInt64(1)
	if a.String() == "1" {
		t.Error("NewAmountFromBigInt must copy its argument")
	}
	if !NewAmountFromBigInt(nil).IsZero() {
		t.Error("nil big.Int should be zero")
	}
}
