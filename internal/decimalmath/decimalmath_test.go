package decimalmath

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestLn_KnownValue(t *testing.T) {
	got, err := Ln(d(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := decimal.NewFromFloat(math.Log(2))
	if !Close(got, want, decimal.New(1, -9)) {
		t.Errorf("Ln(2) = %s, want ~%s", got, want)
	}
}

func TestLn_RejectsNonPositive(t *testing.T) {
	if _, err := Ln(decimal.Zero); err != ErrLnDomain {
		t.Errorf("expected ErrLnDomain for Ln(0), got %v", err)
	}
	if _, err := Ln(d(-1)); err != ErrLnDomain {
		t.Errorf("expected ErrLnDomain for Ln(-1), got %v", err)
	}
}

func TestExp_KnownValue(t *testing.T) {
	got := Exp(d(1))
	want := decimal.NewFromFloat(math.E)
	if !Close(got, want, decimal.New(1, -9)) {
		t.Errorf("Exp(1) = %s, want ~%s", got, want)
	}
}

func TestLogSumExp_NoOverflow(t *testing.T) {
	// exp(10000) overflows float64; LogSumExp must not.
	result := LogSumExp(d(10000), d(0))
	if result.LessThan(d(9999)) || result.GreaterThan(d(10001)) {
		t.Errorf("LogSumExp(10000,0) out of expected range: %s", result)
	}
}

func TestLogSumExp_EqualValues(t *testing.T) {
	// ln(2*exp(3)) = 3 + ln(2)
	result := LogSumExp(d(3), d(3))
	ln2, _ := Ln(d(2))
	want := d(3).Add(ln2)
	if !Close(result, want, decimal.New(1, -9)) {
		t.Errorf("LogSumExp(3,3) = %s, want %s", result, want)
	}
}

func TestLogSumExp_SingleValue(t *testing.T) {
	result := LogSumExp(d(5))
	if !Close(result, d(5), decimal.New(1, -9)) {
		t.Errorf("LogSumExp(5) = %s, want 5", result)
	}
}

func TestSoftmax2_SumsToOne(t *testing.T) {
	cases := [][2]float64{{0, 0}, {10, 0}, {0, 10}, {10000, 1}, {-5000, 5000}}
	for _, c := range cases {
		a, b := d(c[0]), d(c[1])
		pa := Softmax2(a, b)
		pb := Softmax2(b, a)
		sum := pa.Add(pb)
		if !Close(sum, decimal.NewFromInt(1), decimal.New(1, -10)) {
			t.Errorf("softmax(%v,%v) + softmax(%v,%v) = %s, want 1", c[0], c[1], c[1], c[0], sum)
		}
	}
}

func TestClose(t *testing.T) {
	if !Close(d(1.0000000001), d(1), decimal.New(1, -9)) {
		t.Error("expected values within tolerance to be Close")
	}
	if Close(d(1.1), d(1), decimal.New(1, -9)) {
		t.Error("expected values outside tolerance to not be Close")
	}
}
