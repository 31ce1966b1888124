package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestLineTotal(t *testing.T) {
	cases := []struct {
		name     string
		qty      string
		price    string
		discount string
		want     string
	}{
		{"no discount", "10", "5.00", "0", "50.00"},
		{"ten percent off", "10", "5.00", "10", "45.00"},
		{"fractional qty", "2.5", "3.99", "0", "9.98"},
		{"rounds half away from zero", "1", "0.125", "0", "0.13"},
		{"full discount", "7", "12.34", "100", "0.00"},
		{"odd discount", "3", "19.99", "17.5", "49.48"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := LineTotal(dec(tc.qty), dec(tc.price), dec(tc.discount))
			require.True(t, dec(tc.want).Equal(got), "want %s got %s", tc.want, got)
		})
	}
}

func TestTax(t *testing.T) {
	rate := dec("0.17")
	require.True(t, dec("17.00").Equal(Tax(dec("100"), rate)))
	require.True(t, dec("8.42").Equal(Tax(dec("49.50"), rate)))
	// 10.05 * 0.17 = 1.7085 -> 1.71 half away from zero
	require.True(t, dec("1.71").Equal(Tax(dec("10.05"), rate)))
}

func TestOrderTotal(t *testing.T) {
	total := OrderTotal(dec("100.00"), dec("17.00"), dec("25.00"), dec("10.00"))
	require.True(t, dec("132.00").Equal(total))
}

func TestValidDiscountPercent(t *testing.T) {
	require.True(t, ValidDiscountPercent(dec("0")))
	require.True(t, ValidDiscountPercent(dec("100")))
	require.False(t, ValidDiscountPercent(dec("100.01")))
	require.False(t, ValidDiscountPercent(dec("-1")))
}
