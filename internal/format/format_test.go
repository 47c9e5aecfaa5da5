package format

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMoney(t *testing.T) {
	assert.Equal(t, "$10,900,000.00", Money(10900000))
	assert.Equal(t, "$4,444.44", Money(2000000.0/450.0))
	assert.Equal(t, "$0.00", Money(0))
	assert.Equal(t, "∞", Money(math.Inf(1)))
}

func TestAmount(t *testing.T) {
	assert.Equal(t, "1,250,000.50", Amount(1250000.5))
	assert.Equal(t, "n/a", Amount(math.NaN()))
}

func TestRatio(t *testing.T) {
	assert.Equal(t, "37.5", Ratio(37.5))
	assert.Equal(t, "35.6", Ratio(320.0/9.0))
	assert.Equal(t, "27.3", Ratio(27.344877))
	assert.Equal(t, "n/a", Ratio(math.NaN()))
	assert.Equal(t, "-∞", Ratio(math.Inf(-1)))
}

func TestCount(t *testing.T) {
	assert.Equal(t, "2,480", Count(2480))
	assert.Equal(t, "91", Count(91))
}
