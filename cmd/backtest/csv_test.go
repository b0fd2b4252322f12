package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCandles(t *testing.T) {
	input := strings.Join([]string{
		"\ufefftimestamp_ms,open,high,low,close,volume",
		"1700003600000,101,103,100,102,12.5",
		"1700000000000,100,102,99,101,10",
		"1700000000000,100,102,99,101,10", // duplicate
		"1700007200000,abc,103,100,102,1", // bad price
		"1700010800000,102,101,103,102,1", // high < low
		"1700014400,102,104,101,103,3.25", // seconds
		"1700018000000,103,105",           // short row
	}, "\n")

	candles, skipped, err := readCandles(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 4, skipped)
	require.Len(t, candles, 3)

	assert.Equal(t, int64(1700000000000), candles[0].Timestamp)
	assert.Equal(t, int64(1700003600000), candles[1].Timestamp)
	assert.Equal(t, int64(1700014400000), candles[2].Timestamp)
	assert.Equal(t, 12.5, candles[1].Volume)
	assert.Equal(t, 103.0, candles[2].Close)
}

func TestReadCandles_NoHeader(t *testing.T) {
	candles, skipped, err := readCandles(strings.NewReader("1700000000000,1,2,0.5,1.5,100\n"))
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, candles, 1)
	assert.Equal(t, 0.5, candles[0].Low)
}

func TestReadCandlesFile_Missing(t *testing.T) {
	_, _, err := readCandlesFile("does-not-exist.csv")
	assert.ErrorContains(t, err, "open candles csv")
}
