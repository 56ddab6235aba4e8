package jobtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseByteSizeSuffixes(t *testing.T) {
	cases := map[string]uint64{
		"1KB":  1 << 10,
		"2MB":  2 << 20,
		"1GB":  1 << 30,
		"512":  512,
		"1.5MB": uint64(1.5 * (1 << 20)),
	}
	for in, want := range cases {
		got, err := ParseByteSize(in)
		require.NoError(t, err)
		require.Equal(t, want, got, in)
	}
}

func TestParseByteSizeInvalid(t *testing.T) {
	_, err := ParseByteSize("")
	require.Error(t, err)
	_, err = ParseByteSize("notanumber")
	require.Error(t, err)
}

func TestParseTimeLimitEmpty(t *testing.T) {
	d, err := ParseTimeLimit("")
	require.NoError(t, err)
	require.Equal(t, time.Duration(0), d)
}

func TestParseTimeLimitCombined(t *testing.T) {
	d, err := ParseTimeLimit("1d 2h 30m")
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour+2*time.Hour+30*time.Minute, d)
}

func TestParseTimeLimitSeconds(t *testing.T) {
	d, err := ParseTimeLimit("45s")
	require.NoError(t, err)
	require.Equal(t, 45*time.Second, d)
}

func TestParseTimeLimitInvalidUnit(t *testing.T) {
	_, err := ParseTimeLimit("5x")
	require.Error(t, err)
}
