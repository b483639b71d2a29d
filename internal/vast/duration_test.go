package vast

import (
	"encoding/xml"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"00:00:00", 0},
		{"00:00:05", 5},
		{"00:01:00", 60},
		{"01:00:00", 3600},
		{"00:00:30.500", 30.5},
		{"  00:02:15  ", 135},
	}
	for _, c := range cases {
		got, err := parseClock(c.in)
		require.NoError(t, err, c.in)
		require.InDelta(t, c.want, got, 0.001, c.in)
	}
}

func TestParseClock_Invalid(t *testing.T) {
	_, err := parseClock("not-a-clock")
	require.Error(t, err)

	_, err = parseClock("00:00")
	require.Error(t, err)
}

func TestDuration_UnmarshalXML(t *testing.T) {
	type wrapper struct {
		D Duration `xml:"Duration"`
	}
	var w wrapper
	err := xml.Unmarshal([]byte(`<wrapper><Duration>00:00:15</Duration></wrapper>`), &w)
	require.NoError(t, err)
	require.Equal(t, 15.0, w.D.Seconds)
}
