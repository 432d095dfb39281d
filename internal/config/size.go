package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteSize is a byte count written in config files as "5MiB", "512KB" or a
// bare integer. It formats back in binary units, so a size printed by the
// CLI can be pasted into inline_max_size unchanged.
type ByteSize int64

const (
	kilobyte = 1000
	megabyte = 1000 * kilobyte
	gigabyte = 1000 * megabyte

	kibibyte = 1024
	mebibyte = 1024 * kibibyte
	gibibyte = 1024 * mebibyte
)

// Longest suffix first: "MIB" must win over "B".
var sizeSuffixes = []struct {
	suffix     string
	multiplier int64
}{
	{"GIB", gibibyte},
	{"MIB", mebibyte},
	{"KIB", kibibyte},
	{"GB", gigabyte},
	{"MB", megabyte},
	{"KB", kilobyte},
	{"B", 1},
}

// UnmarshalText lets TOML string values decode straight into a ByteSize.
func (b *ByteSize) UnmarshalText(text []byte) error {
	n, err := ParseSize(string(text))
	if err != nil {
		return err
	}

	*b = ByteSize(n)

	return nil
}

// MarshalText is the inverse of UnmarshalText.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// String renders b with one decimal in the largest binary unit it fills,
// e.g. "1.5 MiB". Values under 1 KiB are plain bytes.
func (b ByteSize) String() string {
	switch n := int64(b); {
	case n >= gibibyte:
		return fmt.Sprintf("%.1f GiB", float64(n)/gibibyte)
	case n >= mebibyte:
		return fmt.Sprintf("%.1f MiB", float64(n)/mebibyte)
	case n >= kibibyte:
		return fmt.Sprintf("%.1f KiB", float64(n)/kibibyte)
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// ParseSize converts a size string to bytes. SI (KB, MB, GB) and IEC (KiB,
// MiB, GiB) suffixes are accepted case-insensitively, with or without a
// space before them; a bare number is raw bytes.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	upper := strings.ToUpper(s)

	for _, sf := range sizeSuffixes {
		if num, ok := strings.CutSuffix(upper, sf.suffix); ok {
			return scaleSize(strings.TrimSpace(num), sf.multiplier, s)
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}

	if n < 0 {
		return 0, fmt.Errorf("invalid size %q: must be non-negative", s)
	}

	return n, nil
}

func scaleSize(num string, multiplier int64, original string) (int64, error) {
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", original, err)
	}

	if f < 0 {
		return 0, fmt.Errorf("invalid size %q: must be non-negative", original)
	}

	return int64(f * float64(multiplier)), nil
}
