package config

import (
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"0", 0},
		{"4096", 4096},
		{"1KB", 1000},
		{"1kib", 1024},
		{"5MiB", 5 << 20},
		{"5.0 MiB", 5 << 20},
		{"2MB", 2_000_000},
		{"1GiB", 1 << 30},
		{"512 B", 512},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSize_Rejects(t *testing.T) {
	for _, in := range []string{"lots", "MiB", "-1", "-5MiB", "1TB"} {
		_, err := ParseSize(in)
		assert.Error(t, err, in)
	}

	_, err := ParseSize("-2KB")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be non-negative")
}

func TestByteSize_String(t *testing.T) {
	tests := []struct {
		n    ByteSize
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1536, "1.5 KiB"},
		{5 << 20, "5.0 MiB"},
		{3 << 29, "1.5 GiB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.n.String())
	}
}

// Whatever the CLI prints for an inline limit parses back to the same limit.
func TestByteSize_PrintedFormParses(t *testing.T) {
	for _, n := range []ByteSize{512, 1 << 10, 5 << 20, 1 << 30} {
		var back ByteSize
		require.NoError(t, back.UnmarshalText([]byte(n.String())))
		assert.Equal(t, n, back)
	}
}

func TestByteSize_TOML(t *testing.T) {
	var doc struct {
		Text  ByteSize `toml:"text"`
		Plain ByteSize `toml:"plain"`
	}

	_, err := toml.Decode("text = \"256KiB\"\nplain = 2048\n", &doc)
	require.NoError(t, err)
	assert.Equal(t, ByteSize(256<<10), doc.Text)
	assert.Equal(t, ByteSize(2048), doc.Plain)

	_, err = toml.Decode(`text = "huge"`, &doc)
	assert.Error(t, err)
}
