package protocol

import (
	"testing"

	"github.com/danmuck/turnsync/internal/testutil/testlog"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleParticle() Particle {
	return Particle{
		Turn:   3,
		ID:     17,
		Values: [ValueCount]float64{0.5, 0.25, 1, 0.125, 0.75, 0.0625, 0.875},
		Flags:  [FlagCount]int{1, 0},
	}
}

func TestFormatDataFieldOrder(t *testing.T) {
	testlog.Start(t)
	line, err := Format(DataRecord(sampleParticle()))
	require.NoError(t, err)
	assert.Equal(t,
		"D 3 17 5.000000e-01 2.500000e-01 1.000000e+00 1.250000e-01 7.500000e-01 1 0 6.250000e-02 8.750000e-01",
		line)
}

func TestParseDataRecovers(t *testing.T) {
	testlog.Start(t)
	in := sampleParticle()
	line, err := Format(DataRecord(in))
	require.NoError(t, err)

	rec, err := Parse(line)
	require.NoError(t, err)
	assert.Equal(t, TagData, rec.Tag)
	assert.Equal(t, 3, rec.Turn)
	if diff := cmp.Diff(in, rec.Particle); diff != "" {
		t.Fatalf("particle mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTurnEndForms(t *testing.T) {
	testlog.Start(t)
	rec, err := Parse("T 42")
	require.NoError(t, err)
	if diff := cmp.Diff(TurnEndRecord(42), rec); diff != "" {
		t.Fatalf("numbered turn end (-want +got):\n%s", diff)
	}

	rec, err = Parse("T")
	require.NoError(t, err)
	assert.Equal(t, TagTurnEnd, rec.Tag)
	assert.False(t, rec.Numbered)

	line, err := Format(rec)
	require.NoError(t, err)
	assert.Equal(t, "T", line)
}

func TestParseStop(t *testing.T) {
	testlog.Start(t)
	rec, err := Parse("E")
	require.NoError(t, err)
	assert.Equal(t, StopRecord(), rec)
	assert.Equal(t, "E", rec.String())
}

func TestParseErrors(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		line string
		want error
	}{
		{"", ErrEmptyRecord},
		{"   ", ErrEmptyRecord},
		{"X 1", ErrUnknownTag},
		{"DATA 1", ErrUnknownTag},
		{"T one", ErrMalformedRecord},
		{"T 1 2", ErrFieldCount},
		{"E now", ErrFieldCount},
		{"D 1 2 3", ErrFieldCount},
		{"D 1 2 a 0 0 0 0 1 1 0 0", ErrMalformedRecord},
		{"D 1 2 0 0 0 0 0 x 1 0 0", ErrMalformedRecord},
	}
	for _, tc := range cases {
		_, err := Parse(tc.line)
		assert.ErrorIs(t, err, tc.want, "line %q", tc.line)
	}
}

func TestClassifyUsesFirstByte(t *testing.T) {
	testlog.Start(t)
	assert.Equal(t, TagData, Classify("D garbage is not inspected"))
	assert.Equal(t, TagTurnEnd, Classify("T"))
	assert.Equal(t, TagStop, Classify("E"))
	assert.Equal(t, TagUnknown, Classify(""))
	assert.Equal(t, TagUnknown, Classify("Q 1"))
}

func TestFormatUnknownTag(t *testing.T) {
	testlog.Start(t)
	_, err := Format(Record{Tag: Tag('Z')})
	assert.ErrorIs(t, err, ErrUnknownTag)
}
