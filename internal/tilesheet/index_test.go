package tilesheet

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIndex(t *testing.T) {
	data := "0 0 Grass Block\r\n" +
		"3 1 stone\n" +
		"garbage line\n" +
		"4 0 \n" +
		"\n" +
		"15 2 Iron Ore (Nether)"

	got, err := ParseIndex(strings.NewReader(data))
	require.NoError(t, err)

	want := []Entry{
		{Name: "Grass Block", Position: Position{X: 0, Y: 0}},
		{Name: "stone", Position: Position{X: 3, Y: 1}},
		{Name: "Iron Ore (Nether)", Position: Position{X: 15, Y: 2}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseIndex() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseIndex_Overflow(t *testing.T) {
	_, err := ParseIndex(strings.NewReader("99999999999999999999999 0 grass\n"))
	assert.Error(t, err)
}

func TestFormatIndex(t *testing.T) {
	var buf bytes.Buffer
	err := FormatIndex(&buf, []Entry{
		{Name: "Grass Block", Position: Position{X: 0, Y: 0}},
		{Name: "stone", Position: Position{X: 3, Y: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "0 0 Grass Block\n3 1 stone\n", buf.String())

	back, err := ParseIndex(&buf)
	require.NoError(t, err)
	assert.Len(t, back, 2)
}

func TestFileNames(t *testing.T) {
	assert.Equal(t, "Tilesheet Blocks 32.png", SheetFileName("Blocks", 32))
	assert.Equal(t, "Tilesheet Blocks.txt", IndexFileName("Blocks"))
}

func TestParseIndex_LongName(t *testing.T) {
	long := strings.Repeat("a", 70000)
	var buf bytes.Buffer
	require.NoError(t, FormatIndex(&buf, []Entry{
		{Name: long, Position: Position{X: 0, Y: 0}},
		{Name: "b", Position: Position{X: 1, Y: 0}},
	}))

	got, err := ParseIndex(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, long, got[0].Name)
	assert.Equal(t, "b", got[1].Name)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestParseIndex_ReadError(t *testing.T) {
	_, err := ParseIndex(failingReader{})
	assert.ErrorContains(t, err, "disk gone")
}
