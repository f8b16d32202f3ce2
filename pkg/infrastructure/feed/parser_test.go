package feed

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/vmi/pkg/domain/repositories"
)

func fixedClock() time.Time { return processingDate }

func TestParser_Parse(t *testing.T) {
	feed := strings.Join([]string{
		"45FL907465H111925CLFDB",
		"45FL907465D  1L-61370444-14        5500EA00000.1269011/19/2025  A",
		detailLine("45FL", "907465", 2, "PART-A               1200EA      11/30/2025      X"),
		"",
		"XX",
		"45FL907466X111925",
		"45FL907467H111925CLFDB",
		"45FL907468H111925CLFDB",
		detailLine("45FL", "907468", 1, "PART-B               300EA00012.3456 LEGACY-FIELDS-XYZ"),
		detailLine("45FL", "999999", 2, "PART-B               300EA00012.3456 LEGACY-FIELDS-XYZ"),
		"45FL907469H139925CLFDB",
		detailLine("45FL", "907469", 1, "PART-C               300EA00012.3456 LEGACY-FIELDS-XYZ"),
	}, "\n")

	result, err := NewParser(fixedClock).Parse(strings.NewReader(feed))
	require.NoError(t, err)

	require.Len(t, result.Orders, 2)
	first := result.Orders[0]
	assert.Equal(t, "907465", first.Header.OrderNumber)
	require.Len(t, first.Lines, 2)
	assert.Same(t, first.Header, first.Lines[0].Header)
	assert.Same(t, first.Header, first.Lines[1].Header)
	assert.Equal(t, 1, first.Lines[0].LineNumber)
	assert.Equal(t, 2, first.Lines[1].LineNumber)

	second := result.Orders[1]
	assert.Equal(t, "907468", second.Header.OrderNumber)
	require.Len(t, second.Lines, 1)

	assert.Equal(t, []string{"907465", "907468"}, result.OrderNumbers())
	assert.Len(t, result.Lines(), 3)

	var lines []int
	for _, d := range result.Diagnostics {
		lines = append(lines, d.Line)
	}
	assert.Equal(t, []int{5, 6, 10, 11, 12}, lines)
	assert.Equal(t, "Line 5: Too short to parse", result.Diagnostics[0].Error())
	assert.Equal(t, "Line 6: Unknown record type 'X'", result.Diagnostics[1].Error())
	assert.Contains(t, result.Diagnostics[2].Reason, "Detail does not match header")
	assert.Contains(t, result.Diagnostics[3].Reason, "Failed to parse header")
	assert.Equal(t, "Detail without a preceding header", result.Diagnostics[4].Reason)
}

func TestParser_Parse_OnlyMalformedLines(t *testing.T) {
	feed := "garbage\n45FL907465Q111925\n" + detailLine("45FL", "907465", 1, "PART-A               1200EA00000.1000 11/30/2025   ZZ") + "\n"

	result, err := NewParser(fixedClock).Parse(strings.NewReader(feed))
	require.NoError(t, err)
	assert.Empty(t, result.Orders)
	assert.Len(t, result.Diagnostics, 3)
}

func TestParser_Parse_HeaderWithoutLinesIsDropped(t *testing.T) {
	feed := "45FL907465H111925\n45FL907466H111925\n"

	result, err := NewParser(fixedClock).Parse(strings.NewReader(feed))
	require.NoError(t, err)
	assert.Empty(t, result.Orders)
	assert.Empty(t, result.Diagnostics)
}

func TestParser_Parse_CRLFAndInvalidUTF8(t *testing.T) {
	feed := "45FL907465H111925CLFDB\r\n" +
		detailLine("45FL", "907465", 1, "PART-A               1200EA00000.1000 11/30/2025   ZZ") + "\xff\r\n"

	result, err := NewParser(fixedClock).Parse(strings.NewReader(feed))
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)
	assert.Equal(t, "PART-A", string(result.Orders[0].Lines[0].Part))
}

func TestParser_ParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qadp0961_7360_251030070105.txt")
	content := "45FL907465H111925CLFDB\n45FL907465D  1L-61370444-14        5500EA00000.1269011/19/2025  A\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	parser := NewParser(fixedClock)
	result, err := parser.ParseFile(path)
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)

	_, err = parser.ParseFile(filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, repositories.ErrFileNotFound))
}
