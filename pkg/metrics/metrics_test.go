package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordConversion(t *testing.T) {
	before := testutil.ToFloat64(ConversionsTotal.WithLabelValues("convert", "success"))

	RecordConversion("convert", "success", 0.2, 2048, 1024)

	after := testutil.ToFloat64(ConversionsTotal.WithLabelValues("convert", "success"))
	if after-before != 1 {
		t.Errorf("Expected counter to increase by 1, got %v", after-before)
	}
}

func TestRecordRawDecode(t *testing.T) {
	before := testutil.ToFloat64(RawDecoderRuns.WithLabelValues("spawn_error"))
	RecordRawDecode("spawn_error")
	if got := testutil.ToFloat64(RawDecoderRuns.WithLabelValues("spawn_error")); got != before+1 {
		t.Errorf("Expected %v, got %v", before+1, got)
	}
}

func TestWriteTextfile(t *testing.T) {
	RecordQualitySearch(8, 0.8)

	path := filepath.Join(t.TempDir(), "imgtool.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "imgtool_quality_search_attempts") {
		t.Errorf("Expected textfile to contain quality search histogram, got:\n%s", data)
	}
}
