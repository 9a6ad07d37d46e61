package converter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/harliandi/imgtool/internal/codec"
	"github.com/harliandi/imgtool/internal/fsutil"
	"github.com/harliandi/imgtool/pkg/metrics"
	"github.com/harliandi/imgtool/pkg/quality"
)

// CompressStatus tells a real compression apart from a no-op.
type CompressStatus int

const (
	Compressed CompressStatus = iota
	// AlreadyWithinLimit means the input file is no larger than the limit;
	// nothing was encoded or written.
	AlreadyWithinLimit
)

// CompressResult describes a finished Compress call.
type CompressResult struct {
	Status     CompressStatus
	Data       []byte
	Quality    float64
	Attempts   int
	InputBytes int64
}

// Compress re-encodes inPath at the highest quality whose output is at most
// limit bytes and writes it to outPath. Dimensions are never changed, and the
// output format must equal the input format.
func (c *Converter) Compress(inPath string, limit int, outPath string) (res *CompressResult, err error) {
	start := time.Now()
	defer func() {
		status := statusOf(err)
		var in, out int64
		if res != nil {
			in = res.InputBytes
			if res.Status == AlreadyWithinLimit {
				status = "skipped"
			} else {
				out = int64(len(res.Data))
			}
		}
		metrics.RecordConversion(string(ModeCompress), status, time.Since(start).Seconds(), in, out)
	}()

	format := codec.FormatOf(inPath)
	if outFormat := codec.FormatOf(outPath); format != outFormat {
		return nil, fmt.Errorf("%w: %q vs %q", ErrFormatMismatch, format, outFormat)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit %d", quality.ErrTooSmallTarget, limit)
	}
	if !c.codec.CanWrite(format) {
		return nil, fmt.Errorf("%w: %q", quality.ErrNoEncoder, format)
	}

	st, err := os.Stat(inPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, inPath)
		}
		return nil, fmt.Errorf("%w: %v", ErrInputUnreadable, err)
	}

	if st.Size() <= int64(limit) {
		data, err := os.ReadFile(inPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInputUnreadable, err)
		}
		return &CompressResult{Status: AlreadyWithinLimit, Data: data, InputBytes: st.Size()}, nil
	}

	if !c.codec.CanRead(format) {
		return nil, fmt.Errorf("%w: no decoder for %q", ErrInputUnreadable, format)
	}
	img, n, err := c.load(inPath, format)
	if err != nil {
		return nil, err
	}

	found, err := quality.Search(c.codec, img, format, limit, c.opts.Search)
	if err != nil {
		return nil, err
	}
	metrics.RecordQualitySearch(found.Attempts, found.Quality)

	if err := fsutil.WriteFileAtomic(outPath, found.Data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutputUnwritable, err)
	}

	return &CompressResult{
		Status:     Compressed,
		Data:       found.Data,
		Quality:    found.Quality,
		Attempts:   found.Attempts,
		InputBytes: n,
	}, nil
}
