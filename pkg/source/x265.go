package source

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
)

// x265BitsColumn is the "Bits" column of an x265 --csv frame log.
const x265BitsColumn = 4

// ReadX265CSV reads an x265 --csv-log-level 1 frame log. Rows whose bits
// column is not an integer (header, summary lines) are skipped. The log does
// not record the frame rate, so FPS is 0.
func ReadX265CSV(r io.Reader) (*FrameLog, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	log := &FrameLog{Format: "x265"}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				continue
			}
			return nil, err
		}
		if len(record) <= x265BitsColumn {
			continue
		}
		bits, err := strconv.ParseInt(strings.TrimSpace(record[x265BitsColumn]), 10, 64)
		if err != nil || bits <= 0 {
			continue
		}
		log.Sizes = append(log.Sizes, bits)
	}

	if len(log.Sizes) == 0 {
		return nil, ErrNoFrames
	}
	return log, nil
}
