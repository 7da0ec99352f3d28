package source

import (
	"errors"
	"fmt"
	"io"

	"github.com/pion/webrtc/v4/pkg/media/h264reader"
)

// ReadAnnexB reads a raw H.264 Annex-B elementary stream and sums NAL unit
// sizes per access unit, start codes included. Raw streams carry no timing,
// so FPS is 0.
//
// A new access unit starts at an access unit delimiter, SPS, PPS or SEI that
// follows a coded slice, or at a coded slice whose first_mb_in_slice is 0.
func ReadAnnexB(r io.Reader) (*FrameLog, error) {
	// The NAL reader strips start codes and withholds SEI units, so the
	// scanner sees the same bytes and keeps the exact size of every unit.
	scan := &startCodeScanner{}
	reader, err := h264reader.NewReader(io.TeeReader(r, scan))
	if err != nil {
		return nil, fmt.Errorf("h264 reader: %w", err)
	}

	log := &FrameLog{Format: "h264"}
	var current int64
	sawSlice := false

	flush := func() {
		if sawSlice {
			log.Sizes = append(log.Sizes, current)
			current = 0
			sawSlice = false
		}
	}
	add := func(unitType h264reader.NalUnitType, data []byte, bits int64) {
		switch unitType {
		case h264reader.NalUnitTypeAUD, h264reader.NalUnitTypeSPS,
			h264reader.NalUnitTypePPS, h264reader.NalUnitTypeSEI:
			flush()
		case h264reader.NalUnitTypeCodedSliceIdr, h264reader.NalUnitTypeCodedSliceNonIdr:
			if firstSliceOfPicture(data) {
				flush()
			}
			sawSlice = true
		}
		current += bits
	}

	for {
		nal, err := reader.NextNAL()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("h264 nal: %w", err)
		}

		unit, ok := scan.next(nal.UnitType)
		for ok && unit.unitType != nal.UnitType {
			// Withheld by the reader; only start and size are known.
			add(unit.unitType, nil, unit.bits())
			unit, ok = scan.next(nal.UnitType)
		}
		bits := int64(len(nal.Data)+4) * 8
		if ok {
			bits = unit.bits()
		}
		add(nal.UnitType, nal.Data, bits)
	}
	flush()

	if len(log.Sizes) == 0 {
		return nil, ErrNoFrames
	}
	return log, nil
}

// nalUnit is one NAL unit as laid out in the raw stream.
type nalUnit struct {
	startCode int // 3 or 4 bytes
	unitType  h264reader.NalUnitType
	size      int // header and payload bytes up to the next start code
}

func (u nalUnit) bits() int64 {
	return int64(u.startCode+u.size) * 8
}

// startCodeScanner records every NAL unit of an Annex-B byte stream in
// stream order. Emulation prevention guarantees 00 00 01 never occurs
// inside a unit.
type startCodeScanner struct {
	zeros  int
	header bool
	units  []nalUnit
}

func (s *startCodeScanner) Write(p []byte) (int, error) {
	for _, b := range p {
		n := len(s.units)
		if n > 0 {
			s.units[n-1].size++
		}
		if s.header {
			s.units[n-1].unitType = h264reader.NalUnitType(b & 0x1F)
			s.header = false
		}

		switch {
		case b == 0:
			s.zeros++
		case b == 1 && s.zeros >= 2:
			// Zeros beyond a 4-byte start code are trailing bytes of the
			// previous unit.
			code := min(s.zeros, 3) + 1
			if n > 0 {
				s.units[n-1].size -= code
			}
			s.units = append(s.units, nalUnit{startCode: code})
			s.header = true
			s.zeros = 0
		default:
			s.zeros = 0
		}
	}
	return len(p), nil
}

// next pops the oldest recorded unit. ok is false once every recorded unit
// has been consumed, or when none of them has type want.
func (s *startCodeScanner) next(want h264reader.NalUnitType) (nalUnit, bool) {
	found := false
	for _, u := range s.units {
		if u.unitType == want {
			found = true
			break
		}
	}
	if !found {
		return nalUnit{}, false
	}
	u := s.units[0]
	s.units = s.units[1:]
	return u, true
}
