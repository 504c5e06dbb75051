package wall

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// RecordSize is the size of the persisted baseline: four little endian
// float32 values, side channels first.
const RecordSize = 16

// ErrCalibrationMissing indicates the baseline record is absent or short.
var ErrCalibrationMissing = errors.New("wall calibration missing")

// ReadBaseline decodes a baseline record.
func ReadBaseline(r io.Reader) (Value, error) {
	var rec [4]float32
	if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Value{}, ErrCalibrationMissing
		}
		return Value{}, err
	}
	var v Value
	for i, x := range rec {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return Value{}, fmt.Errorf("%w: channel %d is %v", ErrCalibrationMissing, i, x)
		}
		v[i] = float64(x)
	}
	return v, nil
}

// WriteBaseline encodes a baseline record.
func WriteBaseline(w io.Writer, v Value) error {
	var rec [4]float32
	for i, x := range v {
		rec[i] = float32(x)
	}
	return binary.Write(w, binary.LittleEndian, rec)
}

// LoadBaseline reads the record at path.
func LoadBaseline(path string) (Value, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Value{}, fmt.Errorf("%w: %s not found", ErrCalibrationMissing, path)
	}
	if err != nil {
		return Value{}, err
	}
	if len(data) < RecordSize {
		return Value{}, fmt.Errorf("%w: %s has %d bytes", ErrCalibrationMissing, path, len(data))
	}
	return ReadBaseline(bytes.NewReader(data))
}

// SaveBaseline writes the record to path.
func SaveBaseline(path string, v Value) error {
	var buf bytes.Buffer
	if err := WriteBaseline(&buf, v); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
