package gatt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Heart rate measurement flags (Heart Rate Service 1.0, 3.1.1.1).
//
//	| 0x10 | 0x8 | 0x4  0x2 | 0x1 |
//	|  rr  | nrg | scs  cnt | fmt |
const (
	flagUint16     = 0x01
	flagContact    = 0x06
	flagContactSup = 0x04
	flagEnergy     = 0x08
	flagRR         = 0x10
)

var errShortMeasurement = errors.New("short heart rate measurement")

// Measurement is a decoded 0x2A37 notification.
type Measurement struct {
	BPM              uint16
	RR               []float64 // milliseconds
	Energy           int       // kJ, -1 when absent
	Contact          bool
	ContactSupported bool
}

// DecodeMeasurement parses the heart rate measurement characteristic value.
func DecodeMeasurement(data []byte) (Measurement, error) {
	if len(data) < 2 {
		return Measurement{}, fmt.Errorf("%w: %d bytes", errShortMeasurement, len(data))
	}

	flags := data[0]
	m := Measurement{
		Energy:           -1,
		Contact:          flags&flagContact == flagContact,
		ContactSupported: flags&flagContactSup != 0,
	}
	offset := 1

	if flags&flagUint16 != 0 {
		if len(data) < offset+2 {
			return Measurement{}, fmt.Errorf("%w: missing uint16 rate", errShortMeasurement)
		}
		m.BPM = binary.LittleEndian.Uint16(data[offset:])
		offset += 2
	} else {
		m.BPM = uint16(data[offset])
		offset++
	}

	if flags&flagEnergy != 0 {
		if len(data) < offset+2 {
			return Measurement{}, fmt.Errorf("%w: missing energy expended", errShortMeasurement)
		}
		m.Energy = int(binary.LittleEndian.Uint16(data[offset:]))
		offset += 2
	}

	if flags&flagRR != 0 {
		rr := data[offset:]
		m.RR = make([]float64, 0, len(rr)/2)
		// odd trailing byte is ignored
		for i := 0; i+1 < len(rr); i += 2 {
			raw := binary.LittleEndian.Uint16(rr[i:])
			m.RR = append(m.RR, math.Round(float64(raw)*1000/1024))
		}
	}

	return m, nil
}
