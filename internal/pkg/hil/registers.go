package hil

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DataType defines the Modbus register width for encoding
type DataType string

// Constants of DataType
const (
	u16 DataType = "u16"
	u32 DataType = "u32"
	u64 DataType = "u64"
	i16 DataType = "i16"
	i32 DataType = "i32"
	i64 DataType = "i64"
	f32 DataType = "f32"
	f64 DataType = "f64"
)

// Endian byte order of a Modbus register
type Endian string

// Constants of Endian
const (
	littleEndian Endian = "little"
	bigEndian    Endian = "big"
)

// Register maps one observed signal onto a holding-register block of the
// target device.
type Register struct {
	Signal     string   `json:"Signal"` // observation key, e.g. "BV 1041"
	Address    uint16   `json:"Address"`
	DataType   DataType `json:"DataType"`
	Endianness Endian   `json:"Endianness"`
	Scale      float64  `json:"Scale"` // applied before encoding, 0 means 1
}

func (r Register) scaled(val float64) float64 {
	if r.Scale == 0 {
		return val
	}
	return val * r.Scale
}

// encode converts a float64 into the register block's byte representation
func encode(val float64, register Register) []byte {
	var bytes []byte
	endian := getByteOrder(register.Endianness)
	switch register.DataType {
	case u16, i16:
		bytes = make([]byte, 2*sizeOf(u16))
		endian.PutUint16(bytes, uint16(val))
	case u32, i32:
		bytes = make([]byte, 2*sizeOf(u32))
		endian.PutUint32(bytes, uint32(val))
	case f32:
		bytes = make([]byte, 2*sizeOf(f32))
		endian.PutUint32(bytes, math.Float32bits(float32(val)))
	case u64, i64:
		bytes = make([]byte, 2*sizeOf(u64))
		endian.PutUint64(bytes, uint64(val))
	case f64:
		bytes = make([]byte, 2*sizeOf(f64))
		endian.PutUint64(bytes, math.Float64bits(val))
	}
	return bytes
}

// decode converts a register block's bytes back into a float64
func decode(bytes []byte, register Register) float64 {
	var n float64
	endian := getByteOrder(register.Endianness)
	switch register.DataType {
	case u16:
		n = float64(endian.Uint16(bytes))
	case i16:
		n = float64(int16(endian.Uint16(bytes)))
	case u32:
		n = float64(endian.Uint32(bytes))
	case i32:
		n = float64(int32(endian.Uint32(bytes)))
	case f32:
		bits := endian.Uint32(bytes)
		n = float64(math.Float32frombits(bits))
	case u64:
		n = float64(endian.Uint64(bytes))
	case i64:
		n = float64(int64(endian.Uint64(bytes)))
	case f64:
		bits := endian.Uint64(bytes)
		n = math.Float64frombits(bits)
	}
	return n
}

// getByteOrder returns the binary.ByteOrder for the register type
func getByteOrder(e Endian) binary.ByteOrder {
	switch e {
	case bigEndian:
		return binary.BigEndian
	case littleEndian:
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// sizeOf returns the number of u16 registers for the datatype
func sizeOf(t DataType) uint16 {
	switch t {
	case u16, i16:
		return 1
	case u32, i32, f32:
		return 2
	case u64, i64, f64:
		return 4
	}
	return 0
}

func validateRegisters(registers []Register) error {
	for _, r := range registers {
		if r.Signal == "" {
			return fmt.Errorf("hil: register at address %v maps no signal", r.Address)
		}
		if sizeOf(r.DataType) == 0 {
			return fmt.Errorf("hil: register %v: unknown data type %q", r.Signal, r.DataType)
		}
	}
	return nil
}
