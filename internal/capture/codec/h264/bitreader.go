package h264

import (
	"fmt"
)

// bitReader reads the exp-Golomb coded fields at the start of a slice header.
type bitReader struct {
	data    []byte
	bitPos  int // bit position within the current byte, 0-7
	bytePos int
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{data: data}
}

func (br *bitReader) readBit() (uint32, error) {
	if br.bytePos >= len(br.data) {
		return 0, fmt.Errorf("end of data")
	}

	bit := (br.data[br.bytePos] >> (7 - br.bitPos)) & 1
	br.bitPos++

	if br.bitPos == 8 {
		br.bitPos = 0
		br.bytePos++
	}

	return uint32(bit), nil
}

// readBits reads n bits, most significant first (n <= 32).
func (br *bitReader) readBits(n int) (uint32, error) {
	if n > 32 || n < 0 {
		return 0, fmt.Errorf("invalid bit count: %d", n)
	}

	available := (len(br.data)-br.bytePos)*8 - br.bitPos
	if available < n {
		return 0, fmt.Errorf("not enough bits: need %d, have %d", n, available)
	}

	var result uint32
	for i := 0; i < n; i++ {
		bit, err := br.readBit()
		if err != nil {
			return 0, err
		}
		result = (result << 1) | bit
	}

	return result, nil
}

// readUE reads an unsigned exp-Golomb value.
func (br *bitReader) readUE() (uint32, error) {
	leadingZeros := 0
	for {
		bit, err := br.readBit()
		if err != nil {
			return 0, err
		}
		if bit == 1 {
			break
		}
		leadingZeros++

		if leadingZeros > 31 {
			return 0, fmt.Errorf("too many leading zeros in UE")
		}
	}

	if leadingZeros == 0 {
		return 0, nil
	}

	suffix, err := br.readBits(leadingZeros)
	if err != nil {
		return 0, err
	}

	return (1 << leadingZeros) - 1 + suffix, nil
}
