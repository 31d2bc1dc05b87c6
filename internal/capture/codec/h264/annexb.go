package h264

// splitAnnexB returns the NAL units in buf that are terminated by a following
// start code, and the offset of the start code that opens the last, possibly
// incomplete, unit. Bytes before the first start code are discarded. When buf
// holds no start code at all, rest keeps the last two bytes, which may be the
// beginning of a start code split across reads.
func splitAnnexB(buf []byte) (nalus [][]byte, rest int) {
	prev := -1 // payload offset of the unit being scanned
	i := 0
	for i+2 < len(buf) {
		if buf[i] != 0 || buf[i+1] != 0 || buf[i+2] != 1 {
			i++
			continue
		}

		if prev >= 0 {
			if nalu := trimTrailingZeros(buf[prev:i]); len(nalu) > 0 {
				nalus = append(nalus, nalu)
			}
		}
		// A 4-byte start code leaves a zero byte before i; it is trimmed above.
		rest = i
		prev = i + 3
		i = prev
	}

	if prev < 0 {
		rest = len(buf) - 2
		if rest < 0 {
			rest = 0
		}
	}
	return nalus, rest
}

func trimTrailingZeros(b []byte) []byte {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return b[:n]
}
