package pi30

const (
	crcPolynomial uint16 = 0x1021
	crcSeed       uint16 = 0x22cd
)

// Checksum computes the CRC-16 variant the PI30 protocol family uses:
// poly 0x1021, MSB-first, seeded with the protocol constant. The device
// computes the same value over the payload bytes of every frame, so this
// function must match it bit for bit.
func Checksum(data []byte) uint16 {
	crc := crcSeed
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func checksumBytes(data []byte) (hi, lo byte) {
	crc := Checksum(data)
	return byte(crc >> 8), byte(crc)
}
