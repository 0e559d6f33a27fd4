// Package audio provides audio processing utilities.
//
// mulaw.go implements μ-law (G.711) conversions for the 8 kHz telephony
// path. Decoded samples are plain int16 PCM, ready to feed the detector.
//
// Reference: ITU-T G.711 specification

package audio

// MuLaw codec constants
const (
	MuLawBias      = 0x84  // Bias for linear code
	MuLawClip      = 32635 // Maximum linear magnitude
	MuLawSegShift  = 4
	MuLawQuantMask = 0x0f
)

// muLawDecompressTable is a pre-computed lookup table for μ-law to linear
// PCM conversion. Each μ-law byte maps to a 16-bit signed PCM value.
var muLawDecompressTable = [256]int16{
	-32124, -31100, -30076, -29052, -28028, -27004, -25980, -24956,
	-23932, -22908, -21884, -20860, -19836, -18812, -17788, -16764,
	-15996, -15484, -14972, -14460, -13948, -13436, -12924, -12412,
	-11900, -11388, -10876, -10364, -9852, -9340, -8828, -8316,
	-7932, -7676, -7420, -7164, -6908, -6652, -6396, -6140,
	-5884, -5628, -5372, -5116, -4860, -4604, -4348, -4092,
	-3900, -3772, -3644, -3516, -3388, -3260, -3132, -3004,
	-2876, -2748, -2620, -2492, -2364, -2236, -2108, -1980,
	-1884, -1820, -1756, -1692, -1628, -1564, -1500, -1436,
	-1372, -1308, -1244, -1180, -1116, -1052, -988, -924,
	-876, -844, -812, -780, -748, -716, -684, -652,
	-620, -588, -556, -524, -492, -460, -428, -396,
	-372, -356, -340, -324, -308, -292, -276, -260,
	-244, -228, -212, -196, -180, -164, -148, -132,
	-120, -112, -104, -96, -88, -80, -72, -64,
	-56, -48, -40, -32, -24, -16, -8, 0,
	32124, 31100, 30076, 29052, 28028, 27004, 25980, 24956,
	23932, 22908, 21884, 20860, 19836, 18812, 17788, 16764,
	15996, 15484, 14972, 14460, 13948, 13436, 12924, 12412,
	11900, 11388, 10876, 10364, 9852, 9340, 8828, 8316,
	7932, 7676, 7420, 7164, 6908, 6652, 6396, 6140,
	5884, 5628, 5372, 5116, 4860, 4604, 4348, 4092,
	3900, 3772, 3644, 3516, 3388, 3260, 3132, 3004,
	2876, 2748, 2620, 2492, 2364, 2236, 2108, 1980,
	1884, 1820, 1756, 1692, 1628, 1564, 1500, 1436,
	1372, 1308, 1244, 1180, 1116, 1052, 988, 924,
	876, 844, 812, 780, 748, 716, 684, 652,
	620, 588, 556, 524, 492, 460, 428, 396,
	372, 356, 340, 324, 308, 292, 276, 260,
	244, 228, 212, 196, 180, 164, 148, 132,
	120, 112, 104, 96, 88, 80, 72, 64,
	56, 48, 40, 32, 24, 16, 8, 0,
}

// muLawSegmentTable is a segment end lookup for μ-law encoding
var muLawSegmentTable = [8]int16{0xFF, 0x1FF, 0x3FF, 0x7FF, 0xFFF, 0x1FFF, 0x3FFF, 0x7FFF}

// MuLawDecode converts a single μ-law byte to a 16-bit signed PCM sample.
func MuLawDecode(mulaw byte) int16 {
	return muLawDecompressTable[mulaw]
}

// MuLawEncode converts a 16-bit signed PCM sample to μ-law.
func MuLawEncode(pcm int16) byte {
	// Determine sign and get magnitude
	sign := (pcm >> 8) & 0x80
	if sign != 0 {
		pcm = -pcm
	}
	if pcm > MuLawClip {
		pcm = MuLawClip
	}
	pcm = pcm + MuLawBias

	// Find segment
	segment := 7
	for i := 0; i < 8; i++ {
		if pcm <= muLawSegmentTable[i] {
			segment = i
			break
		}
	}

	// Combine sign, segment, and quantization
	return byte(^(sign | (int16(segment) << MuLawSegShift) | ((pcm >> (segment + 3)) & MuLawQuantMask)))
}

// DecodeMuLawSamples converts μ-law encoded bytes to int16 PCM samples.
// One output sample per input byte.
func DecodeMuLawSamples(mulaw []byte) []int16 {
	samples := make([]int16, len(mulaw))
	for i, b := range mulaw {
		samples[i] = muLawDecompressTable[b]
	}
	return samples
}

// EncodeMuLawSamples converts int16 PCM samples to μ-law encoded bytes.
func EncodeMuLawSamples(samples []int16) []byte {
	mulaw := make([]byte, len(samples))
	for i, s := range samples {
		mulaw[i] = MuLawEncode(s)
	}
	return mulaw
}
