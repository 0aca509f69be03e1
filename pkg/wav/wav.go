// Package wav encodes and decodes the minimal RIFF/WAVE container used
// throughout this system: mono, 16-bit signed little-endian PCM.
//
// The encoder wraps raw PCM in a WAV container; the transcription worker
// uses it to re-wrap each merged batch before sending it for inference. The
// decoder/validator inverts that logic so inbound client frames (§4.1) can
// be checked and unwrapped before batching.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// BitsPerSample is the only bit depth this system accepts.
const BitsPerSample = 16

// ErrMalformed is returned by Decode when data is not a well-formed RIFF/WAVE
// container.
var ErrMalformed = errors.New("wav: malformed container")

// Frame is a decoded, validated WAV frame.
type Frame struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// Decode parses a RIFF/WAVE container and returns its PCM payload and audio
// format. It requires PCM format (audio format tag 1) and rejects anything
// else. Channels and SampleRate are taken from the fmt sub-chunk as-is;
// callers that require mono 16kHz must check Frame.Channels/SampleRate
// themselves (see Validate).
func Decode(data []byte) (Frame, error) {
	if len(data) < 44 {
		return Frame{}, fmt.Errorf("%w: shorter than minimum header size", ErrMalformed)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Frame{}, fmt.Errorf("%w: missing RIFF/WAVE markers", ErrMalformed)
	}

	var (
		sampleRate int
		channels   int
		bits       int
		pcm        []byte
		sawFmt     bool
		sawData    bool
	)

	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+size > len(data) {
			return Frame{}, fmt.Errorf("%w: chunk %q overruns buffer", ErrMalformed, id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return Frame{}, fmt.Errorf("%w: fmt chunk too small", ErrMalformed)
			}
			audioFormat := binary.LittleEndian.Uint16(data[body : body+2])
			if audioFormat != 1 {
				return Frame{}, fmt.Errorf("%w: unsupported audio format tag %d (PCM only)", ErrMalformed, audioFormat)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			sawFmt = true
		case "data":
			pcm = data[body : body+size]
			sawData = true
		}

		offset = body + size
		if size%2 == 1 {
			offset++ // chunks are word-aligned
		}
	}

	if !sawFmt || !sawData {
		return Frame{}, fmt.Errorf("%w: missing fmt or data sub-chunk", ErrMalformed)
	}
	if bits != BitsPerSample {
		return Frame{}, fmt.Errorf("%w: unsupported bit depth %d (want %d)", ErrMalformed, bits, BitsPerSample)
	}

	return Frame{PCM: pcm, SampleRate: sampleRate, Channels: channels}, nil
}

// Validate decodes data and additionally requires mono audio at the given
// sample rate, as mandated for inbound audio frames (§4.1, AudioIntake).
func Validate(data []byte, wantSampleRate int) (Frame, error) {
	f, err := Decode(data)
	if err != nil {
		return Frame{}, err
	}
	if f.Channels != 1 {
		return Frame{}, fmt.Errorf("%w: expected mono audio, got %d channels", ErrMalformed, f.Channels)
	}
	if wantSampleRate > 0 && f.SampleRate != wantSampleRate {
		return Frame{}, fmt.Errorf("%w: expected %d Hz sample rate, got %d", ErrMalformed, wantSampleRate, f.SampleRate)
	}
	return f, nil
}

// Encode wraps raw 16-bit signed little-endian PCM in a RIFF/WAVE container.
func Encode(pcm []byte, sampleRate, channels int) []byte {
	byteRate := sampleRate * channels * BitsPerSample / 8
	blockAlign := channels * BitsPerSample / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(BitsPerSample))

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}

// RMS returns the root-mean-square energy of a 16-bit signed little-endian
// PCM buffer, in the same units as PCM sample values (0-32767). Used to
// detect near-silent frames. Returns 0 for buffers shorter than one sample.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		v := float64(sample)
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// DurationMs returns the duration of a PCM buffer in milliseconds given its
// sample rate and channel count. Returns 0 for invalid inputs.
func DurationMs(pcm []byte, sampleRate, channels int) int {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	bytesPerSec := sampleRate * channels * (BitsPerSample / 8)
	return len(pcm) * 1000 / bytesPerSec
}
