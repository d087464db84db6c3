// Package audio provides the PCM plumbing between the VOICEVOX synthesis
// output (16-bit mono WAV, typically 24 kHz) and the Discord voice transport
// (48 kHz stereo Opus). It contains a RIFF/WAVE container parser and the
// sample-rate and channel conversions needed for that path.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// WAVInfo holds the format metadata extracted from a RIFF/WAVE header.
type WAVInfo struct {
	// DataOffset is the byte offset of the first PCM sample.
	DataOffset int

	// DataSize is the length of the PCM payload in bytes.
	DataSize int

	// SampleRate in samples per second (VOICEVOX default: 24000).
	SampleRate int

	// Channels: 1 = mono, 2 = stereo.
	Channels int

	// BitsPerSample is the sample width; only 16 is supported downstream.
	BitsPerSample int
}

// PCM returns the raw PCM payload of wav described by info. The slice aliases
// wav, no copy is made.
func (i WAVInfo) PCM(wav []byte) []byte {
	end := i.DataOffset + i.DataSize
	if end > len(wav) || i.DataSize == 0 {
		end = len(wav)
	}
	return wav[i.DataOffset:end]
}

// ParseWAV walks the RIFF chunks in wav and returns the audio format from the
// "fmt " sub-chunk together with the location of the "data" chunk. Walking the
// chunk list is more robust than assuming a fixed 44-byte header because
// encoders may insert extra chunks (LIST, fact) before the sample data.
//
// Returns an error if wav is not a RIFF/WAVE container or lacks a data chunk.
func ParseWAV(wav []byte) (WAVInfo, error) {
	if len(wav) < 12 {
		return WAVInfo{}, errors.New("audio: WAV too short to hold a RIFF header")
	}
	if string(wav[0:4]) != "RIFF" {
		return WAVInfo{}, errors.New("audio: missing RIFF magic")
	}
	if string(wav[8:12]) != "WAVE" {
		return WAVInfo{}, errors.New("audio: missing WAVE identifier")
	}

	var info WAVInfo
	foundFmt := false

	offset := 12
	for offset+8 <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))

		switch chunkID {
		case "fmt ":
			if chunkSize >= 16 && offset+8+16 <= len(wav) {
				fmtData := wav[offset+8:]
				info.Channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
				info.SampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
				info.BitsPerSample = int(binary.LittleEndian.Uint16(fmtData[14:16]))
				foundFmt = true
			}
		case "data":
			if !foundFmt {
				return WAVInfo{}, errors.New("audio: data chunk before fmt chunk")
			}
			info.DataOffset = offset + 8
			info.DataSize = chunkSize
			if info.DataOffset+info.DataSize > len(wav) {
				info.DataSize = len(wav) - info.DataOffset
			}
			return info, nil
		}

		// Chunks are word-aligned: pad by one byte when the size is odd.
		offset += 8 + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return WAVInfo{}, errors.New("audio: WAV missing data chunk")
}

// DecodeWAV parses wav and returns its PCM payload converted to 16-bit
// interleaved stereo at targetRate. This is the single entry point the
// playback path uses for synthesis output.
func DecodeWAV(wav []byte, targetRate int) ([]byte, error) {
	info, err := ParseWAV(wav)
	if err != nil {
		return nil, err
	}
	if info.BitsPerSample != 16 {
		return nil, fmt.Errorf("audio: unsupported sample width %d bits (want 16)", info.BitsPerSample)
	}

	pcm := info.PCM(wav)
	switch info.Channels {
	case 1:
		if info.SampleRate != targetRate {
			pcm = ResampleMono16(pcm, info.SampleRate, targetRate)
		}
		pcm = MonoToStereo16(pcm)
	case 2:
		if info.SampleRate != targetRate {
			return nil, fmt.Errorf("audio: cannot resample stereo PCM from %d Hz", info.SampleRate)
		}
	default:
		return nil, fmt.Errorf("audio: unsupported channel count %d", info.Channels)
	}
	return pcm, nil
}
