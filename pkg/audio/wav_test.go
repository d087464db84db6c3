package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildWAV constructs a minimal valid RIFF/WAVE byte slice around pcm with the
// given format. Standard 44-byte layout: RIFF descriptor, fmt chunk, data chunk.
func buildWAV(pcm []byte, sampleRate, channels, bits int) []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian

	putU32 := func(v uint32) {
		var b [4]byte
		le.PutUint32(b[:], v)
		buf.Write(b[:])
	}
	putU16 := func(v uint16) {
		var b [2]byte
		le.PutUint16(b[:], v)
		buf.Write(b[:])
	}

	byteRate := sampleRate * channels * bits / 8
	blockAlign := channels * bits / 8

	buf.WriteString("RIFF")
	putU32(uint32(4 + 24 + 8 + len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	putU32(16)
	putU16(1) // PCM
	putU16(uint16(channels))
	putU32(uint32(sampleRate))
	putU32(uint32(byteRate))
	putU16(uint16(blockAlign))
	putU16(uint16(bits))

	buf.WriteString("data")
	putU32(uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

func TestParseWAV(t *testing.T) {
	t.Parallel()

	pcm := []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00, 0x04, 0x00}
	wav := buildWAV(pcm, 24000, 1, 16)

	info, err := ParseWAV(wav)
	if err != nil {
		t.Fatalf("ParseWAV: unexpected error: %v", err)
	}
	if info.SampleRate != 24000 {
		t.Errorf("SampleRate = %d, want 24000", info.SampleRate)
	}
	if info.Channels != 1 {
		t.Errorf("Channels = %d, want 1", info.Channels)
	}
	if info.BitsPerSample != 16 {
		t.Errorf("BitsPerSample = %d, want 16", info.BitsPerSample)
	}
	if got := info.PCM(wav); !bytes.Equal(got, pcm) {
		t.Errorf("PCM() = %v, want %v", got, pcm)
	}
}

func TestParseWAV_ExtraChunkBeforeData(t *testing.T) {
	t.Parallel()

	// Insert a LIST chunk between fmt and data; the parser must skip it.
	pcm := []byte{0xAA, 0x00}
	wav := buildWAV(pcm, 24000, 1, 16)

	// Splice a 6-byte LIST chunk (odd payload size 5 exercises word alignment)
	// in front of the data chunk, which starts at offset 36.
	list := append([]byte("LIST"), 5, 0, 0, 0, 'I', 'N', 'F', 'O', 'x', 0)
	spliced := append(append(append([]byte{}, wav[:36]...), list...), wav[36:]...)

	info, err := ParseWAV(spliced)
	if err != nil {
		t.Fatalf("ParseWAV: unexpected error: %v", err)
	}
	if got := info.PCM(spliced); !bytes.Equal(got, pcm) {
		t.Errorf("PCM() = %v, want %v", got, pcm)
	}
}

func TestParseWAV_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		wav  []byte
	}{
		{"empty", nil},
		{"too short", []byte("RIFF")},
		{"bad magic", append([]byte("JUNK????WAVE"), make([]byte, 32)...)},
		{"not wave", append([]byte("RIFF????AVI "), make([]byte, 32)...)},
		{"no data chunk", buildWAV(nil, 24000, 1, 16)[:36]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseWAV(tt.wav); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestDecodeWAV_MonoToTargetStereo(t *testing.T) {
	t.Parallel()

	// 240 mono samples at 24 kHz → 480 samples at 48 kHz → 480 stereo pairs.
	pcm := make([]byte, 240*2)
	wav := buildWAV(pcm, 24000, 1, 16)

	out, err := DecodeWAV(wav, 48000)
	if err != nil {
		t.Fatalf("DecodeWAV: unexpected error: %v", err)
	}
	if want := 480 * 2 * 2; len(out) != want {
		t.Errorf("len(out) = %d, want %d", len(out), want)
	}
}

func TestDecodeWAV_StereoAtTargetRatePassesThrough(t *testing.T) {
	t.Parallel()

	pcm := []byte{1, 0, 1, 0, 2, 0, 2, 0}
	wav := buildWAV(pcm, 48000, 2, 16)

	out, err := DecodeWAV(wav, 48000)
	if err != nil {
		t.Fatalf("DecodeWAV: unexpected error: %v", err)
	}
	if !bytes.Equal(out, pcm) {
		t.Errorf("out = %v, want %v", out, pcm)
	}
}

func TestDecodeWAV_Unsupported(t *testing.T) {
	t.Parallel()

	if _, err := DecodeWAV(buildWAV(nil, 24000, 1, 8), 48000); err == nil {
		t.Error("8-bit WAV: expected error, got nil")
	}
	if _, err := DecodeWAV(buildWAV(nil, 24000, 4, 16), 48000); err == nil {
		t.Error("4-channel WAV: expected error, got nil")
	}
}

func TestResampleMono16(t *testing.T) {
	t.Parallel()

	t.Run("same rate is identity", func(t *testing.T) {
		in := []byte{1, 0, 2, 0}
		if got := ResampleMono16(in, 24000, 24000); !bytes.Equal(got, in) {
			t.Errorf("got %v, want input unchanged", got)
		}
	})

	t.Run("doubling rate doubles sample count", func(t *testing.T) {
		in := Int16sToBytes([]int16{0, 100, 200, 300})
		out := ResampleMono16(in, 24000, 48000)
		if len(out) != len(in)*2 {
			t.Fatalf("len(out) = %d, want %d", len(out), len(in)*2)
		}
		samples := BytesToInt16s(out)
		// Even indices hit the original samples exactly.
		for i, want := range []int16{0, 100, 200, 300} {
			if samples[i*2] != want {
				t.Errorf("samples[%d] = %d, want %d", i*2, samples[i*2], want)
			}
		}
		// Odd indices are linear midpoints.
		if samples[1] != 50 {
			t.Errorf("samples[1] = %d, want 50", samples[1])
		}
	})

	t.Run("halving rate halves sample count", func(t *testing.T) {
		in := make([]byte, 8*2)
		out := ResampleMono16(in, 48000, 24000)
		if len(out) != len(in)/2 {
			t.Errorf("len(out) = %d, want %d", len(out), len(in)/2)
		}
	})
}

func TestMonoToStereo16(t *testing.T) {
	t.Parallel()

	in := Int16sToBytes([]int16{7, -7})
	out := BytesToInt16s(MonoToStereo16(in))
	want := []int16{7, 7, -7, -7}
	if len(out) != len(want) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %d, want %d", i, out[i], want[i])
		}
	}
}

func TestInt16RoundTrip(t *testing.T) {
	t.Parallel()

	in := []int16{0, 1, -1, 32767, -32768}
	got := BytesToInt16s(Int16sToBytes(in))
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], in[i])
		}
	}
}
