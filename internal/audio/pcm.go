package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
)

// Client audio is raw little-endian 16-bit PCM, mono. These helpers
// wrap it for providers that want a WAV container or the realtime
// API's base64 envelope.

const (
	numChannels   = 1
	bitsPerSample = 16
)

// WrapWAV prepends a 44-byte RIFF/WAVE header to raw PCM.
func WrapWAV(pcm []byte, sampleRate int) []byte {
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// EncodePCM encodes raw PCM for an input_audio_buffer.append payload.
func EncodePCM(pcm []byte) string {
	return base64.StdEncoding.EncodeToString(pcm)
}

// DecodePCM decodes an output audio delta back to raw PCM.
func DecodePCM(b64 string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(b64)
}
