package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapWAV(t *testing.T) {
	pcm := make([]byte, 4800)
	wav := WrapWAV(pcm, 24000)

	require.Len(t, wav, 44+len(pcm))
	require.Equal(t, "RIFF", string(wav[0:4]))
	require.Equal(t, "WAVE", string(wav[8:12]))
	require.Equal(t, "fmt ", string(wav[12:16]))
	require.Equal(t, "data", string(wav[36:40]))

	require.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[20:22]))  // PCM
	require.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[22:24]))  // mono
	require.Equal(t, uint32(24000), binary.LittleEndian.Uint32(wav[24:28]))
	require.Equal(t, uint32(48000), binary.LittleEndian.Uint32(wav[28:32])) // byte rate
	require.Equal(t, uint16(16), binary.LittleEndian.Uint16(wav[34:36]))   // bits
	require.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
	require.Equal(t, uint32(36+len(pcm)), binary.LittleEndian.Uint32(wav[4:8]))
}

func TestPCMBase64RoundTrip(t *testing.T) {
	in := []byte{0x00, 0x01, 0x7f, 0x80, 0xff}
	out, err := DecodePCM(EncodePCM(in))
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestDecodePCMRejectsGarbage(t *testing.T) {
	_, err := DecodePCM("not base64 ~~~")
	require.Error(t, err)
}
