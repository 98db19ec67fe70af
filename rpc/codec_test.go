// codec_test.go
package rpc

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func roundTripMessage(t *testing.T, m Message) Message {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteMessage(&buf, m); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	got, err := ReadMessage(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	return got
}

func TestCodecRoundTrip(t *testing.T) {
	messages := []Message{
		MoveRequest{Kind: MoveForward, Speed: 200},
		MoveRequest{Kind: MoveSpinCCW, Speed: 0},
		LookRequest{H: 12.5, V: -7.25},
		LookDirectionRequest{},
		LookDirectionResponse{H: 90, V: -45},
		SenseRequest{What: SenseDistance},
		SenseResponse{Kind: SenseObstacle, Bools: [2]bool{true, false}},
		SenseResponse{Kind: SenseDistance, DistanceMM: 123.4},
		Success(),
		Failure("Unsupported operation."),
	}

	for _, m := range messages {
		got := roundTripMessage(t, m)
		assert.Equal(t, m, got)
	}
}

func TestReadMessageRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	lenBuf := make([]byte, 4)
	lenBuf[0] = 0xFF // absurdly large length prefix
	buf.Write(lenBuf)

	_, err := ReadMessage(bufio.NewReader(&buf))
	if err != ErrFrameTooLarge {
		t.Errorf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestDecodeUnknownTagErrors(t *testing.T) {
	_, err := decodeBody([]byte{99})
	if err == nil {
		t.Error("expected an error decoding an unknown tag")
	}
}
