package measplot

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// Protocol constants
const (
	// ProtocolVersion is the current version of the frame protocol
	ProtocolVersion byte = 1

	// Message type constants
	MessageTypeFrame     byte = 0x01
	MessageTypeMetadata  byte = 0x02
	MessageTypeStreamEnd byte = 0x03

	// Header size in bytes
	EnvelopeHeaderSize = 8

	// Fixed part of a FRAME payload: Seq(4) + Start(8) + End(8) + ImageLength(4)
	frameFixedSize = 24
)

// EnvelopeHeader represents the message envelope header
type EnvelopeHeader struct {
	Version  byte
	Reserved [2]byte // Reserved for future use
	Type     byte
	Length   uint32 // Payload length in bytes
}

// FrameMessage represents a FRAME message payload (type 0x01): one rendered
// image of the plot and the time window it shows.
type FrameMessage struct {
	Seq   uint32
	Start float64
	End   float64
	Image []byte
}

// StreamEndMessage represents a STREAM_END message payload (type 0x03)
type StreamEndMessage struct {
	Error bool
	Msg   string
}

// WSMessage represents a complete websocket message with header and payload
type WSMessage struct {
	Header  EnvelopeHeader
	Payload interface{} // One of: FrameMessage, Metadata, StreamEndMessage
}

// EncodeEnvelopeHeader encodes the envelope header into a byte slice
func EncodeEnvelopeHeader(env EnvelopeHeader) []byte {
	buf := make([]byte, EnvelopeHeaderSize)
	buf[0] = env.Version
	buf[1] = env.Reserved[0]
	buf[2] = env.Reserved[1]
	buf[3] = env.Type
	binary.LittleEndian.PutUint32(buf[4:8], env.Length)
	return buf
}

// DecodeEnvelopeHeader decodes the envelope header from a byte slice
func DecodeEnvelopeHeader(buf []byte) (EnvelopeHeader, error) {
	if len(buf) < EnvelopeHeaderSize {
		return EnvelopeHeader{}, fmt.Errorf("buffer too short: expected at least %d bytes, got %d", EnvelopeHeaderSize, len(buf))
	}

	env := EnvelopeHeader{
		Version: buf[0],
		Type:    buf[3],
		Length:  binary.LittleEndian.Uint32(buf[4:8]),
	}
	env.Reserved[0] = buf[1]
	env.Reserved[1] = buf[2]

	return env, nil
}

func EncodeFrameMessage(msg FrameMessage) []byte {
	buf := make([]byte, frameFixedSize+len(msg.Image))

	binary.LittleEndian.PutUint32(buf[0:4], msg.Seq)
	binary.LittleEndian.PutUint64(buf[4:12], math.Float64bits(msg.Start))
	binary.LittleEndian.PutUint64(buf[12:20], math.Float64bits(msg.End))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(len(msg.Image)))
	copy(buf[frameFixedSize:], msg.Image)

	return buf
}

func DecodeFrameMessage(buf []byte) (FrameMessage, error) {
	if len(buf) < frameFixedSize {
		return FrameMessage{}, fmt.Errorf("buffer too short for FRAME message: expected at least %d bytes, got %d", frameFixedSize, len(buf))
	}

	msg := FrameMessage{
		Seq:   binary.LittleEndian.Uint32(buf[0:4]),
		Start: math.Float64frombits(binary.LittleEndian.Uint64(buf[4:12])),
		End:   math.Float64frombits(binary.LittleEndian.Uint64(buf[12:20])),
	}

	imageLength := binary.LittleEndian.Uint32(buf[20:24])
	if uint64(len(buf)) != frameFixedSize+uint64(imageLength) {
		return FrameMessage{}, fmt.Errorf("buffer size mismatch: expected %d bytes for a %d byte image, got %d", frameFixedSize+uint64(imageLength), imageLength, len(buf))
	}

	msg.Image = make([]byte, imageLength)
	copy(msg.Image, buf[frameFixedSize:])

	return msg, nil
}

// JSON payloads are prefixed by their length.
func encodeJSONPayload(v interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 4+len(jsonData))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(jsonData)))
	copy(buf[4:], jsonData)

	return buf, nil
}

func decodeJSONPayload(buf []byte, v interface{}) error {
	if len(buf) < 4 {
		return fmt.Errorf("buffer too short: expected at least 4 bytes, got %d", len(buf))
	}

	jsonLength := binary.LittleEndian.Uint32(buf[0:4])
	if uint64(len(buf)) != 4+uint64(jsonLength) {
		return fmt.Errorf("buffer size mismatch: expected %d bytes, got %d", 4+uint64(jsonLength), len(buf))
	}

	return json.Unmarshal(buf[4:], v)
}

func EncodeMetadataMessage(metadata Metadata) ([]byte, error) {
	buf, err := encodeJSONPayload(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return buf, nil
}

func DecodeMetadataMessage(buf []byte) (Metadata, error) {
	var metadata Metadata
	if err := decodeJSONPayload(buf, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("failed to decode METADATA message: %w", err)
	}
	return metadata, nil
}

func EncodeStreamEndMessage(msg StreamEndMessage) ([]byte, error) {
	buf, err := encodeJSONPayload(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stream end message: %w", err)
	}
	return buf, nil
}

func DecodeStreamEndMessage(buf []byte) (StreamEndMessage, error) {
	var msg StreamEndMessage
	if err := decodeJSONPayload(buf, &msg); err != nil {
		return StreamEndMessage{}, fmt.Errorf("failed to decode STREAM_END message: %w", err)
	}
	return msg, nil
}

// EncodeWSMessage encodes a WSMessage into a complete message byte slice.
// The header length is computed from the payload.
func EncodeWSMessage(msg WSMessage) ([]byte, error) {
	var payload []byte
	var err error

	switch msg.Header.Type {
	case MessageTypeFrame:
		frame, ok := msg.Payload.(FrameMessage)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected FrameMessage for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload = EncodeFrameMessage(frame)
	case MessageTypeMetadata:
		metadata, ok := msg.Payload.(Metadata)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected Metadata for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload, err = EncodeMetadataMessage(metadata)
	case MessageTypeStreamEnd:
		streamEnd, ok := msg.Payload.(StreamEndMessage)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected StreamEndMessage for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload, err = EncodeStreamEndMessage(streamEnd)
	default:
		return nil, fmt.Errorf("unknown message type: 0x%02x", msg.Header.Type)
	}
	if err != nil {
		return nil, err
	}

	msg.Header.Length = uint32(len(payload))
	header := EncodeEnvelopeHeader(msg.Header)

	fullMsg := make([]byte, len(header)+len(payload))
	copy(fullMsg, header)
	copy(fullMsg[len(header):], payload)

	return fullMsg, nil
}

// DecodeWSMessage decodes a complete message (envelope + payload) into a WSMessage
func DecodeWSMessage(buf []byte) (WSMessage, error) {
	env, err := DecodeEnvelopeHeader(buf)
	if err != nil {
		return WSMessage{}, err
	}

	expectedSize := uint64(EnvelopeHeaderSize) + uint64(env.Length)
	if uint64(len(buf)) < expectedSize {
		return WSMessage{}, fmt.Errorf("buffer too short: expected %d bytes (header + payload), got %d", expectedSize, len(buf))
	}

	payloadBytes := buf[EnvelopeHeaderSize:expectedSize]

	var payload interface{}
	switch env.Type {
	case MessageTypeFrame:
		payload, err = DecodeFrameMessage(payloadBytes)
	case MessageTypeMetadata:
		payload, err = DecodeMetadataMessage(payloadBytes)
	case MessageTypeStreamEnd:
		payload, err = DecodeStreamEndMessage(payloadBytes)
	default:
		return WSMessage{}, fmt.Errorf("unknown message type: 0x%02x", env.Type)
	}
	if err != nil {
		return WSMessage{}, err
	}

	return WSMessage{
		Header:  env,
		Payload: payload,
	}, nil
}
