package speech

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
)

// ProtocolVersion WebSocket二进制协议版本
const ProtocolVersion = 0b0001

// MessageType 消息类型
type MessageType uint8

const (
	FullClientRequest       MessageType = 0b0001
	FullServerResponse      MessageType = 0b1001
	AudioOnlyServerResponse MessageType = 0b1011
	ErrorMessage            MessageType = 0b1111
)

// MessageFlags 消息特定标志
type MessageFlags uint8

const (
	NoSequenceNumber       MessageFlags = 0b0000
	PositiveSequenceNumber MessageFlags = 0b0001
	LastPacketNoSequence   MessageFlags = 0b0010
	NegativeSequenceNumber MessageFlags = 0b0011
	WithEvent              MessageFlags = 0b0100
)

const sequenceMask MessageFlags = 0b0011

// EventType 表示服务端返回的事件类型
type EventType int32

const (
	EventTypeNone               EventType = 0
	EventTypeStartConnection    EventType = 1
	EventTypeFinishConnection   EventType = 2
	EventTypeConnectionStarted  EventType = 50
	EventTypeConnectionFailed   EventType = 51
	EventTypeConnectionFinished EventType = 52
	EventTypeSessionStarted     EventType = 150
	EventTypeSessionFinished    EventType = 152
	EventTypeSessionFailed      EventType = 153
)

type SerializationMethod uint8

const (
	NoSerialization   SerializationMethod = 0b0000
	JSONSerialization SerializationMethod = 0b0001
)

type CompressionMethod uint8

const (
	NoCompression   CompressionMethod = 0b0000
	GzipCompression CompressionMethod = 0b0001
)

// Header 固定 4 字节帧头，除 Reserved 外每个字段占半字节
type Header struct {
	ProtocolVersion     uint8
	HeaderSize          uint8 // in 4-byte words
	MessageType         MessageType
	MessageFlags        MessageFlags
	SerializationMethod SerializationMethod
	CompressionMethod   CompressionMethod
	Reserved            uint8
}

// Frame TTS WebSocket 上的一条二进制消息
type Frame struct {
	Header    Header
	Sequence  int32
	EventType EventType
	SessionID string
	ConnectID string
	ErrorCode uint32
	Payload   []byte
}

func NewHeader(msgType MessageType, flags MessageFlags, serialization SerializationMethod, compression CompressionMethod) Header {
	return Header{
		ProtocolVersion:     ProtocolVersion,
		HeaderSize:          1,
		MessageType:         msgType,
		MessageFlags:        flags,
		SerializationMethod: serialization,
		CompressionMethod:   compression,
	}
}

func (h Header) bytes() []byte {
	return []byte{
		h.ProtocolVersion<<4 | h.HeaderSize,
		uint8(h.MessageType)<<4 | uint8(h.MessageFlags),
		uint8(h.SerializationMethod)<<4 | uint8(h.CompressionMethod),
		h.Reserved,
	}
}

func parseHeader(data []byte) (Header, error) {
	if len(data) < 4 {
		return Header{}, fmt.Errorf("header data too short: got %d, need 4", len(data))
	}

	h := Header{
		ProtocolVersion:     data[0] >> 4,
		HeaderSize:          data[0] & 0x0F,
		MessageType:         MessageType(data[1] >> 4),
		MessageFlags:        MessageFlags(data[1] & 0x0F),
		SerializationMethod: SerializationMethod(data[2] >> 4),
		CompressionMethod:   CompressionMethod(data[2] & 0x0F),
		Reserved:            data[3],
	}
	if h.ProtocolVersion != ProtocolVersion {
		return Header{}, fmt.Errorf("unsupported protocol version: %d", h.ProtocolVersion)
	}
	return h, nil
}

func hasSequence(flags MessageFlags) bool {
	s := flags & sequenceMask
	return s == PositiveSequenceNumber || s == NegativeSequenceNumber
}

// Encode 按线上顺序编码：帧头、可选序号、可选事件元数据、负载长度、负载
func (f *Frame) Encode() []byte {
	buf := make([]byte, 0, 16+len(f.Payload))
	buf = append(buf, f.Header.bytes()...)

	if hasSequence(f.Header.MessageFlags) {
		buf = binary.BigEndian.AppendUint32(buf, uint32(f.Sequence))
	}

	if f.Header.MessageFlags&WithEvent == WithEvent {
		buf = binary.BigEndian.AppendUint32(buf, uint32(f.EventType))
		if !eventSkipsSessionID(f.EventType) {
			buf = appendSized(buf, f.SessionID)
		}
		if eventHasConnectID(f.EventType) {
			buf = appendSized(buf, f.ConnectID)
		}
	}

	if f.Header.MessageType == ErrorMessage {
		buf = binary.BigEndian.AppendUint32(buf, f.ErrorCode)
	}
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(f.Payload)))
	return append(buf, f.Payload...)
}

func appendSized(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// DecodeFrame 解码完整消息
func DecodeFrame(r io.Reader) (*Frame, error) {
	raw := make([]byte, 4)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	header, err := parseHeader(raw)
	if err != nil {
		return nil, err
	}
	f := &Frame{Header: header}

	if extra := int(header.HeaderSize)*4 - 4; extra > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(extra)); err != nil {
			return nil, fmt.Errorf("failed to read extended header: %w", err)
		}
	}

	if hasSequence(header.MessageFlags) {
		seq, err := readUint32(r, "sequence")
		if err != nil {
			return nil, err
		}
		f.Sequence = int32(seq)
	}

	if header.MessageFlags&WithEvent == WithEvent {
		event, err := readUint32(r, "event type")
		if err != nil {
			return nil, err
		}
		f.EventType = EventType(int32(event))

		if !eventSkipsSessionID(f.EventType) {
			if f.SessionID, err = readSized(r, "session id"); err != nil {
				return nil, err
			}
		}
		if eventHasConnectID(f.EventType) {
			if f.ConnectID, err = readSized(r, "connect id"); err != nil {
				return nil, err
			}
		}
	}

	if header.MessageType == ErrorMessage {
		if f.ErrorCode, err = readUint32(r, "error code"); err != nil {
			return nil, err
		}
	}

	size, err := readUint32(r, "payload size")
	if err != nil {
		return nil, err
	}
	if size > 0 {
		f.Payload = make([]byte, size)
		if _, err := io.ReadFull(r, f.Payload); err != nil {
			return nil, fmt.Errorf("failed to read payload (expected %d bytes): %w", size, err)
		}
	}
	return f, nil
}

func readUint32(r io.Reader, what string) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", what, err)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readSized(r io.Reader, what string) (string, error) {
	size, err := readUint32(r, what+" size")
	if err != nil {
		return "", err
	}
	if size == 0 {
		return "", nil
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", what, err)
	}
	return string(data), nil
}

// NewClientRequest 包装 JSON 请求体
func NewClientRequest(payload []byte) *Frame {
	return &Frame{
		Header:  NewHeader(FullClientRequest, NoSequenceNumber, JSONSerialization, NoCompression),
		Payload: payload,
	}
}

func eventSkipsSessionID(event EventType) bool {
	switch event {
	case EventTypeStartConnection, EventTypeFinishConnection,
		EventTypeConnectionStarted, EventTypeConnectionFailed,
		EventTypeConnectionFinished:
		return true
	default:
		return false
	}
}

func eventHasConnectID(event EventType) bool {
	switch event {
	case EventTypeConnectionStarted, EventTypeConnectionFailed, EventTypeConnectionFinished:
		return true
	default:
		return false
	}
}

// IsLastPacket 判断是否为最后一包
func (f *Frame) IsLastPacket() bool {
	s := f.Header.MessageFlags & sequenceMask
	return s == LastPacketNoSequence || s == NegativeSequenceNumber
}

// PayloadBytes 返回负载，帧头标记 gzip 时先解压
func (f *Frame) PayloadBytes() ([]byte, error) {
	switch f.Header.CompressionMethod {
	case NoCompression:
		return f.Payload, nil
	case GzipCompression:
		reader, err := gzip.NewReader(bytes.NewReader(f.Payload))
		if err != nil {
			return nil, fmt.Errorf("gzip reader creation failed: %w", err)
		}
		defer reader.Close()
		data, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip read failed: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported compression method: %d", f.Header.CompressionMethod)
	}
}
