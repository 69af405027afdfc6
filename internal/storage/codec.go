package storage

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if decMode, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic(err)
	}
}

// EncodeRecord serializes a channel record.
func EncodeRecord(rec ChannelRecord) ([]byte, error) {
	data, err := encMode.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode channel record: %w", err)
	}
	return data, nil
}

// DecodeRecord parses a channel record.
func DecodeRecord(data []byte) (ChannelRecord, error) {
	var rec ChannelRecord
	if err := decMode.Unmarshal(data, &rec); err != nil {
		return ChannelRecord{}, fmt.Errorf("decode channel record: %w", err)
	}
	return rec, nil
}

// EncodeMessage serializes a log message.
func EncodeMessage(msg Message) ([]byte, error) {
	data, err := encMode.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return data, nil
}

// DecodeMessage parses a log message.
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := decMode.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	return msg, nil
}
