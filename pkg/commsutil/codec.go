package commsutil

import (
	"encoding/json"
	"fmt"
)

// EncodePayload serializes a hub wire message to JSON.
func EncodePayload(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("commsutil - failed to encode %T payload: %w", v, err)
	}
	return data, nil
}

// DecodePayload deserializes a hub wire message. The error names the target
// type so subscription-handler logs stay readable.
func DecodePayload(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("commsutil - failed to decode %T payload: %w", v, err)
	}
	return nil
}
