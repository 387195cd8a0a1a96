package payload

import (
	"encoding/base64"
	"fmt"

	"github.com/pandodao/anchor-store/core"
)

// EncodeBlob turns a binary blob into the transport safe string stored as
// the key-value entry's value.
func EncodeBlob(blob []byte) string {
	return base64.StdEncoding.EncodeToString(blob)
}

func DecodeBlob(value string) ([]byte, error) {
	blob, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrDeserialization, err)
	}

	return blob, nil
}
