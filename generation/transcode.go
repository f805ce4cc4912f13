package generation

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const dataURIScheme = "data:image/"

// DataURI wraps a base64 PNG payload into a browser-renderable data URI.
func DataURI(base64Payload string) string {
	return "data:image/png;base64," + base64Payload
}

// EncodeImageBase64 encodes raw image bytes as standard base64 text.
func EncodeImageBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeImagePayload decodes a base64 image payload into raw bytes. A leading
// data:image/<subtype>;base64, prefix is stripped when present; otherwise the
// string is decoded as-is.
func DecodeImagePayload(payload string) ([]byte, error) {
	encoded := payload
	if strings.HasPrefix(encoded, dataURIScheme) {
		idx := strings.Index(encoded, ";base64,")
		if idx < 0 {
			return nil, fmt.Errorf("generation: image payload has a data URI prefix without a base64 marker")
		}
		encoded = encoded[idx+len(";base64,"):]
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("generation: decode image payload: %w", err)
	}
	return data, nil
}
