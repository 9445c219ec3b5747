package session

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultQRSize is the edge length in pixels of generated QR codes.
const DefaultQRSize = 256

// JoinQR renders a PNG QR code pointing at the join URL for a session code,
// for the shared display and printed table cards.
func JoinQR(baseURL, code string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	url := fmt.Sprintf("%s/join/%s", baseURL, code)
	png, err := qrcode.Encode(url, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode join qr: %w", err)
	}
	return png, nil
}
