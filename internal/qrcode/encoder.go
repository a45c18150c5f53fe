package qrcode

import (
	"encoding/base64"
	"errors"
	"fmt"

	goqrcode "github.com/skip2/go-qrcode"
)

const (
	DefaultSize = 256
	dataURLHead = "data:image/png;base64,"
)

var ErrEncode = errors.New("qr encoding failed")

// Encoder turns a client config into something a phone camera can import.
type Encoder interface {
	Encode(text string) (string, error)
}

// PNGEncoder renders a QR code as a base64 PNG data URL.
type PNGEncoder struct {
	Size  int
	Level goqrcode.RecoveryLevel
}

func NewPNGEncoder() *PNGEncoder {
	return &PNGEncoder{Size: DefaultSize, Level: goqrcode.Medium}
}

func (e *PNGEncoder) Encode(text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("%w: empty input", ErrEncode)
	}
	png, err := goqrcode.Encode(text, e.Level, e.Size)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return dataURLHead + base64.StdEncoding.EncodeToString(png), nil
}
