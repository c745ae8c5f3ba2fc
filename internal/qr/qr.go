// Package qr renders the table QR codes diners scan to open the menu.
package qr

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

const (
	DefaultSize = 256
	MaxSize     = 1024
)

var ErrInvalidSize = errors.New("size must be between 64 and 1024")

// MenuURL is the diner menu address for a table.
func MenuURL(origin string, tableNumber int32) string {
	q := url.Values{"table": {fmt.Sprint(tableNumber)}}
	return strings.TrimRight(origin, "/") + "/menu?" + q.Encode()
}

// TablePNG renders the menu URL of a table as a PNG of size x size pixels.
func TablePNG(origin string, tableNumber int32, size int) ([]byte, error) {
	if size == 0 {
		size = DefaultSize
	}
	if size < 64 || size > MaxSize {
		return nil, ErrInvalidSize
	}
	png, err := qrcode.Encode(MenuURL(origin, tableNumber), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
