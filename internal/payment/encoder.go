// Package payment renders the payment reference shown when a session awaits payment.
package payment

import (
	"encoding/base64"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"

	"parking-status-backend/config"
)

// Reference is an encoded payment request.
type Reference struct {
	Payload string          `json:"payload"`
	QRCode  string          `json:"qr_code"`
	Amount  decimal.Decimal `json:"amount"`
}

// Encoder builds BR Code payloads and their QR images.
type Encoder struct {
	merchantName string
	merchantCity string
	qrSize       int
	cache        *lru.Cache[string, Reference]
}

// NewEncoder creates an encoder from the payment configuration.
func NewEncoder(cfg config.PaymentConfig) (*Encoder, error) {
	size := cfg.PayloadCacheSize
	if size <= 0 {
		size = 128
	}
	cache, err := lru.New[string, Reference](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create payload cache: %w", err)
	}
	qrSize := cfg.QRSize
	if qrSize <= 0 {
		qrSize = 256
	}
	return &Encoder{
		merchantName: truncate(cfg.MerchantName, 25),
		merchantCity: truncate(cfg.MerchantCity, 15),
		qrSize:       qrSize,
		cache:        cache,
	}, nil
}

// Encode returns the payment reference for code and amount.
func (e *Encoder) Encode(code string, amount decimal.Decimal) (Reference, error) {
	key := code + "|" + amount.StringFixed(2)
	if ref, ok := e.cache.Get(key); ok {
		return ref, nil
	}

	payload, err := Payload(code, amount, e.merchantName, e.merchantCity)
	if err != nil {
		return Reference{}, err
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, e.qrSize)
	if err != nil {
		return Reference{}, fmt.Errorf("failed to render payment QR: %w", err)
	}

	ref := Reference{
		Payload: payload,
		QRCode:  "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		Amount:  amount.Round(2),
	}
	e.cache.Add(key, ref)
	return ref, nil
}

// Payload builds a static BR Code (EMV merchant presented) payload with its CRC.
func Payload(code string, amount decimal.Decimal, merchantName, merchantCity string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("payment key is empty")
	}
	if amount.IsNegative() {
		return "", fmt.Errorf("negative amount %s", amount)
	}

	account, err := field("00", "br.gov.bcb.pix")
	if err != nil {
		return "", err
	}
	key, err := field("01", code)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	parts := [][2]string{
		{"00", "01"},
		{"26", account + key},
		{"52", "0000"},
		{"53", "986"},
		{"54", amount.StringFixed(2)},
		{"58", "BR"},
		{"59", merchantName},
		{"60", merchantCity},
		{"62", "0503***"},
	}
	for _, p := range parts {
		f, err := field(p[0], p[1])
		if err != nil {
			return "", err
		}
		b.WriteString(f)
	}
	b.WriteString("6304")
	b.WriteString(fmt.Sprintf("%04X", CRC16(b.String())))
	return b.String(), nil
}

func field(id, value string) (string, error) {
	if len(value) > 99 {
		return "", fmt.Errorf("field %s exceeds 99 bytes", id)
	}
	return fmt.Sprintf("%s%02d%s", id, len(value), value), nil
}

// CRC16 computes CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF).
func CRC16(s string) uint16 {
	crc := uint16(0xFFFF)
	for i := 0; i < len(s); i++ {
		crc ^= uint16(s[i]) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
