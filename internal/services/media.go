package services

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	errAssetTooLarge    = errors.New("gallery: image exceeds the size limit")
	errUnsupportedImage = errors.New("gallery: unsupported image type")
	errInvalidImageData = errors.New("gallery: image data is not valid base64")
)

var (
	// ErrAssetTooLarge indicates a decoded image over the per-item limit.
	ErrAssetTooLarge = errAssetTooLarge
	// ErrUnsupportedImage indicates a payload that is not an accepted image type.
	ErrUnsupportedImage = errUnsupportedImage
	// ErrInvalidImageData indicates an undecodable payload.
	ErrInvalidImageData = errInvalidImageData
)

const svgContentType = "image/svg+xml"

var rasterTypes = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/webp": {},
	"image/gif":  {},
}

type decodedImage struct {
	contentType string
	data        []byte
}

func (d decodedImage) dataURL() string {
	return "data:" + d.contentType + ";base64," + base64.StdEncoding.EncodeToString(d.data)
}

// decodeImage accepts a data URL or bare base64 and returns the bytes with
// a sniffed content type. Size is checked on the encoded length first so an
// oversized payload is rejected before it is decoded.
func decodeImage(payload, declaredType string, maxBytes int) (decodedImage, error) {
	payload = strings.TrimSpace(payload)
	if header, body, ok := strings.Cut(payload, ","); ok && strings.HasPrefix(header, "data:") {
		meta := strings.TrimPrefix(header, "data:")
		if !strings.HasSuffix(meta, ";base64") {
			return decodedImage{}, errInvalidImageData
		}
		declaredType = strings.TrimSuffix(meta, ";base64")
		payload = body
	}
	if payload == "" {
		return decodedImage{}, errInvalidImageData
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > maxBytes+2 {
		return decodedImage{}, fmt.Errorf("%w: limit is %d bytes", errAssetTooLarge, maxBytes)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return decodedImage{}, errInvalidImageData
	}
	if len(data) > maxBytes {
		return decodedImage{}, fmt.Errorf("%w: limit is %d bytes", errAssetTooLarge, maxBytes)
	}

	sniffed := http.DetectContentType(data)
	if _, ok := rasterTypes[sniffed]; ok {
		return decodedImage{contentType: sniffed, data: data}, nil
	}
	declared := strings.ToLower(strings.TrimSpace(declaredType))
	if declared == svgContentType && looksLikeSVG(data) {
		return decodedImage{contentType: svgContentType, data: data}, nil
	}
	return decodedImage{}, fmt.Errorf("%w: %s", errUnsupportedImage, sniffed)
}

func looksLikeSVG(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<svg"))
}
