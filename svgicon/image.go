package svgicon

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var errNotDataURL = errors.New("only data: URLs are supported for images")

// Data decodes the content of the image, which must be embedded
// with a data URL. The returned media type may be empty.
func (im SvgImage) Data() (mediaType string, data []byte, err error) {
	href := im.Href
	if !strings.HasPrefix(href, "data:") {
		return "", nil, errNotDataURL
	}
	comma := strings.IndexByte(href, ',')
	if comma == -1 {
		return "", nil, fmt.Errorf("invalid data URL: missing comma")
	}
	header, payload := href[len("data:"):comma], href[comma+1:]
	params := strings.Split(header, ";")
	mediaType = strings.ToLower(strings.TrimSpace(params[0]))
	isBase64 := false
	for _, p := range params[1:] {
		if strings.TrimSpace(p) == "base64" {
			isBase64 = true
		}
	}
	if !isBase64 {
		s, err := url.PathUnescape(payload)
		if err != nil {
			return "", nil, fmt.Errorf("invalid data URL: %w", err)
		}
		return mediaType, []byte(s), nil
	}
	// base64 payloads are often wrapped
	payload = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, payload)
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// some writers omit the padding
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	}
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 image data: %w", err)
	}
	return mediaType, data, nil
}
