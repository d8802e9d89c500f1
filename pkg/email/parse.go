package email

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
)

// ParseError reports that the input is not structurally a valid email.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed email: %s", e.Reason)
}

var wordDecoder = mime.WordDecoder{CharsetReader: charsetReader}

// Parse parses raw email bytes into a Message. receivedAt is the
// ingestion time, used as the observed timestamp when the Date header
// is missing or unparseable. A leading mbox "From " separator line is
// tolerated and stripped.
func Parse(raw []byte, receivedAt time.Time) (*Message, error) {
	raw = stripMboxFromLine(raw)
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &ParseError{Reason: "empty input"}
	}

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}

	parsed := &Message{
		Headers:    make(map[string][]string),
		ReceivedAt: receivedAt,
	}

	for key, values := range msg.Header {
		decoded := make([]string, len(values))
		for i, v := range values {
			decoded[i] = decodeHeaderValue(v)
		}
		parsed.Headers[strings.ToLower(key)] = decoded
	}

	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
		params = make(map[string]string)
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		if boundary := params["boundary"]; boundary != "" {
			// Individual broken parts are skipped inside
			// parseMultipart; only keep what decoded.
			parts, err := parseMultipart(msg.Body, boundary)
			if err == nil || len(parts) > 0 {
				parsed.Parts = parts
			}
		}
	} else {
		body, err := io.ReadAll(msg.Body)
		if err == nil {
			parsed.Parts = []Part{{
				ContentType: mediaType,
				Body: decodeCharset(
					decodeBody(body, msg.Header.Get("Content-Transfer-Encoding")),
					params["charset"],
				),
			}}
		}
	}

	return parsed, nil
}

// stripMboxFromLine removes the envelope separator some MTA hooks
// prepend when handing a message over stdin.
func stripMboxFromLine(raw []byte) []byte {
	if bytes.HasPrefix(raw, []byte("From ")) {
		if idx := bytes.IndexByte(raw, '\n'); idx != -1 {
			return raw[idx+1:]
		}
	}
	return raw
}

func parseMultipart(body io.Reader, boundary string) ([]Part, error) {
	var parts []Part
	mr := multipart.NewReader(body, boundary)

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return parts, err
		}

		contentType := part.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "text/plain"
		}

		mediaType, params, _ := mime.ParseMediaType(contentType)

		partBody, err := io.ReadAll(part)
		if err != nil {
			continue
		}

		decodedBody := decodeBody(partBody, part.Header.Get("Content-Transfer-Encoding"))

		emailPart := Part{
			ContentType: mediaType,
			Filename:    part.FileName(),
			Headers:     lowercaseHeaders(part.Header),
			Body:        decodeCharset(decodedBody, params["charset"]),
		}
		if disposition := part.Header.Get("Content-Disposition"); disposition != "" {
			if dispType, _, err := mime.ParseMediaType(disposition); err == nil {
				emailPart.Disposition = dispType
			}
		}

		if strings.HasPrefix(mediaType, "multipart/") {
			if nestedBoundary := params["boundary"]; nestedBoundary != "" {
				nested, err := parseMultipart(bytes.NewReader(decodedBody), nestedBoundary)
				if err == nil {
					emailPart.Parts = nested
				}
			}
		}

		parts = append(parts, emailPart)
	}

	return parts, nil
}

func lowercaseHeaders(header map[string][]string) map[string][]string {
	out := make(map[string][]string, len(header))
	for key, values := range header {
		out[strings.ToLower(key)] = values
	}
	return out
}

func decodeBody(body []byte, encoding string) []byte {
	encoding = strings.ToLower(strings.TrimSpace(encoding))

	switch encoding {
	case "base64":
		cleaned := bytes.Map(func(r rune) rune {
			if r == '\r' || r == '\n' {
				return -1
			}
			return r
		}, body)
		decoded := make([]byte, base64.StdEncoding.DecodedLen(len(cleaned)))
		n, err := base64.StdEncoding.Decode(decoded, cleaned)
		if err == nil {
			return decoded[:n]
		}
	case "quoted-printable":
		reader := quotedprintable.NewReader(bytes.NewReader(body))
		decoded, err := io.ReadAll(reader)
		if err == nil {
			return decoded
		}
	}

	return body
}

// decodeCharset converts legacy single-byte encodings to UTF-8. The
// regional backup tools send windows-1251 and koi8-r bodies.
func decodeCharset(body []byte, charset string) []byte {
	enc := encodingFor(charset)
	if enc == nil {
		return body
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return decoded
}

func encodingFor(charset string) *charmap.Charmap {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "windows-1251", "cp1251":
		return charmap.Windows1251
	case "koi8-r":
		return charmap.KOI8R
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1
	case "iso-8859-5":
		return charmap.ISO8859_5
	default:
		return nil
	}
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc := encodingFor(charset)
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset: %s", charset)
	}
	return enc.NewDecoder().Reader(input), nil
}

func decodeHeaderValue(value string) string {
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}
