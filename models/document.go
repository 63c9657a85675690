package models

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
	"github.com/vmihailenco/msgpack/v5"
)

// ============================================================================
// Rich-Document Codec
//
// Notes carry styled text. In memory that is a Document: an ordered list of
// runs, each a span of text with uniform styling. On the wire and in the
// local store the document is a byte payload in one of two encodings:
//
//   - Archival (preferred, all new writes): a msgpack-encoded envelope with
//     a 4-byte magic prefix. msgpack matches how the app already moves note
//     bodies around, and the magic prefix makes the format sniffable.
//   - Legacy (read/write, kept for rows written before the archival format
//     existed): plain JSON of the same envelope, no prefix.
//
// The remote transport is JSON-based, so the byte payload travels as a
// base64 string column, never as raw binary.
//
// Decode never fails: corrupt or unrecognized bytes yield an empty document
// so rendering old rows cannot crash. Encode of a valid in-memory document
// failing is a real error and is returned to the caller — substituting
// partial data would corrupt the authoritative local record.
// ============================================================================

// archiveMagic prefixes archival-format payloads. Legacy JSON payloads start
// with '{' so the two cannot collide.
var archiveMagic = []byte{0x72, 0x64, 0x63, 0x31} // "rdc1"

// archiveVersion is stored in the envelope for future format evolution.
const archiveVersion = 1

// Run is a span of text with uniform styling.
type Run struct {
	Text      string `msgpack:"t" json:"text"`
	Bold      bool   `msgpack:"b,omitempty" json:"bold,omitempty"`
	Italic    bool   `msgpack:"i,omitempty" json:"italic,omitempty"`
	Underline bool   `msgpack:"u,omitempty" json:"underline,omitempty"`
	FontSize  int    `msgpack:"s,omitempty" json:"font_size,omitempty"`
	Color     string `msgpack:"c,omitempty" json:"color,omitempty"`
}

// Document is an in-memory styled-text document.
type Document struct {
	Runs []Run `msgpack:"runs" json:"runs"`
}

// documentEnvelope is the serialized shape shared by both encodings.
type documentEnvelope struct {
	Version int   `msgpack:"v" json:"version"`
	Runs    []Run `msgpack:"runs" json:"runs"`
}

// EmptyDocument returns a document with no content. Its plain text is "".
func EmptyDocument() Document {
	return Document{}
}

// NewPlainDocument wraps unstyled text in a single-run document.
func NewPlainDocument(text string) Document {
	if text == "" {
		return Document{}
	}
	return Document{Runs: []Run{{Text: text}}}
}

// PlainText returns the unstyled projection of the document, used for
// search and preview columns on the remote mirror row.
func (d Document) PlainText() string {
	if len(d.Runs) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, r := range d.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// IsEmpty reports whether the document has no text at all.
func (d Document) IsEmpty() bool {
	for _, r := range d.Runs {
		if r.Text != "" {
			return false
		}
	}
	return true
}

// EncodeDocument serializes a document in the archival format.
// All new writes use this; legacy JSON is produced only by
// EncodeDocumentLegacy for rows that must stay readable by old clients.
func EncodeDocument(d Document) ([]byte, error) {
	env := documentEnvelope{Version: archiveVersion, Runs: d.Runs}
	body, err := msgpack.Marshal(env)
	if err != nil {
		return nil, serr.Wrap(err, "failed to encode document")
	}
	out := make([]byte, 0, len(archiveMagic)+len(body))
	out = append(out, archiveMagic...)
	out = append(out, body...)
	return out, nil
}

// EncodeDocumentLegacy serializes a document in the legacy JSON
// interchange format, kept for backward compatibility.
func EncodeDocumentLegacy(d Document) ([]byte, error) {
	env := documentEnvelope{Version: archiveVersion, Runs: d.Runs}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, serr.Wrap(err, "failed to encode legacy document")
	}
	return data, nil
}

// DecodeDocument parses either encoding. Corrupt, truncated, or
// unrecognized bytes yield an empty document — never an error — so that
// rendering a note can't fail on malformed legacy data.
func DecodeDocument(data []byte) Document {
	if len(data) == 0 {
		return Document{}
	}

	// Archival format: magic prefix then msgpack envelope
	if len(data) > len(archiveMagic) && string(data[:len(archiveMagic)]) == string(archiveMagic) {
		var env documentEnvelope
		if err := msgpack.Unmarshal(data[len(archiveMagic):], &env); err != nil {
			logger.Debug("Discarding malformed archival document payload", "len", len(data))
			return Document{}
		}
		return Document{Runs: env.Runs}
	}

	// Legacy format: bare JSON envelope
	if data[0] == '{' {
		var env documentEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.Debug("Discarding malformed legacy document payload", "len", len(data))
			return Document{}
		}
		return Document{Runs: env.Runs}
	}

	logger.Debug("Discarding document payload with unknown format", "len", len(data))
	return Document{}
}

// EncodeDocumentWire produces the base64 string column form used by the
// JSON-based remote transport.
func EncodeDocumentWire(d Document) (string, error) {
	data, err := EncodeDocument(d)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeDocumentWire parses the base64 string column form. Like
// DecodeDocument it recovers from any malformed input with an empty
// document.
func DecodeDocumentWire(encoded string) Document {
	if encoded == "" {
		return Document{}
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		logger.Debug("Discarding document payload with invalid base64", "len", len(encoded))
		return Document{}
	}
	return DecodeDocument(data)
}
