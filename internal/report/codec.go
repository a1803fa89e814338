package report

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
	"gopkg.in/yaml.v3"
)

// Output format identifiers accepted by the CLI.
const (
	FormatText   = "text"
	FormatJSON   = "json"
	FormatYAML   = "yaml"
	FormatBinary = "bin"
	FormatPlot   = "plot"
)

// binaryMagic identifies the compressed report container.
var binaryMagic = [4]byte{'A', 'O', 'I', 'R'}

// jsonIndent is the indentation used for pretty-printed JSON output.
const jsonIndent = "  "

var (
	// ErrUnsupportedFormat indicates the requested output format is not supported.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrBadBinaryHeader indicates the binary payload does not start with
	// the report container magic.
	ErrBadBinaryHeader = errors.New("bad binary report header")
)

// Formats lists the supported report output formats.
func Formats() []string {
	return []string{FormatText, FormatJSON, FormatYAML, FormatBinary, FormatPlot}
}

// ValidateFormat checks a user-supplied format string.
func ValidateFormat(format string) error {
	for _, f := range Formats() {
		if f == format {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

// WriteJSON encodes the report as indented JSON.
func WriteJSON(w io.Writer, rep *Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", jsonIndent)

	err := encoder.Encode(rep)
	if err != nil {
		return fmt.Errorf("json encode report: %w", err)
	}

	return nil
}

// WriteYAML encodes the report as YAML.
func WriteYAML(w io.Writer, rep *Report) error {
	encoder := yaml.NewEncoder(w)

	err := encoder.Encode(rep)
	if err != nil {
		return fmt.Errorf("yaml encode report: %w", err)
	}

	return encoder.Close()
}

// WriteBinary encodes the report with gob and LZ4 block compression. The
// container is the magic, the uncompressed length as a little-endian
// uint32, then the compressed block.
func WriteBinary(w io.Writer, rep *Report) error {
	var raw bytes.Buffer

	err := gob.NewEncoder(&raw).Encode(rep)
	if err != nil {
		return fmt.Errorf("gob encode report: %w", err)
	}

	compressed := make([]byte, lz4.CompressBlockBound(raw.Len()))

	written, err := lz4.CompressBlock(raw.Bytes(), compressed, nil)
	if err != nil {
		return fmt.Errorf("lz4 compress report: %w", err)
	}

	// CompressBlock reports zero for incompressible input; store raw then.
	stored := compressed[:written]
	if written == 0 {
		stored = raw.Bytes()
	}

	_, err = w.Write(binaryMagic[:])
	if err != nil {
		return fmt.Errorf("write report magic: %w", err)
	}

	err = binary.Write(w, binary.LittleEndian, uint32(raw.Len())) //nolint:gosec // report size fits uint32
	if err != nil {
		return fmt.Errorf("write report length: %w", err)
	}

	_, err = w.Write(stored)
	if err != nil {
		return fmt.Errorf("write report payload: %w", err)
	}

	return nil
}

// ReadBinary decodes a report written by WriteBinary.
func ReadBinary(r io.Reader, rep *Report) error {
	var magic [4]byte

	_, err := io.ReadFull(r, magic[:])
	if err != nil {
		return fmt.Errorf("read report magic: %w", err)
	}

	if magic != binaryMagic {
		return ErrBadBinaryHeader
	}

	var rawLen uint32

	err = binary.Read(r, binary.LittleEndian, &rawLen)
	if err != nil {
		return fmt.Errorf("read report length: %w", err)
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read report payload: %w", err)
	}

	raw := payload
	if len(payload) != int(rawLen) {
		raw = make([]byte, rawLen)

		_, err = lz4.UncompressBlock(payload, raw)
		if err != nil {
			return fmt.Errorf("lz4 decompress report: %w", err)
		}
	}

	err = gob.NewDecoder(bytes.NewReader(raw)).Decode(rep)
	if err != nil {
		return fmt.Errorf("gob decode report: %w", err)
	}

	return nil
}
