package store

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// ExportExt is the file extension of exported saves.
const ExportExt = ".fgz"

// maxDocumentSize bounds the decompressed size of an imported document.
const maxDocumentSize = 64 << 20

// Export writes d to w as a zstd stream of canonical JSON.
func Export(w io.Writer, d Document) error {
	data, err := MarshalDocument(d)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return fmt.Errorf("export: %w", err)
	}
	return enc.Close()
}

// Import reads a document written by Export.
func Import(r io.Reader) (Document, error) {
	dec, err := zstd.NewReader(bufio.NewReader(r))
	if err != nil {
		return Document{}, fmt.Errorf("import: %w", err)
	}
	defer dec.Close()

	data, err := io.ReadAll(io.LimitReader(dec, maxDocumentSize+1))
	if err != nil {
		return Document{}, fmt.Errorf("%w: import: %v", ErrInvalidDocument, err)
	}
	if len(data) > maxDocumentSize {
		return Document{}, fmt.Errorf("%w: import: document exceeds %d bytes", ErrInvalidDocument, maxDocumentSize)
	}
	return UnmarshalDocument(data)
}

// ExportFile writes d to path, replacing any existing file only once the
// new one is complete.
func ExportFile(path string, d Document) (err error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	bw := bufio.NewWriterSize(f, 256*1024)
	if err = Export(bw, d); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ImportFile reads a document from path.
func ImportFile(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, err
	}
	defer f.Close()
	return Import(f)
}
