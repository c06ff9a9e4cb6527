// Package bundle moves chain blocks between stores as a deterministic TAR
// archive, optionally compressed with zstd or lz4.
package bundle

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"xdao.co/agentchain/cidutil"
	"xdao.co/agentchain/storage"
)

// FormatVersion is the current bundle index schema version.
const FormatVersion = 2

var epoch0 = time.Unix(0, 0).UTC()

// Compression selects the stream compression applied around the TAR.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// ParseCompression accepts "", "none", "zstd" and "lz4".
func ParseCompression(s string) (Compression, error) {
	switch Compression(s) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionZstd, CompressionLZ4:
		return Compression(s), nil
	default:
		return "", fmt.Errorf("bundle: unknown compression %q", s)
	}
}

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// ExportOptions controls bundle export behavior.
type ExportOptions struct {
	// Labels is optional, non-authoritative metadata mapping names to CIDs,
	// e.g. "head" to the chain head action block.
	Labels map[string]cid.Cid
	// IncludeIndex controls whether index.json is included.
	IncludeIndex bool
	Compression  Compression
}

// Export writes a bundle containing the blocks for the given CIDs.
//
// Identical inputs give identical bytes: entry order is lexicographic, TAR
// headers are normalized and compressors run single-threaded.
// All exported bytes are validated against their CIDs.
func Export(w io.Writer, cas storage.CAS, ids []cid.Cid, opts ExportOptions) error {
	if cas == nil {
		return fmt.Errorf("bundle: nil CAS")
	}
	switch opts.Compression {
	case "", CompressionNone:
		return exportTar(w, cas, ids, opts)
	case CompressionZstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
		if err != nil {
			return err
		}
		if err := exportTar(zw, cas, ids, opts); err != nil {
			_ = zw.Close()
			return err
		}
		return zw.Close()
	case CompressionLZ4:
		lw := lz4.NewWriter(w)
		if err := exportTar(lw, cas, ids, opts); err != nil {
			_ = lw.Close()
			return err
		}
		return lw.Close()
	default:
		return fmt.Errorf("bundle: unknown compression %q", opts.Compression)
	}
}

func exportTar(w io.Writer, cas storage.CAS, ids []cid.Cid, opts ExportOptions) (err error) {
	uniq := make(map[string]cid.Cid, len(ids))
	for _, id := range ids {
		if !id.Defined() {
			return storage.ErrInvalidCID
		}
		uniq[id.String()] = id
	}
	cidStrings := make([]string, 0, len(uniq))
	for s := range uniq {
		cidStrings = append(cidStrings, s)
	}
	sort.Strings(cidStrings)

	tw := tar.NewWriter(w)
	defer func() {
		if cerr := tw.Close(); err == nil {
			err = cerr
		}
	}()

	blocks := make([]indexBlock, 0, len(cidStrings))
	for _, s := range cidStrings {
		id := uniq[s]
		b, err := cas.Get(id)
		if err != nil {
			return fmt.Errorf("bundle: %s: %w", s, err)
		}
		got, err := cidutil.BlockCID(b)
		if err != nil {
			return err
		}
		if !got.Equals(id) {
			return storage.ErrCIDMismatch
		}
		if err := writeFile(tw, "blocks/"+s, b); err != nil {
			return err
		}
		blocks = append(blocks, indexBlock{CID: s, Size: len(b)})
	}

	if !opts.IncludeIndex {
		return nil
	}
	idx := indexJSON{
		Version:   FormatVersion,
		CIDCodec:  "dag-cbor",
		Multihash: "blake3",
		Blocks:    blocks,
	}
	keys := make([]string, 0, len(opts.Labels))
	for k := range opts.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "" {
			return fmt.Errorf("bundle: empty label key")
		}
		v := opts.Labels[k]
		if !v.Defined() {
			return storage.ErrInvalidCID
		}
		idx.Labels = append(idx.Labels, indexLabel{Name: k, CID: v.String()})
	}
	b, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	return writeFile(tw, "index.json", append(b, '\n'))
}

// ImportOptions controls bundle import behavior.
type ImportOptions struct {
	// IgnoreUnknown controls whether unknown TAR entries are ignored.
	//
	// Default (false) is fail-closed: unknown entries cause Import to return an error.
	IgnoreUnknown bool
}

// Manifest describes what an import stored.
type Manifest struct {
	Blocks []cid.Cid
	// Labels is copied from index.json when present. Labels are not
	// verified beyond parsing; callers must re-check what they point at.
	Labels map[string]cid.Cid
}

// Import reads a bundle from r and imports all blocks into cas in a single
// transaction. Compression is detected from the stream.
//
// Default behavior is fail-closed: unknown entries cause an error.
func Import(ctx context.Context, r io.Reader, cas storage.CAS) (Manifest, error) {
	return ImportWithOptions(ctx, r, cas, ImportOptions{})
}

// ImportWithOptions is Import with explicit options.
//
// It validates that each block's bytes match both the filename CID and the
// computed CID. Nothing is stored unless every entry validates.
func ImportWithOptions(ctx context.Context, r io.Reader, cas storage.CAS, opts ImportOptions) (Manifest, error) {
	var m Manifest
	if cas == nil {
		return m, fmt.Errorf("bundle: nil CAS")
	}
	plain, closeFn, err := decompress(r)
	if err != nil {
		return m, err
	}
	defer closeFn()

	err = storage.WithTxn(ctx, cas, func(txn storage.Txn) error {
		var err error
		m, err = readTar(ctx, plain, txn, opts)
		return err
	})
	if err != nil {
		return Manifest{}, err
	}
	return m, nil
}

func decompress(r io.Reader) (io.Reader, func(), error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, err
	}
	switch {
	case bytes.Equal(magic, zstdMagic):
		zr, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	case bytes.Equal(magic, lz4Magic):
		return lz4.NewReader(br), func() {}, nil
	default:
		return br, func() {}, nil
	}
}

func readTar(ctx context.Context, r io.Reader, txn storage.Txn, opts ImportOptions) (Manifest, error) {
	var m Manifest
	tr := tar.NewReader(r)
	seen := map[string]struct{}{}

	for {
		if err := ctx.Err(); err != nil {
			return m, err
		}
		h, err := tr.Next()
		if err == io.EOF {
			return m, nil
		}
		if err != nil {
			return m, err
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return m, fmt.Errorf("bundle: invalid entry path: %q", h.Name)
		}

		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return m, fmt.Errorf("bundle: unexpected tar entry type: %v (%s)", h.Typeflag, name)
		}

		if name == "index.json" {
			labels, err := readLabels(tr)
			if err != nil {
				return m, err
			}
			m.Labels = labels
			continue
		}

		if !strings.HasPrefix(name, "blocks/") {
			if opts.IgnoreUnknown {
				_, _ = io.Copy(io.Discard, tr)
				continue
			}
			return m, fmt.Errorf("bundle: unknown entry: %s", name)
		}

		id, derr := cid.Decode(strings.TrimPrefix(name, "blocks/"))
		if derr != nil || !id.Defined() {
			return m, storage.ErrInvalidCID
		}
		payload, rerr := io.ReadAll(tr)
		if rerr != nil {
			return m, rerr
		}
		got, herr := cidutil.BlockCID(payload)
		if herr != nil {
			return m, herr
		}
		if !got.Equals(id) {
			return m, storage.ErrCIDMismatch
		}
		key := id.String()
		if _, ok := seen[key]; ok {
			return m, fmt.Errorf("bundle: duplicate block entry: %s", key)
		}
		seen[key] = struct{}{}

		if _, err := txn.Put(payload); err != nil {
			return m, err
		}
		m.Blocks = append(m.Blocks, id)
	}
}

func readLabels(r io.Reader) (map[string]cid.Cid, error) {
	var idx indexJSON
	if err := json.NewDecoder(r).Decode(&idx); err != nil {
		return nil, fmt.Errorf("bundle: index.json: %w", err)
	}
	if len(idx.Labels) == 0 {
		return nil, nil
	}
	labels := make(map[string]cid.Cid, len(idx.Labels))
	for _, l := range idx.Labels {
		id, err := cid.Decode(l.CID)
		if err != nil {
			return nil, fmt.Errorf("bundle: label %q: %w", l.Name, storage.ErrInvalidCID)
		}
		labels[l.Name] = id
	}
	return labels, nil
}

type indexJSON struct {
	Version   int          `json:"version"`
	CIDCodec  string       `json:"cidCodec"`
	Multihash string       `json:"multihash"`
	Blocks    []indexBlock `json:"blocks"`
	Labels    []indexLabel `json:"labels,omitempty"`
}

type indexBlock struct {
	CID  string `json:"cid"`
	Size int    `json:"size"`
}

type indexLabel struct {
	Name string `json:"name"`
	CID  string `json:"cid"`
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatUSTAR,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(content)
	return err
}

func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}
	parts := strings.Split(name, "/")
	for _, part := range parts {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}
