// Package bundle moves identity blocks between stores as a deterministic TAR
// archive.
//
// Layout:
//
//	blocks/<cid>   one block per entry, named by its CID
//	index.json     optional; block sizes and name -> CID labels
//
// Blocks are authoritative. The index is informational and is never trusted
// over the block bytes.
package bundle

import (
	"archive/tar"
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

	"xdao.co/identity/cidutil"
	"xdao.co/identity/identity"
	"xdao.co/identity/storage"
)

// FormatVersion is the current index.json schema version.
const FormatVersion = 1

const (
	indexName   = "index.json"
	blockPrefix = "blocks/"
)

var epoch = time.Unix(0, 0).UTC()

// Index is the optional index.json entry.
type Index struct {
	Version   int     `json:"version"`
	CIDCodec  string  `json:"cidCodec"`
	Multihash string  `json:"multihash"`
	Blocks    []Block `json:"blocks"`
	Labels    []Label `json:"labels,omitempty"`
}

type Block struct {
	CID  string `json:"cid"`
	Size int    `json:"size"`
}

type Label struct {
	Name string `json:"name"`
	CID  string `json:"cid"`
}

type ExportOptions struct {
	// Labels maps names to exported CIDs. Each CID must be one of the exported blocks.
	Labels map[string]cid.Cid
	// IncludeIndex writes index.json after the blocks.
	IncludeIndex bool
}

// Export writes the blocks for ids to w.
//
// The output depends only on the set of ids and their contents: entries are
// sorted and TAR headers are normalized. Every block is verified against its
// CID before it is written.
func Export(ctx context.Context, w io.Writer, st storage.Store, ids []cid.Cid, opts ExportOptions) error {
	if st == nil {
		return errors.New("bundle: nil store")
	}

	uniq := make(map[string]cid.Cid, len(ids))
	for _, id := range ids {
		if !id.Defined() {
			return storage.ErrInvalidCID
		}
		uniq[id.String()] = id
	}
	names := make([]string, 0, len(uniq))
	for s := range uniq {
		names = append(names, s)
	}
	sort.Strings(names)

	labels, err := sortedLabels(opts.Labels, uniq)
	if err != nil {
		return err
	}

	tw := tar.NewWriter(w)
	fail := func(err error) error {
		_ = tw.Close()
		return err
	}

	blocks := make([]Block, 0, len(names))
	for _, s := range names {
		id := uniq[s]
		b, err := st.Get(ctx, id)
		if err != nil {
			return fail(fmt.Errorf("bundle: %s: %w", s, err))
		}
		if err := cidutil.Verify(b, id); err != nil {
			return fail(fmt.Errorf("%w: %v", storage.ErrCIDMismatch, err))
		}
		if err := writeEntry(tw, blockPrefix+s, b); err != nil {
			return fail(err)
		}
		blocks = append(blocks, Block{CID: s, Size: len(b)})
	}

	if opts.IncludeIndex {
		b, err := json.Marshal(Index{
			Version:   FormatVersion,
			CIDCodec:  "raw",
			Multihash: "sha2-256",
			Blocks:    blocks,
			Labels:    labels,
		})
		if err != nil {
			return fail(err)
		}
		if err := writeEntry(tw, indexName, append(b, '\n')); err != nil {
			return fail(err)
		}
	}
	return tw.Close()
}

func sortedLabels(in map[string]cid.Cid, exported map[string]cid.Cid) ([]Label, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]Label, 0, len(in))
	for name, id := range in {
		if strings.TrimSpace(name) == "" {
			return nil, errors.New("bundle: empty label name")
		}
		if !id.Defined() {
			return nil, storage.ErrInvalidCID
		}
		if _, ok := exported[id.String()]; !ok {
			return nil, fmt.Errorf("bundle: label %q points at %s, which is not exported", name, id)
		}
		out = append(out, Label{Name: name, CID: id.String()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// IdentityLabel names a stored identity as <base58 id>@<revision>.
func IdentityLabel(ident identity.Identity) string {
	return fmt.Sprintf("%s@%d", ident.ID(), ident.Revision())
}

// ExportIdentities exports the identities stored under ids, with an index
// labelling each block by IdentityLabel. Blocks that do not decode as
// identities are rejected.
func ExportIdentities(ctx context.Context, w io.Writer, st storage.Store, ids []cid.Cid) error {
	labels := make(map[string]cid.Cid, len(ids))
	loader := storage.Identities{Store: st}
	for _, id := range ids {
		ident, err := loader.Load(ctx, id)
		if err != nil {
			return fmt.Errorf("bundle: %s: %w", id, err)
		}
		labels[IdentityLabel(ident)] = id
	}
	return Export(ctx, w, st, ids, ExportOptions{Labels: labels, IncludeIndex: true})
}

type ImportOptions struct {
	// IgnoreUnknown skips unknown entries instead of failing.
	IgnoreUnknown bool
	// RequireIdentities rejects blocks that do not decode as identities.
	RequireIdentities bool
}

// Result describes an imported archive.
type Result struct {
	// Blocks lists the imported CIDs in archive order.
	Blocks []cid.Cid
	// Index is nil when the archive carries no index.json.
	Index *Index
}

// Import reads an archive from r and writes every block into st.
//
// Each block must hash to the CID in its entry name, and the store must
// return that same CID.
func Import(ctx context.Context, r io.Reader, st storage.Store, opts ImportOptions) (Result, error) {
	var res Result
	if st == nil {
		return res, errors.New("bundle: nil store")
	}

	tr := tar.NewReader(r)
	seen := map[string]struct{}{}
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		h, err := tr.Next()
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			return res, err
		}
		name := cleanPath(h.Name)
		if name == "" {
			return res, fmt.Errorf("bundle: invalid entry path: %q", h.Name)
		}
		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return res, fmt.Errorf("bundle: unexpected entry type %v (%s)", h.Typeflag, name)
		}

		switch {
		case name == indexName:
			var idx Index
			if err := json.NewDecoder(tr).Decode(&idx); err != nil {
				return res, fmt.Errorf("bundle: index.json: %w", err)
			}
			res.Index = &idx
			continue
		case !strings.HasPrefix(name, blockPrefix):
			if opts.IgnoreUnknown {
				continue
			}
			return res, fmt.Errorf("bundle: unknown entry: %s", name)
		}

		id, err := cid.Decode(strings.TrimPrefix(name, blockPrefix))
		if err != nil || !id.Defined() {
			return res, storage.ErrInvalidCID
		}
		if _, dup := seen[id.String()]; dup {
			return res, fmt.Errorf("bundle: duplicate block entry: %s", id)
		}
		seen[id.String()] = struct{}{}

		payload, err := io.ReadAll(tr)
		if err != nil {
			return res, err
		}
		if err := cidutil.Verify(payload, id); err != nil {
			return res, fmt.Errorf("%w: %v", storage.ErrCIDMismatch, err)
		}
		if opts.RequireIdentities {
			if _, err := identity.FromBuffer(payload); err != nil {
				return res, fmt.Errorf("bundle: %s: %w", id, err)
			}
		}
		got, err := st.Put(ctx, payload)
		if err != nil {
			return res, err
		}
		if !got.Equals(id) {
			return res, storage.ErrCIDMismatch
		}
		res.Blocks = append(res.Blocks, id)
	}
}

func writeEntry(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatUSTAR,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

// cleanPath normalizes an entry name and returns "" for anything that could
// escape the archive root.
func cleanPath(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	name = strings.TrimPrefix(strings.TrimPrefix(name, "./"), "/")
	if name == "" {
		return ""
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}
