// Package texture resolves the image asset of a texture node into a path
// reference, optionally with the image re-encoded and embedded inline.
package texture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	"image/png"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/chazu/cyclesxml/pkg/graph"
	"github.com/go-git/go-billy/v5"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

// RelativePrefix marks a path as relative to the scene file.
const RelativePrefix = "//"

// sniffLen is how many leading bytes are inspected to identify a file type.
const sniffLen = 262

// ErrNotImage is returned when an asset's bytes are not a known image format.
var ErrNotImage = errors.New("texture: not an image")

// Mode selects how image assets are written.
type Mode int

const (
	ModeReference Mode = iota // path only
	ModeEmbed                 // path plus base64 PNG payload
)

func (m Mode) String() string {
	switch m {
	case ModeReference:
		return "reference"
	case ModeEmbed:
		return "embed"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts "reference" or "embed" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reference", "ref":
		return ModeReference, nil
	case "embed", "inline":
		return ModeEmbed, nil
	}
	return ModeReference, fmt.Errorf("texture: unknown mode %q, expected reference or embed", s)
}

// Resolved is the serializable form of an image asset.
type Resolved struct {
	Path   string // src attribute; empty when the node has no image
	Inline string // base64 PNG payload; set only in embed mode
}

// Resolver turns image-bearing nodes into Resolved assets.
type Resolver struct {
	Mode    Mode
	FS      billy.Filesystem // source of image files in embed mode
	BaseDir string           // directory relative paths are resolved against
	Logger  *slog.Logger
}

// NewResolver returns a resolver for the given mode reading from fs.
func NewResolver(mode Mode, fs billy.Filesystem, baseDir string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{Mode: mode, FS: fs, BaseDir: baseDir, Logger: logger}
}

// StripRelative removes the scene-relative prefix from p, if present.
func StripRelative(p string) string {
	return strings.TrimPrefix(p, RelativePrefix)
}

// Resolve produces the asset for n. Nodes without an image resolve to the
// zero value. In embed mode an image that cannot be read or decoded is
// logged and resolved as a plain reference; only context cancellation is
// returned as an error.
func (r *Resolver) Resolve(ctx context.Context, n *graph.Node) (Resolved, error) {
	if n == nil || n.Image == nil {
		return Resolved{}, nil
	}
	res := Resolved{Path: StripRelative(n.Image.Path)}
	if r.Mode != ModeEmbed {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return Resolved{}, err
	}

	payload, err := r.embed(n.Image, res.Path)
	if err != nil {
		r.logger().Warn("texture not embedded, writing reference only",
			"node", n.Name, "path", res.Path, "error", err)
		return res, nil
	}
	res.Inline = payload
	return res, nil
}

// embed re-encodes the asset to PNG and returns it base64-encoded. The
// encoding buffer is local to the call.
func (r *Resolver) embed(img *graph.ImageAsset, path string) (string, error) {
	pixels := img.Pixels
	if pixels == nil {
		if path == "" {
			return "", errors.New("image has no path and no pixel data")
		}
		var err error
		pixels, err = r.load(path)
		if err != nil {
			return "", err
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, pixels); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// load reads and decodes an image file from the resolver's filesystem.
func (r *Resolver) load(path string) (image.Image, error) {
	if r.FS == nil {
		return nil, errors.New("no filesystem configured")
	}
	full := path
	if !filepath.IsAbs(full) && r.BaseDir != "" {
		full = filepath.Join(r.BaseDir, full)
	}

	f, err := r.FS.Open(full)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", full, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", full, err)
	}

	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if !filetype.IsImage(head) {
		return nil, fmt.Errorf("%s: %w", full, ErrNotImage)
	}

	im, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", full, err)
	}
	return im, nil
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
