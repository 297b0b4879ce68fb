package source

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Format is an archive format.
type Format string

const (
	FormatAuto  Format = ""
	FormatTarGz Format = "tar.gz"
	FormatTarXz Format = "tar.xz"
	FormatTarZs Format = "tar.zst"
	FormatTar   Format = "tar"
	FormatZip   Format = "zip"
)

var suffixes = []struct {
	suffix string
	format Format
}{
	{".tar.gz", FormatTarGz},
	{".tgz", FormatTarGz},
	{".tar.xz", FormatTarXz},
	{".txz", FormatTarXz},
	{".tar.zst", FormatTarZs},
	{".tzst", FormatTarZs},
	{".tar", FormatTar},
	{".zip", FormatZip},
}

// DetectFormat infers the archive format from the file name in a URL.
func DetectFormat(locator string) (Format, error) {
	name := strings.ToLower(locator)
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	name = path.Base(name)
	for _, s := range suffixes {
		if strings.HasSuffix(name, s.suffix) {
			return s.format, nil
		}
	}
	return FormatAuto, fmt.Errorf("%w: %s", ErrUnsupportedFormat, locator)
}

func resolveFormat(f Format, locator string) (Format, error) {
	switch f {
	case FormatAuto:
		return DetectFormat(locator)
	case FormatTarGz, FormatTarXz, FormatTarZs, FormatTar, FormatZip:
		return f, nil
	}
	return FormatAuto, fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
}

func extract(archive string, format Format, dst string) error {
	if format == FormatZip {
		return extractZip(archive, dst)
	}
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader
	switch format {
	case FormatTarGz:
		zr, err := gzip.NewReader(f)
		if err != nil {
			return err
		}
		defer zr.Close()
		r = zr
	case FormatTarXz:
		xr, err := xz.NewReader(f)
		if err != nil {
			return err
		}
		r = xr
	case FormatTarZs:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return err
		}
		defer zr.Close()
		r = zr
	case FormatTar:
		r = f
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(format))
	}
	return extractTar(r, dst)
}

// target returns the location of an archive entry below dst, rejecting
// names that would escape it.
func target(dst, name string) (string, error) {
	name = strings.TrimPrefix(path.Clean(filepath.ToSlash(name)), "./")
	if name == "." || name == "" {
		return dst, nil
	}
	local, err := filepath.Localize(name)
	if err != nil || !filepath.IsLocal(local) {
		return "", fmt.Errorf("unsafe path in archive: %q", name)
	}
	return filepath.Join(dst, local), nil
}

func extractTar(r io.Reader, dst string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		to, err := target(dst, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(to, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(to, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := symlink(dst, to, hdr.Linkname); err != nil {
				return err
			}
		case tar.TypeLink:
			from, err := target(dst, hdr.Linkname)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
				return err
			}
			if err := os.Link(from, to); err != nil {
				return err
			}
		default:
			// pax headers, devices and fifos carry nothing a build needs.
		}
	}
}

func extractZip(archive, dst string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, f := range zr.File {
		to, err := target(dst, f.Name)
		if err != nil {
			return err
		}
		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(to, 0o755); err != nil {
				return err
			}
		case mode&os.ModeSymlink != 0:
			rc, err := f.Open()
			if err != nil {
				return err
			}
			link, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return err
			}
			if err := symlink(dst, to, string(link)); err != nil {
				return err
			}
		default:
			rc, err := f.Open()
			if err != nil {
				return err
			}
			perm := mode.Perm()
			if perm == 0 {
				perm = 0o644
			}
			err = writeFile(to, rc, perm)
			rc.Close()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func writeFile(to string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(to, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// symlink creates a link at to whose target must resolve inside dst.
func symlink(dst, to, link string) error {
	if filepath.IsAbs(link) {
		return fmt.Errorf("unsafe symlink %q -> %q", to, link)
	}
	resolved := filepath.Join(filepath.Dir(to), filepath.FromSlash(link))
	rel, err := filepath.Rel(dst, resolved)
	if err != nil || !filepath.IsLocal(rel) {
		return fmt.Errorf("unsafe symlink %q -> %q", to, link)
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return err
	}
	return os.Symlink(link, to)
}
