package uploads

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"face-analysis-backend/internal/shared/util"
)

const (
	PhotoField = "photo"
	VideoField = "video"

	DefaultMaxBytes = 5 << 20
	DefaultMaxFiles = 2

	sniffLen = 512
	// multipart framing allowance on top of the per-file limits.
	envelopeSlack = 1 << 20
)

// StagedFile is one uploaded part written to the staging directory.
type StagedFile struct {
	Path         string
	OriginalName string
	ContentType  string
	Size         int64
	SHA256       string
}

// Staged holds the files of one submission. Cleanup removes all of them.
type Staged struct {
	Dir   string
	Photo StagedFile
	Video *StagedFile
}

// Cleanup removes the staging directory and everything the worker wrote into it.
func (s *Staged) Cleanup() error {
	if s == nil || s.Dir == "" {
		return nil
	}
	return os.RemoveAll(s.Dir)
}

// Contains reports whether path lies inside the staging directory.
func (s *Staged) Contains(path string) bool {
	if s == nil || s.Dir == "" || path == "" {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(s.Dir, abs)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Stager streams multipart submissions into per-request staging directories.
type Stager struct {
	Dir      string
	MaxBytes int64
	MaxFiles int
}

func NewStager(dir string, maxBytes int64) *Stager {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Stager{Dir: dir, MaxBytes: maxBytes, MaxFiles: DefaultMaxFiles}
}

// Stage validates and stages the photo and optional video parts of r.
// On error nothing is left on disk.
func (s *Stager) Stage(r *http.Request) (*Staged, error) {
	maxFiles := s.MaxFiles
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	r.Body = http.MaxBytesReader(nil, r.Body, int64(maxFiles)*s.MaxBytes+envelopeSlack)

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, invalid("Photo is required", "Request must be a multipart/form-data upload")
	}

	if s.Dir != "" {
		if err := os.MkdirAll(s.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(s.Dir, "analysis-*")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	if abs, aerr := filepath.Abs(dir); aerr == nil {
		dir = abs
	}
	staged := &Staged{Dir: dir}
	ok := false
	defer func() {
		if !ok {
			_ = staged.Cleanup()
		}
	}()

	files := 0
	for {
		part, perr := mr.NextPart()
		if errors.Is(perr, io.EOF) {
			break
		}
		if perr != nil {
			return nil, tooLargeOr(perr, invalid("Invalid upload", "Malformed multipart body"))
		}

		if part.FileName() == "" {
			_, _ = io.Copy(io.Discard, part)
			part.Close()
			continue
		}

		files++
		if files > maxFiles {
			part.Close()
			return nil, invalid("Too many files", fmt.Sprintf("At most %d files may be uploaded", maxFiles))
		}

		switch part.FormName() {
		case PhotoField:
			if staged.Photo.Path != "" {
				part.Close()
				return nil, invalid("Too many files", "Only one photo may be uploaded")
			}
			file, werr := s.writePart(dir, part)
			part.Close()
			if werr != nil {
				return nil, werr
			}
			if err := checkPhoto(&file); err != nil {
				return nil, err
			}
			staged.Photo = file
		case VideoField:
			if staged.Video != nil {
				part.Close()
				return nil, invalid("Too many files", "Only one video may be uploaded")
			}
			file, werr := s.writePart(dir, part)
			part.Close()
			if werr != nil {
				return nil, werr
			}
			if err := checkVideo(&file, part.Header.Get("Content-Type")); err != nil {
				return nil, err
			}
			staged.Video = &file
		default:
			part.Close()
			return nil, invalid("Unexpected file field", fmt.Sprintf("Field %q is not accepted", part.FormName()))
		}
	}

	if staged.Photo.Path == "" {
		return nil, invalid("Photo is required", "Please upload a clear photo of your face")
	}
	ok = true
	return staged, nil
}

func (s *Stager) writePart(dir string, part *multipart.Part) (StagedFile, error) {
	original := part.FileName()
	ext := ""
	if name, err := util.SanitizeFileName(filepath.Base(original)); err == nil {
		ext = strings.ToLower(filepath.Ext(name))
	}
	path := filepath.Join(dir, part.FormName()+"-"+uuid.NewString()+ext)

	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return StagedFile{}, fmt.Errorf("create staged file: %w", err)
	}
	digest := util.NewDigest()
	n, err := io.Copy(io.MultiWriter(out, digest), io.LimitReader(part, s.MaxBytes+1))
	closeErr := out.Close()
	if err != nil {
		return StagedFile{}, tooLargeOr(err, fmt.Errorf("write staged file: %w", err))
	}
	if closeErr != nil {
		return StagedFile{}, fmt.Errorf("close staged file: %w", closeErr)
	}
	if n > s.MaxBytes {
		return StagedFile{}, fileTooLarge(s.MaxBytes)
	}
	if n == 0 {
		return StagedFile{}, invalid("Empty file", fmt.Sprintf("The %s upload is empty", part.FormName()))
	}
	return StagedFile{Path: path, OriginalName: original, Size: n, SHA256: digest.Hex()}, nil
}

func checkPhoto(file *StagedFile) error {
	f, err := os.Open(file.Path)
	if err != nil {
		return fmt.Errorf("open staged photo: %w", err)
	}
	defer f.Close()

	_, format, err := image.DecodeConfig(f)
	if err != nil {
		return invalid("Invalid photo", "The photo must be a JPEG, PNG, GIF, BMP, TIFF or WebP image")
	}
	file.ContentType = "image/" + format
	return nil
}

func checkVideo(file *StagedFile, declared string) error {
	sniffed, err := sniff(file.Path)
	if err != nil {
		return err
	}
	switch {
	case strings.HasPrefix(sniffed, "video/"):
		file.ContentType = sniffed
	case strings.HasPrefix(strings.ToLower(declared), "video/"):
		file.ContentType = strings.ToLower(declared)
	default:
		return invalid("Invalid video", "The video upload must be a video file")
	}
	return nil
}

func sniff(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open staged file: %w", err)
	}
	defer f.Close()
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read staged file: %w", err)
	}
	return http.DetectContentType(buf[:n]), nil
}

func fileTooLarge(limit int64) *ValidationError {
	size := fmt.Sprintf("%d bytes", limit)
	if limit >= 1<<20 && limit%(1<<20) == 0 {
		size = fmt.Sprintf("%d MB", limit>>20)
	}
	return invalid("File too large", "Each file must be at most "+size)
}

func tooLargeOr(err error, fallback error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return invalid("Upload too large", "The request body exceeds the allowed size")
	}
	return fallback
}
