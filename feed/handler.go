package feed

import (
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/errors"
)

// Handler owns the on-disk lifecycle of one feed artifact: a live file at a
// stable public path and a temporary write target used during a run. The
// temporary file sits in the same directory as the live file so the final
// promote is a same-volume rename. No other component touches these paths.
type Handler struct {
	dir      string
	fileName string
}

// NewHandler handler for a feed named fileName under dir
func NewHandler(dir, fileName string) *Handler {
	return &Handler{dir: dir, fileName: fileName}
}

// LivePath stable public path of the finished feed
func (h *Handler) LivePath() string {
	return filepath.Join(h.dir, h.fileName)
}

// FileName base name of the live feed
func (h *Handler) FileName() string {
	return h.fileName
}

func (h *Handler) tempPath() string {
	return filepath.Join(h.dir, "."+h.fileName+".tmp")
}

// PrepareFeedFolder create the target directory if absent
func (h *Handler) PrepareFeedFolder() error {
	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return errors.Wrapf(err, "create feed folder:%v", h.dir)
	}
	return nil
}

// CreateFreshTempFile truncate or create the temporary artifact, discarding
// stale content from an aborted prior run. The live file is never touched.
func (h *Handler) CreateFreshTempFile() error {
	f, err := os.Create(h.tempPath())
	if err != nil {
		return errors.Wrapf(err, "create feed temp file:%v", h.tempPath())
	}
	return f.Close()
}

// WriteToFeedTemporaryFile append pre-formatted text to the temporary
// artifact. Append-only, so batches of unbounded total size stream through
// without buffering the whole feed in memory.
func (h *Handler) WriteToFeedTemporaryFile(text string) error {
	f, err := os.OpenFile(h.tempPath(), os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open feed temp file:%v", h.tempPath())
	}
	_, werr := f.WriteString(text)
	cerr := f.Close()
	if werr != nil {
		return errors.Wrapf(werr, "append to feed temp file:%v", h.tempPath())
	}
	if cerr != nil {
		return errors.Wrapf(cerr, "close feed temp file:%v", h.tempPath())
	}
	return nil
}

// ReplaceFeedFileWithTempFile promote the temporary artifact to the live
// path. The rename stays on one volume, so a concurrent reader of the live
// path sees either the old complete file or the new complete file.
func (h *Handler) ReplaceFeedFileWithTempFile() error {
	if err := os.Rename(h.tempPath(), h.LivePath()); err != nil {
		return errors.Wrapf(err, "promote feed temp file to:%v", h.LivePath())
	}
	return nil
}

// WriteChecksumFile write an md5 sidecar next to the live feed
func (h *Handler) WriteChecksumFile() error {
	digest := md5.New()
	reader, err := os.Open(h.LivePath())
	if err != nil {
		return errors.Wrapf(err, "open feed file:%v", h.LivePath())
	}
	defer reader.Close()
	if _, err = io.Copy(digest, reader); err != nil {
		return errors.Wrapf(err, "checksum feed file:%v", h.LivePath())
	}
	checkFile := h.LivePath() + ".md5"
	w, err := os.Create(checkFile)
	if err != nil {
		return errors.Wrapf(err, "create checksum file:%v", checkFile)
	}
	defer w.Close()
	_, err = fmt.Fprintf(w, "%x", digest.Sum(nil))
	return err
}

// PublishTo copy the live feed and its checksum sidecar to a remote store
// under remoteDir. Missing sidecars are skipped.
func (h *Handler) PublishTo(store FileStorage, remoteDir string) error {
	if err := copyTo(h.LivePath(), store, path.Join(remoteDir, h.fileName)); err != nil {
		return err
	}
	local := &LocalFileStorage{}
	ok, err := local.Exists(h.LivePath() + ".md5")
	if err != nil || !ok {
		return err
	}
	return copyTo(h.LivePath()+".md5", store, path.Join(remoteDir, h.fileName+".md5"))
}

func copyTo(fromFile string, store FileStorage, toFile string) error {
	reader, err := os.Open(fromFile)
	if err != nil {
		return errors.Wrapf(err, "open file:%v", fromFile)
	}
	defer reader.Close()
	writer, err := store.Create(toFile)
	if err != nil {
		return errors.Wrapf(err, "create remote file:%v", toFile)
	}
	_, cerr := io.Copy(writer, reader)
	if err := writer.Close(); err != nil && cerr == nil {
		cerr = err
	}
	if cerr != nil {
		return errors.Wrapf(cerr, "copy file: %v -> %v", fromFile, toFile)
	}
	return nil
}
