package audit

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"prowaudit/internal/report"
)

// TarballName is the archive written next to the reports.
const TarballName = "prow_audit_results.tar.gz"

// DatabaseArchiveName is the database entry name inside the tarball.
const DatabaseArchiveName = "audit_database.db"

// createTarball packs the database and both reports into a single archive
// under the output directory. Missing reports are skipped rather than fatal.
func (o *Orchestrator) createTarball(dbPath string) (string, error) {
	tarPath := filepath.Join(o.opts.OutputPath, TarballName)
	f, err := os.Create(tarPath)
	if err != nil {
		return "", fmt.Errorf("create tarball: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	entries := []struct {
		path, name string
		required   bool
	}{
		{dbPath, DatabaseArchiveName, true},
		{filepath.Join(o.opts.OutputPath, report.AuditReportName), report.AuditReportName, false},
		{filepath.Join(o.opts.OutputPath, report.UsageReportName), report.UsageReportName, false},
	}
	for _, e := range entries {
		if err := addFile(tw, e.path, e.name); err != nil {
			if !e.required && os.IsNotExist(err) {
				o.log.Warn("tarball entry missing, skipping", "file", e.name)
				continue
			}
			return "", fmt.Errorf("add %s to tarball: %w", e.name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return "", fmt.Errorf("finalize tarball: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("finalize tarball: %w", err)
	}
	return tarPath, nil
}

func addFile(tw *tar.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}
