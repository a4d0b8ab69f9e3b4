package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"paperreel/internal/models"
	"paperreel/internal/pdfmeta"
)

func runUpload(args []string) error {
	fs, e := newFlagSet("upload")
	timeout := fs.Duration("timeout", 5*time.Minute, "upload timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: paperreel upload [flags] <file.pdf>")
	}
	path := fs.Arg(0)
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return fmt.Errorf("%s: only PDF files are accepted", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	meta, err := pdfmeta.Inspect(f, st.Size())
	if err != nil {
		head := make([]byte, 16)
		n, _ := f.ReadAt(head, 0)
		if !pdfmeta.HasHeader(head[:n]) {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprintf(os.Stderr, "warning: %s could not be read locally (%v); uploading anyway\n", path, err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	res, err := e.client().Upload(ctx, filepath.Base(path), f)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	store := e.store()
	info := pdfInfoFromMeta(filepath.Base(path), meta)
	if res.JobID != "" {
		if err := store.SavePDFInfo(res.JobID, info); err != nil {
			fmt.Fprintln(os.Stderr, "warning: could not cache document info:", err)
		}
		if err := store.SaveLastJobID(res.JobID); err != nil {
			fmt.Fprintln(os.Stderr, "warning: could not remember job id:", err)
		}
	}

	if *e.jsonOut {
		return printJSON(map[string]any{"job_id": res.JobID, "pages": meta.PageCount, "title": info.Title})
	}
	if res.JobID == "" {
		fmt.Fprintln(stdout, "uploaded, but the backend returned no job id:")
		fmt.Fprintln(stdout, string(res.Raw))
		return nil
	}
	fmt.Fprintf(stdout, "job: %s\n", res.JobID)
	fmt.Fprintf(stdout, "  title: %s\n", info.Title)
	if meta.PageCount > 0 {
		fmt.Fprintf(stdout, "  pages: %d\n", meta.PageCount)
	}
	fmt.Fprintln(stdout, "next:")
	fmt.Fprintln(stdout, "  paperreel watch --last")
	return nil
}

func pdfInfoFromMeta(filename string, meta pdfmeta.Meta) models.PDFInfo {
	title := meta.Title
	if title == "" {
		title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}
	items := []models.MetadataItem{{Label: "File", Value: filename}}
	if meta.PageCount > 0 {
		items = append(items, models.MetadataItem{Label: "Pages", Value: strconv.Itoa(meta.PageCount)})
	}
	if meta.Fingerprint != "" {
		items = append(items, models.MetadataItem{Label: "SHA-256", Value: meta.Fingerprint})
	}
	return models.PDFInfo{Title: title, Metadata: items}
}
