package datasets

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/jedib0t/go-pretty/v6/progress"
)

var apiClient = resty.New()

const omniglotURL = "https://raw.githubusercontent.com/brendenlake/omniglot/master/python/images_background.zip"

// DownloadOmniglot fetches the Omniglot background set and unpacks it into
// dir with one directory per character class (alphabet_character), ready
// for NewImageFolder. The download is skipped when dir is already
// populated.
func DownloadOmniglot(dir string, pw progress.Writer) error {
	if entries, err := os.ReadDir(dir); err == nil && len(entries) > 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating dataset dir: %v", err)
	}

	resp, err := apiClient.R().Get(omniglotURL)
	if err != nil {
		return fmt.Errorf("downloading omniglot: %v", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("downloading omniglot: status %d", resp.StatusCode())
	}

	body := resp.Body()
	archive, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return fmt.Errorf("opening omniglot archive: %v", err)
	}

	var tracker *progress.Tracker
	if pw != nil {
		tracker = &progress.Tracker{
			Message: "Extracting omniglot",
			Total:   int64(len(archive.File)),
			Units:   progress.UnitsDefault,
		}
		pw.AppendTracker(tracker)
		tracker.Start()
	}

	for _, f := range archive.File {
		if tracker != nil {
			tracker.Increment(1)
		}
		if f.FileInfo().IsDir() || !strings.HasSuffix(strings.ToLower(f.Name), ".png") {
			continue
		}
		// images_background/Alphabet/characterNN/img.png -> Alphabet_characterNN/img.png
		parts := strings.Split(filepath.ToSlash(f.Name), "/")
		if len(parts) < 3 {
			continue
		}
		classDir := filepath.Join(dir, parts[len(parts)-3]+"_"+parts[len(parts)-2])
		if err := os.MkdirAll(classDir, 0755); err != nil {
			return fmt.Errorf("creating class dir: %v", err)
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("reading %s from archive: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("reading %s from archive: %v", f.Name, err)
		}
		if err := os.WriteFile(filepath.Join(classDir, parts[len(parts)-1]), data, 0644); err != nil {
			return fmt.Errorf("writing %s: %v", parts[len(parts)-1], err)
		}
	}
	if tracker != nil {
		tracker.MarkAsDone()
	}
	return nil
}
