//go:build integration

package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	apptransfer "media-relay/application/transfer"
	"media-relay/cmd"
	"media-relay/domain/transfer"
	"media-relay/infrastructure/blobstore"
	"media-relay/infrastructure/config"
	"media-relay/infrastructure/drive"
	"media-relay/infrastructure/staging"

	"github.com/cucumber/godog"
	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"
	gdrive "google.golang.org/api/drive/v3"
)

// fakeDriveService implements drive.DriveService over in-memory folders
type fakeDriveService struct {
	mu       sync.Mutex
	folders  map[string][]*gdrive.File
	contents map[string]string
	broken   map[string]bool
}

func newFakeDriveService() *fakeDriveService {
	return &fakeDriveService{
		folders:  make(map[string][]*gdrive.File),
		contents: make(map[string]string),
		broken:   make(map[string]bool),
	}
}

func (f *fakeDriveService) ListFiles(ctx context.Context, query string, fields string, orderBy string) ([]*gdrive.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, files := range f.folders {
		if strings.HasPrefix(query, "'"+id+"' in parents") {
			return files, nil
		}
	}
	return nil, errors.New("googleapi: Error 404: File not found")
}

func (f *fakeDriveService) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.contents[fileID]
	if !ok {
		return nil, fmt.Errorf("googleapi: Error 404: File not found: %s", fileID)
	}
	if f.broken[fileID] {
		return io.NopCloser(io.MultiReader(strings.NewReader(content[:len(content)/2]), resetReader{})), nil
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

type resetReader struct{}

func (resetReader) Read([]byte) (int, error) {
	return 0, errors.New("read tcp: connection reset by peer")
}

type jsonResult struct {
	Name            string `json:"name"`
	Status          string `json:"status"`
	Size            *int64 `json:"size"`
	DestinationPath string `json:"destinationPath"`
	Error           string `json:"error"`
}

type jsonReport struct {
	TotalFiles int          `json:"totalFiles"`
	Results    []jsonResult `json:"results"`
}

type transferContext struct {
	tempDir     string
	stagingDir  string
	drive       *fakeDriveService
	bucket      *blob.Bucket
	cfg         *config.Config
	credential  transfer.Credential
	cancelFirst bool

	output   bytes.Buffer
	report   jsonReport
	outcomes map[string]transfer.Outcome
	err      error
}

func InitializeTransferScenario(ctx *godog.ScenarioContext) {
	tc := &transferContext{}

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		tempDir, err := os.MkdirTemp("", "transfer-test-*")
		if err != nil {
			return c, err
		}
		cfg := config.Default()
		cfg.Sink.BucketURL = "mem://relay"
		*tc = transferContext{
			tempDir:    tempDir,
			stagingDir: filepath.Join(tempDir, "staging"),
			drive:      newFakeDriveService(),
			bucket:     memblob.OpenBucket(nil),
			cfg:        cfg,
			credential: "ya29.test-token",
			outcomes:   make(map[string]transfer.Outcome),
		}
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if tc.bucket != nil {
			tc.bucket.Close()
		}
		if tc.tempDir != "" {
			os.RemoveAll(tc.tempDir)
		}
		return c, nil
	})

	ctx.Step(`^a Drive folder "([^"]*)" containing:$`, tc.aDriveFolderContaining)
	ctx.Step(`^the file "([^"]*)" fails mid-stream$`, tc.theFileFailsMidStream)
	ctx.Step(`^the transfer concurrency is (\d+)$`, tc.theTransferConcurrencyIs)
	ctx.Step(`^transferred files are public$`, tc.transferredFilesArePublic)
	ctx.Step(`^no Drive credential is available$`, tc.noDriveCredentialIsAvailable)
	ctx.Step(`^I transfer the folder "([^"]*)" to "([^"]*)"$`, tc.iTransferTheFolderTo)
	ctx.Step(`^I transfer the folder "([^"]*)"$`, tc.iTransferTheFolder)
	ctx.Step(`^I transfer the folder "([^"]*)" and cancel after the first file$`, tc.iTransferTheFolderAndCancelAfterTheFirstFile)
	ctx.Step(`^the report should list (\d+) files with (\d+) succeeded and (\d+) failed$`, tc.theReportShouldList)
	ctx.Step(`^the file "([^"]*)" should have status "([^"]*)"$`, tc.theFileShouldHaveStatus)
	ctx.Step(`^the file "([^"]*)" should have failed with "([^"]*)"$`, tc.theFileShouldHaveFailedWith)
	ctx.Step(`^the file "([^"]*)" should have destination "([^"]*)"$`, tc.theFileShouldHaveDestination)
	ctx.Step(`^the file "([^"]*)" should have URL "([^"]*)"$`, tc.theFileShouldHaveURL)
	ctx.Step(`^the bucket should contain "([^"]*)" with content "([^"]*)"$`, tc.theBucketShouldContain)
	ctx.Step(`^the bucket should not contain "([^"]*)"$`, tc.theBucketShouldNotContain)
	ctx.Step(`^the object "([^"]*)" should have content type "([^"]*)"$`, tc.theObjectShouldHaveContentType)
	ctx.Step(`^the JSON report should contain (\d+) results$`, tc.theJSONReportShouldContainResults)
	ctx.Step(`^the transfer should fail with "([^"]*)"$`, tc.theTransferShouldFailWith)
	ctx.Step(`^no staging files should remain$`, tc.noStagingFilesShouldRemain)
}

func (t *transferContext) aDriveFolderContaining(folderID string, table *godog.Table) error {
	t.drive.mu.Lock()
	defer t.drive.mu.Unlock()

	files := []*gdrive.File{}
	for i, row := range table.Rows {
		if i == 0 {
			continue // Skip header row
		}
		name := row.Cells[0].Value
		content := row.Cells[2].Value
		id := fmt.Sprintf("%s-%02d", folderID, i)
		files = append(files, &gdrive.File{
			Id:       id,
			Name:     name,
			MimeType: row.Cells[1].Value,
			Size:     int64(len(content)),
		})
		t.drive.contents[id] = content
	}
	t.drive.folders[folderID] = files
	return nil
}

func (t *transferContext) fileID(name string) (string, error) {
	for _, files := range t.drive.folders {
		for _, f := range files {
			if f.Name == name {
				return f.Id, nil
			}
		}
	}
	return "", fmt.Errorf("no Drive file named %q", name)
}

func (t *transferContext) theFileFailsMidStream(name string) error {
	id, err := t.fileID(name)
	if err != nil {
		return err
	}
	t.drive.broken[id] = true
	return nil
}

func (t *transferContext) theTransferConcurrencyIs(n int) error {
	t.cfg.Transfer.Concurrency = n
	return nil
}

func (t *transferContext) transferredFilesArePublic() error {
	t.cfg.Sink.Public = true
	return nil
}

func (t *transferContext) noDriveCredentialIsAvailable() error {
	t.credential = nil
	return nil
}

func (t *transferContext) iTransferTheFolderTo(folderRef, prefix string) error {
	return t.run(folderRef, prefix)
}

func (t *transferContext) iTransferTheFolder(folderRef string) error {
	return t.run(folderRef, "")
}

func (t *transferContext) iTransferTheFolderAndCancelAfterTheFirstFile(folderRef string) error {
	t.cancelFirst = true
	return t.run(folderRef, "")
}

func (t *transferContext) run(folderRef, prefix string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stager, err := staging.NewDiskStore(t.stagingDir)
	if err != nil {
		return err
	}
	sink := blobstore.NewSink(t.bucket,
		blobstore.WithBaseURL(t.cfg.Sink.BucketURL),
		blobstore.WithPublicBaseURL("https://storage.googleapis.com/relay"),
	)

	opts := cmd.ServiceOptions(t.cfg, nil)
	opts.OnOutcome = func(o transfer.Outcome) {
		t.outcomes[o.Name] = o
		if t.cancelFirst {
			cancel()
		}
	}

	svc := apptransfer.NewService(
		drive.NewConnector(drive.WithDriveService(t.drive)),
		sink,
		stager,
		opts,
		io.Discard,
	)

	t.output.Reset()
	t.err = cmd.RunTransferWithDependencies(ctx, svc, apptransfer.Request{
		FolderRef:         folderRef,
		DestinationPrefix: prefix,
		Credential:        t.credential,
	}, &t.output, true)

	var batchErr *transfer.BatchError
	if errors.As(t.err, &batchErr) {
		return nil
	}
	if t.err != nil && !errors.Is(t.err, cmd.ErrFilesFailed) {
		return fmt.Errorf("transfer failed: %w", t.err)
	}

	t.report = jsonReport{}
	if err := json.Unmarshal(t.output.Bytes(), &t.report); err != nil {
		return fmt.Errorf("invalid JSON report: %w\n%s", err, t.output.String())
	}
	return nil
}

func (t *transferContext) result(name string) (jsonResult, error) {
	for _, r := range t.report.Results {
		if r.Name == name {
			return r, nil
		}
	}
	return jsonResult{}, fmt.Errorf("no result for %q in %+v", name, t.report.Results)
}

func (t *transferContext) theReportShouldList(total, succeeded, failed int) error {
	if t.report.TotalFiles != total || len(t.report.Results) != total {
		return fmt.Errorf("expected %d files, got totalFiles=%d results=%d", total, t.report.TotalFiles, len(t.report.Results))
	}
	ok := 0
	for _, r := range t.report.Results {
		if r.Status == "success" {
			ok++
		}
	}
	if ok != succeeded || total-ok != failed {
		return fmt.Errorf("expected %d succeeded and %d failed, got %d and %d", succeeded, failed, ok, total-ok)
	}
	return nil
}

func (t *transferContext) theFileShouldHaveStatus(name, status string) error {
	r, err := t.result(name)
	if err != nil {
		return err
	}
	if r.Status != status {
		return fmt.Errorf("expected status %q for %s, got %q (%s)", status, name, r.Status, r.Error)
	}
	return nil
}

func (t *transferContext) theFileShouldHaveFailedWith(name, kind string) error {
	r, err := t.result(name)
	if err != nil {
		return err
	}
	if r.Status != "error" {
		return fmt.Errorf("expected %s to fail, got status %q", name, r.Status)
	}
	if !strings.HasPrefix(r.Error, kind+":") {
		return fmt.Errorf("expected %s to fail with %q, got %q", name, kind, r.Error)
	}
	return nil
}

func (t *transferContext) theFileShouldHaveDestination(name, path string) error {
	r, err := t.result(name)
	if err != nil {
		return err
	}
	if r.DestinationPath != path {
		return fmt.Errorf("expected destination %q, got %q", path, r.DestinationPath)
	}
	return nil
}

func (t *transferContext) theFileShouldHaveURL(name, url string) error {
	o, ok := t.outcomes[name]
	if !ok {
		return fmt.Errorf("no outcome recorded for %q", name)
	}
	if o.Location.URL != url {
		return fmt.Errorf("expected URL %q, got %q", url, o.Location.URL)
	}
	return nil
}

func (t *transferContext) theBucketShouldContain(key, content string) error {
	data, err := t.bucket.ReadAll(context.Background(), key)
	if err != nil {
		return fmt.Errorf("expected object %q: %w", key, err)
	}
	if string(data) != content {
		return fmt.Errorf("expected content %q, got %q", content, data)
	}
	return nil
}

func (t *transferContext) theBucketShouldNotContain(key string) error {
	exists, err := t.bucket.Exists(context.Background(), key)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("expected no object at %q", key)
	}
	return nil
}

func (t *transferContext) theObjectShouldHaveContentType(key, contentType string) error {
	attrs, err := t.bucket.Attributes(context.Background(), key)
	if err != nil {
		return fmt.Errorf("expected object %q: %w", key, err)
	}
	if attrs.ContentType != contentType {
		return fmt.Errorf("expected content type %q, got %q", contentType, attrs.ContentType)
	}
	return nil
}

func (t *transferContext) theJSONReportShouldContainResults(n int) error {
	if len(t.report.Results) != n {
		return fmt.Errorf("expected %d results, got %d", n, len(t.report.Results))
	}
	for _, r := range t.report.Results {
		if r.Status == "success" && (r.Size == nil || r.DestinationPath == "") {
			return fmt.Errorf("success result %q is missing size or destinationPath", r.Name)
		}
	}
	return nil
}

func (t *transferContext) theTransferShouldFailWith(message string) error {
	if t.err == nil {
		return fmt.Errorf("expected the transfer to fail")
	}
	var batchErr *transfer.BatchError
	if !errors.As(t.err, &batchErr) {
		return fmt.Errorf("expected a batch error, got %v", t.err)
	}
	if batchErr.Message != message {
		return fmt.Errorf("expected message %q, got %q", message, batchErr.Message)
	}
	if !strings.Contains(t.output.String(), `"message"`) {
		return fmt.Errorf("expected a JSON error body, got %q", t.output.String())
	}
	return nil
}

func (t *transferContext) noStagingFilesShouldRemain() error {
	entries, err := os.ReadDir(t.stagingDir)
	if err != nil {
		return err
	}
	if len(entries) != 0 {
		return fmt.Errorf("expected empty staging directory, found %d files", len(entries))
	}
	return nil
}
