package verify

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freshsync/internal/domain/entity"
	"freshsync/internal/utils/logger"
)

func strp(s string) *string { return &s }

type fakeStaging struct {
	ids         []int64
	attachments map[int64][]entity.AttachmentRow
}

func (f *fakeStaging) ListStagedIDs(_ context.Context) ([]int64, error) {
	return f.ids, nil
}

func (f *fakeStaging) AttachmentsByTicket(_ context.Context, id int64) ([]entity.AttachmentRow, error) {
	return f.attachments[id], nil
}

type fakeFiles struct {
	dirs    []int64
	present map[string]bool
	saved   []string
	moved   []int64
}

func (f *fakeFiles) ListTicketDirs() ([]int64, error) { return f.dirs, nil }

func (f *fakeFiles) Exists(ticketID int64, name string) bool {
	return f.present[key(ticketID, name)]
}

func (f *fakeFiles) Save(ticketID int64, name string, data []byte) (string, error) {
	f.saved = append(f.saved, key(ticketID, name))
	f.present[key(ticketID, name)] = true
	return name, nil
}

func (f *fakeFiles) MoveToOld(ticketID int64) error {
	f.moved = append(f.moved, ticketID)
	return nil
}

func key(id int64, name string) string {
	return strconv.FormatInt(id, 10) + "/" + name
}

type fakeDownloader struct {
	files map[string][]byte
}

func (f *fakeDownloader) Download(_ context.Context, url string) ([]byte, string, error) {
	if d, ok := f.files[url]; ok {
		return d, "application/pdf", nil
	}
	return nil, "", errors.New("gone")
}

type fakeMarkers struct {
	done   map[int64]bool
	marked []int64
}

func (f *fakeMarkers) IsDone(id int64) (bool, error) { return f.done[id], nil }

func (f *fakeMarkers) MarkAll(ids []int64) error {
	f.marked = append(f.marked, ids...)
	return nil
}

func TestRunMovesOrphans(t *testing.T) {
	staging := &fakeStaging{ids: []int64{100}}
	files := &fakeFiles{dirs: []int64{100, 200, 300}, present: map[string]bool{}}

	svc := New(staging, files, &fakeDownloader{}, &fakeMarkers{done: map[int64]bool{}}, logger.New("local"))

	report, err := svc.Run(context.Background(), Options{MoveOrphans: true})
	require.NoError(t, err)

	assert.ElementsMatch(t, []int64{200, 300}, report.OrphanDirs)
	assert.ElementsMatch(t, []int64{200, 300}, files.moved)
}

func TestRunReportsWithoutFixing(t *testing.T) {
	staging := &fakeStaging{
		ids: []int64{100},
		attachments: map[int64][]entity.AttachmentRow{
			100: {{FreshTicketID: 100, Name: "a.pdf", StoredPath: strp("x/a.pdf"), SourceURL: strp("https://f/a.pdf")}},
		},
	}
	files := &fakeFiles{dirs: []int64{100, 200}, present: map[string]bool{}}

	svc := New(staging, files, &fakeDownloader{}, &fakeMarkers{done: map[int64]bool{}}, logger.New("local"))

	report, err := svc.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, []int64{200}, report.OrphanDirs)
	assert.Empty(t, files.moved)
	assert.Equal(t, 1, report.MissingFiles)
	assert.Zero(t, report.Redownloaded)
	assert.Empty(t, files.saved)
}

func TestRunRedownloadsMissing(t *testing.T) {
	staging := &fakeStaging{
		ids: []int64{100},
		attachments: map[int64][]entity.AttachmentRow{
			100: {
				{FreshTicketID: 100, Name: "ok.pdf", StoredPath: strp("x/ok.pdf")},
				{FreshTicketID: 100, Name: "lost.pdf", StoredPath: strp("x/lost.pdf"), SourceURL: strp("https://f/lost.pdf")},
			},
		},
	}
	files := &fakeFiles{
		dirs:    []int64{100},
		present: map[string]bool{key(100, "ok.pdf"): true},
	}
	dl := &fakeDownloader{files: map[string][]byte{"https://f/lost.pdf": []byte("pdf")}}
	markers := &fakeMarkers{done: map[int64]bool{}}

	svc := New(staging, files, dl, markers, logger.New("local"))

	report, err := svc.Run(context.Background(), Options{Redownload: true, BackfillMarkers: true})
	require.NoError(t, err)

	assert.Equal(t, 1, report.MissingFiles)
	assert.Equal(t, 1, report.Redownloaded)
	assert.Equal(t, []string{key(100, "lost.pdf")}, files.saved)

	// Полностью собранный тикет получает отметку
	assert.Equal(t, []int64{100}, markers.marked)
	assert.Equal(t, 1, report.MarkedDone)
}

func TestRunSkipsAlreadyMarked(t *testing.T) {
	staging := &fakeStaging{ids: []int64{100}}
	files := &fakeFiles{dirs: []int64{100}, present: map[string]bool{}}
	markers := &fakeMarkers{done: map[int64]bool{100: true}}

	svc := New(staging, files, &fakeDownloader{}, markers, logger.New("local"))

	report, err := svc.Run(context.Background(), Options{BackfillMarkers: true})
	require.NoError(t, err)

	assert.Zero(t, report.MarkedDone)
	assert.Empty(t, markers.marked)
}
