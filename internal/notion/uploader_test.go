package notion

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/communitysync/helpers"
	"sjsage522/communitysync/internal/crawler"
	"sjsage522/communitysync/pkg/errors"
)

type createCall struct {
	DatabaseID string
	Props      Properties
}

// mockCreator fails the rows named in failures and records every call
type mockCreator struct {
	calls    []createCall
	failures map[string]error
}

func (m *mockCreator) CreatePage(ctx context.Context, databaseID string, props Properties) (*Page, error) {
	m.calls = append(m.calls, createCall{DatabaseID: databaseID, Props: props})
	name := props[PropName].(map[string]any)["title"].([]any)[0].(map[string]any)["text"].(map[string]any)["content"].(string)
	if err, ok := m.failures[name]; ok {
		return nil, err
	}
	return &Page{ID: fmt.Sprintf("page-%d", len(m.calls))}, nil
}

type pauseRecorder struct {
	pauses []time.Duration
}

func (p *pauseRecorder) Sleep(ctx context.Context, d time.Duration) error {
	p.pauses = append(p.pauses, d)
	return nil
}

func rows(names ...string) []Row {
	out := make([]Row, len(names))
	for i, name := range names {
		out[i] = Row{Record: crawler.CommunityRecord{Name: name}, District: "中區"}
	}
	return out
}

func TestUploadPausesBetweenCalls(t *testing.T) {
	creator := &mockCreator{}
	pauses := &pauseRecorder{}
	uploader := NewUploader(creator, UploaderOptions{Delay: DefaultUploadDelay, Pause: pauses.Sleep})

	summary, err := uploader.Upload(context.Background(), "db-1", rows("A", "B", "C"))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Created)
	assert.Empty(t, summary.Failed)
	assert.Len(t, creator.calls, 3)
	assert.Equal(t, []time.Duration{DefaultUploadDelay, DefaultUploadDelay}, pauses.pauses)
	for _, call := range creator.calls {
		assert.Equal(t, "db-1", call.DatabaseID)
	}
}

func TestUploadSingleRowDoesNotPause(t *testing.T) {
	pauses := &pauseRecorder{}
	uploader := NewUploader(&mockCreator{}, UploaderOptions{Delay: time.Second, Pause: pauses.Sleep})

	summary, err := uploader.Upload(context.Background(), "db-1", rows("A"))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)
	assert.Empty(t, pauses.pauses)
}

func TestUploadContinuesPastRowFailures(t *testing.T) {
	creator := &mockCreator{failures: map[string]error{
		"B": errors.FromStatus("CreatePage", 400, "validation_error: bad email", 0),
	}}
	failures := helpers.NewFailureLog("")
	uploader := NewUploader(creator, UploaderOptions{Pause: (&pauseRecorder{}).Sleep, Failures: failures})

	summary, err := uploader.Upload(context.Background(), "db-1", rows("A", "B", "", "C"))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Created)
	require.Len(t, summary.Failed, 2)
	assert.Equal(t, "B", summary.Failed[0].Identifier)
	assert.Equal(t, "", summary.Failed[1].Identifier)
	assert.Len(t, creator.calls, 3, "a nameless row is rejected before any call")
	assert.Len(t, failures.Failures(), 2)
}

func TestUploadAbortsOnAuthFailure(t *testing.T) {
	creator := &mockCreator{failures: map[string]error{
		"B": errors.FromStatus("CreatePage", 401, "unauthorized: API token is invalid.", 0),
	}}
	uploader := NewUploader(creator, UploaderOptions{Pause: (&pauseRecorder{}).Sleep})

	summary, err := uploader.Upload(context.Background(), "db-1", rows("A", "B", "C"))
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.Equal(t, 1, summary.Created)
	assert.Len(t, summary.Failed, 1)
	assert.Len(t, creator.calls, 2)
}

func TestUploadStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	creator := &mockCreator{}
	pause := func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	uploader := NewUploader(creator, UploaderOptions{Pause: pause})

	summary, err := uploader.Upload(ctx, "db-1", rows("A", "B"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, summary.Created)
	assert.Len(t, creator.calls, 1)
}

func TestUploadRoutesRowsToTheirDatabase(t *testing.T) {
	creator := &mockCreator{}
	pauses := &pauseRecorder{}
	uploader := NewUploader(creator, UploaderOptions{Delay: time.Millisecond, Pause: pauses.Sleep})

	input := []Row{
		{Record: crawler.CommunityRecord{Name: "A"}, District: "中區", DatabaseID: "db-central"},
		{Record: crawler.CommunityRecord{Name: "B"}, District: "東區"},
		{Record: crawler.CommunityRecord{Name: "C"}, District: "西區", DatabaseID: "db-west"},
	}
	summary, err := uploader.Upload(context.Background(), "db-default", input)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Created)

	var targets []string
	for _, call := range creator.calls {
		targets = append(targets, call.DatabaseID)
	}
	assert.Equal(t, []string{"db-central", "db-default", "db-west"}, targets)
	assert.Len(t, pauses.pauses, 2)
}

func TestUploadRowWithoutDatabaseFails(t *testing.T) {
	creator := &mockCreator{}
	uploader := NewUploader(creator, UploaderOptions{Pause: (&pauseRecorder{}).Sleep})

	summary, err := uploader.Upload(context.Background(), "", rows("A"))
	require.NoError(t, err)
	assert.Zero(t, summary.Created)
	require.Len(t, summary.Failed, 1)
	assert.Contains(t, summary.Failed[0].Err.Error(), "中區")
	assert.Empty(t, creator.calls)
}
