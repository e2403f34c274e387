package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressComment_PersistsCommentIDOnlyOnFirstFlush(t *testing.T) {
	plat := &fakePlatform{}
	runs := &fakeRunStore{}

	p := newProgressComment(context.Background(), plat, runs, 42, "acme", "widgets", 7, 0, 0)

	p.onLog("building...\n")
	p.onLog("still building...\n")

	require.Len(t, runs.progressCommentIDs, 1)
	assert.Equal(t, int64(1), runs.progressCommentIDs[0])
	assert.Len(t, plat.comments, 2, "both flushes should upsert the same comment")
}

func TestProgressComment_RendersMarkerAndLogTail(t *testing.T) {
	plat := &fakePlatform{}
	runs := &fakeRunStore{}

	p := newProgressComment(context.Background(), plat, runs, 42, "acme", "widgets", 7, time.Hour, time.Hour)
	p.onLog("first chunk\n")

	require.NotEmpty(t, plat.comments)
	assert.Contains(t, plat.comments[0], markerProgress)
	assert.Contains(t, plat.comments[0], "first chunk")
}
