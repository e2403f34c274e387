package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sadguard/sadguard/pkg/container"
)

const maxLogChunksTail = 50

// progressComment owns the single progress comment for one run: it
// accumulates log chunks and the latest stat frame, throttles platform
// writes, and caches the comment id the two observers share.
type progressComment struct {
	mu sync.Mutex

	ctx      context.Context
	platform PlatformClient
	runs     RunStore
	runID    int64
	owner    string
	repo     string
	prNumber int

	commentID *int64

	logChunks     []string
	lastStat      *container.Stat
	lastLogWrite  time.Time
	lastStatWrite time.Time

	logThrottle  time.Duration
	statThrottle time.Duration
}

func newProgressComment(ctx context.Context, p PlatformClient, runs RunStore, runID int64, owner, repo string, prNumber int, logThrottle, statThrottle time.Duration) *progressComment {
	return &progressComment{
		ctx:          ctx,
		platform:     p,
		runs:         runs,
		runID:        runID,
		owner:        owner,
		repo:         repo,
		prNumber:     prNumber,
		logThrottle:  logThrottle,
		statThrottle: statThrottle,
	}
}

// onLog appends a log chunk and upserts the comment if the log throttle
// window has elapsed.
func (p *progressComment) onLog(chunk string) {
	p.mu.Lock()
	p.logChunks = append(p.logChunks, chunk)
	if len(p.logChunks) > maxLogChunksTail {
		p.logChunks = p.logChunks[len(p.logChunks)-maxLogChunksTail:]
	}
	due := time.Since(p.lastLogWrite) >= p.logThrottle
	p.mu.Unlock()

	if due {
		p.flush()
	}
}

// onStat records the latest stat frame and upserts the comment if the
// stat throttle window has elapsed.
func (p *progressComment) onStat(stat container.Stat) {
	p.mu.Lock()
	p.lastStat = &stat
	due := time.Since(p.lastStatWrite) >= p.statThrottle
	p.mu.Unlock()

	if due {
		p.flush()
	}
}

// flush renders the current state and upserts the comment, updating both
// throttle timestamps since a single comment carries both log tail and
// stat summary.
func (p *progressComment) flush() {
	p.mu.Lock()
	body := p.render()
	p.lastLogWrite = time.Now()
	p.lastStatWrite = time.Now()
	knownID := p.commentID
	p.mu.Unlock()

	id, err := p.platform.UpsertMarkedComment(p.ctx, p.owner, p.repo, p.prNumber, body, markerProgress, knownID)
	if err != nil {
		return
	}

	p.mu.Lock()
	firstID := p.commentID == nil
	p.commentID = &id
	p.mu.Unlock()

	if firstID {
		if err := p.runs.SetProgressCommentID(p.ctx, p.runID, id); err != nil {
			slog.Warn("record progress comment id failed", "error", err)
		}
	}
}

// render composes the progress comment body from the accumulated log
// tail and latest stat frame.
func (p *progressComment) render() string {
	var sb strings.Builder
	sb.WriteString(markerProgress)
	sb.WriteString("\n## Run Progress\n\n")

	if p.lastStat != nil {
		fmt.Fprintf(&sb, "CPU: %.1f%% | Mem: %d/%d | Net rx/tx: %d/%d\n\n",
			p.lastStat.CPUPercent, p.lastStat.MemUsage, p.lastStat.MemLimit, p.lastStat.NetRx, p.lastStat.NetTx)
	}

	sb.WriteString("```\n")
	sb.WriteString(strings.Join(p.logChunks, ""))
	sb.WriteString("\n```\n")
	return sb.String()
}
