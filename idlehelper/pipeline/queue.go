package pipeline

import (
	"log/slog"
	"sync"
)

// ChannelQueue runs submitted jobs one at a time per channel, in submission order.
// Different channels run concurrently.
type ChannelQueue struct {
	mu      sync.Mutex
	pending map[int64][]func()
	wg      sync.WaitGroup
}

func NewChannelQueue() *ChannelQueue {
	return &ChannelQueue{pending: make(map[int64][]func())}
}

func (q *ChannelQueue) Submit(channelID int64, job func()) {
	q.wg.Add(1)
	q.mu.Lock()
	jobs, running := q.pending[channelID]
	q.pending[channelID] = append(jobs, job)
	q.mu.Unlock()
	if !running {
		go q.drain(channelID)
	}
}

func (q *ChannelQueue) drain(channelID int64) {
	for {
		q.mu.Lock()
		jobs := q.pending[channelID]
		if len(jobs) == 0 {
			delete(q.pending, channelID)
			q.mu.Unlock()
			return
		}
		job := jobs[0]
		q.pending[channelID] = jobs[1:]
		q.mu.Unlock()

		q.runJob(channelID, job)
	}
}

func (q *ChannelQueue) runJob(channelID int64, job func()) {
	defer q.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Message handler panic",
				slog.String("type", "message"),
				slog.Int64("channel_id", channelID),
				slog.Any("panic", r))
		}
	}()
	job()
}

// Wait blocks until all submitted jobs are done.
func (q *ChannelQueue) Wait() {
	q.wg.Wait()
}
