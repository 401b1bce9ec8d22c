package client

import "github.com/NicolasHaas/roulette/pkg/model"

// Detector spots newly arrived messages between feed snapshots by comparing
// counts. Only the tail message is reported, so a burst between two polls
// surfaces its last message only. The server window caps the feed length,
// so once it is full new messages do not change the count.
type Detector struct {
	lastCount int
}

// Observe records a snapshot and returns the tail message when the feed
// grew since a non-empty previous snapshot.
func (d *Detector) Observe(feed []model.Message) (*model.Message, bool) {
	prev := d.lastCount
	d.lastCount = len(feed)
	if len(feed) > prev && prev != 0 {
		m := feed[len(feed)-1]
		return &m, true
	}
	return nil, false
}

// Reset forgets the previous snapshot; the next one counts as backlog.
func (d *Detector) Reset() {
	d.lastCount = 0
}

// LastCount returns the size of the previous snapshot.
func (d *Detector) LastCount() int {
	return d.lastCount
}
