package app

import "sync"

// ProgressSnapshot is a point-in-time copy of the sync progress counters.
type ProgressSnapshot struct {
	Uploaded      int `json:"uploaded"`
	UploadTotal   int `json:"uploadTotal"`
	DownloadTotal int `json:"downloadTotal"`
}

// Progress holds the upload/download counters read by the UI layer.
// All access goes through the mutex; subscribers get a copy after every
// change, dropped if their buffer is full.
type Progress struct {
	mu   sync.Mutex
	snap ProgressSnapshot
	subs map[int]chan ProgressSnapshot
	next int
}

// NewProgress creates zeroed progress counters.
func NewProgress() *Progress {
	return &Progress{subs: make(map[int]chan ProgressSnapshot)}
}

// Snapshot returns the current counters.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// Subscribe returns a channel receiving a snapshot after each change and a
// function that unsubscribes and closes the channel.
func (p *Progress) Subscribe(buffer int) (<-chan ProgressSnapshot, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.next
	p.next++
	ch := make(chan ProgressSnapshot, buffer)
	p.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.subs, id)
			close(ch)
		})
	}
}

func (p *Progress) update(fn func(*ProgressSnapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fn(&p.snap)
	for _, ch := range p.subs {
		select {
		case ch <- p.snap:
		default:
		}
	}
}

func (p *Progress) resetUpload() {
	p.update(func(s *ProgressSnapshot) {
		s.Uploaded = 0
		s.UploadTotal = 0
	})
}

func (p *Progress) setUploadTotal(n int) {
	p.update(func(s *ProgressSnapshot) { s.UploadTotal = n })
}

func (p *Progress) setUploaded(n int) {
	p.update(func(s *ProgressSnapshot) { s.Uploaded = n })
}

func (p *Progress) setDownloadTotal(n int) {
	p.update(func(s *ProgressSnapshot) { s.DownloadTotal = n })
}
