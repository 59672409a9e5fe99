// Package notify carries transient user-facing notices (toasts) from the
// state containers to whatever renders them.
package notify

import "sync"

// Level is the tone of a notice
type Level string

const (
	LevelInfo        Level = "info"
	LevelSuccess     Level = "success"
	LevelDestructive Level = "destructive"
)

// Notice is one transient message
type Notice struct {
	Level       Level  `json:"level"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Notifier receives notices
type Notifier interface {
	Notify(n Notice)
}

// Success builds a success notice
func Success(title, description string) Notice {
	return Notice{Level: LevelSuccess, Title: title, Description: description}
}

// Info builds an informational notice
func Info(title, description string) Notice {
	return Notice{Level: LevelInfo, Title: title, Description: description}
}

// Failure builds an error notice
func Failure(title, description string) Notice {
	return Notice{Level: LevelDestructive, Title: title, Description: description}
}

const defaultCapacity = 20

// Recorder buffers notices until they are drained. Oldest notices are
// dropped once capacity is reached.
type Recorder struct {
	mu       sync.Mutex
	notices  []Notice
	capacity int
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{capacity: defaultCapacity}
}

// Notify implements Notifier
func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.notices = append(r.notices, n)
	if over := len(r.notices) - r.capacity; over > 0 {
		r.notices = append([]Notice(nil), r.notices[over:]...)
	}
}

// Drain returns and forgets the pending notices
func (r *Recorder) Drain() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.notices
	r.notices = nil
	return out
}

// Discard drops every notice
type Discard struct{}

// Notify implements Notifier
func (Discard) Notify(Notice) {}
