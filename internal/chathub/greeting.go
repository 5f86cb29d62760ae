package chathub

import "time"

// greetingTick is posted to the hub when a greeting timer fires. gen tells
// a current timer apart from one cancelled after it had already fired.
type greetingTick struct {
	roomID string
	gen    uint64
}

type pendingGreeting struct {
	timer *time.Timer
	gen   uint64
}

// greetingScheduler keeps one cancellable greeting timer per room. All
// methods run on the hub goroutine; timers only call post.
type greetingScheduler struct {
	delay   time.Duration
	post    func(greetingTick)
	pending map[string]pendingGreeting
	gen     uint64
}

func newGreetingScheduler(delay time.Duration, post func(greetingTick)) *greetingScheduler {
	return &greetingScheduler{
		delay:   delay,
		post:    post,
		pending: make(map[string]pendingGreeting),
	}
}

func (g *greetingScheduler) schedule(roomID string) {
	g.cancel(roomID)
	g.gen++
	tick := greetingTick{roomID: roomID, gen: g.gen}
	g.pending[roomID] = pendingGreeting{
		timer: time.AfterFunc(g.delay, func() { g.post(tick) }),
		gen:   tick.gen,
	}
}

func (g *greetingScheduler) cancel(roomID string) {
	if p, ok := g.pending[roomID]; ok {
		p.timer.Stop()
		delete(g.pending, roomID)
	}
}

// take consumes the pending greeting matching tick. It reports false for
// cancelled or superseded timers.
func (g *greetingScheduler) take(tick greetingTick) bool {
	p, ok := g.pending[tick.roomID]
	if !ok || p.gen != tick.gen {
		return false
	}
	delete(g.pending, tick.roomID)
	return true
}

func (g *greetingScheduler) stopAll() {
	for roomID := range g.pending {
		g.cancel(roomID)
	}
}

func (g *greetingScheduler) Len() int {
	return len(g.pending)
}
