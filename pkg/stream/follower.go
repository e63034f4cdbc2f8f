package stream

import (
	"context"
	"time"
)

// A Follower is an ordinary *Cursor whose Rate and StopTime are
// overwritten each tick from its leader instead of being set once at
// construction, per spec.md §4.6: "A follower has its own filter set
// but samples its leader's currentTime each tick; if the leader is
// paused, the follower pauses too; if the leader is in live-follow,
// the follower is live-follow." Construct it like any Cursor (own
// Query, Notify, ScopeID, Filters, Timebase) and drive it with
// RunFollower instead of Run.

// LeaderLost is the policy a Follower applies when its bound leader
// disconnects (the Manager reports no active leader cursor).
type LeaderLost int

const (
	// LeaderLostTerminate ends the follower's Run loop.
	LeaderLostTerminate LeaderLost = iota
	// LeaderLostLiveFollow keeps the follower running in live-follow
	// mode once its leader disappears.
	LeaderLostLiveFollow
)

// RunFollower paces a follower cursor off a leader held by mgr for
// connectionID, emitting the same Chunk shape as Cursor.Run. onLost
// decides what happens once the leader cursor is gone.
func RunFollower(ctx context.Context, mgr *Manager, connectionID string, f *Cursor, onLost LeaderLost, tick time.Duration) (<-chan Chunk, error) {
	if tick <= 0 {
		tick = DefaultWindowDuration
	}
	out := make(chan Chunk, ChunkBuffer)

	go func() {
		defer close(out)
		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			leader := mgr.Leader(connectionID)
			if leader == nil {
				if onLost == LeaderLostTerminate {
					return
				}
				f.Rate = 1
				f.StopTime = nil
			} else {
				f.Rate = leader.Rate
				f.StopTime = leader.StopTime
				f.setCurrent(leader.CurrentTime())
			}

			if f.Rate == 0 {
				continue
			}

			if !f.stepLiveFollow(ctx, DefaultWindowDuration, out) {
				return
			}
		}
	}()

	return out, nil
}
