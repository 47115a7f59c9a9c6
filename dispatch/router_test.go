package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/telemetry-gateway/devicecache"
	"github.com/cyberinferno/telemetry-gateway/logger"
	"github.com/cyberinferno/telemetry-gateway/protocol"
	"github.com/cyberinferno/telemetry-gateway/session"
)

// recordingCollaborator records notifications in arrival order.
type recordingCollaborator struct {
	events []string
	idents []DeviceIdentity
	stats  []DisconnectStats
	err    error
}

func (r *recordingCollaborator) DeviceIdentified(identity DeviceIdentity) error {
	r.events = append(r.events, "identified:"+identity.DeviceID)
	r.idents = append(r.idents, identity)
	return r.err
}

func (r *recordingCollaborator) FrameReceived(identity DeviceIdentity, category Category, frame protocol.Frame) error {
	r.events = append(r.events, "frame:"+category.String()+":"+frame.CommandWord)
	r.idents = append(r.idents, identity)
	return r.err
}

func (r *recordingCollaborator) Disconnected(identity DeviceIdentity, stats DisconnectStats) error {
	r.events = append(r.events, "disconnected:"+identity.DeviceID)
	r.stats = append(r.stats, stats)
	return r.err
}

// panickyCollaborator panics on every notification.
type panickyCollaborator struct{}

func (panickyCollaborator) DeviceIdentified(DeviceIdentity) error { panic("boom") }
func (panickyCollaborator) FrameReceived(DeviceIdentity, Category, protocol.Frame) error {
	panic("boom")
}
func (panickyCollaborator) Disconnected(DeviceIdentity, DisconnectStats) error { panic("boom") }

func heartbeat(seq string) protocol.Frame {
	return protocol.Frame{
		Kind:            protocol.KindAck,
		CommandWord:     protocol.CommandHeartbeat,
		ProtocolVersion: "80200A0303",
		DeviceID:        "865585040014007",
		DeviceName:      "GL33CG",
		SendTime:        "20190517022529",
		SequenceNumber:  seq,
	}
}

func report(command, deviceID string) protocol.Frame {
	return protocol.Frame{
		Kind:           protocol.KindResp,
		CommandWord:    command,
		DeviceID:       deviceID,
		DeviceName:     "GL33CG",
		SendTime:       "20190517022530",
		SequenceNumber: "0030",
	}
}

func TestRouter_Dispatch(t *testing.T) {
	t.Run("heartbeat updates last heartbeat time", func(t *testing.T) {
		now := time.Date(2019, 5, 17, 2, 25, 29, 0, time.UTC)
		r := &Router{Log: logger.NewNopLogger(), Now: func() time.Time { return now }}
		sess := session.New("c1", now.Add(-time.Minute))

		got := r.Dispatch(sess, heartbeat("0029"))

		assert.Equal(t, CategoryHeartbeat, got)
		assert.Equal(t, now, sess.LastHeartbeatAt)
	})

	t.Run("device identified fires once, before the frame notification", func(t *testing.T) {
		rec := &recordingCollaborator{}
		r := &Router{Log: logger.NewNopLogger(), Collaborators: []Collaborator{rec}}
		sess := session.New("c1", time.Now())

		r.Dispatch(sess, heartbeat("0029"))
		r.Dispatch(sess, report("GTFRI", "865585040014007"))

		assert.Equal(t, []string{
			"identified:865585040014007",
			"frame:Heartbeat:GTHBD",
			"frame:LocationReport:GTFRI",
		}, rec.events)
	})

	t.Run("identity is first-writer-wins across frames", func(t *testing.T) {
		rec := &recordingCollaborator{}
		r := &Router{Log: logger.NewNopLogger(), Collaborators: []Collaborator{rec}}
		sess := session.New("c1", time.Now())

		r.Dispatch(sess, report("GTFRI", "865585040014007"))
		r.Dispatch(sess, report("GTFRI", "000000000000000"))

		assert.Equal(t, "865585040014007", sess.DeviceID)
		// Only one identification event despite the second identifier.
		identifications := 0
		for _, e := range rec.events {
			if e == "identified:865585040014007" {
				identifications++
			}
		}
		assert.Equal(t, 1, identifications)
	})

	t.Run("frames without identifier keep the session identifying", func(t *testing.T) {
		rec := &recordingCollaborator{}
		r := &Router{Log: logger.NewNopLogger(), Collaborators: []Collaborator{rec}}
		sess := session.New("c1", time.Now())

		r.Dispatch(sess, report("GTFRI", ""))

		assert.Equal(t, session.StateIdentifying, sess.State())
		assert.Equal(t, []string{"frame:LocationReport:GTFRI"}, rec.events)
	})

	t.Run("collaborator errors do not stop later collaborators or frames", func(t *testing.T) {
		failing := &recordingCollaborator{err: errors.New("db down")}
		healthy := &recordingCollaborator{}
		r := &Router{Log: logger.NewNopLogger(), Collaborators: []Collaborator{failing, healthy}}
		sess := session.New("c1", time.Now())

		r.Dispatch(sess, heartbeat("0029"))
		r.Dispatch(sess, heartbeat("002A"))

		require.Len(t, healthy.events, 3) // identified + two frames
	})

	t.Run("collaborator panics are contained", func(t *testing.T) {
		healthy := &recordingCollaborator{}
		r := &Router{Log: logger.NewNopLogger(), Collaborators: []Collaborator{panickyCollaborator{}, healthy}}
		sess := session.New("c1", time.Now())

		assert.NotPanics(t, func() {
			r.Dispatch(sess, heartbeat("0029"))
		})
		assert.Len(t, healthy.events, 2)
	})

	t.Run("unmapped command is forwarded with Unmapped category", func(t *testing.T) {
		rec := &recordingCollaborator{}
		r := &Router{Log: logger.NewNopLogger(), Collaborators: []Collaborator{rec}}
		sess := session.New("c1", time.Now())

		got := r.Dispatch(sess, report("GTXYZ", "865585040014007"))

		assert.Equal(t, CategoryUnmapped, got)
		assert.Contains(t, rec.events, "frame:Unmapped:GTXYZ")
	})
}

func TestRouter_Dispatch_ProfileCache(t *testing.T) {
	now := time.Date(2019, 5, 17, 2, 25, 29, 0, time.UTC)
	profiles := devicecache.NewMemoryCache(cache.NoExpiration, time.Minute)
	r := &Router{
		Log:        logger.NewNopLogger(),
		Profiles:   profiles,
		ProfileTTL: time.Hour,
		Now:        func() time.Time { return now },
	}

	sess := session.New("c1", now)
	r.Dispatch(sess, report("GTFRI", "865585040014007"))

	got, err := profiles.GetOrFetch(context.Background(), "865585040014007", time.Hour,
		func(ctx context.Context) (devicecache.DeviceProfile, error) {
			t.Fatal("profile should already be cached")
			return devicecache.DeviceProfile{}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, "865585040014007", got.DeviceID)
	assert.Equal(t, "GL33CG", got.Label)
	assert.Equal(t, now, got.FirstSeen)

	t.Run("reconnect does not reset first seen", func(t *testing.T) {
		later := now.Add(time.Hour)
		r.Now = func() time.Time { return later }

		sess2 := session.New("c2", later)
		r.Dispatch(sess2, report("GTFRI", "865585040014007"))

		got, err := profiles.GetOrFetch(context.Background(), "865585040014007", time.Hour,
			func(ctx context.Context) (devicecache.DeviceProfile, error) {
				return devicecache.DeviceProfile{}, nil
			})
		require.NoError(t, err)
		assert.Equal(t, now, got.FirstSeen)
	})
}

func TestRouter_Disconnect(t *testing.T) {
	opened := time.Date(2019, 5, 17, 2, 0, 0, 0, time.UTC)
	rec := &recordingCollaborator{}
	r := &Router{Log: logger.NewNopLogger(), Collaborators: []Collaborator{rec}}

	sess := session.New("c1", opened)
	r.Dispatch(sess, heartbeat("0029"))
	sess.RecordFrame()
	sess.Close()

	r.Disconnect(sess, opened.Add(90*time.Second))

	require.Len(t, rec.stats, 1)
	assert.Equal(t, uint64(1), rec.stats[0].MessageCount)
	assert.Equal(t, 90*time.Second, rec.stats[0].Duration)
	assert.Contains(t, rec.events, "disconnected:865585040014007")
}
