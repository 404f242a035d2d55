package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-channels/channel-service/internal/domain"
)

func TestDefaultChannels(t *testing.T) {
	reg := NewDefault()
	channels := reg.Channels()

	require.Len(t, channels, 3)
	names := []string{"parenting", "gaming", "sports"}
	for i, ch := range channels {
		assert.Equal(t, i, ch.ID)
		assert.Equal(t, names[i], ch.Name)
		assert.Equal(t, "/"+names[i], ch.Endpoint)
		assert.Empty(t, ch.Rooms)
	}
}

func TestCreateRoom(t *testing.T) {
	alice := domain.Identity{ID: "alice", Name: "Alice", ConnID: "c1"}

	tests := []struct {
		name      string
		channelID int
		title     string
		wantKind  error
		wantMsg   string
	}{
		{name: "unknown channel", channelID: 42, title: "lobby", wantKind: ErrNotFound, wantMsg: "Namespace not found"},
		{name: "duplicate title", channelID: 1, title: "lobby", wantKind: ErrConflict, wantMsg: "Room already exists"},
		{name: "titles are case sensitive", channelID: 1, title: "Lobby"},
		{name: "same title in another channel", channelID: 2, title: "lobby"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewDefault()
			require.NoError(t, reg.Update(func(tx *Tx) error {
				_, err := tx.CreateRoom(1, "lobby", alice)
				return err
			}))

			err := reg.Update(func(tx *Tx) error {
				_, err := tx.CreateRoom(tt.channelID, tt.title, alice)
				return err
			})

			if tt.wantKind == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantKind), "CreateRoom() error = %v, want kind %v", err, tt.wantKind)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestCreateRoomAssignsSequentialIDs(t *testing.T) {
	reg := NewDefault()
	host := domain.Identity{ID: "h", Name: "Host", ConnID: "conn"}

	var ids []int
	for _, title := range []string{"a", "b", "c"} {
		require.NoError(t, reg.Update(func(tx *Tx) error {
			room, err := tx.CreateRoom(0, title, host)
			if err != nil {
				return err
			}
			ids = append(ids, room.ID)
			assert.Empty(t, room.Host.ConnID, "host connection id must not be stored")
			return nil
		}))
	}

	assert.Equal(t, []int{0, 1, 2}, ids)

	titles := make([]string, 0, 3)
	for _, r := range reg.Channels()[0].Rooms {
		titles = append(titles, r.Title)
	}
	assert.Equal(t, []string{"a", "b", "c"}, titles)
}

func TestFindRoom(t *testing.T) {
	reg := NewDefault()
	require.NoError(t, reg.Update(func(tx *Tx) error {
		_, err := tx.CreateRoom(1, "lobby", domain.Identity{ID: "alice"})
		return err
	}))

	err := reg.Update(func(tx *Tx) error {
		room, err := tx.FindRoom(1, "lobby")
		require.NoError(t, err)
		assert.Equal(t, "alice", room.Host.ID)

		_, err = tx.FindRoom(1, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, "Room not found", err.Error())

		_, err = tx.FindRoom(9, "lobby")
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestRoomSummary(t *testing.T) {
	reg := NewDefault()
	require.NoError(t, reg.Update(func(tx *Tx) error {
		room, err := tx.CreateRoom(1, "lobby", domain.Identity{ID: "alice"})
		if err != nil {
			return err
		}
		room.AddMember(domain.Identity{ID: "alice", ConnID: "c1"})
		room.SetStreamToken("tok")
		return nil
	}))

	summary, err := reg.Room(RoomRef{ChannelID: 1, Title: "lobby"})
	require.NoError(t, err)
	assert.True(t, summary.HostPresent)
	assert.True(t, summary.Live)
	assert.Len(t, summary.Members, 1)

	_, err = reg.Room(RoomRef{ChannelID: 1, Title: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRoomRefKey(t *testing.T) {
	assert.Equal(t, "1:lobby", RoomRef{ChannelID: 1, Title: "lobby"}.Key())
	assert.NotEqual(t, RoomRef{ChannelID: 1, Title: "x"}.Key(), RoomRef{ChannelID: 2, Title: "x"}.Key())
}

func TestDoSharesUpdateLock(t *testing.T) {
	reg := NewDefault()
	require.NoError(t, reg.Update(func(tx *Tx) error {
		_, err := tx.CreateRoom(1, "lobby", domain.Identity{ID: "alice"})
		return err
	}))

	var rooms []string
	reg.Do(func(tx *Tx) {
		tx.ForEachRoom(func(room *domain.Room) {
			rooms = append(rooms, room.Title)
		})
	})
	assert.Equal(t, []string{"lobby"}, rooms)

	done := make(chan struct{})
	reg.Do(func(tx *Tx) {
		go func() {
			_ = reg.Update(func(*Tx) error { return nil })
			close(done)
		}()
		select {
		case <-done:
			t.Error("Update ran while Do held the registry")
		case <-time.After(20 * time.Millisecond):
		}
	})
	<-done
}
