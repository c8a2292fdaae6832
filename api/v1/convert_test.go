package apiv1

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib"
)

func TestStatusConversion(t *testing.T) {
	started := time.Date(2025, 3, 1, 10, 0, 0, 123, time.UTC)
	in := lib.Status{
		State:          lib.StateRunning,
		RunID:          "run-1",
		Pid:            4242,
		ExecutablePath: "/data/app/oscam",
		ConfigDir:      "/sdcard/oscam",
		TempDir:        "/sdcard/oscam/tmp",
		StartTime:      &started,
	}

	pb, err := StatusToProto(in)
	require.NoError(t, err)
	require.Equal(t, "Running", pb.Fields[FieldState].GetStringValue())

	out := StatusFromProto(pb)
	require.Equal(t, in.State, out.State)
	require.Equal(t, in.Pid, out.Pid)
	require.Equal(t, in.RunID, out.RunID)
	require.True(t, started.Equal(*out.StartTime))
}

func TestStatusConversion_Idle(t *testing.T) {
	pb, err := StatusToProto(lib.Status{})
	require.NoError(t, err)
	require.NotContains(t, pb.Fields, FieldPid)
	require.NotContains(t, pb.Fields, FieldRunID)

	out := StatusFromProto(pb)
	require.Equal(t, lib.StateIdle, out.State)
	require.Nil(t, out.StartTime)
}

func TestEventConversion_OptionalMessage(t *testing.T) {
	out := EventFromProto(EventToProto(lib.StatusEvent{Running: true}))
	require.True(t, out.Running)
	require.Nil(t, out.Message)

	out = EventFromProto(EventToProto(lib.NewStatusEvent(false, "Oscam stopped!")))
	require.False(t, out.Running)
	require.Equal(t, "Oscam stopped!", out.Text())
}

func TestConversion_InvalidUTF8IsMarshalable(t *testing.T) {
	ev := EventToProto(lib.NewStatusEvent(true, "card \xff\xfe reader"))
	_, err := proto.Marshal(ev)
	require.NoError(t, err)
	require.Equal(t, "card � reader", EventFromProto(ev).Text())

	st, err := StatusToProto(lib.Status{
		State:          lib.StateRunning,
		RunID:          "run-1",
		ExecutablePath: "/data/\xffoscam",
		ConfigDir:      "/sdcard/oscam",
		TempDir:        "/sdcard/oscam/tmp",
	})
	require.NoError(t, err)
	_, err = proto.Marshal(st)
	require.NoError(t, err)
	require.Equal(t, "/data/�oscam", StatusFromProto(st).ExecutablePath)
}
