package apiv1

import (
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib"
)

// Field names used in status and event structs.
const (
	FieldState          = "state"
	FieldRunID          = "run_id"
	FieldPid            = "pid"
	FieldExecutablePath = "executable_path"
	FieldConfigDir      = "config_dir"
	FieldTempDir        = "temp_dir"
	FieldStartTime      = "start_time"
	FieldStopRequested  = "stop_requested"

	FieldRunning = "running"
	FieldMessage = "message"
)

// validUTF8 replaces invalid byte sequences; protobuf strings reject them on the wire.
func validUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

func StatusToProto(st lib.Status) (*structpb.Struct, error) {
	fields := map[string]any{
		FieldState:         st.State.String(),
		FieldStopRequested: st.StopRequested,
	}
	if st.RunID != "" {
		fields[FieldRunID] = validUTF8(st.RunID)
		fields[FieldConfigDir] = validUTF8(st.ConfigDir)
		fields[FieldTempDir] = validUTF8(st.TempDir)
	}
	if st.Pid > 0 {
		fields[FieldPid] = st.Pid
	}
	if st.ExecutablePath != "" {
		fields[FieldExecutablePath] = validUTF8(st.ExecutablePath)
	}
	if st.StartTime != nil {
		fields[FieldStartTime] = st.StartTime.UTC().Format(time.RFC3339Nano)
	}
	return structpb.NewStruct(fields)
}

func StatusFromProto(s *structpb.Struct) lib.Status {
	f := s.GetFields()
	st := lib.Status{
		State:          lib.ParseState(f[FieldState].GetStringValue()),
		RunID:          f[FieldRunID].GetStringValue(),
		Pid:            int(f[FieldPid].GetNumberValue()),
		ExecutablePath: f[FieldExecutablePath].GetStringValue(),
		ConfigDir:      f[FieldConfigDir].GetStringValue(),
		TempDir:        f[FieldTempDir].GetStringValue(),
		StopRequested:  f[FieldStopRequested].GetBoolValue(),
	}
	if v := f[FieldStartTime].GetStringValue(); v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			st.StartTime = &t
		}
	}
	return st
}

func EventToProto(ev lib.StatusEvent) *structpb.Struct {
	fields := map[string]*structpb.Value{
		FieldRunning: structpb.NewBoolValue(ev.Running),
	}
	if ev.Message != nil {
		fields[FieldMessage] = structpb.NewStringValue(validUTF8(*ev.Message))
	}
	return &structpb.Struct{Fields: fields}
}

func EventFromProto(s *structpb.Struct) lib.StatusEvent {
	f := s.GetFields()
	ev := lib.StatusEvent{Running: f[FieldRunning].GetBoolValue()}
	if v, ok := f[FieldMessage]; ok {
		m := v.GetStringValue()
		ev.Message = &m
	}
	return ev
}
