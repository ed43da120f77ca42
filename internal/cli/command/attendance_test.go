package command

import (
	"testing"
	"time"

	"github.com/yndnr/attendmesh/internal/cli/connection"
	"github.com/yndnr/attendmesh/internal/core/domain"
)

func TestAttendanceCommands(t *testing.T) {
	env := newCLIEnv(t)
	env.createUser(t, "alice", false)
	env.login(t, "alice")

	sv := decodeOne[startView](t, env.mustRun(t, "start"))
	if sv.Outcome != "started" || sv.Attendance == nil || !sv.Attendance.IsActive() {
		t.Fatalf("start = %+v", sv)
	}
	if again := decodeOne[startView](t, env.mustRun(t, "start")); again.Outcome != "already_active" {
		t.Errorf("second start outcome = %q", again.Outcome)
	}

	bv := decodeOne[breakView](t, env.mustRun(t, "break"))
	if !bv.OnBreak || !bv.Attendance.OnBreak() {
		t.Errorf("break = %+v", bv)
	}

	st := decodeOne[statusView](t, env.mustRun(t, "status"))
	if st.ActiveAttendance == nil || st.ActiveAttendance.ID != sv.Attendance.ID {
		t.Errorf("status = %+v", st)
	}

	ev := decodeOne[endView](t, env.mustRun(t, "end"))
	if ev.Outcome != "ended" || ev.Attendance.EndReason != domain.EndReasonManual {
		t.Errorf("end = %+v", ev)
	}
	if len(ev.Attendance.Breaks) != 1 || ev.Attendance.Breaks[0].IsOpen() {
		t.Errorf("open break should be closed by end: %+v", ev.Attendance.Breaks)
	}

	if again := decodeOne[endView](t, env.mustRun(t, "end")); again.Outcome != "not_active" {
		t.Errorf("second end outcome = %q", again.Outcome)
	}

	st = decodeOne[statusView](t, env.mustRun(t, "status"))
	if st.ActiveAttendance != nil || st.LastAttendance == nil || st.LastAttendance.IsActive() {
		t.Errorf("status after end = %+v", st)
	}

	if _, err := env.run(t, "", "break"); !connection.IsCode(err, domain.ErrNoActiveAttendance.Code) {
		t.Errorf("break without attendance: err = %v", err)
	}
}

func TestEnd_AtAndReason(t *testing.T) {
	env := newCLIEnv(t)
	env.createUser(t, "alice", false)
	env.login(t, "alice")
	env.mustRun(t, "start")

	if _, err := env.run(t, "", "end", "--reason", "vacation"); !connection.IsCode(err, domain.ErrInvalidArgument.Code) {
		t.Errorf("unknown reason: err = %v", err)
	}

	// A logout time before the attendance started is a stale notification.
	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	if ev := decodeOne[endView](t, env.mustRun(t, "end", "--at", past)); ev.Outcome != "stale" {
		t.Errorf("end --at past outcome = %q", ev.Outcome)
	}

	ev := decodeOne[endView](t, env.mustRun(t, "end", "--reason", "close"))
	if ev.Outcome != "ended" || ev.Attendance.EndReason != domain.EndReasonClose {
		t.Errorf("close end = %+v", ev)
	}
}

func TestPolicy(t *testing.T) {
	env := newCLIEnv(t)
	pv := decodeOne[policyView](t, env.mustRun(t, "policy"))
	if pv.Grace() != time.Second {
		t.Errorf("grace = %v, want 1s", pv.Grace())
	}
}
