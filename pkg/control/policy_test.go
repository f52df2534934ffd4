package control

import "testing"

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		snap     Snapshot
		expected Command
		phase    Phase
	}{
		{"none", Snapshot{Infrared: IRNone}, Command{-100, 100}, PhaseNormal},
		{"green buoy", Snapshot{Infrared: IRGreenBuoy}, Command{50, 100}, PhaseNormal},
		{"red buoy", Snapshot{Infrared: IRRedBuoy}, Command{100, 50}, PhaseNormal},
		{"all", Snapshot{Infrared: IRAll}, Command{500, 500}, PhaseNormal},
		{"other", Snapshot{Infrared: 0}, Command{100, 100}, PhaseNormal},
		{"bump left", Snapshot{BumpLeft: true, Infrared: IRGreenBuoy}, Command{-150, -100}, PhaseRecovering},
		{"bump right", Snapshot{BumpRight: true, Infrared: IRAll}, Command{-150, -100}, PhaseRecovering},
		{"both bumps", Snapshot{BumpLeft: true, BumpRight: true, Infrared: IRNone}, Command{-150, -100}, PhaseRecovering},
	}

	for _, tt := range tests {
		cmd, phase := Decide(tt.snap)
		if cmd != tt.expected || phase != tt.phase {
			t.Errorf("%s: Decide() = %v %v, want %v %v", tt.name, cmd, phase, tt.expected, tt.phase)
		}
	}
}

func TestDecide_UnknownCodesDriveStraight(t *testing.T) {
	known := map[IRCode]bool{IRNone: true, IRGreenBuoy: true, IRRedBuoy: true, IRAll: true}

	for code := 0; code <= 255; code++ {
		ir := IRCode(code)
		if known[ir] {
			continue
		}
		cmd, phase := Decide(Snapshot{Infrared: ir})
		if cmd != Straight || phase != PhaseNormal {
			t.Errorf("Decide(ir=%d) = %v %v, want %v normal", code, cmd, phase, Straight)
		}
	}
}

func TestDecide_DistancesIgnored(t *testing.T) {
	near := Snapshot{Infrared: IRRedBuoy, Left: 10, Front: 10, Right: 10}
	far := Snapshot{Infrared: IRRedBuoy, Left: 3000, Front: 3000, Right: 3000}

	a, _ := Decide(near)
	b, _ := Decide(far)
	if a != b {
		t.Errorf("distances changed the command: %v vs %v", a, b)
	}
}

func TestIRCode_String(t *testing.T) {
	tests := []struct {
		code     IRCode
		expected string
	}{
		{IRNone, "none"},
		{IRGreenBuoy, "green buoy"},
		{IRRedBuoy, "red buoy"},
		{IRAll, "all"},
		{12, "other(12)"},
	}

	for _, tt := range tests {
		if got := tt.code.String(); got != tt.expected {
			t.Errorf("IRCode(%d).String() = %q, want %q", byte(tt.code), got, tt.expected)
		}
	}
}

func TestRunState(t *testing.T) {
	r := NewRunState()
	if !r.IsRunning() {
		t.Fatal("new RunState is not running")
	}

	r.RequestStop()
	r.RequestStop()
	if r.IsRunning() {
		t.Fatal("RunState still running after RequestStop")
	}

	select {
	case <-r.Done():
	default:
		t.Error("Done() not closed after RequestStop")
	}

	for i := 0; i < 100; i++ {
		if r.IsRunning() {
			t.Fatal("RunState returned to running")
		}
	}
}
