package control

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

var errLinkDown = errors.New("connection lost")

type sentCommand struct {
	cmd Command
	at  time.Time
}

// fakePlatform replays snapshots and records every command.
type fakePlatform struct {
	mu        sync.Mutex
	snapshots []Snapshot
	reads     int
	readErr   error
	driveErr  error
	failAfter int // fail DriveDirect after this many successful commands (0: never)
	sent      []sentCommand
	closed    int

	// onDrive runs after each successful command with the command count.
	onDrive     func(n int)
	// onRead and beforeDrive run before the call takes effect.
	onRead      func()
	beforeDrive func()
}

func (p *fakePlatform) ReadSensors(ctx context.Context) (Snapshot, error) {
	if p.onRead != nil {
		p.onRead()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readErr != nil {
		return Snapshot{}, p.readErr
	}
	i := p.reads
	if i >= len(p.snapshots) {
		i = len(p.snapshots) - 1
	}
	p.reads++
	return p.snapshots[i], nil
}

func (p *fakePlatform) DriveDirect(ctx context.Context, left, right int) error {
	if p.beforeDrive != nil {
		p.beforeDrive()
	}
	p.mu.Lock()
	if p.driveErr != nil || (p.failAfter > 0 && len(p.sent) >= p.failAfter) {
		p.mu.Unlock()
		if p.driveErr != nil {
			return p.driveErr
		}
		return errLinkDown
	}
	p.sent = append(p.sent, sentCommand{Command{left, right}, time.Now()})
	n := len(p.sent)
	onDrive := p.onDrive
	p.mu.Unlock()

	if onDrive != nil {
		onDrive(n)
	}
	return nil
}

func (p *fakePlatform) LeftDistance() int  { return 100 }
func (p *fakePlatform) FrontDistance() int { return 200 }
func (p *fakePlatform) RightDistance() int { return 300 }

func (p *fakePlatform) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

func (p *fakePlatform) commands() []sentCommand {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sentCommand(nil), p.sent...)
}

type logRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *logRecorder) Log(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, msg)
}

func (r *logRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func newTestController(t *testing.T, p *fakePlatform, dwell time.Duration) (*Controller, *logRecorder) {
	t.Helper()
	logs := &logRecorder{}
	c, err := NewController(Config{Platform: p, Sink: logs, Dwell: dwell})
	if err != nil {
		t.Fatalf("NewController error: %v", err)
	}
	return c, logs
}

func runWithTimeout(t *testing.T, c *Controller) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.Run(ctx)
}

func TestRun_FullSpeedOnAllCode(t *testing.T) {
	p := &fakePlatform{snapshots: []Snapshot{{Infrared: IRAll}}}
	c, logs := newTestController(t, p, 10*time.Millisecond)
	p.onDrive = func(n int) {
		if n == 3 {
			c.RequestStop()
		}
	}

	if err := runWithTimeout(t, c); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	cmds := p.commands()
	if len(cmds) != 4 {
		t.Fatalf("sent %d commands, want 3 + final stop", len(cmds))
	}
	for i := 0; i < 3; i++ {
		if cmds[i].cmd != FullSpeed {
			t.Errorf("command %d = %v, want %v", i, cmds[i].cmd, FullSpeed)
		}
	}
	if cmds[3].cmd != Stop {
		t.Errorf("final command = %v, want stop", cmds[3].cmd)
	}

	lines := logs.all()
	if len(lines) != 2 || lines[1] != "Stop requested" {
		t.Errorf("logs = %q, want start line and \"Stop requested\"", lines)
	}
}

func TestRun_BumpBacksOffAndDwells(t *testing.T) {
	dwell := 50 * time.Millisecond
	p := &fakePlatform{snapshots: []Snapshot{
		{BumpLeft: true, Infrared: IRGreenBuoy},
		{Infrared: IRAll},
	}}
	c, _ := newTestController(t, p, dwell)
	p.onDrive = func(n int) {
		if n == 2 {
			c.RequestStop()
		}
	}

	if err := runWithTimeout(t, c); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	cmds := p.commands()
	if len(cmds) != 3 {
		t.Fatalf("sent %d commands, want 3", len(cmds))
	}
	if cmds[0].cmd != BackOff {
		t.Errorf("first command = %v, want %v", cmds[0].cmd, BackOff)
	}
	if cmds[1].cmd != FullSpeed {
		t.Errorf("second command = %v, want %v", cmds[1].cmd, FullSpeed)
	}
	if gap := cmds[1].at.Sub(cmds[0].at); gap < dwell {
		t.Errorf("next command after %v, want at least %v", gap, dwell)
	}
}

func TestRun_SensorFailure(t *testing.T) {
	p := &fakePlatform{readErr: errLinkDown}
	c, logs := newTestController(t, p, 10*time.Millisecond)

	err := runWithTimeout(t, c)
	if !errors.Is(err, errLinkDown) {
		t.Fatalf("Run error = %v, want %v", err, errLinkDown)
	}

	cmds := p.commands()
	if len(cmds) != 1 || cmds[0].cmd != Stop {
		t.Errorf("commands = %v, want one stop", cmds)
	}

	lines := logs.all()
	if len(lines) != 2 {
		t.Fatalf("logs = %q, want start line and one failure line", lines)
	}
	if !strings.Contains(lines[1], "connection lost") {
		t.Errorf("failure log = %q, want the error description", lines[1])
	}
	if c.IsRunning() {
		t.Error("IsRunning() = true after failure")
	}
}

func TestRun_FinalStopFails(t *testing.T) {
	p := &fakePlatform{
		snapshots: []Snapshot{{Infrared: IRNone}},
		failAfter: 2,
	}
	c, logs := newTestController(t, p, 10*time.Millisecond)

	err := runWithTimeout(t, c)
	if !errors.Is(err, errLinkDown) {
		t.Fatalf("Run error = %v, want %v", err, errLinkDown)
	}

	cmds := p.commands()
	if len(cmds) != 2 {
		t.Fatalf("sent %d commands, want 2", len(cmds))
	}
	for _, s := range cmds {
		if s.cmd != Search {
			t.Errorf("command = %v, want %v", s.cmd, Search)
		}
	}

	lines := logs.all()
	if len(lines) != 3 {
		t.Fatalf("logs = %q, want start, failure and DEAD", lines)
	}
	if !strings.Contains(lines[1], "connection lost") {
		t.Errorf("failure log = %q", lines[1])
	}
	if lines[2] != "DEAD" {
		t.Errorf("last log = %q, want DEAD", lines[2])
	}
}

func TestRun_ShutDownDuringSensorRead(t *testing.T) {
	p := &fakePlatform{readErr: errLinkDown}
	c, logs := newTestController(t, p, 10*time.Millisecond)
	p.onRead = c.RequestStop

	if err := runWithTimeout(t, c); err != nil {
		t.Fatalf("Run error = %v, want nil", err)
	}

	cmds := p.commands()
	if len(cmds) != 1 || cmds[0].cmd != Stop {
		t.Errorf("commands = %v, want one stop", cmds)
	}
	lines := logs.all()
	if len(lines) != 2 || lines[1] != "Stop requested" {
		t.Errorf("logs = %q, want start line and Stop requested", lines)
	}
}

func TestRun_ShutDownDuringDrive(t *testing.T) {
	p := &fakePlatform{
		snapshots: []Snapshot{{Infrared: IRNone}},
		failAfter: 1,
	}
	c, logs := newTestController(t, p, 10*time.Millisecond)
	calls := 0
	p.beforeDrive = func() {
		calls++
		if calls == 2 {
			c.RequestStop()
		}
	}

	if err := runWithTimeout(t, c); err != nil {
		t.Fatalf("Run error = %v, want nil", err)
	}

	lines := logs.all()
	for _, l := range lines {
		if strings.Contains(l, "connection lost") {
			t.Errorf("logged %q, want the stop path", l)
		}
	}
	if len(lines) < 2 || lines[1] != "Stop requested" {
		t.Errorf("logs = %q, want Stop requested after the start line", lines)
	}
	if calls != 3 {
		t.Errorf("DriveDirect called %d times, want 3 (command, failed command, final stop)", calls)
	}
}

func TestRun_StopDuringDwell(t *testing.T) {
	p := &fakePlatform{snapshots: []Snapshot{{BumpRight: true}}}
	c, _ := newTestController(t, p, time.Hour)
	p.onDrive = func(n int) {
		if n == 1 {
			go func() {
				time.Sleep(10 * time.Millisecond)
				c.RequestStop()
			}()
		}
	}

	start := time.Now()
	if err := runWithTimeout(t, c); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("stop request did not interrupt the dwell")
	}

	cmds := p.commands()
	if len(cmds) != 2 || cmds[0].cmd != BackOff || cmds[1].cmd != Stop {
		t.Errorf("commands = %v, want back-off then stop", cmds)
	}
}

func TestRun_StoppedBeforeStart(t *testing.T) {
	p := &fakePlatform{snapshots: []Snapshot{{Infrared: IRAll}}}
	run := NewRunState()
	run.RequestStop()

	c, err := NewController(Config{Platform: p, RunState: run, Sink: &logRecorder{}})
	if err != nil {
		t.Fatal(err)
	}
	if err := runWithTimeout(t, c); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	cmds := p.commands()
	if len(cmds) != 1 || cmds[0].cmd != Stop {
		t.Errorf("commands = %v, want only the final stop", cmds)
	}
	if p.reads != 0 {
		t.Errorf("sensors read %d times after stop", p.reads)
	}
}

func TestRun_ContextCancel(t *testing.T) {
	p := &fakePlatform{snapshots: []Snapshot{{Infrared: 7}}}
	c, logs := newTestController(t, p, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.onDrive = func(n int) {
		if n == 5 {
			cancel()
		}
	}

	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	cmds := p.commands()
	if last := cmds[len(cmds)-1].cmd; last != Stop {
		t.Errorf("final command = %v, want stop", last)
	}
	for _, s := range cmds[:len(cmds)-1] {
		if s.cmd != Straight {
			t.Errorf("command = %v, want %v", s.cmd, Straight)
		}
	}
	if c.IsRunning() {
		t.Error("IsRunning() = true after cancel")
	}
	if lines := logs.all(); lines[len(lines)-1] != "Stop requested" {
		t.Errorf("last log = %q", lines[len(lines)-1])
	}
}

func TestRun_Twice(t *testing.T) {
	p := &fakePlatform{readErr: errLinkDown}
	c, _ := newTestController(t, p, 10*time.Millisecond)

	_ = runWithTimeout(t, c)
	if err := runWithTimeout(t, c); err == nil {
		t.Error("second Run should fail")
	}
}

func TestShutDown(t *testing.T) {
	p := &fakePlatform{readErr: errLinkDown}
	c, _ := newTestController(t, p, 10*time.Millisecond)

	_ = runWithTimeout(t, c)
	if err := c.ShutDown(); err != nil {
		t.Fatalf("ShutDown error: %v", err)
	}
	if err := c.ShutDown(); err != nil {
		t.Fatalf("second ShutDown error: %v", err)
	}
	if p.closed != 1 {
		t.Errorf("platform closed %d times, want 1", p.closed)
	}
}

func TestController_Getters(t *testing.T) {
	p := &fakePlatform{snapshots: []Snapshot{{}}}
	c, err := NewController(Config{Platform: p})
	if err != nil {
		t.Fatal(err)
	}

	if !c.IsRunning() {
		t.Error("IsRunning() = false after construction")
	}
	if c.LeftDistance() != 100 || c.FrontDistance() != 200 || c.RightDistance() != 300 {
		t.Error("distance getters do not reach the platform")
	}
	if c.Dwell() != DefaultDwell {
		t.Errorf("Dwell() = %v, want %v", c.Dwell(), DefaultDwell)
	}
	if c.Speed() != DefaultSpeed {
		t.Errorf("Speed() = %d, want %d", c.Speed(), DefaultSpeed)
	}
	if c.Logs() == nil {
		t.Error("Logs() = nil with the default sink")
	}

	if _, err := NewController(Config{}); err == nil {
		t.Error("NewController without platform should fail")
	}
}

func TestRun_PublishesState(t *testing.T) {
	p := &fakePlatform{snapshots: []Snapshot{{Infrared: IRRedBuoy, Front: 420}}}
	c, _ := newTestController(t, p, 10*time.Millisecond)
	p.onDrive = func(n int) {
		if n == 1 {
			c.RequestStop()
		}
	}

	if err := runWithTimeout(t, c); err != nil {
		t.Fatal(err)
	}

	select {
	case s := <-c.States():
		if s.Command != VeerRight || s.Snapshot.Front != 420 {
			t.Errorf("state = %+v", s)
		}
	default:
		t.Fatal("no state published")
	}
}

func TestChannelSink(t *testing.T) {
	s := NewChannelSink(2)
	s.Log("one")
	s.Log("two")
	s.Log("three") // dropped

	got := []string{<-s.Messages(), <-s.Messages()}
	if !strings.HasSuffix(got[0], "] one") || !strings.HasSuffix(got[1], "] two") {
		t.Errorf("messages = %q", got)
	}
	select {
	case m := <-s.Messages():
		t.Errorf("unexpected message %q", m)
	default:
	}
}
