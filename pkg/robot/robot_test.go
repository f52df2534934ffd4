package robot

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gwillem/iaroc/pkg/control"
	"github.com/gwillem/iaroc/pkg/create"
)

type fakeBase struct {
	sensors  create.Sensors
	readErr  error
	group    create.SensorGroup
	drives   [][2]int
	closeErr error
	order    *[]string
}

func (b *fakeBase) DriveDirect(ctx context.Context, left, right int) error {
	b.drives = append(b.drives, [2]int{left, right})
	return nil
}

func (b *fakeBase) ReadSensors(ctx context.Context, group create.SensorGroup) error {
	b.group = group
	return b.readErr
}

func (b *fakeBase) Sensors() create.Sensors { return b.sensors }

func (b *fakeBase) Close() error {
	*b.order = append(*b.order, "create")
	return b.closeErr
}

type fakeRanges struct {
	left, front, right int
	order              *[]string
}

func (r *fakeRanges) LeftDistance() int  { return r.left }
func (r *fakeRanges) FrontDistance() int { return r.front }
func (r *fakeRanges) RightDistance() int { return r.right }

func (r *fakeRanges) Close() error {
	*r.order = append(*r.order, "sonar")
	return nil
}

func TestRobot_ReadSensors(t *testing.T) {
	var order []string
	base := &fakeBase{
		sensors: create.Sensors{BumpRight: true, Infrared: 244},
		order:   &order,
	}
	r := New(base, &fakeRanges{left: 150, front: 900, right: 320, order: &order})

	snap, err := r.ReadSensors(context.Background())
	if err != nil {
		t.Fatalf("ReadSensors error: %v", err)
	}
	if base.group != create.GroupAll {
		t.Errorf("requested group %d, want %d", base.group, create.GroupAll)
	}

	want := control.Snapshot{
		BumpRight: true,
		Infrared:  control.IRGreenBuoy,
		Left:      150,
		Front:     900,
		Right:     320,
	}
	if snap != want {
		t.Errorf("snapshot = %+v, want %+v", snap, want)
	}
	if !r.IsBumpRight() || r.IsBumpLeft() || r.InfraredByte() != 244 {
		t.Error("sensor getters disagree with the snapshot")
	}
}

func TestRobot_ReadSensorsError(t *testing.T) {
	var order []string
	base := &fakeBase{readErr: create.ErrConnectionLost, order: &order}
	r := New(base, &fakeRanges{order: &order})

	if _, err := r.ReadSensors(context.Background()); !errors.Is(err, create.ErrConnectionLost) {
		t.Errorf("ReadSensors error = %v, want ErrConnectionLost", err)
	}
}

func TestRobot_Close(t *testing.T) {
	var order []string
	base := &fakeBase{closeErr: create.ErrConnectionLost, order: &order}
	r := New(base, &fakeRanges{order: &order})

	err := r.Close()
	if !errors.Is(err, create.ErrConnectionLost) {
		t.Errorf("Close error = %v, want ErrConnectionLost", err)
	}
	if err2 := r.Close(); err2 != err {
		t.Errorf("second Close = %v, want first result", err2)
	}

	if len(order) != 2 || order[0] != "create" || order[1] != "sonar" {
		t.Errorf("close order = %v, want [create sonar]", order)
	}
}

// serialPort is a Create link whose reads fail and whose writes may fail.
type serialPort struct {
	mu       sync.Mutex
	written  bytes.Buffer
	writes   int
	writeErr error
}

func (p *serialPort) Read(b []byte) (int, error) {
	return 0, errors.New("link down")
}

func (p *serialPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes++
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	return p.written.Write(b)
}

func (p *serialPort) Close() error { return nil }

// driveFrames counts DriveDirect frames in the bytes written to the port.
func (p *serialPort) driveFrames() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	var frames [][]byte
	b := p.written.Bytes()
	for len(b) > 0 {
		switch b[0] {
		case 145:
			frames = append(frames, b[:5])
			b = b[5:]
		case 142:
			b = b[2:]
		default:
			b = b[1:]
		}
	}
	return frames
}

func runController(t *testing.T, port *serialPort) []string {
	t.Helper()
	var order []string
	r := New(create.New(port), &fakeRanges{order: &order})

	var mu sync.Mutex
	var logs []string
	ctrl, err := control.NewController(control.Config{
		Platform: r,
		Sink: control.SinkFunc(func(msg string) {
			mu.Lock()
			logs = append(logs, msg)
			mu.Unlock()
		}),
		Dwell: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ctrl.Run(ctx); !errors.Is(err, create.ErrConnectionLost) {
		t.Fatalf("Run error = %v, want ErrConnectionLost", err)
	}
	if len(order) != 1 || order[0] != "sonar" {
		t.Errorf("sonar closed %v, want once", order)
	}

	mu.Lock()
	defer mu.Unlock()
	return append([]string(nil), logs...)
}

func TestRobot_SensorFailureSendsOneStop(t *testing.T) {
	port := &serialPort{}
	logs := runController(t, port)

	frames := port.driveFrames()
	if len(frames) != 1 || !bytes.Equal(frames[0], []byte{145, 0, 0, 0, 0}) {
		t.Errorf("drive frames = % X, want exactly one stop", frames)
	}
	for _, l := range logs {
		if l == "DEAD" {
			t.Errorf("logs = %q, want no DEAD after a successful stop", logs)
		}
	}
}

func TestRobot_FailedStopIsNotRetried(t *testing.T) {
	port := &serialPort{writeErr: errors.New("link down")}
	logs := runController(t, port)

	// One sensor request and one stop attempt; Close must not write again.
	if port.writes != 2 {
		t.Errorf("port saw %d writes, want 2", port.writes)
	}
	if len(logs) == 0 || logs[len(logs)-1] != "DEAD" {
		t.Errorf("logs = %q, want DEAD last", logs)
	}
}
