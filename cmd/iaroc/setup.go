package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.bug.st/serial"

	"github.com/gwillem/iaroc/pkg/create"
	"github.com/gwillem/iaroc/pkg/robot"
	"github.com/gwillem/iaroc/pkg/sonar"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type SetupCommand struct {
	Config string `long:"config" short:"c" default:"iaroc.json" description:"Configuration file"`
	Sonar  string `long:"calibration" description:"Range finder calibration file to merge into the configuration"`
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("iaroc Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━"))
	fmt.Println()

	config := robot.DefaultConfig()
	if robot.ConfigExists(c.Config) {
		if existing, err := robot.LoadConfigFrom(c.Config); err == nil {
			config = existing
		}
	}

	if c.Sonar != "" {
		if err := config.MergeCalibration(c.Sonar); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading calibration: %v\n", err)
			os.Exit(1)
		}
	}

	// Step 1: Find the Create base
	port := scanForBase()
	config.Create.Port = port

	// Step 2: Mode and stop button
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Wiring ━━━"))
	fmt.Println()
	askWiring(config)

	if err := config.SaveTo(c.Config); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	// Step 3: Check the range finders
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Checking Range Finders ━━━"))
	fmt.Println()
	checkRangeFinders(config)

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", c.Config)
	fmt.Println()
	fmt.Println("Start the controller with: " + headerStyle.Render("iaroc run"))

	return nil
}

func scanForBase() string {
	fmt.Println("Scanning for a Create base...")
	fmt.Println()

	ports := findBases()

	if len(ports) == 0 {
		fmt.Println("No Create base found.")
		fmt.Println("Make sure the serial cable is connected and the Create is powered on.")
		os.Exit(1)
	}

	if len(ports) == 1 {
		fmt.Println(successStyle.Render("Create base found on " + ports[0]))
		return ports[0]
	}

	fmt.Printf("Found %d ports. Let's identify the Create...\n", len(ports))
	for _, p := range ports {
		if identifyBaseWithWiggle(p) {
			return p
		}
	}

	fmt.Println("No port was selected.")
	os.Exit(1)
	return ""
}

// identifyBaseWithWiggle turns the base on port left and right in place and
// asks whether that was the robot to use.
func identifyBaseWithWiggle(port string) bool {
	conn, err := create.Open(create.Config{Port: port, Mode: create.ModeSafe})
	if err != nil {
		fmt.Printf("  Error opening %s: %v\n", port, err)
		return false
	}
	defer conn.Close()

	ctx := context.Background()

	fmt.Printf("\n  ⟳ Wiggling base on %s...\n", port)

	wiggleSpeed := 100
	for i := 0; i < 3; i++ {
		conn.DriveDirect(ctx, -wiggleSpeed, wiggleSpeed)
		time.Sleep(150 * time.Millisecond)
		conn.DriveDirect(ctx, wiggleSpeed, -wiggleSpeed)
		time.Sleep(150 * time.Millisecond)
	}
	conn.DriveDirect(ctx, 0, 0)

	var use bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Did the robot just wiggle? (%s)", port)).
				Affirmative("Yes, use it").
				Negative("No").
				Value(&use),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
	return use
}

func findBases() []string {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
		return nil
	}

	var found []string

	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}

		conn, err := create.Open(create.Config{
			Port:        port,
			Mode:        create.ModeSafe,
			ReadTimeout: 100 * time.Millisecond,
		})
		if err != nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		ok := create.Probe(ctx, conn)
		cancel()
		conn.Close()

		if ok {
			fmt.Printf("  Found Create base on %s\n", port)
			found = append(found, port)
		}
	}

	return found
}

func askWiring(config *robot.Config) {
	mode := string(config.Create.Mode)
	stopPin := ""
	if config.StopPin > 0 {
		stopPin = strconv.Itoa(config.StopPin)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Open Interface mode").
				Description("Full mode ignores cliff and wheel-drop safety stops").
				Options(
					huh.NewOption("Full", string(create.ModeFull)),
					huh.NewOption("Safe", string(create.ModeSafe)),
				).
				Value(&mode),
			huh.NewInput().
				Title("Stop button GPIO (BCM)").
				Description("Leave empty if there is no stop button").
				Value(&stopPin).
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					n, err := strconv.Atoi(s)
					if err != nil || n < 1 || n > 27 {
						return fmt.Errorf("enter a pin between 1 and 27")
					}
					return nil
				}),
		),
	)

	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}

	config.Create.Mode = create.Mode(mode)
	config.StopPin, _ = strconv.Atoi(stopPin)
}

func checkRangeFinders(config *robot.Config) {
	array, err := sonar.Open(config.Sonar.Calibration, config.Sonar.PollInterval())
	if err != nil {
		fmt.Println(dimStyle.Render(fmt.Sprintf("Skipping range finder check: %v", err)))
		return
	}
	defer array.Close()

	if err := array.Start(context.Background()); err != nil {
		fmt.Println(dimStyle.Render(fmt.Sprintf("Skipping range finder check: %v", err)))
		return
	}

	fmt.Println("Hold an object in front of each range finder and move it closer and further.")
	fmt.Println()

	p := tea.NewProgram(newRangeCheckModel(array, config.Sonar.Calibration))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running range check: %v\n", err)
		os.Exit(1)
	}
}

// distanceReader is the part of *sonar.Array the range check reads.
type distanceReader interface {
	Distance(side sonar.Side) int
	Errors() int64
}

// Range check TUI model
type rangeCheckModel struct {
	array        distanceReader
	calibration  sonar.Calibration
	curDistances map[sonar.Side]int
	minDistances map[sonar.Side]int
	maxDistances map[sonar.Side]int
	quitting     bool
}

type checkTickMsg time.Time

func newRangeCheckModel(array distanceReader, cal sonar.Calibration) rangeCheckModel {
	return rangeCheckModel{
		array:        array,
		calibration:  cal,
		curDistances: make(map[sonar.Side]int),
		minDistances: make(map[sonar.Side]int),
		maxDistances: make(map[sonar.Side]int),
	}
}

func (m rangeCheckModel) Init() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return checkTickMsg(t)
	})
}

func (m rangeCheckModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case checkTickMsg:
		for _, side := range sonar.AllSides() {
			d := m.array.Distance(side)
			if d == 0 {
				continue // no echo yet
			}
			m.curDistances[side] = d
			if lo, ok := m.minDistances[side]; !ok || d < lo {
				m.minDistances[side] = d
			}
			if d > m.maxDistances[side] {
				m.maxDistances[side] = d
			}
		}
		return m, tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
			return checkTickMsg(t)
		})
	}

	return m, nil
}

func (m rangeCheckModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder

	// Table styles
	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableSideStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableCurrentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	tableRangeGoodStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableRangeLowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

	sides := sonar.AllSides()
	rows := make([][]string, 0, len(sides))
	spans := make([]int, 0, len(sides))
	for _, side := range sides {
		rc := m.calibration[side]
		span := m.maxDistances[side] - m.minDistances[side]
		spans = append(spans, span)
		rows = append(rows, []string{
			string(side),
			fmt.Sprintf("%d/%d", rc.TriggerPin, rc.EchoPin),
			fmt.Sprintf("%d", m.curDistances[side]),
			fmt.Sprintf("%d", m.minDistances[side]),
			fmt.Sprintf("%d", m.maxDistances[side]),
			fmt.Sprintf("%d", span),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Side", "Pins", "Current", "Min", "Max", "Span").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch col {
			case 0:
				return tableSideStyle
			case 2:
				return tableCurrentStyle
			case 5:
				if row >= 0 && row < len(spans) && spans[row] > 300 {
					return tableRangeGoodStyle
				}
				return tableRangeLowStyle
			default:
				return tableCellStyle
			}
		})

	sb.WriteString(t.Render())
	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render(fmt.Sprintf("Failed echoes: %d", m.array.Errors())))
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("Press Enter when done"))

	return sb.String()
}
