package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/iaroc/pkg/control"
	"github.com/gwillem/iaroc/pkg/create"
	"github.com/gwillem/iaroc/pkg/robot"
)

type InfoCommand struct {
	Config string `long:"config" short:"c" default:"iaroc.json" description:"Configuration file"`
	Port   string `long:"port" short:"p" description:"Serial port (overrides the configuration)"`
}

func (c *InfoCommand) Execute(args []string) error {
	cfg := robot.DefaultConfig()
	if robot.ConfigExists(c.Config) {
		loaded, err := robot.LoadConfigFrom(c.Config)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if c.Port != "" {
		cfg.Create.Port = c.Port
	}
	if cfg.Create.Port == "" {
		fmt.Fprintln(os.Stderr, "No serial port configured. Run 'iaroc setup' or pass --port.")
		os.Exit(1)
	}

	conn, err := create.Open(create.Config{
		Port:     cfg.Create.Port,
		BaudRate: cfg.Create.BaudRate,
		Mode:     create.ModeSafe,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.ReadSensors(ctx, create.GroupAll); err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("Create on " + cfg.Create.Port))
	fmt.Println(renderSensors(conn.Sensors()))
	return nil
}

func onOff(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}

func renderSensors(s create.Sensors) string {
	rows := [][]string{
		{"Bump left/right", onOff(s.BumpLeft) + " / " + onOff(s.BumpRight)},
		{"Wheel drop", fmt.Sprintf("%s / %s / %s", onOff(s.WheelDropLeft), onOff(s.WheelDropCaster), onOff(s.WheelDropRight))},
		{"Wall", onOff(s.Wall)},
		{"Cliff", fmt.Sprintf("%s %s %s %s", onOff(s.CliffLeft), onOff(s.CliffFrontLeft), onOff(s.CliffFrontRight), onOff(s.CliffRight))},
		{"Virtual wall", onOff(s.VirtualWall)},
		{"Infrared", fmt.Sprintf("%d (%s)", s.Infrared, control.IRCode(s.Infrared))},
		{"Battery", fmt.Sprintf("%d mV, %d mA, %d C", s.Voltage, s.Current, s.Temperature)},
		{"Charge", fmt.Sprintf("%d / %d mAh", s.Charge, s.Capacity)},
		{"Requested", fmt.Sprintf("L %d R %d mm/s", s.RequestedLeft, s.RequestedRight)},
	}

	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	valStyle := lipgloss.NewStyle().Padding(0, 1)

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return keyStyle
			}
			return valStyle
		}).
		Render()
}
