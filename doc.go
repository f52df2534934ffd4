// Package iaroc drives an iRobot Create through a maze using three range
// finders, the bump sensors and the infrared receiver.
//
// # Installation
//
//	go install github.com/gwillem/iaroc/cmd/iaroc@latest
//
// # Usage
//
// First, run setup to find the Create base and check the range finders:
//
//	iaroc setup
//
// Then start the controller:
//
//	iaroc run
//
// Use --headless to run without the dashboard and log to stderr instead.
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/iaroc: CLI with setup, run and info commands
//   - pkg/create: Open Interface serial driver for the Create base
//   - pkg/sonar: Ultrasonic range finders on GPIO
//   - pkg/estop: Debounced stop button
//   - pkg/control: Decision table and control loop
//   - pkg/robot: Hardware wiring and configuration
package iaroc
