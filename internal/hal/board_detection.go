// Package hal detects the host single-board computer and exposes the
// facts the Strip Driver Abstraction needs to pick a GPIO backend: which
// character-device chip exposes the real pins, and how many cores are
// available for the per-strip worker threads.
package hal

import (
	"fmt"
	"os"
	"strings"
)

type BoardModel int

const (
	BoardUnknown BoardModel = iota
	BoardRPiZero
	BoardRPiZeroW
	BoardRPiZero2W
	BoardRPi1
	BoardRPi2
	BoardRPi3
	BoardRPi3Plus
	BoardRPi4
	BoardRPi5
	BoardRPiCM3
	BoardRPiCM4
)

// BoardInfo is the subset of board facts the strip drivers care about.
type BoardInfo struct {
	Model    BoardModel
	Name     string
	NumGPIO  int
	CPUCores int
	RAMSize  int // MB
	GPIOChip string
}

// GPIOChipName returns the GPIO character device name for this board model.
// Auto-detects by reading the sysfs labels of gpiochip0 and gpiochip4
// (/sys/bus/gpio/devices/<chip>/label) for the RP1 or BCM2835 controller.
// Falls back to gpiochip0 if auto-detection fails.
func (b BoardModel) GPIOChipName() string {
	for _, chip := range []string{"gpiochip0", "gpiochip4"} {
		labelPath := fmt.Sprintf("/sys/bus/gpio/devices/%s/label", chip)
		data, err := os.ReadFile(labelPath)
		if err != nil {
			continue
		}
		label := strings.TrimSpace(string(data))
		// Pi 5 uses pinctrl-rp1, Pi 4 and earlier use pinctrl-bcm2835
		if strings.Contains(label, "pinctrl-rp1") || strings.Contains(label, "pinctrl-bcm2") {
			return chip
		}
	}
	return "gpiochip0"
}

// DetectBoard reads /proc/cpuinfo (falling back to the device-tree model
// file on boards that omit it, such as the Pi 5) and returns the facts
// needed to stand up a strip driver.
func DetectBoard() (*BoardInfo, error) {
	data, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return nil, fmt.Errorf("read cpuinfo: %w", err)
	}

	model := extractModel(string(data))
	info := &BoardInfo{Model: model}

	switch model {
	case BoardRPiZero, BoardRPiZeroW:
		info.Name = model.String()
		info.NumGPIO = 26
		info.CPUCores = 1
		info.RAMSize = 512
	case BoardRPiZero2W:
		info.Name = model.String()
		info.NumGPIO = 26
		info.CPUCores = 4
		info.RAMSize = 512
	case BoardRPi3, BoardRPi3Plus:
		info.Name = model.String()
		info.NumGPIO = 26
		info.CPUCores = 4
		info.RAMSize = 1024
	case BoardRPi4:
		info.Name = model.String()
		info.NumGPIO = 26
		info.CPUCores = 4
		info.RAMSize = detectRAMSize()
	case BoardRPi5:
		info.Name = model.String()
		info.NumGPIO = 26
		info.CPUCores = 4
		info.RAMSize = detectRAMSize()
	case BoardRPiCM4:
		info.Name = model.String()
		info.NumGPIO = 28
		info.CPUCores = 4
		info.RAMSize = detectRAMSize()
	default:
		info.Name = "Unknown Board"
		info.NumGPIO = 26
		info.CPUCores = 1
		info.RAMSize = 512
	}
	info.GPIOChip = model.GPIOChipName()

	return info, nil
}

func extractModel(cpuinfo string) BoardModel {
	for _, line := range strings.Split(cpuinfo, "\n") {
		if strings.HasPrefix(line, "Model") {
			if m := matchBoardModel(line); m != BoardUnknown {
				return m
			}
		}
	}

	// Pi 5 doesn't put a Model line in /proc/cpuinfo; check device-tree.
	if dtModel, err := os.ReadFile("/proc/device-tree/model"); err == nil {
		if m := matchBoardModel(string(dtModel)); m != BoardUnknown {
			return m
		}
	}

	return BoardUnknown
}

func matchBoardModel(text string) BoardModel {
	model := strings.ToLower(text)

	switch {
	case strings.Contains(model, "pi 5"):
		return BoardRPi5
	case strings.Contains(model, "pi 4"):
		return BoardRPi4
	case strings.Contains(model, "pi 3 model b+"):
		return BoardRPi3Plus
	case strings.Contains(model, "pi 3"):
		return BoardRPi3
	case strings.Contains(model, "pi 2"):
		return BoardRPi2
	case strings.Contains(model, "pi 1"), strings.Contains(model, "model b"):
		return BoardRPi1
	case strings.Contains(model, "zero 2 w"):
		return BoardRPiZero2W
	case strings.Contains(model, "zero w"):
		return BoardRPiZeroW
	case strings.Contains(model, "zero"):
		return BoardRPiZero
	case strings.Contains(model, "compute module 4"):
		return BoardRPiCM4
	case strings.Contains(model, "compute module 3"):
		return BoardRPiCM3
	}
	return BoardUnknown
}

func detectRAMSize() int {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0
	}

	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "MemTotal:") {
			parts := strings.Fields(line)
			if len(parts) >= 2 {
				var kb int
				fmt.Sscanf(parts[1], "%d", &kb)
				return kb / 1024
			}
		}
	}
	return 0
}

func (b BoardModel) String() string {
	switch b {
	case BoardRPiZero:
		return "Raspberry Pi Zero"
	case BoardRPiZeroW:
		return "Raspberry Pi Zero W"
	case BoardRPiZero2W:
		return "Raspberry Pi Zero 2 W"
	case BoardRPi1:
		return "Raspberry Pi 1"
	case BoardRPi2:
		return "Raspberry Pi 2"
	case BoardRPi3:
		return "Raspberry Pi 3"
	case BoardRPi3Plus:
		return "Raspberry Pi 3 B+"
	case BoardRPi4:
		return "Raspberry Pi 4"
	case BoardRPi5:
		return "Raspberry Pi 5"
	case BoardRPiCM3:
		return "Raspberry Pi Compute Module 3"
	case BoardRPiCM4:
		return "Raspberry Pi Compute Module 4"
	default:
		return "Unknown"
	}
}
