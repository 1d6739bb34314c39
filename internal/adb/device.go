package adb

import (
	"fmt"
	"strconv"
)

// Command is a single device-control action. Success is a zero exit code.
type Command struct {
	Description string
	Name        string
	Args        []string
	// OutputFile receives the process stdout (used by screen captures).
	OutputFile string
}

func (c Command) String() string {
	return c.Description
}

// Device builds adb invocations for one emulator.
type Device struct {
	ADB        string
	Serial     string
	AppPackage string
}

func NewDevice(adbPath, serial, appPackage string) *Device {
	if adbPath == "" {
		adbPath = "adb"
	}
	return &Device{ADB: adbPath, Serial: serial, AppPackage: appPackage}
}

func (d *Device) command(description string, args ...string) Command {
	return Command{
		Description: description,
		Name:        d.ADB,
		Args:        append([]string{"-s", d.Serial}, args...),
	}
}

func (d *Device) Tap(description string, x, y int) Command {
	return d.command(description, "shell", "input", "tap", strconv.Itoa(x), strconv.Itoa(y))
}

// Text types into the focused field. Spaces are escaped the way `input text` expects.
func (d *Device) Text(description, text string) Command {
	escaped := make([]rune, 0, len(text))
	for _, r := range text {
		if r == ' ' {
			escaped = append(escaped, '%', 's')
			continue
		}
		escaped = append(escaped, r)
	}
	return d.command(description, "shell", "input", "text", string(escaped))
}

func (d *Device) Screencap(path string) Command {
	c := d.command(fmt.Sprintf("Capturing screenshot to %s", path), "exec-out", "screencap", "-p")
	c.OutputFile = path
	return c
}

func (d *Device) ForceStop() Command {
	return d.command("Stopping "+d.AppPackage, "shell", "am", "force-stop", d.AppPackage)
}

func (d *Device) Launch() Command {
	return d.command("Launching "+d.AppPackage, "shell", "monkey", "-p", d.AppPackage, "-c", "android.intent.category.LAUNCHER", "1")
}
