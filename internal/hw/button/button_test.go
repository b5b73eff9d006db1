package button

import (
	"testing"

	"github.com/cjeanneret/LineGo/internal/hw/gpio"
)

func TestButton_ActiveLow(t *testing.T) {
	drv := &gpio.MockDriver{}
	b := New(drv, 26, true)

	if b.IsPressed() {
		t.Fatal("released active-low button (pulled up) should not read pressed")
	}
	drv.SetLevel(26, gpio.Low)
	if !b.IsPressed() {
		t.Error("active-low button at Low should read pressed")
	}
}

func TestButton_ActiveHigh(t *testing.T) {
	drv := &gpio.MockDriver{}
	drv.SetLevel(19, gpio.Low)
	b := New(drv, 19, false)

	if b.IsPressed() {
		t.Fatal("active-high button at Low should not read pressed")
	}
	drv.SetLevel(19, gpio.High)
	if !b.IsPressed() {
		t.Error("active-high button at High should read pressed")
	}
}

func TestButton_PressedOncePerPress(t *testing.T) {
	drv := &gpio.MockDriver{}
	b := New(drv, 26, true)

	// held for several polls, released, pressed again
	levels := []gpio.Level{gpio.High, gpio.Low, gpio.Low, gpio.Low, gpio.High, gpio.Low}
	presses := 0
	for _, l := range levels {
		drv.SetLevel(26, l)
		if b.Pressed() {
			presses++
		}
	}
	if presses != 2 {
		t.Errorf("presses = %d, want 2", presses)
	}
}

func TestButton_CancelRequested(t *testing.T) {
	drv := &gpio.MockDriver{}
	b := New(drv, 26, true)
	if b.CancelRequested() {
		t.Fatal("unexpected cancel")
	}
	drv.SetLevel(26, gpio.Low)
	if !b.CancelRequested() {
		t.Error("expected cancel on press")
	}
}
