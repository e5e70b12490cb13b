package bambu

import (
	"encoding/json"
	"testing"
)

func TestMarshalPrintPause(t *testing.T) {
	raw, err := marshalPrint(7, "pause", "")
	if err != nil {
		t.Fatalf("marshalPrint: %v", err)
	}
	var decoded map[string]map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	print, ok := decoded["print"]
	if !ok {
		t.Fatalf("missing print group: %s", raw)
	}
	if print["sequence_id"] != "7" {
		t.Errorf("sequence_id = %v, want 7", print["sequence_id"])
	}
	if print["command"] != "pause" {
		t.Errorf("command = %v, want pause", print["command"])
	}
	if _, present := print["param"]; present {
		t.Errorf("param should be omitted for pause, got %v", print["param"])
	}
}

func TestMarshalPrintGcodeLineIncludesParam(t *testing.T) {
	raw, err := marshalPrint(1, "gcode_line", "G28")
	if err != nil {
		t.Fatalf("marshalPrint: %v", err)
	}
	var decoded map[string]map[string]any
	json.Unmarshal(raw, &decoded)
	if decoded["print"]["param"] != "G28" {
		t.Errorf("param = %v, want G28", decoded["print"]["param"])
	}
}

func TestMarshalPushAll(t *testing.T) {
	raw, err := marshalPushAll(3)
	if err != nil {
		t.Fatalf("marshalPushAll: %v", err)
	}
	var decoded map[string]map[string]any
	json.Unmarshal(raw, &decoded)
	pushing, ok := decoded["pushing"]
	if !ok {
		t.Fatalf("missing pushing group: %s", raw)
	}
	if pushing["command"] != "pushall" {
		t.Errorf("command = %v, want pushall", pushing["command"])
	}
}

func TestMarshalLedControl(t *testing.T) {
	raw, err := marshalLedControl(2, "chamber_light", true)
	if err != nil {
		t.Fatalf("marshalLedControl: %v", err)
	}
	var decoded map[string]map[string]any
	json.Unmarshal(raw, &decoded)
	system, ok := decoded["system"]
	if !ok {
		t.Fatalf("missing system group: %s", raw)
	}
	if system["led_node"] != "chamber_light" {
		t.Errorf("led_node = %v, want chamber_light", system["led_node"])
	}
	if system["led_mode"] != "on" {
		t.Errorf("led_mode = %v, want on", system["led_mode"])
	}

	rawOff, _ := marshalLedControl(2, "work_light", false)
	json.Unmarshal(rawOff, &decoded)
	if decoded["system"]["led_mode"] != "off" {
		t.Errorf("led_mode = %v, want off", decoded["system"]["led_mode"])
	}
}
