package mqtt

import (
	"errors"
	"testing"
)

func TestValidateTopicName(t *testing.T) {
	tests := []struct {
		topic   string
		wantErr bool
	}{
		{topic: "homie/lamp1/$homie", wantErr: false},
		{topic: "homie/lamp1/light/switch_led", wantErr: false},
		{topic: "", wantErr: true},
		{topic: "homie/+/light", wantErr: true},
		{topic: "homie/#", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			err := ValidateTopicName(tt.topic)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTopicName(%q) error = %v, wantErr %v", tt.topic, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTopic) {
				t.Errorf("error %v does not wrap ErrInvalidTopic", err)
			}
		})
	}
}

func TestValidateTopicFilter(t *testing.T) {
	tests := []struct {
		filter  string
		wantErr bool
	}{
		{filter: "homie/+/+/+/set", wantErr: false},
		{filter: "homie/#", wantErr: false},
		{filter: "#", wantErr: false},
		{filter: "+", wantErr: false},
		{filter: "homie/lamp1/$state", wantErr: false},
		{filter: "", wantErr: true},
		{filter: "homie/#/set", wantErr: true},
		{filter: "homie/lamp+/set", wantErr: true},
		{filter: "homie/lamp#", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			err := ValidateTopicFilter(tt.filter)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTopicFilter(%q) error = %v, wantErr %v", tt.filter, err, tt.wantErr)
			}
		})
	}
}

func TestMatchTopic(t *testing.T) {
	tests := []struct {
		filter string
		topic  string
		want   bool
	}{
		{"homie/+/+/+/set", "homie/lamp1/light/switch_led/set", true},
		{"homie/+/+/+/set", "homie/lamp1/set", false},
		{"homie/+/+/+/set", "homie/lamp1/light/switch_led", false},
		{"homie/+/+/+/set", "homie/lamp1/light/switch_led/set/extra", false},
		{"homie/#", "homie/lamp1/$state", true},
		{"homie/#", "homie", true},
		{"homie/lamp1/$state", "homie/lamp1/$state", true},
		{"homie/lamp1/$state", "homie/lamp2/$state", false},
		{"#", "$SYS/broker/uptime", false},
		{"+/broker/uptime", "$SYS/broker/uptime", false},
	}

	for _, tt := range tests {
		t.Run(tt.filter+" "+tt.topic, func(t *testing.T) {
			if got := MatchTopic(tt.filter, tt.topic); got != tt.want {
				t.Errorf("MatchTopic(%q, %q) = %v, want %v", tt.filter, tt.topic, got, tt.want)
			}
		})
	}
}
