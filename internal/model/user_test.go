package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPhone(t *testing.T) {
	tests := []struct {
		name     string
		phone    string
		expected string
	}{
		{name: "mobile number", phone: "13812345678", expected: "138****5678"},
		{name: "short number", phone: "1234567", expected: "123****4567"},
		{name: "too short", phone: "12345", expected: ""},
		{name: "not digits", phone: "+1 (555) 010", expected: ""},
		{name: "empty", phone: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MaskPhone(tt.phone))
		})
	}
}

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		expected string
	}{
		{name: "regular", email: "alice@example.com", expected: "a****@example.com"},
		{name: "single char local part", email: "a@example.com", expected: "a****@example.com"},
		{name: "local part starts with a plus", email: "+tag@x.com", expected: "+****@x.com"},
		{name: "local part starts with a dot", email: ".a@x.com", expected: ".****@x.com"},
		{name: "empty local part", email: "@x.com", expected: ""},
		{name: "no at sign", email: "alice", expected: ""},
		{name: "empty", email: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MaskEmail(tt.email))
		})
	}
}
