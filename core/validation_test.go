package core

import (
	"errors"
	"testing"
)

func TestValidateNewAgent(t *testing.T) {
	tests := []struct {
		name     string
		tenant   string
		owner    string
		agent    string
		category Category
		wantErr  error
	}{
		{"valid", "acme", "u1", "Helper", CategoryPersonal, nil},
		{"blank tenant", " ", "u1", "Helper", CategoryPersonal, ErrEmptyTenant},
		{"blank owner", "acme", "", "Helper", CategoryPersonal, ErrEmptyOwner},
		{"blank name", "acme", "u1", "", CategoryCorporate, ErrEmptyName},
		{"bad category", "acme", "u1", "Helper", Category("Team"), ErrInvalidCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNewAgent(tt.tenant, tt.owner, tt.agent, tt.category)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected error to wrap ErrValidation, got %v", err)
			}
		})
	}
}

func TestValidateRole(t *testing.T) {
	if err := ValidateRole(RoleAdmin); err != nil {
		t.Errorf("admin should be valid: %v", err)
	}
	if err := ValidateRole(RoleUser); err != nil {
		t.Errorf("user should be valid: %v", err)
	}
	if err := ValidateRole(Role("root")); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}
}

func TestValidateMessageRole(t *testing.T) {
	if err := ValidateMessageRole(MessageRoleUser); err != nil {
		t.Errorf("user should be valid: %v", err)
	}
	if err := ValidateMessageRole(MessageRoleAssistant); err != nil {
		t.Errorf("assistant should be valid: %v", err)
	}
	if err := ValidateMessageRole(MessageRole("system")); !errors.Is(err, ErrInvalidMessageRole) {
		t.Errorf("expected ErrInvalidMessageRole, got %v", err)
	}
}
