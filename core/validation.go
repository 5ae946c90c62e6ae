// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"strings"
)

// ValidateNewAgent validates the fields supplied when an agent is created.
//
// Validation rules:
//   - TenantID, OwnerUserID and Name must not be blank
//   - Category must be Personal or Corporate
//
// NOT validated:
//   - Specialty (expected but not required)
//   - Matrix and MatrixVersion (owned by the store)
func ValidateNewAgent(tenantID, ownerUserID, name string, category Category) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyTenant)
	}
	if strings.TrimSpace(ownerUserID) == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyOwner)
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyName)
	}
	return ValidateCategory(category)
}

// ValidateCategory validates that a Category has a known value.
func ValidateCategory(category Category) error {
	if category != CategoryPersonal && category != CategoryCorporate {
		return fmt.Errorf("%w: %w: %q", ErrValidation, ErrInvalidCategory, category)
	}
	return nil
}

// ValidateRole validates that a Role has a known value.
func ValidateRole(role Role) error {
	if role != RoleUser && role != RoleAdmin {
		return fmt.Errorf("%w: %w: %q", ErrValidation, ErrInvalidRole, role)
	}
	return nil
}

// ValidateMessageRole validates that a MessageRole is user or assistant.
func ValidateMessageRole(role MessageRole) error {
	if role != MessageRoleUser && role != MessageRoleAssistant {
		return fmt.Errorf("%w: %w: %q", ErrValidation, ErrInvalidMessageRole, role)
	}
	return nil
}
