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

import "errors"

// Domain validation errors
var (
	// ErrValidation is the umbrella for every malformed-input failure below.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidCategory indicates an unknown agent category.
	ErrInvalidCategory = errors.New("invalid agent category")

	// ErrInvalidRole indicates an unknown user role.
	ErrInvalidRole = errors.New("invalid role")

	// ErrInvalidMessageRole indicates a message role other than user or assistant.
	ErrInvalidMessageRole = errors.New("invalid message role")

	// ErrEmptyTenant indicates a missing tenant id.
	ErrEmptyTenant = errors.New("tenant id cannot be empty")

	// ErrEmptyOwner indicates a missing owner user id.
	ErrEmptyOwner = errors.New("owner user id cannot be empty")

	// ErrEmptyName indicates a missing agent name.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrEmptyEmail indicates a missing email address.
	ErrEmptyEmail = errors.New("email cannot be empty")

	// ErrEmptyConversationID indicates a missing conversation id.
	ErrEmptyConversationID = errors.New("conversation id cannot be empty")
)
