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


package knowledge

import "errors"

var (
	// ErrAgentNotFound is returned when no agent matches (tenant, agent id).
	ErrAgentNotFound = errors.New("agent not found")

	// ErrConversationNotFound is returned when no conversation matches (tenant, conversation id).
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrUserNotFound is returned when no user matches (tenant, user id).
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials is returned when an email is unknown or its password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrStoreRequired is returned when a collection store is not provided.
	ErrStoreRequired = errors.New("collection store required")
)
