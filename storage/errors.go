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


package storage

import "errors"

var (
	// ErrNotFound indicates that the requested collection does not exist yet.
	ErrNotFound = errors.New("collection not found")

	// ErrConflict indicates that a collection changed since it was loaded.
	ErrConflict = errors.New("revision conflict")

	// ErrStoreIO indicates a failure of the underlying persistence medium.
	ErrStoreIO = errors.New("store I/O failure")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrInvalidName indicates a collection or log name outside the allowed alphabet.
	ErrInvalidName = errors.New("invalid collection name")
)
