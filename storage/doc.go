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


// Package storage provides the persistence abstraction for the knowledge store.
//
// The knowledge store does not need a database engine: it persists a handful of
// whole-collection JSON documents (users, agents, conversations and their
// derived indexes) plus one append-only log per conversation. CollectionStore
// is the capability that backends provide for exactly that shape.
//
// # Constructor Return Type Pattern
//
// Public backend constructors return the storage.CollectionStore interface:
//
//	store, err := file.NewStore("/path/to/data")      // JSON files on disk
//	store, err := badger.NewStore("/path/to/db")      // BadgerDB
//	store, err := badger.NewMemoryStore()             // tests
//
// # Revisions
//
// Every load returns a Revision alongside the document. SaveCollection only
// succeeds if the stored revision still equals the one passed in; otherwise it
// returns ErrConflict and the caller re-runs its read-modify-write. A missing
// collection has the empty revision, so creating it is also a compare-and-swap.
//
// The file backend compares revisions under an in-process lock only. Two
// processes sharing one data directory can still race between compare and
// rename. The badger backend performs the compare inside a transaction and is
// safe across goroutines; badger itself holds a directory lock that keeps a
// second process out.
//
// # Naming
//
// Collection and log names are slash-separated paths of [A-Za-z0-9_-] segments,
// e.g. "agents" or "index/agents_by_tenant". Anything else is rejected with
// ErrInvalidName before it reaches a backend.
//
// # Context Support
//
// All methods accept context.Context and fail fast when it is already done.
package storage
